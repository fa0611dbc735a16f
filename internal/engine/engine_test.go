package engine

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailedflox9-maker/studychat/internal/llm"
	"github.com/tailedflox9-maker/studychat/internal/models"
	"github.com/tailedflox9-maker/studychat/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type staticModel string

func (m staticModel) CurrentModel() string { return string(m) }

// fakeStore records every persistence call and fails ops on demand.
type fakeStore struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error

	conversations []models.Conversation
	messages      map[string][]models.Message
	notes         []models.Note
	assignments   []models.Assignment
	appended      []models.Message
	quizResults   []models.QuizResult
	pinResult     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		calls:    make(map[string]int),
		fail:     make(map[string]error),
		messages: make(map[string][]models.Message),
	}
}

func (f *fakeStore) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) failWith(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = &store.PersistenceError{Op: op, Err: context.DeadlineExceeded}
}

func (f *fakeStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return f.record("create_conversation")
}

func (f *fakeStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	if err := f.record("list_conversations"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Conversation(nil), f.conversations...), nil
}

func (f *fakeStore) UpdateConversationTitle(ctx context.Context, id, title string) error {
	return f.record("update_title")
}

func (f *fakeStore) TouchConversation(ctx context.Context, id string) error {
	return f.record("touch")
}

func (f *fakeStore) TogglePin(ctx context.Context, id string) (bool, error) {
	if err := f.record("toggle_pin"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pinResult, nil
}

func (f *fakeStore) DeleteConversation(ctx context.Context, id string) error {
	return f.record("delete_conversation")
}

func (f *fakeStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := f.record("append_" + msg.Role); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, *msg)
	return nil
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID string, offset, limit int) ([]models.Message, error) {
	if err := f.record("list_messages"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message(nil), f.messages[conversationID]...), nil
}

func (f *fakeStore) CreateNote(ctx context.Context, note *models.Note) error {
	if err := f.record("create_note"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, *note)
	return nil
}

func (f *fakeStore) ListNotes(ctx context.Context, userID string) ([]models.Note, error) {
	if err := f.record("list_notes"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Note(nil), f.notes...), nil
}

func (f *fakeStore) DeleteNote(ctx context.Context, id string) error {
	return f.record("delete_note")
}

func (f *fakeStore) ListAssignments(ctx context.Context, studentID string) ([]models.Assignment, error) {
	if err := f.record("list_assignments"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Assignment(nil), f.assignments...), nil
}

func (f *fakeStore) CompleteAssignment(ctx context.Context, id string, score int) error {
	return f.record("complete_assignment")
}

func (f *fakeStore) RecordQuizResult(ctx context.Context, res *models.QuizResult) error {
	if err := f.record("record_quiz_result"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quizResults = append(f.quizResults, *res)
	return nil
}

// fakeGen plays scripted events, optionally gating each chunk on a permit.
type fakeGen struct {
	chunks   []string
	usage    *models.TokenUsage
	openErr  error
	eventErr error
	gate     chan struct{}

	quiz    []models.QuizQuestion
	quizErr error
}

func (g *fakeGen) Generate(ctx context.Context, userID, assistantMessageID string, turns []llm.Turn) (<-chan llm.Event, error) {
	if g.openErr != nil {
		return nil, g.openErr
	}
	ch := make(chan llm.Event)
	go func() {
		defer close(ch)
		for _, c := range g.chunks {
			if g.gate != nil {
				select {
				case <-g.gate:
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- llm.Event{Chunk: c}:
			case <-ctx.Done():
				return
			}
		}
		if g.eventErr != nil {
			select {
			case ch <- llm.Event{Err: g.eventErr}:
			case <-ctx.Done():
			}
			return
		}
		if g.usage != nil {
			select {
			case ch <- llm.Event{Usage: g.usage}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

func (g *fakeGen) GenerateQuiz(ctx context.Context, transcript []llm.Turn) ([]models.QuizQuestion, error) {
	if len(transcript) < 2 {
		return nil, llm.ErrInsufficientContext
	}
	if g.quizErr != nil {
		return nil, g.quizErr
	}
	return g.quiz, nil
}

func (g *fakeGen) GenerateQuizFromTopic(ctx context.Context, topic string) ([]models.QuizQuestion, error) {
	if g.quizErr != nil {
		return nil, g.quizErr
	}
	return g.quiz, nil
}

// updateRecorder collects sink updates for assertions.
type updateRecorder struct {
	mu      sync.Mutex
	updates []Update
	deltaCh chan Update
}

func newRecorder() *updateRecorder {
	return &updateRecorder{deltaCh: make(chan Update, 64)}
}

func (r *updateRecorder) sink(u Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
	if u.Kind == UpdateStreamDelta {
		select {
		case r.deltaCh <- u:
		default:
		}
	}
}

func (r *updateRecorder) byKind(kind UpdateKind) []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Update
	for _, u := range r.updates {
		if u.Kind == kind {
			out = append(out, u)
		}
	}
	return out
}

func newTestEngine(st *fakeStore, gen *fakeGen) (*Engine, *updateRecorder) {
	rec := newRecorder()
	e := New("user-1", RoleStudent, st, gen, staticModel("test-model"), testLogger())
	e.SetSink(rec.sink)
	return e, rec
}

func TestLoadConversations(t *testing.T) {
	st := newFakeStore()
	st.conversations = []models.Conversation{
		{ID: "c1", UserID: "user-1", Title: "Algebra"},
		{ID: "c2", UserID: "user-1", Title: "Biology"},
	}
	e, _ := newTestEngine(st, &fakeGen{})

	require.NoError(t, e.LoadConversations(context.Background()))

	convs := e.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "c1", convs[0].ID)
}

func TestLoadConversations_FailureSurfaces(t *testing.T) {
	st := newFakeStore()
	st.failWith("list_conversations")
	e, _ := newTestEngine(st, &fakeGen{})

	require.Error(t, e.LoadConversations(context.Background()))
}

func TestSelectConversation_LazyLoadsMessagesOnce(t *testing.T) {
	st := newFakeStore()
	st.conversations = []models.Conversation{{ID: "c1", UserID: "user-1"}}
	st.messages["c1"] = []models.Message{
		{ID: "m1", ConversationID: "c1", Role: models.RoleUser, Content: "hi"},
	}
	e, _ := newTestEngine(st, &fakeGen{})
	require.NoError(t, e.LoadConversations(context.Background()))

	require.NoError(t, e.SelectConversation(context.Background(), "c1"))
	require.Len(t, e.Messages("c1"), 1)

	require.NoError(t, e.SelectConversation(context.Background(), "c1"))
	assert.Equal(t, 1, st.count("list_messages"))
}

func TestSelectConversation_LoadFailureResetsMarker(t *testing.T) {
	st := newFakeStore()
	st.conversations = []models.Conversation{{ID: "c1", UserID: "user-1"}}
	st.failWith("list_messages")
	e, _ := newTestEngine(st, &fakeGen{})
	require.NoError(t, e.LoadConversations(context.Background()))

	require.Error(t, e.SelectConversation(context.Background(), "c1"))

	// The marker is reset so the next selection retries the fetch.
	st.mu.Lock()
	delete(st.fail, "list_messages")
	st.mu.Unlock()
	require.NoError(t, e.SelectConversation(context.Background(), "c1"))
	assert.Equal(t, 2, st.count("list_messages"))
}

func TestSelectionMutualExclusion(t *testing.T) {
	st := newFakeStore()
	st.conversations = []models.Conversation{{ID: "c1", UserID: "user-1"}}
	e, _ := newTestEngine(st, &fakeGen{})
	require.NoError(t, e.LoadConversations(context.Background()))

	require.NoError(t, e.SelectConversation(context.Background(), "c1"))
	assert.Equal(t, "c1", e.CurrentConversationID())

	e.SelectNote("n1")
	assert.Equal(t, "n1", e.CurrentNoteID())
	assert.Empty(t, e.CurrentConversationID())

	require.NoError(t, e.SelectConversation(context.Background(), "c1"))
	assert.Equal(t, "c1", e.CurrentConversationID())
	assert.Empty(t, e.CurrentNoteID())
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}
