// Package engine owns conversation, note, and quiz state for one user
// session. Every mutation is applied optimistically to local state and
// reconciled against the persistence boundary, with rollback semantics that
// depend on the operation class.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tailedflox9-maker/studychat/internal/llm"
	"github.com/tailedflox9-maker/studychat/internal/models"
	"github.com/tailedflox9-maker/studychat/internal/store"
)

// ErrBusy rejects a send while a previous response is still streaming.
var ErrBusy = errors.New("a response is already streaming")

// ErrNoSelection is returned by operations that need a selected conversation.
var ErrNoSelection = errors.New("no conversation selected")

// persistTimeout bounds fire-and-forget writes detached from their caller.
const persistTimeout = 15 * time.Second

// storeAPI is the persistence surface the engine mutates through.
// *store.Store satisfies it; tests substitute a scripted fake.
type storeAPI interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
	TouchConversation(ctx context.Context, id string) error
	TogglePin(ctx context.Context, id string) (bool, error)
	DeleteConversation(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string, offset, limit int) ([]models.Message, error)
	CreateNote(ctx context.Context, note *models.Note) error
	ListNotes(ctx context.Context, userID string) ([]models.Note, error)
	DeleteNote(ctx context.Context, id string) error
	ListAssignments(ctx context.Context, studentID string) ([]models.Assignment, error)
	CompleteAssignment(ctx context.Context, id string, score int) error
	RecordQuizResult(ctx context.Context, res *models.QuizResult) error
}

var _ storeAPI = (*store.Store)(nil)

// generator is the streaming facade the engine consumes.
// *llm.Generator satisfies it.
type generator interface {
	Generate(ctx context.Context, userID, assistantMessageID string, turns []llm.Turn) (<-chan llm.Event, error)
	GenerateQuiz(ctx context.Context, transcript []llm.Turn) ([]models.QuizQuestion, error)
	GenerateQuizFromTopic(ctx context.Context, topic string) ([]models.QuizQuestion, error)
}

var _ generator = (*llm.Generator)(nil)

// ModelSelector reports the currently selected model, used to tag messages.
type ModelSelector interface {
	CurrentModel() string
}

// loadState tracks lazy message loading per conversation.
type loadState int

const (
	messagesNotLoaded loadState = iota
	messagesLoading
	messagesLoaded
)

// conversation pairs the stored record with its lazily-loaded message list.
// Session roles. Assignments are authored by teachers and taken by students,
// so assignment loading is student-only.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

type conversation struct {
	models.Conversation
	messages []models.Message
	msgState loadState
}

// Engine is the synchronization engine for one user session. State
// transitions are serialized by mu; the streaming chunk loop holds no lock
// between chunks so other operations stay responsive mid-stream.
type Engine struct {
	userID string
	role   string

	store    storeAPI
	gen      generator
	selector ModelSelector
	logger   *slog.Logger
	sink     Sink

	mu            sync.Mutex
	conversations map[string]*conversation
	order         []string
	currentConvID string
	currentNoteID string
	streaming     *models.Message
	sending       bool
	cancelled     bool
	notes         []models.Note
	assignments   []models.Assignment
	session       *models.StudySession
}

// New creates an engine for one authenticated user.
func New(userID, role string, st storeAPI, gen generator, selector ModelSelector, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		userID:        userID,
		role:          role,
		store:         st,
		gen:           gen,
		selector:      selector,
		logger:        logger.With("user_id", userID),
		sink:          func(Update) {},
		conversations: make(map[string]*conversation),
	}
}

// SetSink installs the transport callback for engine updates. Must be called
// before the first operation.
func (e *Engine) SetSink(sink Sink) {
	if sink != nil {
		e.sink = sink
	}
}

// LoadConversations populates the conversation list from the store. A failure
// here is a blocking initial-load error; the caller offers a retry.
func (e *Engine) LoadConversations(ctx context.Context) error {
	convs, err := e.store.ListConversations(ctx, e.userID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.conversations = make(map[string]*conversation, len(convs))
	e.order = make([]string, 0, len(convs))
	for _, c := range convs {
		e.conversations[c.ID] = &conversation{Conversation: c}
		e.order = append(e.order, c.ID)
	}
	e.sink(Update{Kind: UpdateConversations})
	return nil
}

// Conversations returns the current list, pinned first then most recent.
func (e *Engine) Conversations() []models.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Conversation, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.conversations[id].Conversation)
	}
	return out
}

// CurrentConversationID returns the selected conversation id, or "".
func (e *Engine) CurrentConversationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentConvID
}

// CurrentNoteID returns the selected note id, or "".
func (e *Engine) CurrentNoteID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentNoteID
}

// Messages returns a snapshot of a conversation's loaded messages.
func (e *Engine) Messages(conversationID string) []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	conv, ok := e.conversations[conversationID]
	if !ok {
		return nil
	}
	return append([]models.Message(nil), conv.messages...)
}

// StreamingMessage returns the transient placeholder, or nil when idle.
func (e *Engine) StreamingMessage() *models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.streaming == nil {
		return nil
	}
	cp := *e.streaming
	return &cp
}

// IsSending reports whether a send is in flight.
func (e *Engine) IsSending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sending
}

// SelectConversation makes a conversation the active selection, clearing any
// note selection. Messages are fetched on first selection and merged into
// state.
func (e *Engine) SelectConversation(ctx context.Context, id string) error {
	e.mu.Lock()
	conv, ok := e.conversations[id]
	if !ok {
		e.mu.Unlock()
		return ErrNoSelection
	}
	e.currentConvID = id
	e.currentNoteID = ""
	needsLoad := conv.msgState == messagesNotLoaded
	if needsLoad {
		conv.msgState = messagesLoading
	}
	e.sink(Update{Kind: UpdateSelection, ConversationID: id})
	e.mu.Unlock()

	if !needsLoad {
		return nil
	}

	msgs, err := e.store.ListMessages(ctx, id, 0, 0)

	e.mu.Lock()
	defer e.mu.Unlock()
	conv, ok = e.conversations[id]
	if !ok {
		// Deleted while loading; nothing to merge.
		return nil
	}
	if err != nil {
		conv.msgState = messagesNotLoaded
		e.sink(Update{Kind: UpdateNotice, Notice: "Could not load messages. Try again."})
		return err
	}
	conv.messages = msgs
	conv.msgState = messagesLoaded
	e.sink(Update{Kind: UpdateSelection, ConversationID: id})
	return nil
}

// SelectNote makes a note the active selection, clearing any conversation
// selection.
func (e *Engine) SelectNote(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentNoteID = id
	e.currentConvID = ""
	e.sink(Update{Kind: UpdateSelection, NoteID: id})
}

// ClearSelection drops both selections.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentConvID = ""
	e.currentNoteID = ""
	e.sink(Update{Kind: UpdateSelection})
}

// touch moves a conversation to the front of its pin group and bumps its
// timestamp. Caller holds mu.
func (e *Engine) touch(id string) {
	conv, ok := e.conversations[id]
	if !ok {
		return
	}
	conv.UpdatedAt = time.Now().UTC()
	e.resort()
}

// resort reorders the list pinned-first, most recently updated first within
// each group. Caller holds mu.
func (e *Engine) resort() {
	sort.SliceStable(e.order, func(i, j int) bool {
		a, b := e.conversations[e.order[i]], e.conversations[e.order[j]]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
}

// fireAndForget runs a persistence call detached from the caller. Failures
// are logged only; local state stays authoritative.
func (e *Engine) fireAndForget(op string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			e.logger.Error("background persistence failed", "op", op, "error", err)
		}
	}()
}
