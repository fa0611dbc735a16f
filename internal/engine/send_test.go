package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailedflox9-maker/studychat/internal/llm"
	"github.com/tailedflox9-maker/studychat/internal/models"
)

func TestSendMessage_CreatesAndSelectsConversation(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGen{chunks: []string{"Photo", "synthesis is..."}}
	e, _ := newTestEngine(st, gen)

	require.NoError(t, e.SendMessage(context.Background(), "Explain photosynthesis"))

	convs := e.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "Explain photosynthesis", convs[0].Title)
	assert.Equal(t, convs[0].ID, e.CurrentConversationID())

	msgs := e.Messages(convs[0].ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "Explain photosynthesis", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Photosynthesis is...", msgs[1].Content)
	assert.Equal(t, "test-model", msgs[1].Model)

	assert.Equal(t, 1, st.count("create_conversation"))
	waitFor(t, func() bool { return st.count("append_user") == 1 }, "user message persisted")
	waitFor(t, func() bool { return st.count("append_assistant") == 1 }, "assistant message persisted")
	// First message: the title was set at creation, no timestamp bump.
	assert.Equal(t, 0, st.count("touch"))
}

func TestSendMessage_ContentEqualsChunkConcatenation(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGen{
		chunks: []string{"a", "b", "", "c", "d"},
		usage:  &models.TokenUsage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3},
	}
	e, _ := newTestEngine(st, gen)

	require.NoError(t, e.SendMessage(context.Background(), "go"))

	msgs := e.Messages(e.CurrentConversationID())
	require.Len(t, msgs, 2)
	assert.Equal(t, "abcd", msgs[1].Content)
	require.NotNil(t, msgs[1].Usage)
	assert.Equal(t, 3, msgs[1].Usage.TotalTokens)
}

func TestSendMessage_SecondSendBumpsTimestamp(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGen{chunks: []string{"ok"}}
	e, _ := newTestEngine(st, gen)

	require.NoError(t, e.SendMessage(context.Background(), "first"))
	require.NoError(t, e.SendMessage(context.Background(), "second"))

	assert.Equal(t, 1, st.count("create_conversation"))
	waitFor(t, func() bool { return st.count("touch") == 1 }, "timestamp bump persisted")
	require.Len(t, e.Messages(e.CurrentConversationID()), 4)
}

func TestSendMessage_NoIdentityIsNoop(t *testing.T) {
	st := newFakeStore()
	rec := newRecorder()
	e := New("", RoleStudent, st, &fakeGen{chunks: []string{"x"}}, staticModel("m"), testLogger())
	e.SetSink(rec.sink)

	require.NoError(t, e.SendMessage(context.Background(), "hello"))
	assert.Empty(t, e.Conversations())
	assert.Equal(t, 0, st.count("create_conversation"))
}

func TestSendMessage_EmptyContentIsNoop(t *testing.T) {
	st := newFakeStore()
	e, _ := newTestEngine(st, &fakeGen{chunks: []string{"x"}})

	require.NoError(t, e.SendMessage(context.Background(), "   \n\t"))
	assert.Empty(t, e.Conversations())
}

func TestSendMessage_BusyRejectsSecondSend(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGen{chunks: []string{"a", "b"}, gate: make(chan struct{})}
	e, rec := newTestEngine(st, gen)

	done := make(chan error, 1)
	go func() { done <- e.SendMessage(context.Background(), "slow question") }()

	gen.gate <- struct{}{}
	<-rec.deltaCh // first chunk applied, stream is in flight

	assert.ErrorIs(t, e.SendMessage(context.Background(), "impatient"), ErrBusy)

	gen.gate <- struct{}{}
	require.NoError(t, <-done)
	assert.False(t, e.IsSending())
}

func TestStopGenerating_DiscardsPartialContent(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGen{chunks: []string{"never ", "finished ", "thought"}, gate: make(chan struct{})}
	e, rec := newTestEngine(st, gen)

	done := make(chan error, 1)
	go func() { done <- e.SendMessage(context.Background(), "question") }()

	gen.gate <- struct{}{}
	<-rec.deltaCh
	e.StopGenerating()
	gen.gate <- struct{}{}

	require.NoError(t, <-done)

	msgs := e.Messages(e.CurrentConversationID())
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Nil(t, e.StreamingMessage())

	// The user message is persisted, the abandoned assistant turn never is.
	waitFor(t, func() bool { return st.count("append_user") == 1 }, "user message persisted")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, st.count("append_assistant"))
}

func TestStopGenerating_NoopWhenIdle(t *testing.T) {
	e, _ := newTestEngine(newFakeStore(), &fakeGen{})
	e.StopGenerating()
	assert.False(t, e.IsSending())
}

func TestSendMessage_GenerationErrorAppendsSyntheticReply(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGen{openErr: &llm.ProviderError{Provider: "test", Status: 503, Body: "down"}}
	e, _ := newTestEngine(st, gen)

	err := e.SendMessage(context.Background(), "question")
	var provErr *llm.ProviderError
	require.ErrorAs(t, err, &provErr)

	msgs := e.Messages(e.CurrentConversationID())
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "provider rejected")
	waitFor(t, func() bool { return st.count("append_assistant") == 1 }, "synthetic reply persisted")
}

func TestSendMessage_MidStreamErrorAppendsSyntheticReply(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGen{chunks: []string{"partial"}, eventErr: errors.New("connection reset")}
	e, _ := newTestEngine(st, gen)

	require.Error(t, e.SendMessage(context.Background(), "question"))

	msgs := e.Messages(e.CurrentConversationID())
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "something went wrong")
}

func TestSendMessage_PersistenceFailureKeepsLocalMessage(t *testing.T) {
	st := newFakeStore()
	st.failWith("append_user")
	gen := &fakeGen{chunks: []string{"ok"}}
	e, _ := newTestEngine(st, gen)

	require.NoError(t, e.SendMessage(context.Background(), "question"))

	// Fire-and-forget failure: the typed message stays authoritative locally.
	msgs := e.Messages(e.CurrentConversationID())
	require.Len(t, msgs, 2)
	assert.Equal(t, "question", msgs[0].Content)
}

func TestSendMessage_ClearsTransientStateAlways(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGen{openErr: errors.New("boom")}
	e, _ := newTestEngine(st, gen)

	require.Error(t, e.SendMessage(context.Background(), "question"))
	assert.False(t, e.IsSending())
	assert.Nil(t, e.StreamingMessage())
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "short content verbatim", content: "Explain photosynthesis", want: "Explain photosynthesis"},
		{name: "whitespace collapsed", content: "what\n\nis  gravity", want: "what is gravity"},
		{name: "empty falls back", content: "", want: fallbackTitle},
		{
			name:    "long content cut at word boundary",
			content: "Can you walk me through the steps of cellular respiration in detail",
			want:    "Can you walk me through the steps of…",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveTitle(tt.content))
		})
	}
}
