package engine

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/tailedflox9-maker/studychat/internal/llm"
	"github.com/tailedflox9-maker/studychat/internal/models"
)

const (
	titleMaxLen   = 40
	fallbackTitle = "New conversation"
)

// deriveTitle builds a conversation title from the first message's content,
// truncated at a word boundary near titleMaxLen runes.
func deriveTitle(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if content == "" {
		return fallbackTitle
	}
	runes := []rune(content)
	if len(runes) <= titleMaxLen {
		return content
	}
	cut := titleMaxLen
	for i := titleMaxLen; i > titleMaxLen/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}

// SendMessage dispatches a user message to the selected conversation,
// creating one when none is selected, and blocks while consuming the
// response stream. Transports run it on its own goroutine; all other engine
// operations stay responsive between chunks. A send while one is already
// streaming returns ErrBusy. Missing identity and empty content are no-ops.
func (e *Engine) SendMessage(ctx context.Context, content string) error {
	if e.userID == "" {
		return nil
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	e.mu.Lock()
	if e.sending {
		e.mu.Unlock()
		return ErrBusy
	}

	// Resolve or create the target conversation.
	convID := e.currentConvID
	firstMessage := false
	var created *models.Conversation
	if convID == "" {
		created = models.NewConversation(e.userID, deriveTitle(content))
		e.conversations[created.ID] = &conversation{
			Conversation: *created,
			msgState:     messagesLoaded,
		}
		e.order = append([]string{created.ID}, e.order...)
		e.currentConvID = created.ID
		e.currentNoteID = ""
		convID = created.ID
		firstMessage = true
		e.resort()
		e.sink(Update{Kind: UpdateConversations})
		e.sink(Update{Kind: UpdateSelection, ConversationID: convID})
	}
	conv := e.conversations[convID]

	// Optimistic insert of the user message before any network call.
	userMsg := models.NewUserMessage(convID, e.userID, content)
	conv.messages = append(conv.messages, *userMsg)
	e.touch(convID)
	e.sink(Update{Kind: UpdateMessageFinal, Message: userMsg})

	e.sending = true
	e.cancelled = false

	placeholder := models.NewAssistantMessage(convID, e.userID, e.selector.CurrentModel())
	e.streaming = placeholder
	e.sink(Update{Kind: UpdateStreamDelta, Message: placeholder})

	turns := make([]llm.Turn, 0, len(conv.messages))
	for _, m := range conv.messages {
		turns = append(turns, llm.Turn{Role: m.Role, Content: m.Content})
	}
	e.mu.Unlock()

	if created != nil {
		// Creation is awaited so later message writes have a parent record.
		if err := e.store.CreateConversation(ctx, created); err != nil {
			e.logger.Error("conversation not persisted", "conversation_id", created.ID, "error", err)
			e.notify(Update{Kind: UpdateNotice, Notice: "Conversation could not be saved."})
		}
	}

	e.fireAndForget("append user message", func(ctx context.Context) error {
		return e.store.AppendMessage(ctx, userMsg)
	})
	if !firstMessage {
		e.fireAndForget("touch conversation", func(ctx context.Context) error {
			return e.store.TouchConversation(ctx, convID)
		})
	}

	err := e.stream(ctx, convID, placeholder, turns)

	e.mu.Lock()
	e.sending = false
	e.streaming = nil
	e.cancelled = false
	e.mu.Unlock()
	return err
}

// stream consumes the generator sequence for one send. The caller holds no
// lock; state is locked only for the duration of each transition.
func (e *Engine) stream(ctx context.Context, convID string, placeholder *models.Message, turns []llm.Turn) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := e.gen.Generate(streamCtx, e.userID, placeholder.ID, turns)
	if err != nil {
		e.appendErrorReply(convID, placeholder, err)
		return err
	}

	var (
		content strings.Builder
		usage   *models.TokenUsage
		genErr  error
	)
	for ev := range events {
		e.mu.Lock()
		stopped := e.cancelled
		e.mu.Unlock()
		if stopped {
			// Release the producer; no further chunks are processed.
			cancel()
			break
		}

		if ev.Err != nil {
			genErr = ev.Err
			break
		}
		if ev.Usage != nil {
			usage = ev.Usage
		}
		if ev.Chunk == "" {
			continue
		}

		content.WriteString(ev.Chunk)
		e.mu.Lock()
		e.streaming = &models.Message{
			ID:             placeholder.ID,
			ConversationID: placeholder.ConversationID,
			UserID:         placeholder.UserID,
			Role:           placeholder.Role,
			Content:        content.String(),
			Model:          placeholder.Model,
			CreatedAt:      placeholder.CreatedAt,
		}
		e.sink(Update{Kind: UpdateStreamDelta, Message: e.streaming})
		e.mu.Unlock()
	}

	e.mu.Lock()
	stopped := e.cancelled
	e.mu.Unlock()

	switch {
	case stopped:
		// Partial content is discarded, never persisted.
		return nil
	case genErr != nil:
		e.appendErrorReply(convID, placeholder, genErr)
		return genErr
	case content.Len() == 0:
		e.notify(Update{Kind: UpdateNotice, Notice: "The model returned an empty response."})
		return nil
	}

	final := &models.Message{
		ID:             placeholder.ID,
		ConversationID: convID,
		UserID:         e.userID,
		Role:           models.RoleAssistant,
		Content:        content.String(),
		Model:          placeholder.Model,
		Usage:          usage,
		CreatedAt:      placeholder.CreatedAt,
	}
	e.commitReply(convID, final)
	return nil
}

// commitReply appends a finalized assistant message to conversation state and
// persists it fire-and-forget. The only place an assistant turn becomes part
// of durable conversation state.
func (e *Engine) commitReply(convID string, msg *models.Message) {
	e.mu.Lock()
	if conv, ok := e.conversations[convID]; ok {
		conv.messages = append(conv.messages, *msg)
		e.touch(convID)
	}
	e.sink(Update{Kind: UpdateMessageFinal, Message: msg})
	e.mu.Unlock()

	e.fireAndForget("append assistant message", func(ctx context.Context) error {
		return e.store.AppendMessage(ctx, msg)
	})
}

// appendErrorReply commits a synthetic assistant message summarizing a
// generation failure, so the user's message never lacks a visible follow-up.
func (e *Engine) appendErrorReply(convID string, placeholder *models.Message, cause error) {
	e.logger.Error("generation failed", "conversation_id", convID, "error", cause)

	msg := &models.Message{
		ID:             placeholder.ID,
		ConversationID: convID,
		UserID:         e.userID,
		Role:           models.RoleAssistant,
		Content:        userFacingError(cause),
		Model:          placeholder.Model,
		CreatedAt:      placeholder.CreatedAt,
	}
	e.commitReply(convID, msg)
}

// userFacingError maps the error taxonomy to a short message shown in place
// of the assistant reply.
func userFacingError(err error) string {
	var cfgErr *llm.ConfigurationError
	var provErr *llm.ProviderError
	switch {
	case errors.As(err, &cfgErr):
		return "Sorry, the selected model is not configured. Check the model settings and try again."
	case errors.As(err, &provErr):
		return "Sorry, the model provider rejected the request. Please try again in a moment."
	default:
		return "Sorry, something went wrong while generating a response. Please try again."
	}
}

// StopGenerating requests cancellation of the in-flight stream. Observed at
// the next chunk boundary; a no-op when nothing is streaming.
func (e *Engine) StopGenerating() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sending {
		return
	}
	e.cancelled = true
}

// notify publishes an update outside of a held lock.
func (e *Engine) notify(u Update) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink(u)
}
