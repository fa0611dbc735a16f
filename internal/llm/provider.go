package llm

import (
	"context"

	"github.com/tailedflox9-maker/studychat/internal/models"
)

// Turn is one uniform (role, content) element of the conversation history
// handed to a provider. Roles use models.RoleUser / models.RoleAssistant;
// vendor-specific role names are private to each adapter.
type Turn struct {
	Role    string
	Content string
}

// Event is one element of a provider's streaming sequence. Exactly one of the
// fields is meaningful per event: a text fragment, the end-of-stream usage
// record, or a terminal error. The channel closes after the final event.
type Event struct {
	Chunk string
	Usage *models.TokenUsage
	Err   error
}

// Provider adapts the uniform message list plus a system instruction to one
// vendor's wire format.
//
// Stream returns a lazy, finite, non-restartable sequence of text fragments
// produced as they arrive, followed by exactly one usage event at or after
// the final fragment. The initial-request rejection path returns a
// *ProviderError; mid-stream malformed fragments are logged and skipped.
type Provider interface {
	Name() string
	Stream(ctx context.Context, system string, turns []Turn) (<-chan Event, error)
	Complete(ctx context.Context, system string, turns []Turn) (string, error)
}

// BaseInstruction is the system instruction used when a user has no active
// personalization profile.
const BaseInstruction = `You are a patient, encouraging tutor. Explain concepts step by step,
check the student's understanding, and prefer guiding questions over giving
away answers. Keep responses focused on the topic being studied.`

// emit delivers an event unless the context is done. Returns false when the
// consumer went away, so producers can stop early.
func emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
