package engine

import "github.com/tailedflox9-maker/studychat/internal/models"

// UpdateKind discriminates engine-to-transport events.
type UpdateKind string

const (
	// UpdateStreamDelta carries the placeholder message after a chunk append.
	UpdateStreamDelta UpdateKind = "stream_delta"
	// UpdateMessageFinal carries a message committed to conversation state.
	UpdateMessageFinal UpdateKind = "message_final"
	// UpdateConversations signals the conversation list changed.
	UpdateConversations UpdateKind = "conversations"
	// UpdateSelection carries the new selection after it changed.
	UpdateSelection UpdateKind = "selection"
	// UpdateNotes signals the note list changed.
	UpdateNotes UpdateKind = "notes"
	// UpdateQuiz carries the active study session state.
	UpdateQuiz UpdateKind = "quiz"
	// UpdateNotice carries a transient, auto-dismissing user-facing message.
	UpdateNotice UpdateKind = "notice"
)

// Update is one engine event published to the transport sink.
type Update struct {
	Kind           UpdateKind           `json:"kind"`
	Message        *models.Message      `json:"message,omitempty"`
	ConversationID string               `json:"conversation_id,omitempty"`
	NoteID         string               `json:"note_id,omitempty"`
	Session        *models.StudySession `json:"session,omitempty"`
	Notice         string               `json:"notice,omitempty"`
}

// Sink receives engine updates. Called synchronously under the engine's state
// lock, so implementations must not call back into the engine.
type Sink func(Update)
