package models

import (
	"time"

	"github.com/google/uuid"
)

// Note is a saved excerpt with a lifecycle independent of its source
// conversation: deleting the conversation never deletes the note.
type Note struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewNote constructs a note with a fresh client-generated id.
func NewNote(userID, title, content, conversationID string) *Note {
	now := time.Now().UTC()
	return &Note{
		ID:             uuid.NewString(),
		UserID:         userID,
		Title:          title,
		Content:        content,
		ConversationID: conversationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
