// Package models defines data structures for the StudyChat tutoring backend.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Message roles within a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation represents a titled, ordered thread of messages owned by one user.
// Messages are stored separately and lazy-loaded; see engine.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation constructs a conversation with a fresh client-generated id.
func NewConversation(userID, title string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TokenUsage holds token counts for a completed assistant turn.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Total returns input+output, computing it when TotalTokens was not reported.
func (u TokenUsage) Total() int {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}

// Message represents a single turn within a conversation.
// IDs are client-generated UUIDs so a message can be rendered optimistically
// and correlated with asynchronous token-usage recording before it is durable.
// For assistant turns UserID is the requesting user, not the model.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	UserID         string      `json:"user_id"`
	Role           string      `json:"role"`
	Content        string      `json:"content"`
	Model          string      `json:"model,omitempty"`
	Usage          *TokenUsage `json:"usage,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NewUserMessage constructs a user turn with a fresh client-generated id.
func NewUserMessage(conversationID, userID, content string) *Message {
	return &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           RoleUser,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewAssistantMessage constructs an (initially empty) assistant turn.
// The empty-content form is only ever the transient streaming placeholder;
// it must not be persisted until content is final.
func NewAssistantMessage(conversationID, userID, model string) *Message {
	return &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           RoleAssistant,
		Model:          model,
		CreatedAt:      time.Now().UTC(),
	}
}

// TokenUsageRecord is the durable per-message usage entry.
type TokenUsageRecord struct {
	MessageID    string    `json:"message_id"`
	UserID       string    `json:"user_id"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	RecordedAt   time.Time `json:"recorded_at"`
}
