// Package db provides SurrealDB query functions for chat persistence.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/tailedflox9-maker/studychat/internal/models"
)

// conversationFields projects the string id alongside the record fields.
const conversationFields = `record::id(id) AS id, user_id, title, pinned, created_at, updated_at`

// messageFields projects the string id alongside the record fields.
const messageFields = `record::id(id) AS id, conversation_id, user_id, role, content, model, usage, created_at`

// QueryCreateConversation inserts a conversation under its client-generated id.
func (c *Client) QueryCreateConversation(ctx context.Context, conv *models.Conversation) error {
	sql := `
		CREATE type::record("conversation", $id) SET
			user_id = $user_id,
			title = $title,
			pinned = $pinned,
			created_at = type::datetime($created_at),
			updated_at = type::datetime($updated_at)
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":         conv.ID,
		"user_id":    conv.UserID,
		"title":      conv.Title,
		"pinned":     conv.Pinned,
		"created_at": conv.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": conv.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("create conversation: %w", wrapQueryError(err))
	}
	return nil
}

// QueryListConversations returns a user's conversations, pinned first,
// then most recently updated.
func (c *Client) QueryListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM conversation
		WHERE user_id = $user_id
		ORDER BY pinned DESC, updated_at DESC
	`, conversationFields)

	results, err := surrealdb.Query[[]models.Conversation](ctx, c.db, sql, map[string]any{
		"user_id": userID,
	})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Conversation{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryUpdateConversationTitle renames a conversation.
func (c *Client) QueryUpdateConversationTitle(ctx context.Context, id, title string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("conversation", $id) SET
			title = $title,
			updated_at = time::now()
	`, map[string]any{"id": id, "title": title})
	if err != nil {
		return fmt.Errorf("update title: %w", wrapQueryError(err))
	}
	return nil
}

// QueryTouchConversation bumps updated_at to now.
func (c *Client) QueryTouchConversation(ctx context.Context, id string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("conversation", $id) SET updated_at = time::now()
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("touch conversation: %w", wrapQueryError(err))
	}
	return nil
}

// QueryTogglePin flips the pinned flag and returns the new authoritative value.
func (c *Client) QueryTogglePin(ctx context.Context, id string) (bool, error) {
	results, err := surrealdb.Query[[]struct {
		Pinned bool `json:"pinned"`
	}](ctx, c.db, `
		UPDATE type::record("conversation", $id) SET pinned = !pinned RETURN AFTER
	`, map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("toggle pin: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return false, fmt.Errorf("toggle pin: %w", ErrNotFound)
	}
	return (*results)[0].Result[0].Pinned, nil
}

// QueryDeleteConversation removes a conversation and its messages.
// Notes referencing the conversation are left untouched.
func (c *Client) QueryDeleteConversation(ctx context.Context, id string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE message WHERE conversation_id = $id;
		DELETE type::record("conversation", $id);
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete conversation: %w", wrapQueryError(err))
	}
	return nil
}

// QueryCreateMessage inserts a message under its client-generated id.
func (c *Client) QueryCreateMessage(ctx context.Context, msg *models.Message) error {
	sql := `
		CREATE type::record("message", $id) SET
			conversation_id = $conversation_id,
			user_id = $user_id,
			role = $role,
			content = $content,
			model = $model,
			usage = $usage,
			created_at = type::datetime($created_at)
	`
	vars := map[string]any{
		"id":              msg.ID,
		"conversation_id": msg.ConversationID,
		"user_id":         msg.UserID,
		"role":            msg.Role,
		"content":         msg.Content,
		"created_at":      msg.CreatedAt.Format(time.RFC3339Nano),
	}
	if msg.Model != "" {
		vars["model"] = msg.Model
	} else {
		vars["model"] = nil
	}
	if msg.Usage != nil {
		vars["usage"] = map[string]any{
			"input_tokens":  msg.Usage.InputTokens,
			"output_tokens": msg.Usage.OutputTokens,
			"total_tokens":  msg.Usage.Total(),
		}
	} else {
		vars["usage"] = nil
	}

	_, err := surrealdb.Query[any](ctx, c.db, sql, vars)
	if err != nil {
		return fmt.Errorf("create message: %w", wrapQueryError(err))
	}
	return nil
}

// QueryListMessages returns a conversation's messages in creation order,
// optionally paginated. limit <= 0 means no limit.
func (c *Client) QueryListMessages(ctx context.Context, conversationID string, offset, limit int) ([]models.Message, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM message
		WHERE conversation_id = $conversation_id
		ORDER BY created_at ASC
	`, messageFields)
	vars := map[string]any{"conversation_id": conversationID}

	if limit > 0 {
		sql += " LIMIT $limit START $offset"
		vars["limit"] = limit
		vars["offset"] = offset
	}

	results, err := surrealdb.Query[[]models.Message](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Message{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryCreateNote inserts a note under its client-generated id.
func (c *Client) QueryCreateNote(ctx context.Context, note *models.Note) error {
	sql := `
		CREATE type::record("note", $id) SET
			user_id = $user_id,
			title = $title,
			content = $content,
			conversation_id = $conversation_id,
			created_at = type::datetime($created_at),
			updated_at = type::datetime($updated_at)
	`
	vars := map[string]any{
		"id":         note.ID,
		"user_id":    note.UserID,
		"title":      note.Title,
		"content":    note.Content,
		"created_at": note.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": note.UpdatedAt.Format(time.RFC3339Nano),
	}
	if note.ConversationID != "" {
		vars["conversation_id"] = note.ConversationID
	} else {
		vars["conversation_id"] = nil
	}

	_, err := surrealdb.Query[any](ctx, c.db, sql, vars)
	if err != nil {
		return fmt.Errorf("create note: %w", wrapQueryError(err))
	}
	return nil
}

// QueryListNotes returns a user's notes, most recently updated first.
func (c *Client) QueryListNotes(ctx context.Context, userID string) ([]models.Note, error) {
	results, err := surrealdb.Query[[]models.Note](ctx, c.db, `
		SELECT record::id(id) AS id, user_id, title, content, conversation_id, created_at, updated_at
		FROM note WHERE user_id = $user_id ORDER BY updated_at DESC
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Note{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryDeleteNote removes a note by id. Idempotent.
func (c *Client) QueryDeleteNote(ctx context.Context, id string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE type::record("note", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete note: %w", wrapQueryError(err))
	}
	return nil
}

// QueryListAssignments returns quizzes assigned to a student, newest first.
func (c *Client) QueryListAssignments(ctx context.Context, studentID string) ([]models.Assignment, error) {
	results, err := surrealdb.Query[[]models.Assignment](ctx, c.db, `
		SELECT record::id(id) AS id, student_id, topic, questions, completed, score, created_at
		FROM assignment WHERE student_id = $student_id ORDER BY created_at DESC
	`, map[string]any{"student_id": studentID})
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Assignment{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryCompleteAssignment marks an assignment completed with its final score.
func (c *Client) QueryCompleteAssignment(ctx context.Context, id string, score int) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("assignment", $id) SET completed = true, score = $score
	`, map[string]any{"id": id, "score": score})
	if err != nil {
		return fmt.Errorf("complete assignment: %w", wrapQueryError(err))
	}
	return nil
}

// QueryCreateQuizResult records a finished self-study quiz.
func (c *Client) QueryCreateQuizResult(ctx context.Context, res *models.QuizResult) error {
	vars := map[string]any{
		"id":              res.ID,
		"user_id":         res.UserID,
		"score":           res.Score,
		"total_questions": res.TotalQuestions,
		"created_at":      res.CreatedAt.Format(time.RFC3339Nano),
	}
	if res.ConversationID != "" {
		vars["conversation_id"] = res.ConversationID
	} else {
		vars["conversation_id"] = nil
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("quiz_result", $id) SET
			user_id = $user_id,
			conversation_id = $conversation_id,
			score = $score,
			total_questions = $total_questions,
			created_at = type::datetime($created_at)
	`, vars)
	if err != nil {
		return fmt.Errorf("create quiz result: %w", wrapQueryError(err))
	}
	return nil
}

// QueryRecordTokenUsage appends a per-message usage record.
func (c *Client) QueryRecordTokenUsage(ctx context.Context, rec *models.TokenUsageRecord) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE token_usage SET
			message_id = $message_id,
			user_id = $user_id,
			model = $model,
			input_tokens = $input_tokens,
			output_tokens = $output_tokens,
			total_tokens = $total_tokens,
			recorded_at = time::now()
	`, map[string]any{
		"message_id":    rec.MessageID,
		"user_id":       rec.UserID,
		"model":         rec.Model,
		"input_tokens":  rec.InputTokens,
		"output_tokens": rec.OutputTokens,
		"total_tokens":  rec.TotalTokens,
	})
	if err != nil {
		return fmt.Errorf("record token usage: %w", wrapQueryError(err))
	}
	return nil
}

// QueryGetProfile retrieves the active personalization profile for a user.
// Returns nil when the user has no active profile.
func (c *Client) QueryGetProfile(ctx context.Context, userID string) (*models.PersonalizationProfile, error) {
	results, err := surrealdb.Query[[]models.PersonalizationProfile](ctx, c.db, `
		SELECT user_id, instruction, active, updated_at
		FROM profile WHERE user_id = $user_id AND active = true LIMIT 1
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// QueryUpsertProfile creates or replaces a user's personalization profile.
func (c *Client) QueryUpsertProfile(ctx context.Context, p *models.PersonalizationProfile) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("profile", $user_id) SET
			user_id = $user_id,
			instruction = $instruction,
			active = $active,
			updated_at = time::now()
	`, map[string]any{
		"user_id":     p.UserID,
		"instruction": p.Instruction,
		"active":      p.Active,
	})
	if err != nil {
		return fmt.Errorf("upsert profile: %w", wrapQueryError(err))
	}
	return nil
}

// QueryGetAPISettings reads the "api" settings slot.
// Returns nil when the slot was never written.
func (c *Client) QueryGetAPISettings(ctx context.Context) (*models.APISettings, error) {
	results, err := surrealdb.Query[[]models.APISettings](ctx, c.db, `
		SELECT selected_model FROM type::record("setting", "api")
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("get api settings: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// QuerySaveAPISettings writes the "api" settings slot.
func (c *Client) QuerySaveAPISettings(ctx context.Context, s *models.APISettings) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("setting", "api") SET selected_model = $selected_model
	`, map[string]any{"selected_model": s.SelectedModel})
	if err != nil {
		return fmt.Errorf("save api settings: %w", wrapQueryError(err))
	}
	return nil
}

// QueryGetUIState reads the "ui" settings slot.
// Returns nil when the slot was never written.
func (c *Client) QueryGetUIState(ctx context.Context) (*models.UIState, error) {
	results, err := surrealdb.Query[[]models.UIState](ctx, c.db, `
		SELECT sidebar_folded FROM type::record("setting", "ui")
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("get ui state: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// QuerySaveUIState writes the "ui" settings slot.
func (c *Client) QuerySaveUIState(ctx context.Context, s *models.UIState) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("setting", "ui") SET sidebar_folded = $sidebar_folded
	`, map[string]any{"sidebar_folded": s.SidebarFolded})
	if err != nil {
		return fmt.Errorf("save ui state: %w", wrapQueryError(err))
	}
	return nil
}
