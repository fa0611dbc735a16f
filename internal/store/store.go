// Package store is the persistence boundary for the chat engine. It wraps the
// database client with a bounded retry-with-backoff policy; exhausted retries
// surface as a PersistenceError carrying the operation label used for
// user-facing messaging.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tailedflox9-maker/studychat/internal/db"
	"github.com/tailedflox9-maker/studychat/internal/metrics"
	"github.com/tailedflox9-maker/studychat/internal/models"
)

// PersistenceError wraps a store failure after retries were exhausted.
// Op is a short operation label ("delete conversation", "save note", ...).
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// backend is the set of database operations the store depends on.
// *db.Client satisfies it; tests substitute a scripted fake.
type backend interface {
	QueryCreateConversation(ctx context.Context, conv *models.Conversation) error
	QueryListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	QueryUpdateConversationTitle(ctx context.Context, id, title string) error
	QueryTouchConversation(ctx context.Context, id string) error
	QueryTogglePin(ctx context.Context, id string) (bool, error)
	QueryDeleteConversation(ctx context.Context, id string) error
	QueryCreateMessage(ctx context.Context, msg *models.Message) error
	QueryListMessages(ctx context.Context, conversationID string, offset, limit int) ([]models.Message, error)
	QueryCreateNote(ctx context.Context, note *models.Note) error
	QueryListNotes(ctx context.Context, userID string) ([]models.Note, error)
	QueryDeleteNote(ctx context.Context, id string) error
	QueryListAssignments(ctx context.Context, studentID string) ([]models.Assignment, error)
	QueryCompleteAssignment(ctx context.Context, id string, score int) error
	QueryCreateQuizResult(ctx context.Context, res *models.QuizResult) error
	QueryRecordTokenUsage(ctx context.Context, rec *models.TokenUsageRecord) error
	QueryGetProfile(ctx context.Context, userID string) (*models.PersonalizationProfile, error)
	QueryUpsertProfile(ctx context.Context, p *models.PersonalizationProfile) error
	QueryGetAPISettings(ctx context.Context) (*models.APISettings, error)
	QuerySaveAPISettings(ctx context.Context, s *models.APISettings) error
	QueryGetUIState(ctx context.Context) (*models.UIState, error)
	QuerySaveUIState(ctx context.Context, s *models.UIState) error
}

var _ backend = (*db.Client)(nil)

// Store is the stateless request/response boundary to the durable store.
type Store struct {
	db      backend
	retry   Policy
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New creates a store over the given database client.
func New(client *db.Client, logger *slog.Logger, mc *metrics.Collector) *Store {
	return newWithBackend(client, logger, mc)
}

func newWithBackend(b backend, logger *slog.Logger, mc *metrics.Collector) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.NewCollector()
	}
	return &Store{db: b, retry: DefaultPolicy(), logger: logger, metrics: mc}
}

// CreateConversation persists a new conversation.
func (s *Store) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return s.do(ctx, "create conversation", func(ctx context.Context) error {
		return s.db.QueryCreateConversation(ctx, conv)
	})
}

// ListConversations fetches a user's conversation list, pinned first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	var out []models.Conversation
	err := s.do(ctx, "load conversations", func(ctx context.Context) error {
		var err error
		out, err = s.db.QueryListConversations(ctx, userID)
		return err
	})
	return out, err
}

// UpdateConversationTitle renames a conversation.
func (s *Store) UpdateConversationTitle(ctx context.Context, id, title string) error {
	return s.do(ctx, "rename conversation", func(ctx context.Context) error {
		return s.db.QueryUpdateConversationTitle(ctx, id, title)
	})
}

// TouchConversation bumps a conversation's updated timestamp.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	return s.do(ctx, "update conversation timestamp", func(ctx context.Context) error {
		return s.db.QueryTouchConversation(ctx, id)
	})
}

// TogglePin flips the pin and returns the store's authoritative new state.
func (s *Store) TogglePin(ctx context.Context, id string) (bool, error) {
	var pinned bool
	err := s.do(ctx, "pin conversation", func(ctx context.Context) error {
		var err error
		pinned, err = s.db.QueryTogglePin(ctx, id)
		return err
	})
	return pinned, err
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.do(ctx, "delete conversation", func(ctx context.Context) error {
		return s.db.QueryDeleteConversation(ctx, id)
	})
}

// AppendMessage persists a message.
func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) error {
	return s.do(ctx, "save message", func(ctx context.Context) error {
		return s.db.QueryCreateMessage(ctx, msg)
	})
}

// ListMessages fetches a conversation's messages in creation order.
func (s *Store) ListMessages(ctx context.Context, conversationID string, offset, limit int) ([]models.Message, error) {
	var out []models.Message
	err := s.do(ctx, "load messages", func(ctx context.Context) error {
		var err error
		out, err = s.db.QueryListMessages(ctx, conversationID, offset, limit)
		return err
	})
	return out, err
}

// CreateNote persists a note.
func (s *Store) CreateNote(ctx context.Context, note *models.Note) error {
	return s.do(ctx, "save note", func(ctx context.Context) error {
		return s.db.QueryCreateNote(ctx, note)
	})
}

// ListNotes fetches a user's notes.
func (s *Store) ListNotes(ctx context.Context, userID string) ([]models.Note, error) {
	var out []models.Note
	err := s.do(ctx, "load notes", func(ctx context.Context) error {
		var err error
		out, err = s.db.QueryListNotes(ctx, userID)
		return err
	})
	return out, err
}

// DeleteNote removes a note.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	return s.do(ctx, "delete note", func(ctx context.Context) error {
		return s.db.QueryDeleteNote(ctx, id)
	})
}

// ListAssignments fetches quizzes assigned to a student.
func (s *Store) ListAssignments(ctx context.Context, studentID string) ([]models.Assignment, error) {
	var out []models.Assignment
	err := s.do(ctx, "load assignments", func(ctx context.Context) error {
		var err error
		out, err = s.db.QueryListAssignments(ctx, studentID)
		return err
	})
	return out, err
}

// CompleteAssignment marks an assignment completed with its score.
func (s *Store) CompleteAssignment(ctx context.Context, id string, score int) error {
	return s.do(ctx, "complete assignment", func(ctx context.Context) error {
		return s.db.QueryCompleteAssignment(ctx, id, score)
	})
}

// RecordQuizResult records a finished self-study quiz.
func (s *Store) RecordQuizResult(ctx context.Context, res *models.QuizResult) error {
	return s.do(ctx, "record quiz result", func(ctx context.Context) error {
		return s.db.QueryCreateQuizResult(ctx, res)
	})
}

// RecordTokenUsage appends a per-message usage record.
func (s *Store) RecordTokenUsage(ctx context.Context, rec *models.TokenUsageRecord) error {
	return s.do(ctx, "record token usage", func(ctx context.Context) error {
		return s.db.QueryRecordTokenUsage(ctx, rec)
	})
}

// GetProfile fetches a user's active personalization profile, nil when absent.
func (s *Store) GetProfile(ctx context.Context, userID string) (*models.PersonalizationProfile, error) {
	var out *models.PersonalizationProfile
	err := s.do(ctx, "load profile", func(ctx context.Context) error {
		var err error
		out, err = s.db.QueryGetProfile(ctx, userID)
		return err
	})
	return out, err
}

// UpsertProfile creates or replaces a user's personalization profile.
func (s *Store) UpsertProfile(ctx context.Context, p *models.PersonalizationProfile) error {
	return s.do(ctx, "save profile", func(ctx context.Context) error {
		return s.db.QueryUpsertProfile(ctx, p)
	})
}

// LoadAPISettings reads the model-selection slot, applying the default for a
// never-written slot.
func (s *Store) LoadAPISettings(ctx context.Context, defaultModel string) (*models.APISettings, error) {
	var out *models.APISettings
	err := s.do(ctx, "load settings", func(ctx context.Context) error {
		var err error
		out, err = s.db.QueryGetAPISettings(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil || out.SelectedModel == "" {
		out = &models.APISettings{SelectedModel: defaultModel}
	}
	return out, nil
}

// SaveAPISettings writes the model-selection slot.
func (s *Store) SaveAPISettings(ctx context.Context, settings *models.APISettings) error {
	return s.do(ctx, "save settings", func(ctx context.Context) error {
		return s.db.QuerySaveAPISettings(ctx, settings)
	})
}

// LoadUIState reads the sidebar slot with defaults applied.
func (s *Store) LoadUIState(ctx context.Context) (*models.UIState, error) {
	var out *models.UIState
	err := s.do(ctx, "load ui state", func(ctx context.Context) error {
		var err error
		out, err = s.db.QueryGetUIState(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = &models.UIState{}
	}
	return out, nil
}

// SaveUIState writes the sidebar slot.
func (s *Store) SaveUIState(ctx context.Context, state *models.UIState) error {
	return s.do(ctx, "save ui state", func(ctx context.Context) error {
		return s.db.QuerySaveUIState(ctx, state)
	})
}

// do runs fn under the retry policy and wraps exhaustion in a PersistenceError.
func (s *Store) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	stop := s.metrics.Start(metrics.OpDBQuery)
	err := s.retry.Run(ctx, fn)
	stop()

	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.logger.Error("store operation failed", "op", op, "error", err)
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}
