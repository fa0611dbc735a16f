package engine

import (
	"context"

	"github.com/tailedflox9-maker/studychat/internal/llm"
	"github.com/tailedflox9-maker/studychat/internal/models"
)

// GenerateQuiz builds a self-study session from the selected conversation.
// Requires at least two messages; failure leaves all state unchanged.
func (e *Engine) GenerateQuiz(ctx context.Context) (*models.StudySession, error) {
	e.mu.Lock()
	convID := e.currentConvID
	conv, ok := e.conversations[convID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrNoSelection
	}
	if len(conv.messages) < 2 {
		e.mu.Unlock()
		return nil, llm.ErrInsufficientContext
	}
	transcript := make([]llm.Turn, 0, len(conv.messages))
	for _, m := range conv.messages {
		transcript = append(transcript, llm.Turn{Role: m.Role, Content: m.Content})
	}
	e.mu.Unlock()

	questions, err := e.gen.GenerateQuiz(ctx, transcript)
	if err != nil {
		e.notify(Update{Kind: UpdateNotice, Notice: "Quiz could not be generated. Try again."})
		return nil, err
	}

	session := models.NewStudySession(e.userID, convID, "", questions)
	e.mu.Lock()
	e.session = session
	e.sink(Update{Kind: UpdateQuiz, Session: session})
	e.mu.Unlock()
	return session, nil
}

// StartAssignment opens a session over a teacher-assigned quiz.
func (e *Engine) StartAssignment(id string) (*models.StudySession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, a := range e.assignments {
		if a.ID != id {
			continue
		}
		session := models.NewStudySession(e.userID, "", a.ID, a.Questions)
		e.session = session
		e.sink(Update{Kind: UpdateQuiz, Session: session})
		return session, nil
	}
	return nil, ErrNoSelection
}

// Session returns the active study session, or nil.
func (e *Engine) Session() *models.StudySession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// AnswerQuestion scores an option against the current question and advances
// the session cursor.
func (e *Engine) AnswerQuestion(option int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return false, ErrNoSelection
	}
	correct := e.session.Answer(option)
	e.sink(Update{Kind: UpdateQuiz, Session: e.session})
	return correct, nil
}

// FinishQuiz persists the session outcome and clears the active session
// regardless of persistence outcome. Assignment completions are awaited and
// refresh the assignment list; self-study results are fire-and-forget.
func (e *Engine) FinishQuiz(ctx context.Context) error {
	e.mu.Lock()
	session := e.session
	e.session = nil
	e.sink(Update{Kind: UpdateQuiz})
	e.mu.Unlock()

	if session == nil {
		return ErrNoSelection
	}

	if session.AssignmentID != "" {
		if err := e.store.CompleteAssignment(ctx, session.AssignmentID, session.Score); err != nil {
			e.notify(Update{Kind: UpdateNotice, Notice: "Quiz result could not be submitted."})
			return err
		}
		return e.LoadAssignments(ctx)
	}

	result := &models.QuizResult{
		ID:             session.ID,
		UserID:         session.UserID,
		ConversationID: session.ConversationID,
		Score:          session.Score,
		TotalQuestions: session.TotalQuestions,
		CreatedAt:      session.CreatedAt,
	}
	e.fireAndForget("record quiz result", func(ctx context.Context) error {
		return e.store.RecordQuizResult(ctx, result)
	})
	return nil
}

// LoadAssignments refreshes the assigned-quiz list. Only students take
// assignments; other roles keep an empty list without touching the store.
func (e *Engine) LoadAssignments(ctx context.Context) error {
	if e.role != RoleStudent {
		return nil
	}
	assignments, err := e.store.ListAssignments(ctx, e.userID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.assignments = assignments
	e.mu.Unlock()
	return nil
}

// Assignments returns a snapshot of the loaded assignments.
func (e *Engine) Assignments() []models.Assignment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Assignment(nil), e.assignments...)
}
