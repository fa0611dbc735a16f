package models

import (
	"time"

	"github.com/google/uuid"
)

// QuizQuestion is one multiple-choice question with exactly four options.
// CorrectAnswer is the index into Options, resolved at parse time by matching
// the model's declared answer text verbatim against the options.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// StudySession is an in-progress or completed quiz attempt. Exactly one of
// ConversationID (self-study) or AssignmentID (teacher-assigned) is set.
type StudySession struct {
	ID                   string         `json:"id"`
	UserID               string         `json:"user_id"`
	ConversationID       string         `json:"conversation_id,omitempty"`
	AssignmentID         string         `json:"assignment_id,omitempty"`
	Questions            []QuizQuestion `json:"questions"`
	CurrentQuestionIndex int            `json:"current_question_index"`
	Score                int            `json:"score"`
	TotalQuestions       int            `json:"total_questions"`
	IsCompleted          bool           `json:"is_completed"`
	CreatedAt            time.Time      `json:"created_at"`
}

// NewStudySession builds a session over already-validated questions.
func NewStudySession(userID, conversationID, assignmentID string, questions []QuizQuestion) *StudySession {
	return &StudySession{
		ID:             uuid.NewString(),
		UserID:         userID,
		ConversationID: conversationID,
		AssignmentID:   assignmentID,
		Questions:      questions,
		TotalQuestions: len(questions),
		CreatedAt:      time.Now().UTC(),
	}
}

// Current returns the question under the cursor, or nil once completed.
func (s *StudySession) Current() *QuizQuestion {
	if s.IsCompleted || s.CurrentQuestionIndex >= len(s.Questions) {
		return nil
	}
	return &s.Questions[s.CurrentQuestionIndex]
}

// Answer scores the given option against the current question and advances
// the cursor. Returns whether the answer was correct. Answering past the last
// question marks the session completed.
func (s *StudySession) Answer(option int) bool {
	q := s.Current()
	if q == nil {
		return false
	}
	correct := option == q.CorrectAnswer
	if correct {
		s.Score++
	}
	s.CurrentQuestionIndex++
	if s.CurrentQuestionIndex >= len(s.Questions) {
		s.IsCompleted = true
	}
	return correct
}

// Assignment is a teacher-authored quiz assigned to a student.
type Assignment struct {
	ID        string         `json:"id"`
	StudentID string         `json:"student_id"`
	Topic     string         `json:"topic"`
	Questions []QuizQuestion `json:"questions"`
	Completed bool           `json:"completed"`
	Score     int            `json:"score"`
	CreatedAt time.Time      `json:"created_at"`
}

// QuizResult is the lightweight record persisted for a finished self-study
// session. Fire-and-forget telemetry; there is no query surface for it yet.
type QuizResult struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CreatedAt      time.Time `json:"created_at"`
}
