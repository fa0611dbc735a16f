package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoQuestions() []QuizQuestion {
	return []QuizQuestion{
		{Question: "q1", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 0},
		{Question: "q2", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 2},
	}
}

func TestNewStudySession(t *testing.T) {
	s := NewStudySession("alice", "c1", "", twoQuestions())

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 2, s.TotalQuestions)
	assert.Equal(t, 0, s.CurrentQuestionIndex)
	assert.False(t, s.IsCompleted)
	require.NotNil(t, s.Current())
	assert.Equal(t, "q1", s.Current().Question)
}

func TestStudySession_AnswerFlow(t *testing.T) {
	s := NewStudySession("alice", "c1", "", twoQuestions())

	assert.True(t, s.Answer(0))
	assert.Equal(t, 1, s.Score)
	assert.Equal(t, "q2", s.Current().Question)

	assert.False(t, s.Answer(1))
	assert.Equal(t, 1, s.Score)
	assert.True(t, s.IsCompleted)
	assert.Nil(t, s.Current())

	// Answering a completed session changes nothing.
	assert.False(t, s.Answer(2))
	assert.Equal(t, 1, s.Score)
}

func TestTokenUsage_Total(t *testing.T) {
	assert.Equal(t, 19, TokenUsage{InputTokens: 12, OutputTokens: 7, TotalTokens: 19}.Total())
	assert.Equal(t, 19, TokenUsage{InputTokens: 12, OutputTokens: 7}.Total())
	assert.Equal(t, 0, TokenUsage{}.Total())
}

func TestMessageConstructors(t *testing.T) {
	user := NewUserMessage("c1", "alice", "hello")
	assert.Equal(t, RoleUser, user.Role)
	assert.Equal(t, "c1", user.ConversationID)
	assert.NotEmpty(t, user.ID)

	asst := NewAssistantMessage("c1", "alice", "gemini-2.0-flash")
	assert.Equal(t, RoleAssistant, asst.Role)
	assert.Empty(t, asst.Content)
	assert.Equal(t, "gemini-2.0-flash", asst.Model)
	assert.NotEqual(t, user.ID, asst.ID)
}
