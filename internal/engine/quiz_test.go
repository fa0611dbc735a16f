package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailedflox9-maker/studychat/internal/llm"
	"github.com/tailedflox9-maker/studychat/internal/models"
)

func sampleQuestions(n int) []models.QuizQuestion {
	out := make([]models.QuizQuestion, n)
	for i := range out {
		out[i] = models.QuizQuestion{
			Question:      "q",
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: 1,
		}
	}
	return out
}

func quizReadyEngine(t *testing.T, st *fakeStore, gen *fakeGen) *Engine {
	t.Helper()
	st.conversations = []models.Conversation{{ID: "c1", UserID: "user-1"}}
	st.messages["c1"] = []models.Message{
		{ID: "m1", ConversationID: "c1", Role: models.RoleUser, Content: "Explain photosynthesis"},
		{ID: "m2", ConversationID: "c1", Role: models.RoleAssistant, Content: "Photosynthesis is..."},
	}
	e, _ := newTestEngine(st, gen)
	require.NoError(t, e.LoadConversations(context.Background()))
	require.NoError(t, e.SelectConversation(context.Background(), "c1"))
	return e
}

func TestGenerateQuiz(t *testing.T) {
	gen := &fakeGen{quiz: sampleQuestions(5)}
	e := quizReadyEngine(t, newFakeStore(), gen)

	session, err := e.GenerateQuiz(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, session.TotalQuestions)
	assert.Equal(t, "c1", session.ConversationID)
	assert.Empty(t, session.AssignmentID)
	assert.Same(t, session, e.Session())
}

func TestGenerateQuiz_RequiresSelection(t *testing.T) {
	e, _ := newTestEngine(newFakeStore(), &fakeGen{quiz: sampleQuestions(5)})
	_, err := e.GenerateQuiz(context.Background())
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestGenerateQuiz_RequiresTwoMessages(t *testing.T) {
	st := newFakeStore()
	st.conversations = []models.Conversation{{ID: "c1", UserID: "user-1"}}
	st.messages["c1"] = []models.Message{
		{ID: "m1", ConversationID: "c1", Role: models.RoleUser, Content: "hi"},
	}
	e, _ := newTestEngine(st, &fakeGen{quiz: sampleQuestions(5)})
	require.NoError(t, e.LoadConversations(context.Background()))
	require.NoError(t, e.SelectConversation(context.Background(), "c1"))

	_, err := e.GenerateQuiz(context.Background())
	assert.ErrorIs(t, err, llm.ErrInsufficientContext)
	assert.Nil(t, e.Session())
}

func TestGenerateQuiz_FailureLeavesStateUnchanged(t *testing.T) {
	gen := &fakeGen{quizErr: &llm.QuizFormatError{Reason: "no questions survived validation"}}
	e := quizReadyEngine(t, newFakeStore(), gen)

	_, err := e.GenerateQuiz(context.Background())
	var formatErr *llm.QuizFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Nil(t, e.Session())
}

func TestAnswerQuestion_ScoresAndAdvances(t *testing.T) {
	gen := &fakeGen{quiz: sampleQuestions(2)}
	e := quizReadyEngine(t, newFakeStore(), gen)
	_, err := e.GenerateQuiz(context.Background())
	require.NoError(t, err)

	correct, err := e.AnswerQuestion(1)
	require.NoError(t, err)
	assert.True(t, correct)

	correct, err = e.AnswerQuestion(3)
	require.NoError(t, err)
	assert.False(t, correct)

	session := e.Session()
	assert.True(t, session.IsCompleted)
	assert.Equal(t, 1, session.Score)
}

func TestFinishQuiz_SelfStudyRecordsResult(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGen{quiz: sampleQuestions(1)}
	e := quizReadyEngine(t, st, gen)
	_, err := e.GenerateQuiz(context.Background())
	require.NoError(t, err)
	_, err = e.AnswerQuestion(1)
	require.NoError(t, err)

	require.NoError(t, e.FinishQuiz(context.Background()))
	assert.Nil(t, e.Session())

	waitFor(t, func() bool { return st.count("record_quiz_result") == 1 }, "quiz result recorded")
	st.mu.Lock()
	defer st.mu.Unlock()
	require.Len(t, st.quizResults, 1)
	assert.Equal(t, 1, st.quizResults[0].Score)
	assert.Equal(t, "c1", st.quizResults[0].ConversationID)
}

func TestFinishQuiz_AssignmentCompletesAndRefreshes(t *testing.T) {
	st := newFakeStore()
	st.assignments = []models.Assignment{
		{ID: "a1", StudentID: "user-1", Topic: "Algebra", Questions: sampleQuestions(2)},
	}
	e, _ := newTestEngine(st, &fakeGen{})
	require.NoError(t, e.LoadAssignments(context.Background()))

	session, err := e.StartAssignment("a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", session.AssignmentID)
	assert.Empty(t, session.ConversationID)

	_, err = e.AnswerQuestion(1)
	require.NoError(t, err)
	_, err = e.AnswerQuestion(1)
	require.NoError(t, err)

	require.NoError(t, e.FinishQuiz(context.Background()))
	assert.Nil(t, e.Session())
	assert.Equal(t, 1, st.count("complete_assignment"))
	assert.Equal(t, 2, st.count("list_assignments"))
}

func TestLoadAssignments_StudentOnly(t *testing.T) {
	st := newFakeStore()
	st.assignments = []models.Assignment{
		{ID: "a1", StudentID: "user-1", Topic: "Algebra", Questions: sampleQuestions(2)},
	}

	student, _ := newTestEngine(st, &fakeGen{})
	require.NoError(t, student.LoadAssignments(context.Background()))
	assert.Len(t, student.Assignments(), 1)

	teacher := New("teacher-1", RoleTeacher, st, &fakeGen{}, staticModel("test-model"), testLogger())
	require.NoError(t, teacher.LoadAssignments(context.Background()))
	assert.Empty(t, teacher.Assignments())
	assert.Equal(t, 1, st.count("list_assignments"))
}

func TestFinishQuiz_ClearsSessionEvenOnFailure(t *testing.T) {
	st := newFakeStore()
	st.assignments = []models.Assignment{
		{ID: "a1", StudentID: "user-1", Questions: sampleQuestions(1)},
	}
	st.failWith("complete_assignment")
	e, _ := newTestEngine(st, &fakeGen{})
	require.NoError(t, e.LoadAssignments(context.Background()))
	_, err := e.StartAssignment("a1")
	require.NoError(t, err)

	require.Error(t, e.FinishQuiz(context.Background()))
	assert.Nil(t, e.Session())
}

func TestFinishQuiz_NoActiveSession(t *testing.T) {
	e, _ := newTestEngine(newFakeStore(), &fakeGen{})
	assert.ErrorIs(t, e.FinishQuiz(context.Background()), ErrNoSelection)
}
