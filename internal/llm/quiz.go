package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailedflox9-maker/studychat/internal/metrics"
	"github.com/tailedflox9-maker/studychat/internal/models"
)

const quizQuestionCount = 5

const quizInstruction = `You are a quiz generator. Produce exactly %d multiple-choice questions.
Respond with JSON only, no prose, in this exact shape:
{"questions":[{"question":"...","options":["...","...","...","..."],"answer":"...","explanation":"..."}]}
Each question must have exactly 4 options, and "answer" must repeat one of the options verbatim.`

type quizPayload struct {
	Questions []quizQuestionPayload `json:"questions"`
}

type quizQuestionPayload struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// GenerateQuiz builds questions from a conversation transcript. Fewer than two
// prior turns fails with ErrInsufficientContext before any network call.
func (g *Generator) GenerateQuiz(ctx context.Context, transcript []Turn) ([]models.QuizQuestion, error) {
	if len(transcript) < 2 {
		return nil, ErrInsufficientContext
	}

	var sb strings.Builder
	for _, t := range transcript {
		sb.WriteString(t.Role)
		sb.WriteString(": ")
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	prompt := "Generate quiz questions covering the key concepts of this conversation:\n\n" + sb.String()
	return g.completeQuiz(ctx, prompt)
}

// GenerateQuizFromTopic builds questions from a bare topic string, used for
// teacher-authored assignments.
func (g *Generator) GenerateQuizFromTopic(ctx context.Context, topic string) ([]models.QuizQuestion, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, ErrInsufficientContext
	}
	prompt := "Generate quiz questions about the topic: " + topic
	return g.completeQuiz(ctx, prompt)
}

func (g *Generator) completeQuiz(ctx context.Context, prompt string) ([]models.QuizQuestion, error) {
	_, provider, err := g.current()
	if err != nil {
		return nil, err
	}

	stop := g.metrics.Start(metrics.OpLLMGenerate)
	raw, err := provider.Complete(ctx, fmt.Sprintf(quizInstruction, quizQuestionCount), []Turn{{Role: "user", Content: prompt}})
	stop()
	if err != nil {
		return nil, err
	}

	done := g.metrics.Start(metrics.OpQuizParse)
	defer done()
	questions, err := parseQuizResponse(raw)
	if err != nil {
		g.logger.Warn("quiz response rejected", "error", err)
		return nil, err
	}
	return questions, nil
}

// parseQuizResponse decodes the model's JSON contract into validated
// questions. Questions without exactly 4 options, or whose declared answer
// does not match one of them verbatim, are discarded. Zero surviving
// questions is a QuizFormatError.
func parseQuizResponse(raw string) ([]models.QuizQuestion, error) {
	body := stripCodeFences(raw)

	var payload quizPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, &QuizFormatError{Reason: "response is not valid question JSON: " + err.Error()}
	}
	if len(payload.Questions) == 0 {
		return nil, &QuizFormatError{Reason: "response contains no questions"}
	}

	out := make([]models.QuizQuestion, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		if len(q.Options) != 4 || strings.TrimSpace(q.Question) == "" {
			continue
		}
		correct := -1
		for i, opt := range q.Options {
			if opt == q.Answer {
				correct = i
				break
			}
		}
		if correct < 0 {
			continue
		}
		out = append(out, models.QuizQuestion{
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: correct,
			Explanation:   q.Explanation,
		})
	}
	if len(out) == 0 {
		return nil, &QuizFormatError{Reason: "no questions survived validation"}
	}
	return out, nil
}

// stripCodeFences unwraps a ```json fenced block if the model added one,
// otherwise returns the first {...} span of the input.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimSpace(s)
	}
	if start := strings.Index(s, "{"); start > 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
