package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tailedflox9-maker/studychat/internal/models"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider streams completions from the Gemini generateContent API.
// The wire format is a text/event-stream of "data: <json>" lines.
type GeminiProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates an adapter for one Gemini model.
func NewGeminiProvider(apiKey, model string, logger *slog.Logger) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{Model: model, Reason: "Gemini API key required"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logger,
	}, nil
}

// Name returns the model identifier this adapter serves.
func (p *GeminiProvider) Name() string { return p.model }

// Gemini request/response wire types.
type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata *geminiUsage `json:"usageMetadata,omitempty"`
}

// buildRequest maps the uniform turn list to Gemini's format. Gemini names
// the assistant role "model"; that mapping stays private to this adapter.
func (p *GeminiProvider) buildRequest(system string, turns []Turn) geminiRequest {
	req := geminiRequest{}
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, t := range turns {
		role := "user"
		if t.Role == models.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: t.Content}},
		})
	}
	return req
}

func (p *GeminiProvider) post(ctx context.Context, url string, body geminiRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{Provider: "gemini", Status: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// Stream opens the SSE completion stream. The returned channel yields text
// fragments as they arrive and exactly one usage event before closing.
func (p *GeminiProvider) Stream(ctx context.Context, system string, turns []Turn) (<-chan Event, error) {
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", p.baseURL, p.model)
	resp, err := p.post(ctx, url, p.buildRequest(system, turns))
	if err != nil {
		return nil, err
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		var (
			output  strings.Builder
			usage   *geminiUsage
			scanner = bufio.NewScanner(resp.Body)
		)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				break
			}

			var chunk geminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Malformed fragments never abort the stream.
				p.logger.Warn("skipping malformed stream fragment",
					"error", &StreamParseError{Provider: "gemini", Line: data, Err: err})
				continue
			}

			if chunk.UsageMetadata != nil {
				usage = chunk.UsageMetadata
			}
			for _, cand := range chunk.Candidates {
				for _, part := range cand.Content.Parts {
					if part.Text == "" {
						continue
					}
					output.WriteString(part.Text)
					if !emit(ctx, events, Event{Chunk: part.Text}) {
						return
					}
				}
			}
		}

		if err := scanner.Err(); err != nil {
			emit(ctx, events, Event{Err: fmt.Errorf("gemini stream read: %w", err)})
			return
		}

		emit(ctx, events, Event{Usage: p.usageOrEstimate(usage, system, turns, output.String())})
	}()

	return events, nil
}

// Complete performs a single non-streaming generation, used for quiz requests.
func (p *GeminiProvider) Complete(ctx context.Context, system string, turns []Turn) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	resp, err := p.post(ctx, url, p.buildRequest(system, turns))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &ProviderError{Provider: "gemini", Status: resp.StatusCode, Body: "empty response"}
	}

	var out strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	return out.String(), nil
}

// usageOrEstimate prefers vendor-reported usage metadata, falling back to the
// character-count heuristic over inputs and the concatenated output.
func (p *GeminiProvider) usageOrEstimate(usage *geminiUsage, system string, turns []Turn, output string) *models.TokenUsage {
	if usage != nil {
		return &models.TokenUsage{
			InputTokens:  usage.PromptTokenCount,
			OutputTokens: usage.CandidatesTokenCount,
			TotalTokens:  usage.TotalTokenCount,
		}
	}
	in := estimateInputTokens(system, turns)
	out := EstimateTokens(output)
	return &models.TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}
