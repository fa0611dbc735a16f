package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tailedflox9-maker/studychat/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainProvider adapts langchaingo-backed vendors (OpenAI, Anthropic,
// Ollama) to the uniform streaming contract.
type LangchainProvider struct {
	name   string
	model  string
	llm    llms.Model
	logger *slog.Logger
}

var _ Provider = (*LangchainProvider)(nil)

// NewOpenAIProvider creates an adapter for one OpenAI model.
func NewOpenAIProvider(apiKey, model string, logger *slog.Logger) (*LangchainProvider, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{Model: model, Reason: "OpenAI API key required"}
	}
	m, err := openai.New(openai.WithToken(apiKey), openai.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return newLangchainProvider("openai", model, m, logger), nil
}

// NewAnthropicProvider creates an adapter for one Anthropic model.
func NewAnthropicProvider(apiKey, model string, logger *slog.Logger) (*LangchainProvider, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{Model: model, Reason: "Anthropic API key required"}
	}
	m, err := anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("create anthropic model: %w", err)
	}
	return newLangchainProvider("anthropic", model, m, logger), nil
}

// NewOllamaProvider creates an adapter for one locally served Ollama model.
func NewOllamaProvider(host, model string, logger *slog.Logger) (*LangchainProvider, error) {
	m, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(host))
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return newLangchainProvider("ollama", model, m, logger), nil
}

func newLangchainProvider(name, model string, m llms.Model, logger *slog.Logger) *LangchainProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LangchainProvider{name: name, model: model, llm: m, logger: logger}
}

// Name returns the model identifier this adapter serves.
func (p *LangchainProvider) Name() string { return p.model }

func toMessageContent(system string, turns []Turn) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(turns)+1)
	if system != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, t := range turns {
		role := llms.ChatMessageTypeHuman
		if t.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, t.Content))
	}
	return content
}

// Stream runs a streaming generation, pumping fragments into the returned
// channel as the vendor delivers them.
func (p *LangchainProvider) Stream(ctx context.Context, system string, turns []Turn) (<-chan Event, error) {
	events := make(chan Event)

	go func() {
		defer close(events)

		var output strings.Builder
		resp, err := p.llm.GenerateContent(ctx, toMessageContent(system, turns),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				output.Write(chunk)
				if !emit(ctx, events, Event{Chunk: string(chunk)}) {
					return ctx.Err()
				}
				return nil
			}),
		)
		if err != nil {
			emit(ctx, events, Event{Err: fmt.Errorf("%s generate: %w", p.name, err)})
			return
		}

		emit(ctx, events, Event{Usage: p.usageFromResponse(resp, system, turns, output.String())})
	}()

	return events, nil
}

// Complete performs a single non-streaming generation, used for quiz requests.
func (p *LangchainProvider) Complete(ctx context.Context, system string, turns []Turn) (string, error) {
	resp, err := p.llm.GenerateContent(ctx, toMessageContent(system, turns))
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: p.name, Status: 0, Body: "no response choices"}
	}
	return resp.Choices[0].Content, nil
}

// usageFromResponse prefers vendor-reported token counts from GenerationInfo;
// key names differ per vendor, so several spellings are probed.
func (p *LangchainProvider) usageFromResponse(resp *llms.ContentResponse, system string, turns []Turn, output string) *models.TokenUsage {
	if resp != nil && len(resp.Choices) > 0 && resp.Choices[0].GenerationInfo != nil {
		info := resp.Choices[0].GenerationInfo
		in := intFromInfo(info, "PromptTokens", "InputTokens", "prompt_tokens", "input_tokens")
		out := intFromInfo(info, "CompletionTokens", "OutputTokens", "completion_tokens", "output_tokens")
		if in > 0 || out > 0 {
			return &models.TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
		}
	}
	in := estimateInputTokens(system, turns)
	out := EstimateTokens(output)
	return &models.TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}

func intFromInfo(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
