package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tailedflox9-maker/studychat/internal/config"
)

// Model identifiers offered per provider. Only providers with credentials
// configured get registered.
var (
	geminiModels    = []string{"gemini-2.0-flash", "gemini-1.5-pro"}
	openAIModels    = []string{"gpt-4o", "gpt-4o-mini"}
	anthropicModels = []string{"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022"}
	bedrockModels   = []string{"anthropic.claude-3-5-sonnet-20241022-v2:0"}
	ollamaModels    = []string{"llama3.1"}
)

// RegisterFromConfig registers a provider adapter for every model whose
// credentials are present in the configuration. At least one provider must
// end up registered.
func RegisterFromConfig(ctx context.Context, g *Generator, cfg config.Config, logger *slog.Logger) error {
	if cfg.GeminiAPIKey != "" {
		for _, model := range geminiModels {
			p, err := NewGeminiProvider(cfg.GeminiAPIKey, model, logger)
			if err != nil {
				return fmt.Errorf("create gemini provider: %w", err)
			}
			g.Register(model, p)
		}
	}

	if cfg.OpenAIAPIKey != "" {
		for _, model := range openAIModels {
			p, err := NewOpenAIProvider(cfg.OpenAIAPIKey, model, logger)
			if err != nil {
				return fmt.Errorf("create openai provider: %w", err)
			}
			g.Register(model, p)
		}
	}

	if cfg.AnthropicAPIKey != "" {
		for _, model := range anthropicModels {
			p, err := NewAnthropicProvider(cfg.AnthropicAPIKey, model, logger)
			if err != nil {
				return fmt.Errorf("create anthropic provider: %w", err)
			}
			g.Register(model, p)
		}
	}

	if cfg.AWSRegion != "" {
		for _, model := range bedrockModels {
			p, err := NewBedrockProvider(ctx, cfg.AWSRegion, model, logger)
			if err != nil {
				return fmt.Errorf("create bedrock provider: %w", err)
			}
			g.Register(model, p)
		}
	}

	if cfg.OllamaHost != "" {
		for _, model := range ollamaModels {
			p, err := NewOllamaProvider(cfg.OllamaHost, model, logger)
			if err != nil {
				return fmt.Errorf("create ollama provider: %w", err)
			}
			g.Register(model, p)
		}
	}

	if len(g.providers) == 0 {
		return &ConfigurationError{Reason: "no model provider credentials configured"}
	}
	return nil
}
