package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/tailedflox9-maker/studychat/internal/metrics"
	"github.com/tailedflox9-maker/studychat/internal/models"
)

// ModelSelector reports the currently selected model identifier.
type ModelSelector interface {
	CurrentModel() string
}

// ProfileStore is the slice of the persistence boundary the generator needs:
// personalization lookup and best-effort usage recording.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.PersonalizationProfile, error)
	RecordTokenUsage(ctx context.Context, rec *models.TokenUsageRecord) error
}

// recordTimeout bounds the asynchronous usage write after a stream completes.
const recordTimeout = 10 * time.Second

// Generator is the provider-agnostic streaming facade. It selects an adapter
// by the configured model identifier, resolves the personalized system
// instruction, and records final token usage after each completed stream.
type Generator struct {
	providers map[string]Provider
	selector  ModelSelector
	store     ProfileStore
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// NewGenerator creates a generator with an empty provider registry.
func NewGenerator(selector ModelSelector, store ProfileStore, logger *slog.Logger, mc *metrics.Collector) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.NewCollector()
	}
	return &Generator{
		providers: make(map[string]Provider),
		selector:  selector,
		store:     store,
		logger:    logger,
		metrics:   mc,
	}
}

// Register binds a provider adapter to a model identifier.
func (g *Generator) Register(modelID string, p Provider) {
	g.providers[modelID] = p
}

// Models lists the registered model identifiers.
func (g *Generator) Models() []string {
	out := make([]string, 0, len(g.providers))
	for id := range g.providers {
		out = append(out, id)
	}
	return out
}

// Knows reports whether a model identifier has a registered adapter.
func (g *Generator) Knows(modelID string) bool {
	_, ok := g.providers[modelID]
	return ok
}

func (g *Generator) current() (string, Provider, error) {
	model := g.selector.CurrentModel()
	p, ok := g.providers[model]
	if !ok {
		return "", nil, &ConfigurationError{Model: model, Reason: "no provider registered for selected model"}
	}
	return model, p, nil
}

// Generate opens a streaming completion for the given turns. The returned
// channel yields text fragments and exactly one usage event before closing.
// An unknown model selection fails before any network call. After the stream
// completes the final usage is recorded asynchronously, tagged with
// assistantMessageID; recording is best-effort and never surfaces to callers.
func (g *Generator) Generate(ctx context.Context, userID, assistantMessageID string, turns []Turn) (<-chan Event, error) {
	model, provider, err := g.current()
	if err != nil {
		return nil, err
	}

	system := g.resolveInstruction(ctx, userID)

	inner, err := provider.Stream(ctx, system, turns)
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		stop := g.metrics.Start(metrics.OpLLMStream)
		defer stop()

		var usage *models.TokenUsage
		for ev := range inner {
			if ev.Usage != nil {
				usage = ev.Usage
			}
			if !emit(ctx, out, ev) {
				return
			}
		}

		if usage != nil {
			g.metrics.RecordTokens(metrics.OpLLMStream, usage.InputTokens, usage.OutputTokens)
			go g.recordUsage(userID, assistantMessageID, model, usage)
		}
	}()

	return out, nil
}

// resolveInstruction looks up the user's active personalization profile.
// Lookup failure falls back to the base instruction; it is never fatal.
func (g *Generator) resolveInstruction(ctx context.Context, userID string) string {
	profile, err := g.store.GetProfile(ctx, userID)
	if err != nil {
		g.logger.Warn("personalization lookup failed, using base instruction", "user_id", userID, "error", err)
		return BaseInstruction
	}
	if profile == nil || !profile.Active || profile.Instruction == "" {
		return BaseInstruction
	}
	return BaseInstruction + "\n\n" + profile.Instruction
}

// recordUsage persists the usage record detached from the caller's context so
// a finished or cancelled request cannot abort the write.
func (g *Generator) recordUsage(userID, messageID, model string, usage *models.TokenUsage) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	rec := &models.TokenUsageRecord{
		MessageID:    messageID,
		UserID:       userID,
		Model:        model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.Total(),
	}
	if err := g.store.RecordTokenUsage(ctx, rec); err != nil {
		g.logger.Warn("token usage recording failed", "message_id", messageID, "error", err)
	}
}
