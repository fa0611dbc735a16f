package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/tailedflox9-maker/studychat/internal/models"
)

const bedrockMaxTokens = 4096

// BedrockProvider streams completions from Amazon Bedrock using the
// Anthropic messages payload format.
type BedrockProvider struct {
	client  *bedrockruntime.Client
	modelID string
	logger  *slog.Logger
}

var _ Provider = (*BedrockProvider)(nil)

// NewBedrockProvider creates an adapter for one Bedrock model, resolving AWS
// credentials from the default chain.
func NewBedrockProvider(ctx context.Context, region, modelID string, logger *slog.Logger) (*BedrockProvider, error) {
	if region == "" {
		return nil, &ConfigurationError{Model: modelID, Reason: "AWS region required"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &BedrockProvider{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
		logger:  logger,
	}, nil
}

// Name returns the model identifier this adapter serves.
func (p *BedrockProvider) Name() string { return p.modelID }

// Anthropic-on-Bedrock wire types.
type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *BedrockProvider) buildPayload(system string, turns []Turn) ([]byte, error) {
	req := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        bedrockMaxTokens,
		System:           system,
	}
	for _, t := range turns {
		req.Messages = append(req.Messages, bedrockMessage{Role: t.Role, Content: t.Content})
	}
	return json.Marshal(req)
}

// Stream opens a response stream via InvokeModelWithResponseStream.
func (p *BedrockProvider) Stream(ctx context.Context, system string, turns []Turn) (<-chan Event, error) {
	payload, err := p.buildPayload(system, turns)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	out, err := p.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(p.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, &ProviderError{Provider: "bedrock", Status: 0, Body: err.Error()}
	}

	events := make(chan Event)
	go func() {
		defer close(events)

		stream := out.GetStream()
		defer stream.Close()

		var (
			output strings.Builder
			usage  models.TokenUsage
		)

		for raw := range stream.Events() {
			chunk, ok := raw.(*brtypes.ResponseStreamMemberChunk)
			if !ok {
				continue
			}

			var ev bedrockStreamEvent
			if err := json.Unmarshal(chunk.Value.Bytes, &ev); err != nil {
				p.logger.Warn("skipping malformed stream fragment",
					"error", &StreamParseError{Provider: "bedrock", Line: string(chunk.Value.Bytes), Err: err})
				continue
			}

			switch ev.Type {
			case "message_start":
				usage.InputTokens = ev.Message.Usage.InputTokens
			case "content_block_delta":
				if ev.Delta.Text == "" {
					continue
				}
				output.WriteString(ev.Delta.Text)
				if !emit(ctx, events, Event{Chunk: ev.Delta.Text}) {
					return
				}
			case "message_delta":
				usage.OutputTokens = ev.Usage.OutputTokens
			}
		}

		if err := stream.Err(); err != nil {
			emit(ctx, events, Event{Err: fmt.Errorf("bedrock stream read: %w", err)})
			return
		}

		if usage.InputTokens == 0 {
			usage.InputTokens = estimateInputTokens(system, turns)
		}
		if usage.OutputTokens == 0 {
			usage.OutputTokens = EstimateTokens(output.String())
		}
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
		emit(ctx, events, Event{Usage: &usage})
	}()

	return events, nil
}

// Complete performs a single non-streaming invocation, used for quiz requests.
func (p *BedrockProvider) Complete(ctx context.Context, system string, turns []Turn) (string, error) {
	payload, err := p.buildPayload(system, turns)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return "", &ProviderError{Provider: "bedrock", Status: 0, Body: err.Error()}
	}

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", &ProviderError{Provider: "bedrock", Status: 0, Body: "empty response"}
	}
	return parsed.Content[0].Text, nil
}
