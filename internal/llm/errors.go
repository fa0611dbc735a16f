// Package llm provides model provider adapters and the streaming response
// generator used by the chat engine.
package llm

import (
	"errors"
	"fmt"
)

// ErrInsufficientContext is returned when quiz generation is requested for a
// conversation with fewer than two turns. Checked before any network call.
var ErrInsufficientContext = errors.New("conversation too short to generate a quiz")

// ConfigurationError indicates a missing or unknown model selection, or a
// missing provider credential. Fatal to the current operation; never retried.
type ConfigurationError struct {
	Model  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("model %q: %s", e.Model, e.Reason)
	}
	return e.Reason
}

// ProviderError indicates the provider rejected the initial request.
// Carries the HTTP status and response body for diagnostics.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: request rejected with status %d: %s", e.Provider, e.Status, e.Body)
}

// StreamParseError describes a single malformed stream fragment. These are
// logged and skipped; they never abort the stream.
type StreamParseError struct {
	Provider string
	Line     string
	Err      error
}

func (e *StreamParseError) Error() string {
	return fmt.Sprintf("%s: malformed stream fragment: %v", e.Provider, e.Err)
}

func (e *StreamParseError) Unwrap() error {
	return e.Err
}

// QuizFormatError indicates the model output did not conform to the required
// question schema, or produced zero valid questions after filtering.
type QuizFormatError struct {
	Reason string
}

func (e *QuizFormatError) Error() string {
	return "quiz generation failed: " + e.Reason
}
