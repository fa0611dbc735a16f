package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGemini(t *testing.T, handler http.Handler) *GeminiProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewGeminiProvider("test-key", "gemini-test", testLogger())
	require.NoError(t, err)
	p.baseURL = srv.URL
	return p
}

func sseChunk(text string) string {
	return fmt.Sprintf(`data: {"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text) + "\n\n"
}

func TestGeminiStream(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Contains(t, r.URL.Path, "gemini-test:streamGenerateContent")

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("Photo"))
		fmt.Fprint(w, sseChunk("synthesis is..."))
		fmt.Fprint(w, `data: {"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":7,"totalTokenCount":19}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	p := newTestGemini(t, handler)

	events, err := p.Stream(context.Background(), "be helpful", []Turn{{Role: "user", Content: "Explain photosynthesis"}})
	require.NoError(t, err)

	content, usage := collect(t, events)
	assert.Equal(t, "Photosynthesis is...", content)
	require.NotNil(t, usage)
	assert.Equal(t, 12, usage.InputTokens)
	assert.Equal(t, 7, usage.OutputTokens)
	assert.Equal(t, 19, usage.TotalTokens)
}

func TestGeminiStream_MalformedFragmentSkipped(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("first"))
		fmt.Fprint(w, "data: {not json at all\n\n")
		fmt.Fprint(w, sseChunk("second"))
	})
	p := newTestGemini(t, handler)

	events, err := p.Stream(context.Background(), "", []Turn{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	content, usage := collect(t, events)
	assert.Equal(t, "firstsecond", content)
	require.NotNil(t, usage)
}

func TestGeminiStream_EstimatesUsageWhenMissing(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("12345678"))
	})
	p := newTestGemini(t, handler)

	events, err := p.Stream(context.Background(), "", []Turn{{Role: "user", Content: "abcd"}})
	require.NoError(t, err)

	_, usage := collect(t, events)
	require.NotNil(t, usage)
	assert.Equal(t, 1, usage.InputTokens)
	assert.Equal(t, 2, usage.OutputTokens)
	assert.Equal(t, 3, usage.TotalTokens)
}

func TestGeminiStream_RejectionReturnsProviderError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	})
	p := newTestGemini(t, handler)

	_, err := p.Stream(context.Background(), "", []Turn{{Role: "user", Content: "hi"}})

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusTooManyRequests, provErr.Status)
	assert.Contains(t, provErr.Body, "quota exceeded")
}

func TestGeminiComplete(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"the answer"}]}}]}`)
	})
	p := newTestGemini(t, handler)

	out, err := p.Complete(context.Background(), "", []Turn{{Role: "user", Content: "question"}})
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
}

func TestGeminiComplete_EmptyResponse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	})
	p := newTestGemini(t, handler)

	_, err := p.Complete(context.Background(), "", []Turn{{Role: "user", Content: "question"}})

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
}

func TestGeminiRoleMapping(t *testing.T) {
	p, err := NewGeminiProvider("k", "m", testLogger())
	require.NoError(t, err)

	req := p.buildRequest("sys", []Turn{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
	})
	require.Len(t, req.Contents, 2)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	require.NotNil(t, req.SystemInstruction)
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider("", "m", nil)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
