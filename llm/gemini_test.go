package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeminiTestAdapter(t *testing.T, handler http.HandlerFunc) (*GeminiAdapter, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	g := NewGeminiProvider("test-key", "gemini-pro")
	g.baseURL = srv.URL
	return g, srv.Close
}

func TestGeminiCompleteRoundTrip(t *testing.T) {
	g, closeSrv := newGeminiTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Contains(t, r.URL.Path, ":generateContent")
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "hi there"}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15}
		}`))
	})
	defer closeSrv()

	g.Open()
	defer g.Close()

	resp, err := g.Complete(context.Background(), LLMRequest{
		Model: "gemini-pro",
		Messages: []Message{
			{Role: RoleSystem, Content: "be terse"},
			{Role: RoleUser, Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Message.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, FinishStop, resp.FinishReason)
}

func TestGeminiCompleteFunctionCall(t *testing.T) {
	g, closeSrv := newGeminiTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"functionCall": {"name": "calculator", "args": {"expression": "2+2"}}}]},
				"finishReason": "STOP"
			}]
		}`))
	})
	defer closeSrv()

	g.Open()
	defer g.Close()

	resp, err := g.Complete(context.Background(), LLMRequest{Model: "gemini-pro"})
	require.NoError(t, err)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "calculator", resp.Message.ToolCalls[0].Name)
}

func TestGeminiCompleteErrorResponse(t *testing.T) {
	g, closeSrv := newGeminiTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "bad request", "status": "INVALID_ARGUMENT"}}`))
	})
	defer closeSrv()

	g.Open()
	defer g.Close()

	_, err := g.Complete(context.Background(), LLMRequest{Model: "gemini-pro"})
	var e *Error
	require.True(t, asErr(err, &e))
	assert.Equal(t, KindProviderHTTPError, e.Kind)
}

func TestGeminiBuildRequestSystemInstructionSeparated(t *testing.T) {
	g := NewGeminiProvider("k", "m")
	req := g.buildRequest(LLMRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "be terse"},
			{Role: RoleUser, Content: "hi"},
		},
	})
	require.NotNil(t, req.SystemInstruction)
	for _, c := range req.Contents {
		assert.NotEqual(t, "system", c.Role, "system message leaked into contents")
	}
}

func TestGeminiStreamComplete(t *testing.T) {
	g, closeSrv := newGeminiTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":streamGenerateContent")
		lines := []string{
			`{"candidates":[{"content":{"parts":[{"text":"Hel"}]}}]}`,
			`{"candidates":[{"content":{"parts":[{"text":"lo"}]},"finishReason":"STOP"}]}`,
		}
		for _, l := range lines {
			_, _ = w.Write([]byte(l + "\n"))
		}
	})
	defer closeSrv()

	g.Open()
	defer g.Close()

	var text strings.Builder
	var finished FinishReason
	for chunk := range g.StreamComplete(context.Background(), LLMRequest{Model: "gemini-pro", Stream: true}) {
		require.NoError(t, chunk.Err)
		text.WriteString(chunk.DeltaContent)
		if chunk.FinishReason != "" {
			finished = chunk.FinishReason
		}
	}
	assert.Equal(t, "Hello", text.String())
	assert.Equal(t, FinishStop, finished)
}

func TestGeminiCompleteOutsideScope(t *testing.T) {
	g := NewGeminiProvider("k", "m")
	_, err := g.Complete(context.Background(), LLMRequest{})
	var e *Error
	require.True(t, asErr(err, &e))
	assert.Equal(t, KindPreconditionViolated, e.Kind)
}
