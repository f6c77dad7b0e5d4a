package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnthropicTestAdapter(t *testing.T, handler http.HandlerFunc) (*AnthropicAdapter, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	a := NewAnthropicProvider("test-key", "claude-3-5-sonnet-20241022")
	a.baseURL = srv.URL
	return a, srv.Close
}

func TestAnthropicCompleteRoundTrip(t *testing.T) {
	a, closeSrv := newAnthropicTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "be terse", body.System)
		assert.NotZero(t, body.MaxTokens, "expected a default max_tokens to be set")

		resp := anthropicResponse{
			ID:         "msg-1",
			Role:       "assistant",
			Model:      "claude-3-5-sonnet-20241022",
			StopReason: "end_turn",
			Content:    []anthropicContent{{Type: "text", Text: "hi there"}},
			Usage:      anthropicUsage{InputTokens: 10, OutputTokens: 5},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	defer closeSrv()

	a.Open()
	defer a.Close()

	resp, err := a.Complete(context.Background(), LLMRequest{
		Model: "claude-3-5-sonnet-20241022",
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

func TestAnthropicCompleteToolUse(t *testing.T) {
	a, closeSrv := newAnthropicTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicResponse{
			ID:         "msg-2",
			StopReason: "tool_use",
			Content: []anthropicContent{
				{Type: "tool_use", ID: "toolu_1", Name: "calculator", Input: &map[string]any{"expression": "2+2"}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	defer closeSrv()

	a.Open()
	defer a.Close()

	resp, err := a.Complete(context.Background(), LLMRequest{Model: "claude-3-5-sonnet-20241022"})
	require.NoError(t, err)
	assert.Equal(t, FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.Message.ToolCalls[0].ID)
}

func TestAnthropicBuildRequestToolChoiceNoneDropsTools(t *testing.T) {
	a := NewAnthropicProvider("k", "m")
	req := a.buildRequest(LLMRequest{
		Tools:      []ToolDefinition{{Name: "t1"}},
		ToolChoice: &ToolChoice{Mode: "none"},
	})
	assert.Nil(t, req.Tools, "expected tools to be dropped for none mode")
}

func TestAnthropicBuildRequestStructuredOutputForcesTool(t *testing.T) {
	a := NewAnthropicProvider("k", "m")
	req := a.buildRequest(LLMRequest{
		StructuredOutput: &StructuredOutputSchema{Name: "Answer", Schema: map[string]any{"type": "object"}},
	})
	require.NotNil(t, req.ToolChoice)
	assert.Equal(t, "tool", req.ToolChoice.Type)
	assert.Equal(t, "Answer", req.ToolChoice.Name)

	found := false
	for _, tl := range req.Tools {
		if tl.Name == "Answer" {
			found = true
		}
	}
	assert.True(t, found, "expected synthetic Answer tool in request tools")
}

func TestAnthropicStreamComplete(t *testing.T) {
	a, closeSrv := newAnthropicTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		events := []string{
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`,
			`{"type":"message_stop"}`,
		}
		flusher, _ := w.(http.Flusher)
		for _, e := range events {
			_, _ = w.Write([]byte("data: " + e + "\n\n"))
			if flusher != nil {
				flusher.Flush()
			}
		}
	})
	defer closeSrv()

	a.Open()
	defer a.Close()

	var text strings.Builder
	var finished FinishReason
	for chunk := range a.StreamComplete(context.Background(), LLMRequest{Model: "claude-3-5-sonnet-20241022", Stream: true}) {
		require.NoError(t, chunk.Err)
		text.WriteString(chunk.DeltaContent)
		if chunk.FinishReason != "" {
			finished = chunk.FinishReason
		}
	}
	assert.Equal(t, "Hello", text.String())
	assert.Equal(t, FinishStop, finished)
}

func TestAnthropicCompleteOutsideScope(t *testing.T) {
	a := NewAnthropicProvider("k", "m")
	_, err := a.Complete(context.Background(), LLMRequest{})
	var e *Error
	require.True(t, asErr(err, &e))
	assert.Equal(t, KindPreconditionViolated, e.Kind)
}
