package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/tessera-ai/reasonkit/internal/httpclient"
)

// OpenAIAdapter implements Adapter for Dialect A: a single messages array,
// function-style tools, SSE streaming terminated by "data: [DONE]". Used
// directly for OpenAI and, with a different base URL, for Dialect D
// (OpenAI-compatible endpoints such as Grok — see grok.go).
type OpenAIAdapter struct {
	providerName string
	apiKey       string
	model        string
	baseURL      string
	models       []string
	timeout      time.Duration

	client *httpclient.Client
}

// SetTimeout overrides the per-request HTTP timeout used by subsequent
// Open calls. Applied from ProviderConfig.Metadata's request_timeout.
func (o *OpenAIAdapter) SetTimeout(d time.Duration) { o.timeout = d }

func NewOpenAIProvider(apiKey, model string) *OpenAIAdapter {
	return newOpenAICompatible("openai", apiKey, model, "https://api.openai.com")
}

func newOpenAICompatible(providerName, apiKey, model, baseURL string) *OpenAIAdapter {
	return &OpenAIAdapter{
		providerName: providerName,
		apiKey:       apiKey,
		model:        model,
		baseURL:      baseURL,
		models:       []string{model},
	}
}

func (o *OpenAIAdapter) ProviderName() string          { return o.providerName }
func (o *OpenAIAdapter) SupportedModels() []string      { return o.models }
func (o *OpenAIAdapter) SupportsToolCalling() bool      { return true }
func (o *OpenAIAdapter) SupportsStructuredOutput() bool { return true }

func (o *OpenAIAdapter) Open() {
	if o.timeout > 0 {
		o.client = httpclient.Open(httpclient.WithTimeout(o.timeout))
		return
	}
	o.client = httpclient.Open()
}
func (o *OpenAIAdapter) Close() error { err := o.client.Close(); o.client = nil; return err }

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAITool struct {
	Type     string          `json:"type"`
	Function openAIFunction  `json:"function"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openAIJSONSchemaFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type openAIResponseFormat struct {
	Type       string                  `json:"type"`
	JSONSchema *openAIJSONSchemaFormat `json:"json_schema,omitempty"`
}

type openAIRequest struct {
	Model          string                 `json:"model"`
	Messages       []openAIMessage        `json:"messages"`
	Temperature    float64                `json:"temperature,omitempty"`
	MaxTokens      int                    `json:"max_tokens,omitempty"`
	Tools          []openAITool           `json:"tools,omitempty"`
	ToolChoice     any                    `json:"tool_choice,omitempty"`
	ResponseFormat *openAIResponseFormat  `json:"response_format,omitempty"`
	Stream         bool                   `json:"stream"`
	TopP           float64                `json:"top_p,omitempty"`
	Stop           []string               `json:"stop,omitempty"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage,omitempty"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIStreamDelta struct {
	Content   string           `json:"content,omitempty"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIStreamChoice struct {
	Delta        openAIStreamDelta `json:"delta"`
	FinishReason *string           `json:"finish_reason"`
}

type openAIStreamResponse struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []openAIStreamChoice `json:"choices"`
}

func (o *OpenAIAdapter) buildRequest(req LLMRequest) openAIRequest {
	messages := make([]openAIMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		om := openAIMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
		for _, tc := range m.ToolCalls {
			args := tc.Arguments
			var argStr string
			switch v := args.(type) {
			case string:
				argStr = v
			default:
				raw, _ := json.Marshal(v)
				argStr = string(raw)
			}
			call := openAIToolCall{ID: tc.ID, Type: "function"}
			call.Function.Name = tc.Name
			call.Function.Arguments = argStr
			om.ToolCalls = append(om.ToolCalls, call)
		}
		messages = append(messages, om)
	}

	temp := req.Temperature
	if temp == 0 {
		temp = DefaultTemperature
	}

	out := openAIRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: temp,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
	}

	if len(req.Tools) > 0 {
		tools := make([]openAITool, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = openAITool{Type: "function", Function: openAIFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters}}
		}
		out.Tools = tools
	}

	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case "auto", "none", "required", "":
			if req.ToolChoice.Mode != "" {
				out.ToolChoice = req.ToolChoice.Mode
			}
		default:
			out.ToolChoice = map[string]any{
				"type":     "function",
				"function": map[string]string{"name": req.ToolChoice.Mode},
			}
		}
	}

	if req.StructuredOutput != nil {
		if req.StructuredOutput.Strict {
			out.ResponseFormat = &openAIResponseFormat{
				Type: "json_schema",
				JSONSchema: &openAIJSONSchemaFormat{
					Name:   req.StructuredOutput.Name,
					Schema: req.StructuredOutput.Schema,
					Strict: true,
				},
			}
		} else {
			out.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
		}
	}

	return out
}

func (o *OpenAIAdapter) newHTTPRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", o.providerName, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", o.providerName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(o.apiKey))
	return req, nil
}

func openAIFinishReason(s string) FinishReason {
	switch s {
	case "tool_calls":
		return FinishToolCalls
	case "length":
		return FinishLength
	case "content_filter":
		return FinishContentFilter
	case "stop":
		return FinishStop
	default:
		return FinishReason(s)
	}
}

func openAIToolCallsOut(calls []openAIToolCall) []ToolCall {
	out := make([]ToolCall, 0, len(calls))
	for i, c := range calls {
		id := c.ID
		if id == "" {
			id = synthesizeToolCallID(i)
		}
		out = append(out, ToolCall{ID: id, Name: c.Function.Name, Arguments: c.Function.Arguments})
	}
	return out
}

func (o *OpenAIAdapter) Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	if o.client == nil {
		return nil, errPrecondition(o.providerName, "Complete called outside an open HTTP scope")
	}

	body := o.buildRequest(req)
	body.Stream = false

	httpReq, err := o.newHTTPRequest(ctx, "/v1/chat/completions", body)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", o.providerName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errProviderProtocol(o.providerName, fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errProviderHTTP(o.providerName, resp.StatusCode, string(raw))
	}

	var or openAIResponse
	if err := json.Unmarshal(raw, &or); err != nil {
		return nil, errProviderProtocol(o.providerName, err)
	}
	if or.Error != nil {
		return nil, errProviderHTTP(o.providerName, resp.StatusCode, or.Error.Message)
	}
	if len(or.Choices) == 0 {
		return nil, errProviderProtocol(o.providerName, fmt.Errorf("no choices in response"))
	}

	choice := or.Choices[0]
	message := Message{
		Role:      RoleAssistant,
		Content:   choice.Message.Content,
		ToolCalls: openAIToolCallsOut(choice.Message.ToolCalls),
	}

	usage := &Usage{}
	if or.Usage != nil {
		usage.PromptTokens = or.Usage.PromptTokens
		usage.CompletionTokens = or.Usage.CompletionTokens
		usage.TotalTokens = or.Usage.TotalTokens
		if usage.TotalTokens == 0 {
			usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		}
	}

	return &LLMResponse{
		ID:           or.ID,
		Model:        or.Model,
		Message:      message,
		Usage:        usage,
		FinishReason: openAIFinishReason(choice.FinishReason),
		Raw:          json.RawMessage(raw),
	}, nil
}

func (o *OpenAIAdapter) StreamComplete(ctx context.Context, req LLMRequest) iter.Seq[StreamChunk] {
	return func(yield func(StreamChunk) bool) {
		if o.client == nil {
			yield(StreamChunk{Err: errPrecondition(o.providerName, "StreamComplete called outside an open HTTP scope")})
			return
		}

		body := o.buildRequest(req)
		body.Stream = true

		httpReq, err := o.newHTTPRequest(ctx, "/v1/chat/completions", body)
		if err != nil {
			yield(StreamChunk{Err: err})
			return
		}

		resp, err := o.client.Do(ctx, httpReq)
		if err != nil {
			yield(StreamChunk{Err: fmt.Errorf("%s streaming request: %w", o.providerName, err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			yield(StreamChunk{Err: errProviderHTTP(o.providerName, resp.StatusCode, string(raw))})
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}

			var sr openAIStreamResponse
			if err := json.Unmarshal([]byte(data), &sr); err != nil {
				yield(StreamChunk{Err: errProviderProtocol(o.providerName, err)})
				return
			}
			if len(sr.Choices) == 0 {
				continue
			}
			choice := sr.Choices[0]

			if choice.Delta.Content != "" {
				if !yield(StreamChunk{ID: sr.ID, Model: sr.Model, DeltaContent: choice.Delta.Content}) {
					return
				}
			}
			for _, tc := range openAIToolCallsOut(choice.Delta.ToolCalls) {
				tc := tc
				if !yield(StreamChunk{ID: sr.ID, Model: sr.Model, DeltaToolCall: &tc}) {
					return
				}
			}
			if choice.FinishReason != nil {
				if !yield(StreamChunk{ID: sr.ID, Model: sr.Model, FinishReason: openAIFinishReason(*choice.FinishReason)}) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			yield(StreamChunk{Err: errProviderProtocol(o.providerName, err)})
		}
	}
}
