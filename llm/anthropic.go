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

// AnthropicAdapter implements Adapter for Dialect B: separated system
// field plus content-block messages, mandatory max_tokens, x-api-key +
// anthropic-version headers.
type AnthropicAdapter struct {
	apiKey  string
	model   string
	baseURL string
	models  []string
	timeout time.Duration

	client *httpclient.Client
}

// SetTimeout overrides the per-request HTTP timeout used by subsequent
// Open calls. Applied from ProviderConfig.Metadata's request_timeout.
func (a *AnthropicAdapter) SetTimeout(d time.Duration) { a.timeout = d }

// NewAnthropicProvider is the convenience constructor ported from the
// original prototype's provider_factory.
func NewAnthropicProvider(apiKey, model string) *AnthropicAdapter {
	return &AnthropicAdapter{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.anthropic.com",
		models:  []string{model},
	}
}

func (a *AnthropicAdapter) ProviderName() string           { return "anthropic" }
func (a *AnthropicAdapter) SupportedModels() []string       { return a.models }
func (a *AnthropicAdapter) SupportsToolCalling() bool       { return true }
func (a *AnthropicAdapter) SupportsStructuredOutput() bool  { return true }

func (a *AnthropicAdapter) Open() {
	if a.timeout > 0 {
		a.client = httpclient.Open(httpclient.WithTimeout(a.timeout))
		return
	}
	a.client = httpclient.Open()
}
func (a *AnthropicAdapter) Close() error  { err := a.client.Close(); a.client = nil; return err }

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     *map[string]any `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type anthropicRequest struct {
	Model       string               `json:"model"`
	Messages    []anthropicMessage   `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature,omitempty"`
	Stream      bool                 `json:"stream"`
	System      string               `json:"system,omitempty"`
	Tools       []anthropicTool      `json:"tools,omitempty"`
	ToolChoice  *anthropicToolChoice `json:"tool_choice,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

type anthropicStreamEvent struct {
	Type         string             `json:"type"`
	Index        int                `json:"index"`
	Delta        *anthropicDelta    `json:"delta,omitempty"`
	ContentBlock *anthropicContent  `json:"content_block,omitempty"`
	Usage        *anthropicUsage    `json:"usage,omitempty"`
}

const defaultAnthropicMaxTokens = 4096

func (a *AnthropicAdapter) buildRequest(req LLMRequest) anthropicRequest {
	var systemParts []string
	messages := make([]anthropicMessage, 0, len(req.Messages))

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}
		case RoleUser:
			messages = append(messages, anthropicMessage{
				Role:    "user",
				Content: []anthropicContent{{Type: "text", Text: msg.Content}},
			})
		case RoleTool, RoleFunction:
			messages = append(messages, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})
		case RoleAssistant:
			var contents []anthropicContent
			if msg.Content != "" {
				contents = append(contents, anthropicContent{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args, err := tc.Args()
				if err != nil {
					args = map[string]any{}
				}
				contents = append(contents, anthropicContent{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: &args,
				})
			}
			if len(contents) == 0 {
				contents = []anthropicContent{{Type: "text", Text: ""}}
			}
			messages = append(messages, anthropicMessage{Role: "assistant", Content: contents})
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	out := anthropicRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      req.Stream,
		System:      strings.Join(systemParts, "\n\n"),
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropicTool, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters}
		}
		out.Tools = tools
	}

	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case "auto", "":
			out.ToolChoice = &anthropicToolChoice{Type: "auto"}
		case "required":
			out.ToolChoice = &anthropicToolChoice{Type: "any"}
		case "none":
			// Anthropic has no explicit "none"; omit ToolChoice and Tools instead.
			out.Tools = nil
		default:
			out.ToolChoice = &anthropicToolChoice{Type: "tool", Name: req.ToolChoice.Mode}
		}
	}

	if req.StructuredOutput != nil {
		// Structured output is requested by declaring a single synthetic
		// tool whose input schema is the desired schema and forcing its
		// selection.
		out.Tools = append(out.Tools, anthropicTool{
			Name:        req.StructuredOutput.Name,
			Description: req.StructuredOutput.Description,
			InputSchema: req.StructuredOutput.Schema,
		})
		out.ToolChoice = &anthropicToolChoice{Type: "tool", Name: req.StructuredOutput.Name}
	}

	return out
}

func (a *AnthropicAdapter) newHTTPRequest(ctx context.Context, body anthropicRequest) (*http.Request, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	return req, nil
}

func (a *AnthropicAdapter) Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	if a.client == nil {
		return nil, errPrecondition("anthropic", "Complete called outside an open HTTP scope")
	}

	body := a.buildRequest(req)
	body.Stream = false

	httpReq, err := a.newHTTPRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errProviderProtocol("anthropic", fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errProviderHTTP("anthropic", resp.StatusCode, string(raw))
	}

	var ar anthropicResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, errProviderProtocol("anthropic", err)
	}
	if ar.Error != nil {
		return nil, errProviderHTTP("anthropic", resp.StatusCode, ar.Error.Message)
	}

	message, toolCalls := anthropicContentToMessage(ar.Content)
	message.Role = RoleAssistant
	message.ToolCalls = toolCalls

	finish := FinishReason(ar.StopReason)
	if ar.StopReason == "tool_use" {
		finish = FinishToolCalls
	} else if ar.StopReason == "end_turn" {
		finish = FinishStop
	} else if ar.StopReason == "max_tokens" {
		finish = FinishLength
	}

	return &LLMResponse{
		ID:      ar.ID,
		Model:   ar.Model,
		Message: message,
		Usage: &Usage{
			PromptTokens:     ar.Usage.InputTokens,
			CompletionTokens: ar.Usage.OutputTokens,
			TotalTokens:      ar.Usage.InputTokens + ar.Usage.OutputTokens,
		},
		FinishReason: finish,
		Raw:          json.RawMessage(raw),
	}, nil
}

func anthropicContentToMessage(blocks []anthropicContent) (Message, []ToolCall) {
	var text strings.Builder
	var calls []ToolCall
	for i, b := range blocks {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
		case "tool_use":
			id := b.ID
			if id == "" {
				id = synthesizeToolCallID(i)
			}
			var args map[string]any
			if b.Input != nil {
				args = *b.Input
			} else {
				args = map[string]any{}
			}
			calls = append(calls, ToolCall{ID: id, Name: b.Name, Arguments: args})
		}
	}
	return Message{Content: text.String()}, calls
}

func (a *AnthropicAdapter) StreamComplete(ctx context.Context, req LLMRequest) iter.Seq[StreamChunk] {
	return func(yield func(StreamChunk) bool) {
		if a.client == nil {
			yield(StreamChunk{Err: errPrecondition("anthropic", "StreamComplete called outside an open HTTP scope")})
			return
		}

		body := a.buildRequest(req)
		body.Stream = true

		httpReq, err := a.newHTTPRequest(ctx, body)
		if err != nil {
			yield(StreamChunk{Err: err})
			return
		}

		resp, err := a.client.Do(ctx, httpReq)
		if err != nil {
			yield(StreamChunk{Err: fmt.Errorf("anthropic streaming request: %w", err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			yield(StreamChunk{Err: errProviderHTTP("anthropic", resp.StatusCode, string(raw))})
			return
		}

		toolCalls := make(map[int]*ToolCall)
		toolJSON := make(map[int]string)

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

			var ev anthropicStreamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				yield(StreamChunk{Err: errProviderProtocol("anthropic", err)})
				return
			}

			switch ev.Type {
			case "content_block_start":
				if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
					toolCalls[ev.Index] = &ToolCall{ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name}
					toolJSON[ev.Index] = ""
				}
			case "content_block_delta":
				if ev.Delta == nil {
					continue
				}
				if ev.Delta.Text != "" {
					if !yield(StreamChunk{DeltaContent: ev.Delta.Text}) {
						return
					}
				}
				if ev.Delta.Type == "input_json_delta" && ev.Delta.PartialJSON != "" {
					toolJSON[ev.Index] += ev.Delta.PartialJSON
				}
			case "content_block_stop":
				if tc, ok := toolCalls[ev.Index]; ok {
					if js := toolJSON[ev.Index]; js != "" {
						var args map[string]any
						if err := json.Unmarshal([]byte(js), &args); err == nil {
							tc.Arguments = args
						}
					}
					if !yield(StreamChunk{DeltaToolCall: tc}) {
						return
					}
				}
			case "message_stop":
				yield(StreamChunk{FinishReason: FinishStop})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(StreamChunk{Err: errProviderProtocol("anthropic", err)})
		}
	}
}
