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

// GeminiAdapter implements Adapter for Dialect C: contents/parts with
// functionCall/functionResponse, systemInstruction, API key as query
// parameter, newline-delimited JSON streaming.
type GeminiAdapter struct {
	apiKey  string
	model   string
	baseURL string
	models  []string
	timeout time.Duration

	client *httpclient.Client
}

// SetTimeout overrides the per-request HTTP timeout used by subsequent
// Open calls. Applied from ProviderConfig.Metadata's request_timeout.
func (g *GeminiAdapter) SetTimeout(d time.Duration) { g.timeout = d }

func NewGeminiProvider(apiKey, model string) *GeminiAdapter {
	return &GeminiAdapter{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://generativelanguage.googleapis.com",
		models:  []string{model},
	}
}

func (g *GeminiAdapter) ProviderName() string          { return "gemini" }
func (g *GeminiAdapter) SupportedModels() []string      { return g.models }
func (g *GeminiAdapter) SupportsToolCalling() bool      { return true }
func (g *GeminiAdapter) SupportsStructuredOutput() bool { return true }

func (g *GeminiAdapter) Open() {
	if g.timeout > 0 {
		g.client = httpclient.Open(httpclient.WithTimeout(g.timeout))
		return
	}
	g.client = httpclient.Open()
}
func (g *GeminiAdapter) Close() error { err := g.client.Close(); g.client = nil; return err }

type geminiPart map[string]any

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiToolSet struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      *float64       `json:"temperature,omitempty"`
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiFunctionCallingConfig struct {
	Mode string `json:"mode"`
}

type geminiToolConfig struct {
	FunctionCallingConfig geminiFunctionCallingConfig `json:"functionCallingConfig"`
}

type geminiRequest struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiContent           `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig  `json:"generationConfig,omitempty"`
	Tools             []geminiToolSet          `json:"tools,omitempty"`
	ToolConfig        *geminiToolConfig        `json:"toolConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
	Error         *geminiError         `json:"error,omitempty"`
}

func (g *GeminiAdapter) buildRequest(req LLMRequest) geminiRequest {
	var contents []geminiContent
	var systemParts []geminiPart

	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			if msg.Content != "" {
				systemParts = append(systemParts, geminiPart{"text": msg.Content})
			}
			continue
		}

		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}

		var parts []geminiPart
		if msg.Content != "" {
			parts = append(parts, geminiPart{"text": msg.Content})
		}

		switch msg.Role {
		case RoleAssistant:
			for _, tc := range msg.ToolCalls {
				args, err := tc.Args()
				if err != nil {
					args = map[string]any{}
				}
				parts = append(parts, geminiPart{
					"functionCall": map[string]any{"name": tc.Name, "args": args},
				})
			}
		case RoleTool, RoleFunction:
			var response map[string]any
			if err := json.Unmarshal([]byte(msg.Content), &response); err != nil {
				response = map[string]any{"content": msg.Content}
			}
			parts = append(parts, geminiPart{
				"functionResponse": map[string]any{"name": msg.Name, "response": response},
			})
		}

		if len(parts) == 0 {
			continue
		}
		contents = append(contents, geminiContent{Role: role, Parts: parts})
	}

	out := geminiRequest{Contents: contents}

	if len(systemParts) > 0 {
		out.SystemInstruction = &geminiContent{Parts: systemParts}
	}

	genConfig := &geminiGenerationConfig{}
	if req.MaxTokens > 0 {
		genConfig.MaxOutputTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		t := req.Temperature
		genConfig.Temperature = &t
	}
	if req.StructuredOutput != nil {
		genConfig.ResponseMimeType = "application/json"
		genConfig.ResponseSchema = req.StructuredOutput.Schema
	}
	out.GenerationConfig = genConfig

	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = geminiFunctionDeclaration{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
		}
		out.Tools = []geminiToolSet{{FunctionDeclarations: decls}}
	}

	if req.ToolChoice != nil {
		mode := "AUTO"
		switch req.ToolChoice.Mode {
		case "required":
			mode = "ANY"
		case "none":
			mode = "NONE"
		}
		out.ToolConfig = &geminiToolConfig{FunctionCallingConfig: geminiFunctionCallingConfig{Mode: mode}}
	}

	return out
}

func geminiParseCandidate(c geminiCandidate) (Message, []ToolCall) {
	var text strings.Builder
	var calls []ToolCall
	for i, part := range c.Content.Parts {
		if t, ok := part["text"].(string); ok {
			text.WriteString(t)
		}
		if fc, ok := part["functionCall"].(map[string]any); ok {
			name, _ := fc["name"].(string)
			args, _ := fc["args"].(map[string]any)
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, ToolCall{ID: synthesizeToolCallID(i), Name: name, Arguments: args})
		}
	}
	return Message{Content: text.String()}, calls
}

func geminiFinishReason(s string) FinishReason {
	switch s {
	case "STOP":
		return FinishStop
	case "MAX_TOKENS":
		return FinishLength
	default:
		return FinishReason(s)
	}
}

func (g *GeminiAdapter) Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	if g.client == nil {
		return nil, errPrecondition("gemini", "Complete called outside an open HTTP scope")
	}

	body := g.buildRequest(req)
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, req.Model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errProviderProtocol("gemini", fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errProviderHTTP("gemini", resp.StatusCode, string(respBody))
	}

	var gr geminiResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, errProviderProtocol("gemini", err)
	}
	if gr.Error != nil {
		return nil, errProviderHTTP("gemini", gr.Error.Code, gr.Error.Message)
	}
	if len(gr.Candidates) == 0 {
		return nil, errProviderProtocol("gemini", fmt.Errorf("no candidates in response"))
	}

	message, toolCalls := geminiParseCandidate(gr.Candidates[0])
	message.Role = RoleAssistant
	message.ToolCalls = toolCalls

	usage := &Usage{}
	if gr.UsageMetadata != nil {
		usage.PromptTokens = gr.UsageMetadata.PromptTokenCount
		usage.CompletionTokens = gr.UsageMetadata.CandidatesTokenCount
		usage.TotalTokens = gr.UsageMetadata.TotalTokenCount
		if usage.TotalTokens == 0 {
			usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		}
	}

	return &LLMResponse{
		Model:        req.Model,
		Message:      message,
		Usage:        usage,
		FinishReason: geminiFinishReason(gr.Candidates[0].FinishReason),
		Raw:          json.RawMessage(respBody),
	}, nil
}

func (g *GeminiAdapter) StreamComplete(ctx context.Context, req LLMRequest) iter.Seq[StreamChunk] {
	return func(yield func(StreamChunk) bool) {
		if g.client == nil {
			yield(StreamChunk{Err: errPrecondition("gemini", "StreamComplete called outside an open HTTP scope")})
			return
		}

		body := g.buildRequest(req)
		raw, err := json.Marshal(body)
		if err != nil {
			yield(StreamChunk{Err: fmt.Errorf("marshal gemini request: %w", err)})
			return
		}

		url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?key=%s&alt=sse", g.baseURL, req.Model, g.apiKey)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
		if err != nil {
			yield(StreamChunk{Err: fmt.Errorf("build gemini request: %w", err)})
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(ctx, httpReq)
		if err != nil {
			yield(StreamChunk{Err: fmt.Errorf("gemini streaming request: %w", err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			yield(StreamChunk{Err: errProviderHTTP("gemini", resp.StatusCode, string(body))})
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			line = strings.TrimPrefix(line, "data: ")
			if strings.TrimSpace(line) == "" {
				continue
			}

			var gr geminiResponse
			if err := json.Unmarshal([]byte(line), &gr); err != nil {
				yield(StreamChunk{Err: errProviderProtocol("gemini", err)})
				return
			}
			if gr.Error != nil {
				yield(StreamChunk{Err: errProviderHTTP("gemini", gr.Error.Code, gr.Error.Message)})
				return
			}
			if len(gr.Candidates) == 0 {
				continue
			}

			message, toolCalls := geminiParseCandidate(gr.Candidates[0])
			if message.Content != "" {
				if !yield(StreamChunk{DeltaContent: message.Content}) {
					return
				}
			}
			for _, tc := range toolCalls {
				tc := tc
				if !yield(StreamChunk{DeltaToolCall: &tc}) {
					return
				}
			}
			if fr := gr.Candidates[0].FinishReason; fr != "" {
				if !yield(StreamChunk{FinishReason: geminiFinishReason(fr)}) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			yield(StreamChunk{Err: errProviderProtocol("gemini", err)})
		}
	}
}
