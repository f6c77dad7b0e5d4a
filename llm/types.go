// Package llm implements the provider-neutral request/response schema
// (C1), the four wire-dialect adapters (C2), and the provider registry
// and YAML config loader (C3).
package llm

import (
	"encoding/json"
	"fmt"
)

// Role is the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleFunction  Role = "function"
)

// Message is one turn in a conversation, provider-neutral.
type Message struct {
	Role Role `json:"role"`

	// Content is the textual body. Optional for assistant messages that
	// carry only ToolCalls.
	Content string `json:"content,omitempty"`

	// ToolCalls is only set when Role == RoleAssistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and Name are only set when Role == RoleTool: ToolCallID
	// identifies which earlier assistant ToolCall this result answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ToolCall is a model-issued request to invoke a tool.
type ToolCall struct {
	// ID is opaque and unique within a chain.
	ID   string `json:"id"`
	Name string `json:"name"`

	// Arguments is the raw carrier form: either a JSON-encoded string or
	// an already-decoded object, depending on which dialect produced it.
	// Use Args() to get a decoded map regardless of carrier form.
	Arguments any `json:"arguments"`
}

// Args returns ToolCall.Arguments decoded into a map, regardless of
// whether the adapter delivered it as a JSON string or a native object.
func (tc ToolCall) Args() (map[string]any, error) {
	switch v := tc.Arguments.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		if v == "" {
			return map[string]any{}, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("decode tool call arguments: %w", err)
		}
		return out, nil
	default:
		// Round-trip through JSON for any other concrete type
		// (e.g. map[string]interface{} produced by a different decoder).
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("re-encode tool call arguments: %w", err)
		}
		var out map[string]any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode re-encoded tool call arguments: %w", err)
		}
		return out, nil
	}
}

// ToolDefinition describes a callable tool to a provider.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// StructuredOutputSchema requests a shaped JSON response from the model.
type StructuredOutputSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
	Strict      bool           `json:"strict"`
}

// ToolChoice selects how the model may use tools. Mode is one of
// "auto"/"none"/"required"; the OpenAI and Anthropic adapters take any
// other non-empty Mode as the name of a specific tool to force. No
// adapter reads Name.
type ToolChoice struct {
	Mode string
	Name string
}

// Usage reports token accounting for a single completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMRequest is the provider-neutral request submitted through an Adapter.
type LLMRequest struct {
	Messages          []Message
	Model             string
	Temperature       float64 // 0 means unset, see DefaultTemperature
	MaxTokens         int     // 0 means unset
	Tools             []ToolDefinition
	ToolChoice        *ToolChoice
	StructuredOutput  *StructuredOutputSchema
	Stream            bool
	TopP              float64 // 0 means unset
	StopSequences     []string
}

// DefaultTemperature is substituted by the OpenAI-dialect adapter when a
// request leaves Temperature at 0. The Anthropic and Gemini adapters send
// no temperature in that case, so the backend's own default applies.
const DefaultTemperature = 0.7

// FinishReason mirrors the terminal condition a provider reports for a
// completion.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength         FinishReason = "length"
	FinishToolCalls      FinishReason = "tool_calls"
	FinishContentFilter  FinishReason = "content_filter"
)

// LLMResponse is the provider-neutral result of a non-streaming completion.
type LLMResponse struct {
	ID           string
	Model        string
	Message      Message // always Role == RoleAssistant
	Usage        *Usage
	FinishReason FinishReason

	// Raw retains the provider's verbatim payload for debugging.
	Raw json.RawMessage
}

// StreamChunk is one incremental piece of a streaming completion.
type StreamChunk struct {
	ID           string
	Model        string
	DeltaContent string     // incremental assistant text, if any
	DeltaToolCall *ToolCall // incremental/complete tool call, if any
	FinishReason FinishReason
	Err          error
}
