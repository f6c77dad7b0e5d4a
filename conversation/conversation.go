// Package conversation manages the ordered message history a reasoning
// engine exchanges with an LLM provider: system-message pinning,
// context-window trimming, and pending-tool-call bookkeeping.
package conversation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tessera-ai/reasonkit/llm"
)

// TokenEstimator estimates how many tokens a string will cost once
// serialized into a provider request. The default is a rough 4
// characters-per-token heuristic; callers with a real tokenizer can
// plug it in via WithTokenEstimator.
type TokenEstimator func(string) int

func defaultTokenEstimator(s string) int { return len(s) / 4 }

// Manager holds an ordered, pinned-system-message conversation and
// enforces count/token limits as messages are appended.
type Manager struct {
	mu             sync.Mutex
	messages       []llm.Message
	systemMessage  string
	maxMessages    int
	maxTokens      int
	tokenEstimator TokenEstimator
}

type Option func(*Manager)

func WithSystemMessage(content string) Option {
	return func(m *Manager) { m.systemMessage = content }
}

func WithMaxMessages(n int) Option {
	return func(m *Manager) { m.maxMessages = n }
}

func WithMaxTokens(n int) Option {
	return func(m *Manager) { m.maxTokens = n }
}

func WithTokenEstimator(f TokenEstimator) Option {
	return func(m *Manager) { m.tokenEstimator = f }
}

func New(opts ...Option) *Manager {
	m := &Manager{tokenEstimator: defaultTokenEstimator}
	for _, opt := range opts {
		opt(m)
	}
	if m.systemMessage != "" {
		m.setSystemMessage(m.systemMessage)
	}
	return m
}

// setSystemMessage removes any existing system message and pins the
// new one at index 0. Callers must hold m.mu.
func (m *Manager) setSystemMessage(content string) {
	filtered := m.messages[:0:0]
	for _, msg := range m.messages {
		if msg.Role != llm.RoleSystem {
			filtered = append(filtered, msg)
		}
	}
	m.messages = append([]llm.Message{{Role: llm.RoleSystem, Content: content}}, filtered...)
}

// SetSystemMessage replaces the pinned system message, inserting one
// at index 0 if none exists yet.
func (m *Manager) SetSystemMessage(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systemMessage = content
	m.setSystemMessage(content)
}

func (m *Manager) AddUserMessage(content string) {
	m.Add(llm.Message{Role: llm.RoleUser, Content: content})
}

func (m *Manager) AddAssistantMessage(content string, toolCalls []llm.ToolCall) {
	m.Add(llm.Message{Role: llm.RoleAssistant, Content: content, ToolCalls: toolCalls})
}

func (m *Manager) AddToolResult(toolCallID, toolName, content string) {
	m.Add(llm.Message{Role: llm.RoleTool, Content: content, ToolCallID: toolCallID, Name: toolName})
}

// Add appends a message and trims the history to the configured
// limits.
func (m *Manager) Add(msg llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	m.trim()
}

// Messages returns a defensive copy of the full message history.
func (m *Manager) Messages() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// RecentMessages returns the system message (if any) followed by the
// n most recent non-system messages.
func (m *Manager) RecentMessages(n int) []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var system []llm.Message
	var rest []llm.Message
	for _, msg := range m.messages {
		if msg.Role == llm.RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}
	if n < len(rest) {
		rest = rest[len(rest)-n:]
	}
	return append(system, rest...)
}

// LastAssistantMessage returns the most recent assistant message, if
// any.
func (m *Manager) LastAssistantMessage() (llm.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == llm.RoleAssistant {
			return m.messages[i], true
		}
	}
	return llm.Message{}, false
}

// PendingToolCalls returns the tool calls from the last assistant
// message that have not yet received a tool-result message.
func (m *Manager) PendingToolCalls() []llm.ToolCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lastAssistant *llm.Message
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == llm.RoleAssistant {
			lastAssistant = &m.messages[i]
			break
		}
	}
	if lastAssistant == nil || len(lastAssistant.ToolCalls) == 0 {
		return nil
	}

	responded := make(map[string]struct{})
	for _, msg := range m.messages {
		if msg.Role == llm.RoleTool && msg.ToolCallID != "" {
			responded[msg.ToolCallID] = struct{}{}
		}
	}

	var pending []llm.ToolCall
	for _, tc := range lastAssistant.ToolCalls {
		if _, ok := responded[tc.ID]; !ok {
			pending = append(pending, tc)
		}
	}
	return pending
}

// Clear empties the conversation, optionally preserving the pinned
// system message.
func (m *Manager) Clear(keepSystem bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keepSystem && len(m.messages) > 0 && m.messages[0].Role == llm.RoleSystem {
		m.messages = m.messages[:1:1]
		return
	}
	m.messages = nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// trim enforces max-message-count then max-estimated-token limits,
// always preserving the pinned system message. Callers must hold m.mu.
func (m *Manager) trim() {
	if m.maxMessages <= 0 && m.maxTokens <= 0 {
		return
	}

	var system []llm.Message
	var rest []llm.Message
	for _, msg := range m.messages {
		if msg.Role == llm.RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	if m.maxMessages > 0 && len(rest) > m.maxMessages {
		rest = rest[len(rest)-m.maxMessages:]
	}

	if m.maxTokens > 0 {
		for m.estimateTokens(system, rest) > m.maxTokens && len(rest) > 1 {
			rest = rest[1:]
		}
	}

	m.messages = append(system, rest...)
}

func (m *Manager) estimateTokens(system, rest []llm.Message) int {
	var total int
	count := func(msgs []llm.Message) {
		for _, msg := range msgs {
			if msg.Content != "" {
				total += m.tokenEstimator(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				total += m.tokenEstimator(tc.Name)
				if s, ok := tc.Arguments.(string); ok {
					total += m.tokenEstimator(s)
				}
			}
		}
	}
	count(system)
	count(rest)
	return total
}

// Summary holds aggregate statistics over a conversation.
type Summary struct {
	TotalMessages       int
	ByRole              map[llm.Role]int
	EstimatedTokens     int
	HasPendingToolCalls bool
}

func (m *Manager) Summary() Summary {
	m.mu.Lock()
	messages := make([]llm.Message, len(m.messages))
	copy(messages, m.messages)
	m.mu.Unlock()

	byRole := make(map[llm.Role]int)
	for _, msg := range messages {
		byRole[msg.Role]++
	}

	return Summary{
		TotalMessages:       len(messages),
		ByRole:              byRole,
		EstimatedTokens:     m.estimateTokens(nil, messages),
		HasPendingToolCalls: len(m.PendingToolCalls()) > 0,
	}
}

// FormatToolResultForLLM renders a tool's execution result into the
// string a tool-role message should carry back to the model.
func FormatToolResultForLLM(toolName string, success bool, output any, errMsg string) string {
	if success {
		return "Tool '" + toolName + "' executed successfully.\nResult: " + toString(output)
	}
	return "Tool '" + toolName + "' failed.\nError: " + errMsg
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ExtractFinalAnswer looks for the first stop phrase present in text
// (case-insensitively) and returns whatever follows it, with a
// leading "-", ":", "：", or "—" separator stripped. It reports
// whether a stop phrase was found.
func ExtractFinalAnswer(text string, stopPhrases []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range stopPhrases {
		phraseLower := strings.ToLower(phrase)
		idx := strings.Index(lower, phraseLower)
		if idx == -1 {
			continue
		}
		answer := strings.TrimSpace(text[idx+len(phrase):])
		for _, prefix := range []string{"-", ":", "：", "—"} {
			if strings.HasPrefix(answer, prefix) {
				answer = strings.TrimSpace(answer[len(prefix):])
				break
			}
		}
		return answer, true
	}
	return "", false
}

// CreateReActSystemMessage builds the system prompt instructing the
// model to follow the Thought/Action/Observation pattern, listing the
// tools currently available to it.
func CreateReActSystemMessage(availableTools []string) string {
	var b strings.Builder
	b.WriteString("You are a helpful AI assistant that can use tools to accomplish tasks.\n\n")
	b.WriteString("Available tools:\n")
	for _, t := range availableTools {
		b.WriteString("- ")
		b.WriteString(t)
		b.WriteString("\n")
	}
	b.WriteString("\nWhen solving a problem, follow the ReAct (Reasoning and Acting) pattern:\n")
	b.WriteString("1. Thought: think about what you need to do next\n")
	b.WriteString("2. Action: choose a tool to use and specify its arguments\n")
	b.WriteString("3. Observation: analyze the tool's result\n")
	b.WriteString("4. Repeat: continue until you can provide a final answer\n\n")
	b.WriteString("When you have gathered enough information and can answer the question, provide your final answer clearly.\n\n")
	b.WriteString("Be systematic and thorough in your reasoning. Break down complex problems into smaller steps.\n")
	return b.String()
}
