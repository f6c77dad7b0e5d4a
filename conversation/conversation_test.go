package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/reasonkit/llm"
)

func TestManagerSystemMessagePinnedAtIndexZero(t *testing.T) {
	m := New(WithSystemMessage("be helpful"))
	m.AddUserMessage("hi")
	msgs := m.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, "be helpful", msgs[0].Content)
}

func TestManagerSetSystemMessageReplacesExisting(t *testing.T) {
	m := New(WithSystemMessage("first"))
	m.AddUserMessage("hi")
	m.SetSystemMessage("second")

	msgs := m.Messages()
	systemCount := 0
	for _, msg := range msgs {
		if msg.Role == llm.RoleSystem {
			systemCount++
			assert.Equal(t, "second", msg.Content)
		}
	}
	assert.Equal(t, 1, systemCount)
}

func TestManagerTrimByMaxMessagesPreservesSystem(t *testing.T) {
	m := New(WithSystemMessage("sys"), WithMaxMessages(2))
	m.AddUserMessage("one")
	m.AddUserMessage("two")
	m.AddUserMessage("three")

	msgs := m.Messages()
	require.Equal(t, llm.RoleSystem, msgs[0].Role, "system message must survive trimming")
	require.Len(t, msgs, 3) // system + 2 kept
	assert.Equal(t, "two", msgs[1].Content)
	assert.Equal(t, "three", msgs[2].Content)
}

func TestManagerPendingToolCalls(t *testing.T) {
	m := New()
	m.AddAssistantMessage("", []llm.ToolCall{
		{ID: "call_1", Name: "calculator"},
		{ID: "call_2", Name: "web_search"},
	})
	m.AddToolResult("call_1", "calculator", "4")

	pending := m.PendingToolCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, "call_2", pending[0].ID)
}

func TestManagerPendingToolCallsNoneWhenAllResolved(t *testing.T) {
	m := New()
	m.AddAssistantMessage("", []llm.ToolCall{{ID: "call_1", Name: "calculator"}})
	m.AddToolResult("call_1", "calculator", "4")
	assert.Empty(t, m.PendingToolCalls())
}

func TestManagerClearKeepsSystemWhenRequested(t *testing.T) {
	m := New(WithSystemMessage("sys"))
	m.AddUserMessage("hi")
	m.Clear(true)
	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
}

func TestManagerClearDropsEverythingWhenNotKeeping(t *testing.T) {
	m := New(WithSystemMessage("sys"))
	m.AddUserMessage("hi")
	m.Clear(false)
	assert.Equal(t, 0, m.Len())
}

func TestExtractFinalAnswerEnglishStopPhrase(t *testing.T) {
	text := "Thought: I know this.\nFinal Answer: 42"
	answer, ok := ExtractFinalAnswer(text, []string{"Final Answer:"})
	require.True(t, ok)
	assert.Equal(t, "42", answer)
}

func TestExtractFinalAnswerChineseStopPhrase(t *testing.T) {
	text := "思考：已完成。\n最终答案：42"
	answer, ok := ExtractFinalAnswer(text, []string{"最终答案："})
	require.True(t, ok)
	assert.Equal(t, "42", answer)
}

func TestExtractFinalAnswerCaseInsensitive(t *testing.T) {
	text := "final answer: forty-two"
	answer, ok := ExtractFinalAnswer(text, []string{"Final Answer:"})
	require.True(t, ok)
	assert.Equal(t, "forty-two", answer)
}

func TestExtractFinalAnswerNoMatch(t *testing.T) {
	_, ok := ExtractFinalAnswer("nothing relevant here", []string{"Final Answer:"})
	assert.False(t, ok)
}

func TestExtractFinalAnswerStripsSeparators(t *testing.T) {
	for _, sep := range []string{"-", ":", "：", "—"} {
		text := "Final Answer" + sep + " 42"
		answer, ok := ExtractFinalAnswer(text, []string{"Final Answer"})
		require.True(t, ok, "separator %q", sep)
		assert.Equal(t, "42", answer, "separator %q", sep)
	}
}

func TestFormatToolResultForLLMSuccess(t *testing.T) {
	got := FormatToolResultForLLM("calculator", true, 4, "")
	assert.Equal(t, "Tool 'calculator' executed successfully.\nResult: 4", got)
}

func TestFormatToolResultForLLMFailure(t *testing.T) {
	got := FormatToolResultForLLM("calculator", false, nil, "division_by_zero")
	assert.Equal(t, "Tool 'calculator' failed.\nError: division_by_zero", got)
}

func TestCreateReActSystemMessageListsTools(t *testing.T) {
	msg := CreateReActSystemMessage([]string{"calculator", "web_search"})
	for _, substr := range []string{"calculator", "web_search", "Thought", "Action", "Observation"} {
		assert.Contains(t, msg, substr)
	}
}
