package contextmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentexec/pkg/llm"
)

func TestAddMessagesPreservesOrder(t *testing.T) {
	cm := NewContextManager()
	cm.AddSystemMessage("rules")
	cm.AddUserMessage("task")
	cm.AddAssistantMessage("working", nil)
	cm.AddToolResults([]llm.ToolResult{{ToolCallID: "c1", Content: "done"}})

	msgs := cm.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Equal(t, llm.RoleTool, msgs[3].Role)
	assert.Equal(t, 4, cm.Len())
}

func TestMessagesReturnsIndependentCopy(t *testing.T) {
	cm := NewContextManager()
	cm.AddUserMessage("original")
	cm.AddAssistantMessage("", []llm.ToolCall{
		{ID: "c1", Name: "tool", Parameters: map[string]any{"nested": map[string]any{"k": "v"}}},
	})

	msgs := cm.Messages()
	msgs[0].Content = "mutated"
	msgs[1].ToolCalls[0].Parameters["nested"].(map[string]any)["k"] = "changed"

	fresh := cm.Messages()
	assert.Equal(t, "original", fresh[0].Content)
	assert.Equal(t, "v", fresh[1].ToolCalls[0].Parameters["nested"].(map[string]any)["k"])
}

func TestAddAssistantMessageCopiesParameters(t *testing.T) {
	cm := NewContextManager()
	params := map[string]any{"key": "before"}
	cm.AddAssistantMessage("", []llm.ToolCall{{ID: "c1", Name: "tool", Parameters: params}})

	// Caller mutates its own map after the fact
	params["key"] = "after"

	msgs := cm.Messages()
	assert.Equal(t, "before", msgs[0].ToolCalls[0].Parameters["key"])
}

func TestTranscriptIsMonotonic(t *testing.T) {
	cm := NewContextManager()
	cm.AddUserMessage("attempt 1 prompt")
	cm.AddAssistantMessage("bad output", nil)
	cm.AddUserMessage("validation feedback")
	cm.AddAssistantMessage("better output", nil)

	msgs := cm.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "attempt 1 prompt", msgs[0].Content)
	assert.Equal(t, "validation feedback", msgs[2].Content)
}

func TestCountTokens(t *testing.T) {
	cm := NewContextManager()
	assert.Equal(t, 0, cm.CountTokens())

	cm.AddUserMessage("some words that take up tokens in the transcript")
	first := cm.CountTokens()
	assert.Positive(t, first)

	cm.AddToolResults([]llm.ToolResult{{ToolCallID: "c1", Content: "a sizable tool result payload"}})
	assert.Greater(t, cm.CountTokens(), first)
}
