// Package contextmgr maintains the conversation transcript for an execution run.
//
// The transcript is monotonic: messages are only ever appended. Retry feedback,
// tool results, and assistant turns all accumulate so later attempts see the
// full history of what was tried and why it failed.
package contextmgr

import (
	"agentexec/pkg/llm"
	"agentexec/pkg/tokens"
)

// ContextManager accumulates conversation messages and tracks token usage.
// It is not safe for concurrent use; each run owns its own instance.
type ContextManager struct {
	messages []llm.CompletionMessage
}

// NewContextManager creates an empty context manager.
func NewContextManager() *ContextManager {
	return &ContextManager{
		messages: make([]llm.CompletionMessage, 0, 8),
	}
}

// AddSystemMessage appends a system instruction to the transcript.
func (cm *ContextManager) AddSystemMessage(content string) {
	cm.messages = append(cm.messages, llm.NewSystemMessage(content))
}

// AddUserMessage appends a user turn to the transcript.
func (cm *ContextManager) AddUserMessage(content string) {
	cm.messages = append(cm.messages, llm.NewUserMessage(content))
}

// AddAssistantMessage appends an assistant turn, including any tool calls the
// model made. Tool call parameters are deep-copied so later mutation by tool
// handlers cannot rewrite history.
func (cm *ContextManager) AddAssistantMessage(content string, toolCalls []llm.ToolCall) {
	copied := make([]llm.ToolCall, len(toolCalls))
	for i := range toolCalls {
		copied[i] = llm.ToolCall{
			ID:         toolCalls[i].ID,
			Name:       toolCalls[i].Name,
			Parameters: deepCopyMap(toolCalls[i].Parameters),
		}
	}
	cm.messages = append(cm.messages, llm.NewAssistantMessage(content, copied))
}

// AddToolResults appends a tool turn carrying execution results.
func (cm *ContextManager) AddToolResults(results []llm.ToolResult) {
	copied := make([]llm.ToolResult, len(results))
	copy(copied, results)
	cm.messages = append(cm.messages, llm.NewToolResultMessage(copied))
}

// Messages returns a deep copy of the transcript. Callers may hand the copy to
// a backend or mutate it freely without affecting the managed history.
func (cm *ContextManager) Messages() []llm.CompletionMessage {
	result := make([]llm.CompletionMessage, len(cm.messages))
	for i := range cm.messages {
		result[i] = cloneMessage(&cm.messages[i])
	}
	return result
}

// Len returns the number of messages in the transcript.
func (cm *ContextManager) Len() int {
	return len(cm.messages)
}

// CountTokens estimates the token footprint of the transcript.
func (cm *ContextManager) CountTokens() int {
	total := 0
	for i := range cm.messages {
		total += tokens.CountSimple(cm.messages[i].Content)
		for j := range cm.messages[i].ToolResults {
			total += tokens.CountSimple(cm.messages[i].ToolResults[j].Content)
		}
	}
	return total
}

func cloneMessage(m *llm.CompletionMessage) llm.CompletionMessage {
	out := llm.CompletionMessage{
		Role:    m.Role,
		Content: m.Content,
	}
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]llm.ToolCall, len(m.ToolCalls))
		for i := range m.ToolCalls {
			out.ToolCalls[i] = llm.ToolCall{
				ID:         m.ToolCalls[i].ID,
				Name:       m.ToolCalls[i].Name,
				Parameters: deepCopyMap(m.ToolCalls[i].Parameters),
			}
		}
	}
	if len(m.ToolResults) > 0 {
		out.ToolResults = make([]llm.ToolResult, len(m.ToolResults))
		copy(out.ToolResults, m.ToolResults)
	}
	return out
}

// deepCopyMap recursively copies a JSON-shaped map. Values that are neither
// maps nor slices are assumed immutable.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return deepCopyMap(tv)
	case []any:
		out := make([]any, len(tv))
		for i := range tv {
			out[i] = deepCopyValue(tv[i])
		}
		return out
	default:
		return v
	}
}
