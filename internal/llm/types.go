// Package llm provides LLM client implementations.
package llm

import (
	"fmt"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message roles. The first message of every conversation is "system";
// a "tool" message always follows the assistant message that requested
// it and carries the same ToolCallID.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reasons, provider-neutral.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Images     []string   `json:"images,omitempty"`       // Base64-encoded attachments
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // Set on assistant messages
	ToolCallID string     `json:"tool_call_id,omitempty"` // Set on tool responses
}

// ToolCall represents a tool call requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"` // Provider-assigned ID for result correlation
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its untyped arguments.
// Arguments are validated by the tool itself, not here.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ChatResponse is the unified response from any LLM provider.
// Wire format conversion happens at provider boundaries
// (openai.go, anthropic.go).
type ChatResponse struct {
	Model        string
	Message      Message
	FinishReason string

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int
}

// WantsTools reports whether the model requested tool execution.
func (r *ChatResponse) WantsTools() bool {
	return len(r.Message.ToolCalls) > 0
}

// APIError is a non-2xx provider response. The retry policy classifies
// it by status code; everything else about it is opaque.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.Status, e.Body)
}
