package domain

import "encoding/json"

// ToolDefinition describes one tool advertised to the LLM and to the
// remote execution service. Definitions are immutable after process start.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolSchema is the wire-facing view of a definition attached to a
// completion request.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Schema returns the definition in completion-request form.
func (d ToolDefinition) Schema() ToolSchema {
	return ToolSchema{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
}

// ToolCall is an LLM's request to invoke a tool. ID correlates the call
// with its result across the provider round-trip.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing one tool call. Every dispatched
// ToolCall produces exactly one ToolResult with a matching ToolCallID,
// even when execution failed (IsError=true, never a dropped response).
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}
