// Package tools holds the capabilities the generation gateway may call on the
// model's behalf.
package tools

import (
	"context"
	"strings"
)

// ToolSpec describes how the gateway should present a tool to the model.
type ToolSpec struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema map[string]any   `json:"input_schema"`
	Examples    []map[string]any `json:"examples,omitempty"`
}

// ToolRequest captures an invocation request for a tool.
type ToolRequest struct {
	SessionID string
	Arguments map[string]any
}

// ToolResponse represents the structured response returned by a tool.
type ToolResponse struct {
	Content  string
	Metadata map[string]string
}

// Tool exposes structured metadata and an invocation handler.
type Tool interface {
	Spec() ToolSpec
	Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

// StringArg returns a trimmed string argument, or "" when absent or not a string.
func (r ToolRequest) StringArg(name string) string {
	v, _ := r.Arguments[name].(string)
	return strings.TrimSpace(v)
}
