// Package llm provides the chat interface to the local model backend.
package llm

import (
	"context"

	"github.com/ollama/ollama/api"
)

// Message roles exchanged with the model.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCallRequest is a tool invocation the model asked for. It references
// a tool by name and carries the arguments the model chose; it is distinct
// from an execution record.
type ToolCallRequest struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is a single conversation message in model terms.
type Message struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	ToolCalls []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolName  string            `json:"tool_name,omitempty"`
}

// ChatResponse is the result of one synchronous round-trip.
type ChatResponse struct {
	Message    Message
	DoneReason string
}

// Health reports backend availability and the models it serves.
type Health struct {
	Available bool     `json:"available"`
	Models    []string `json:"models"`
}

// Client is the minimal surface the reasoning loop needs from a model
// backend. Implementations must not retry; retry policy belongs to the
// caller.
type Client interface {
	// Chat performs one synchronous round-trip. The assistant message may
	// carry tool calls.
	Chat(ctx context.Context, messages []Message, tools []api.Tool) (*ChatResponse, error)

	// ChatStream performs the same round-trip but emits content fragments
	// through onToken as they arrive and returns the aggregated content.
	// Tool calls never travel on the streamed path.
	ChatStream(ctx context.Context, messages []Message, tools []api.Tool, onToken func(string)) (string, error)

	// Health checks backend availability.
	Health(ctx context.Context) (*Health, error)
}
