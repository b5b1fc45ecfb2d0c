package llm

import "context"

// Conversation roles. The canonical conversation uses the flat
// messages shape the editor client speaks; adapters translate it to
// each backend's native format and never leak provider field names
// back out.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Turn is one message-equivalent unit in a conversation: user text,
// assistant text, an assistant tool call, or a tool result.
type Turn struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// TextTurn builds a plain text turn for the given role.
func TextTurn(role, content string) Turn {
	return Turn{Role: role, Content: &content}
}

// ToolCall is a structured tool invocation as carried on an assistant
// turn. Arguments stay JSON-encoded until the chat service parses them.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolInvocation is the parsed form of a tool call as emitted to
// clients and consumed by the agent loop.
type ToolInvocation struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Stream event types as delivered over SSE.
const (
	EventText     = "text"
	EventToolCall = "tool_call"
	EventDone     = "done"
	EventError    = "error"
)

// StreamEvent is one discrete event in a chat response stream. Exactly
// one terminal event (done, or error in its place) closes every stream.
type StreamEvent struct {
	Type     string          `json:"type"`
	Content  string          `json:"content,omitempty"`
	ToolCall *ToolInvocation `json:"tool_call,omitempty"`
}

// Result types returned by provider adapters.
const (
	ResultText      = "text"
	ResultToolCalls = "tool_calls"
)

// Result is the normalized outcome of one model call: either assistant
// text or a list of proposed tool calls, never both.
type Result struct {
	Type      string
	Text      string
	ToolCalls []ToolCall
}

// ToolSchema is the provider-neutral definition of one callable tool.
// Parameters is a JSON-schema object; each adapter renders it into the
// backend's native function-declaration format.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// GenerateRequest is the canonical request handed to a provider
// adapter for one chat turn.
type GenerateRequest struct {
	Messages []Turn
	System   string
	Tools    []ToolSchema
	Model    string
	APIKey   string
}

// CompletionRequest is the canonical request for a single-shot text
// continuation. No tool calling.
type CompletionRequest struct {
	Prompt string
	System string
	Model  string
	APIKey string
}

// Provider is the shared adapter interface. One implementation per
// backend family; provider-specific JSON shapes stay entirely inside
// the implementation.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *GenerateRequest) (*Result, error)
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}
