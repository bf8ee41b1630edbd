package llm

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls are set on assistant messages that request tools.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`

	// ToolCallID links a tool message back to the call it answers.
	ToolCallID string `json:"toolCallId,omitempty"`
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds a plain assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// AssistantToolCalls builds an assistant message requesting tools.
func AssistantToolCalls(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage builds a tool result message for one call.
func ToolMessage(callID string, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// ToolDefinition describes one callable tool to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Completion is the final outcome of one model call.
type Completion struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason string
	Tokens       int
}

// ChunkType discriminates streaming chunks.
type ChunkType string

const (
	ChunkText     ChunkType = "text"
	ChunkToolCall ChunkType = "tool_call"
	ChunkDone     ChunkType = "done"
	ChunkError    ChunkType = "error"
)

// StreamChunk is one unit of a streamed completion. Text chunks arrive
// as the model produces them; tool calls arrive fully assembled once
// the stream finishes them.
type StreamChunk struct {
	Type     ChunkType
	Text     string
	ToolCall *ToolCall
	Tokens   int
	Err      error
}

// Provider is a chat completion backend.
type Provider interface {
	// Complete runs one blocking completion.
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Completion, error)

	// Stream runs one streaming completion. The channel is closed after
	// a done or error chunk.
	Stream(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error)

	// Model returns the configured model name.
	Model() string

	// MaxInputTokens returns the prompt budget for pruning.
	MaxInputTokens() int
}
