package core

import "github.com/google/uuid"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem marks the pinned instruction message at the head of a history.
	RoleSystem Role = "system"
	// RoleUser marks a caller-submitted utterance.
	RoleUser Role = "user"
	// RoleAssistant marks a model-produced message, optionally carrying tool calls.
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of executing a single tool call.
	RoleTool Role = "tool"
)

// ToolCall is a model-issued request to invoke a named capability. The ID is
// an opaque backend-issued identifier, unique within its originating
// assistant message, used to correlate the eventual result. Arguments are
// structured data parsed at the protocol boundary, never a raw string.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is one turn unit of a conversation. ToolCalls is populated only on
// assistant messages; ToolCallID only on tool messages, referencing the
// ToolCall it answers. Messages are immutable once appended to a history:
// construct them with the New* helpers and treat them as values afterwards.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// NewSystemMessage constructs a system instruction message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage constructs a user utterance message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage constructs a plain assistant text message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewAssistantToolCallMessage constructs an assistant message carrying tool
// calls; content may be empty because the calls satisfy non-emptiness.
func NewAssistantToolCallMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolResultMessage constructs a tool message answering the call with the
// given id. Failed executions are reported the same way, with result carrying
// the error description, so the backend always sees a coherent conversation.
func NewToolResultMessage(callID, result string) Message {
	return Message{Role: RoleTool, Content: result, ToolCallID: callID}
}

// HasToolCalls reports whether the message carries at least one tool call.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// IsEmpty reports whether the message has neither content nor tool calls.
// Such assistant messages violate the history non-emptiness invariant and
// are never stored.
func (m Message) IsEmpty() bool { return m.Content == "" && len(m.ToolCalls) == 0 }

// CallIDs returns the ids of the message's tool calls in order.
func (m Message) CallIDs() []string {
	if len(m.ToolCalls) == 0 {
		return nil
	}
	ids := make([]string, len(m.ToolCalls))
	for i, c := range m.ToolCalls {
		ids[i] = c.ID
	}
	return ids
}

// NewID generates a unique identifier for conversations, runtimes and
// synthetic tool-call correlation.
func NewID() string { return uuid.NewString() }
