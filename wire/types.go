package wire

import (
	"bytes"
	"encoding/json"
)

// Block types appearing in message content arrays.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ToolDefinition declaratively exposes a callable capability to the backend.
// InputSchema is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Block is one element of a message content array. The Type discriminator
// selects which fields are meaningful.
type Block struct {
	Type string `json:"type"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockToolUse; Input is kept raw so malformed payloads can be dropped
	// individually during normalization.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// BlockToolResult
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// Content is a wire message body: a bare string for simple turns or a block
// array for tool traffic. Blocks takes precedence when non-nil.
type Content struct {
	Text   string
	Blocks []Block
}

// MarshalJSON emits either the bare string or the block array form.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Blocks != nil {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts null, a bare string, or a block array.
func (c *Content) UnmarshalJSON(data []byte) error {
	*c = Content{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &c.Blocks)
	}
	return json.Unmarshal(trimmed, &c.Text)
}

// Message is a single wire-level message.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Request captures a serialized conversation ready for a backend call.
type Request struct {
	Model       string           `json:"model"`
	System      string           `json:"system,omitempty"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	MaxTokens   int64            `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// FunctionCall is the OpenAI-style nested function object whose Arguments
// field is a JSON-encoded string.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ResponseToolCall is an OpenAI-style tool call entry on a choice message.
type ResponseToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// ChoiceMessage is the message body of an OpenAI-style choice. Content is a
// pointer so an absent/null field is distinguishable from empty text.
type ChoiceMessage struct {
	Role      string             `json:"role,omitempty"`
	Content   *string            `json:"content"`
	ToolCalls []ResponseToolCall `json:"tool_calls,omitempty"`
}

// Choice is one completion alternative in an OpenAI-style response.
type Choice struct {
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

// Response is a backend completion in either supported shape. Backends using
// the content-block shape populate Role/Content/StopReason; backends using
// the OpenAI-style shape populate Choices. Deserialize normalizes both.
type Response struct {
	Role       string  `json:"role,omitempty"`
	Content    Content `json:"content,omitempty"`
	StopReason string  `json:"stop_reason,omitempty"`

	Choices []Choice `json:"choices,omitempty"`
}
