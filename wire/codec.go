package wire

import (
	"encoding/json"
	"strings"

	"github.com/bobmatnyc/rustbot-sub001/core"
	"github.com/bobmatnyc/rustbot-sub001/logging"
)

// Codec translates between canonical messages and the wire format.
type Codec struct {
	logger logging.Logger
}

// NewCodec constructs a Codec. A nil logger selects NoOpLogger.
func NewCodec(logger logging.Logger) *Codec {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Codec{logger: logger}
}

// Params carries per-request generation settings.
type Params struct {
	Model       string
	MaxTokens   int64
	Temperature *float64
}

// Serialize maps a conversation snapshot plus tool schemas to a Request.
// A leading system message becomes the request's System field. The history
// is re-validated before serialization; a violation here means a bug
// upstream and fails the request with a protocol error instead of letting
// the backend reject a malformed payload non-deterministically.
func (c *Codec) Serialize(params Params, msgs []core.Message, tools []ToolDefinition) (*Request, error) {
	if err := validateHistory(msgs); err != nil {
		return nil, err
	}

	req := &Request{
		Model:       params.Model,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		Messages:    make([]Message, 0, len(msgs)),
	}
	for i, m := range msgs {
		if m.Role == core.RoleSystem && i == 0 {
			req.System = m.Content
			continue
		}
		req.Messages = append(req.Messages, EncodeMessage(m))
	}
	req.Tools = tools
	return req, nil
}

// EncodeMessage maps one canonical message to its wire form. Plain turns
// keep a string body; assistant messages with tool calls become a block
// array of an optional text block followed by one tool_use block per call;
// tool results become a user-role message carrying a tool_result block,
// since that is the role the backend expects for results.
func EncodeMessage(m core.Message) Message {
	switch m.Role {
	case core.RoleTool:
		return Message{
			Role: string(core.RoleUser),
			Content: Content{Blocks: []Block{{
				Type:      BlockToolResult,
				ToolUseID: m.ToolCallID,
				Content:   m.Content,
			}}},
		}
	case core.RoleAssistant:
		if !m.HasToolCalls() {
			return Message{Role: string(m.Role), Content: Content{Text: m.Content}}
		}
		blocks := make([]Block, 0, len(m.ToolCalls)+1)
		if m.Content != "" {
			blocks = append(blocks, Block{Type: BlockText, Text: m.Content})
		}
		for _, call := range m.ToolCalls {
			input, _ := json.Marshal(call.Arguments)
			blocks = append(blocks, Block{
				Type:  BlockToolUse,
				ID:    call.ID,
				Name:  call.Name,
				Input: input,
			})
		}
		return Message{Role: string(m.Role), Content: Content{Blocks: blocks}}
	default:
		return Message{Role: string(m.Role), Content: Content{Text: m.Content}}
	}
}

// DecodeMessage maps one wire message back to canonical form, the inverse of
// EncodeMessage. User-role messages whose body is a tool_result block decode
// to a tool message.
func (c *Codec) DecodeMessage(wm Message) (core.Message, error) {
	switch wm.Role {
	case string(core.RoleSystem):
		return core.NewSystemMessage(wm.Content.Text), nil
	case string(core.RoleUser):
		for _, b := range wm.Content.Blocks {
			if b.Type == BlockToolResult {
				return core.NewToolResultMessage(b.ToolUseID, b.Content), nil
			}
		}
		return core.NewUserMessage(contentText(wm.Content)), nil
	case string(core.RoleAssistant):
		text, calls := c.normalizeBlocks(wm.Content)
		if len(calls) == 0 {
			return core.NewAssistantMessage(text), nil
		}
		return core.NewAssistantToolCallMessage(text, calls), nil
	default:
		return core.Message{}, core.NewError(core.KindProtocol, "unknown wire role %q", wm.Role)
	}
}

// Deserialize normalizes a backend response into a canonical assistant
// message, accepting either supported shape. Individual tool calls whose
// argument payload fails to parse are dropped with a logged diagnostic; the
// remaining valid calls still proceed. Absent content with tool calls
// present normalizes to empty text.
func (c *Codec) Deserialize(resp *Response) (core.Message, error) {
	if resp == nil {
		return core.Message{}, core.NewError(core.KindProtocol, "nil backend response")
	}
	if len(resp.Choices) > 0 {
		return c.fromChoice(resp.Choices[0]), nil
	}
	if resp.Role == "" && resp.Content.Blocks == nil && resp.Content.Text == "" {
		return core.Message{}, core.NewError(core.KindProtocol, "backend response carries neither choices nor content")
	}
	if resp.Role != "" && resp.Role != string(core.RoleAssistant) {
		return core.Message{}, core.NewError(core.KindProtocol, "unexpected response role %q", resp.Role)
	}
	text, calls := c.normalizeBlocks(resp.Content)
	if len(calls) == 0 {
		return core.NewAssistantMessage(text), nil
	}
	return core.NewAssistantToolCallMessage(text, calls), nil
}

// fromChoice normalizes an OpenAI-style choice: null content becomes empty
// text and function-nested argument strings are parsed into structured form.
func (c *Codec) fromChoice(ch Choice) core.Message {
	var text string
	if ch.Message.Content != nil {
		text = *ch.Message.Content
	}
	var calls []core.ToolCall
	for _, tc := range ch.Message.ToolCalls {
		if tc.Function.Name == "" {
			c.logger.Warn("dropping tool call without function name", "call_id", tc.ID)
			continue
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				c.logger.Warn("dropping tool call with malformed arguments",
					"call_id", tc.ID, "tool", tc.Function.Name, "error", err.Error())
				continue
			}
		}
		id := tc.ID
		if id == "" {
			id = "call_" + core.NewID()
			c.logger.Warn("backend omitted tool call id, synthesizing", "tool", tc.Function.Name, "call_id", id)
		}
		calls = append(calls, core.ToolCall{ID: id, Name: tc.Function.Name, Arguments: args})
	}
	if len(calls) == 0 {
		return core.NewAssistantMessage(text)
	}
	return core.NewAssistantToolCallMessage(text, calls)
}

// normalizeBlocks folds a block-shaped body into text plus structured tool
// calls, dropping individually malformed tool_use inputs.
func (c *Codec) normalizeBlocks(body Content) (string, []core.ToolCall) {
	if body.Blocks == nil {
		return body.Text, nil
	}
	var sb strings.Builder
	var calls []core.ToolCall
	for _, b := range body.Blocks {
		switch b.Type {
		case BlockText:
			sb.WriteString(b.Text)
		case BlockToolUse:
			if b.Name == "" {
				c.logger.Warn("dropping tool_use block without name", "call_id", b.ID)
				continue
			}
			args := map[string]any{}
			if len(b.Input) > 0 && string(b.Input) != "null" {
				if err := json.Unmarshal(b.Input, &args); err != nil {
					c.logger.Warn("dropping tool_use block with malformed input",
						"call_id", b.ID, "tool", b.Name, "error", err.Error())
					continue
				}
			}
			id := b.ID
			if id == "" {
				id = "call_" + core.NewID()
				c.logger.Warn("backend omitted tool_use id, synthesizing", "tool", b.Name, "call_id", id)
			}
			calls = append(calls, core.ToolCall{ID: id, Name: b.Name, Arguments: args})
		}
	}
	return sb.String(), calls
}

func contentText(body Content) string {
	if body.Blocks == nil {
		return body.Text
	}
	var sb strings.Builder
	for _, b := range body.Blocks {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// validateHistory re-checks the history invariants the store already
// enforces. Unreachable given a well-behaved history; kept so a corrupted
// sequence is caught before the request is sent.
func validateHistory(msgs []core.Message) error {
	for i, m := range msgs {
		switch m.Role {
		case core.RoleSystem:
			if i != 0 {
				return core.NewError(core.KindProtocol, "system message at position %d, only the head may be system", i)
			}
		case core.RoleAssistant:
			if m.IsEmpty() {
				return core.NewError(core.KindProtocol, "assistant message at position %d has neither content nor tool calls", i)
			}
		case core.RoleTool:
			if !answersPrecedingCall(msgs[:i], m.ToolCallID) {
				return core.NewError(core.KindProtocol, "tool result %q at position %d does not answer a preceding call", m.ToolCallID, i)
			}
		}
	}
	return nil
}

func answersPrecedingCall(prefix []core.Message, callID string) bool {
	if callID == "" {
		return false
	}
	for i := len(prefix) - 1; i >= 0; i-- {
		m := prefix[i]
		if m.Role == core.RoleTool {
			continue
		}
		if m.Role != core.RoleAssistant {
			return false
		}
		for _, c := range m.ToolCalls {
			if c.ID == callID {
				return true
			}
		}
		return false
	}
	return false
}
