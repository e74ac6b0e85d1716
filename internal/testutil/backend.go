// Package testutil contains helper builders and a scripted backend used
// across tests to reduce boilerplate when constructing wire responses and
// driving multi-call rounds deterministically. They are not intended for
// production usage.
package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bobmatnyc/rustbot-sub001/backend"
	"github.com/bobmatnyc/rustbot-sub001/core"
	"github.com/bobmatnyc/rustbot-sub001/wire"
)

// ScriptedBackend replays a fixed sequence of responses, one per Complete
// call, recording every request it receives. When the script runs out it
// returns its Exhausted error (or a protocol error by default).
type ScriptedBackend struct {
	mu        sync.Mutex
	script    []scriptStep
	Requests  []*wire.Request
	Exhausted error
}

type scriptStep struct {
	resp *wire.Response
	err  error
}

// NewScriptedBackend creates an empty scripted backend; chain Respond /
// RespondErr to build the script.
func NewScriptedBackend() *ScriptedBackend { return &ScriptedBackend{} }

// Respond appends a successful response to the script (chainable).
func (s *ScriptedBackend) Respond(resp *wire.Response) *ScriptedBackend {
	s.script = append(s.script, scriptStep{resp: resp})
	return s
}

// RespondErr appends a failing call to the script (chainable).
func (s *ScriptedBackend) RespondErr(err error) *ScriptedBackend {
	s.script = append(s.script, scriptStep{err: err})
	return s
}

// Complete implements backend.Backend.
func (s *ScriptedBackend) Complete(_ context.Context, req *wire.Request) (*wire.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, req)
	if len(s.script) == 0 {
		if s.Exhausted != nil {
			return nil, s.Exhausted
		}
		return nil, core.NewError(core.KindProtocol, "scripted backend exhausted after %d calls", len(s.Requests))
	}
	step := s.script[0]
	s.script = s.script[1:]
	return step.resp, step.err
}

// Info implements backend.Backend.
func (s *ScriptedBackend) Info() backend.Info {
	return backend.Info{Name: "scripted", Provider: "test", SupportsTools: true}
}

// Calls returns how many Complete calls the backend has served.
func (s *ScriptedBackend) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

// TextResponse builds a block-shaped assistant response carrying only text.
func TextResponse(text string) *wire.Response {
	return &wire.Response{
		Role:       "assistant",
		Content:    wire.Content{Blocks: []wire.Block{{Type: "text", Text: text}}},
		StopReason: "end_turn",
	}
}

// ToolUseResponse builds a block-shaped assistant response requesting one
// tool call, with optional leading text.
func ToolUseResponse(text, callID, toolName string, args map[string]any) *wire.Response {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	var blocks []wire.Block
	if text != "" {
		blocks = append(blocks, wire.Block{Type: "text", Text: text})
	}
	blocks = append(blocks, wire.Block{
		Type:  "tool_use",
		ID:    callID,
		Name:  toolName,
		Input: raw,
	})
	return &wire.Response{
		Role:       "assistant",
		Content:    wire.Content{Blocks: blocks},
		StopReason: "tool_use",
	}
}

// ChoicesTextResponse builds an OpenAI-shaped response carrying only text.
func ChoicesTextResponse(text string) *wire.Response {
	return &wire.Response{
		Choices: []wire.Choice{{
			Message:      wire.ChoiceMessage{Content: &text},
			FinishReason: "stop",
		}},
	}
}

// ChoicesToolResponse builds an OpenAI-shaped response requesting one tool
// call with JSON-string arguments.
func ChoicesToolResponse(callID, toolName string, args map[string]any) *wire.Response {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return &wire.Response{
		Choices: []wire.Choice{{
			Message: wire.ChoiceMessage{
				ToolCalls: []wire.ResponseToolCall{{
					ID:       callID,
					Type:     "function",
					Function: wire.FunctionCall{Name: toolName, Arguments: string(raw)},
				}},
			},
			FinishReason: "tool_calls",
		}},
	}
}
