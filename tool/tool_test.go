package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmatnyc/rustbot-sub001/agent"
	"github.com/bobmatnyc/rustbot-sub001/core"
)

func echoTool() *FunctionTool {
	return NewFunctionTool(
		"echo",
		"Echo the provided text back verbatim",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		func(_ context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	)
}

func testAgents() []agent.Config {
	return []agent.Config{agent.DefaultAssistant(), agent.WebSearch()}
}

// -------------------- Router --------------------

func TestRouterResolvesLocalAndSpecialist(t *testing.T) {
	r, err := NewRouter([]Tool{echoTool()}, testAgents())
	require.NoError(t, err)

	h, ok := r.Resolve("echo")
	require.True(t, ok)
	assert.Equal(t, HandlerLocal, h.Kind)

	h, ok = r.Resolve("web_search")
	require.True(t, ok)
	assert.Equal(t, HandlerSpecialist, h.Kind)
	assert.Equal(t, "web_search", h.Agent.ID)

	_, ok = r.Resolve("assistant") // primary is never a tool
	assert.False(t, ok)

	_, ok = r.Resolve("missing")
	assert.False(t, ok)
}

func TestRouterSkipsDisabledSpecialists(t *testing.T) {
	agents := testAgents()
	agents[1].Enabled = false

	r, err := NewRouter(nil, agents)
	require.NoError(t, err)

	_, ok := r.Resolve("web_search")
	assert.False(t, ok)
	assert.Empty(t, r.Definitions())
}

func TestRouterDefinitionsOrder(t *testing.T) {
	r, err := NewRouter([]Tool{NewCurrentTimeTool(), echoTool()}, testAgents())
	require.NoError(t, err)

	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "current_time", defs[0].Name)
	assert.Equal(t, "echo", defs[1].Name)
	assert.Equal(t, "web_search", defs[2].Name)
}

func TestRouterRejectsCollisions(t *testing.T) {
	_, err := NewRouter([]Tool{echoTool(), echoTool()}, nil)
	assert.Error(t, err)

	searchAlike := NewFunctionTool("web_search", "shadowing tool", nil,
		func(context.Context, map[string]any) (string, error) { return "", nil })
	_, err = NewRouter([]Tool{searchAlike}, testAgents())
	assert.Error(t, err)
}

// -------------------- Engine --------------------

type stubRunner struct {
	lastAgent agent.Config
	lastInput string
	out       string
	err       error
}

func (s *stubRunner) RunSpecialist(_ context.Context, cfg agent.Config, input string) (string, error) {
	s.lastAgent = cfg
	s.lastInput = input
	return s.out, s.err
}

func newTestEngine(t *testing.T, locals []Tool, runner SpecialistRunner, opts ...func(*EngineOptions)) *Engine {
	t.Helper()
	r, err := NewRouter(locals, testAgents())
	require.NoError(t, err)
	return NewEngine(r, runner, opts...)
}

func TestEngineExecutesLocalTool(t *testing.T) {
	e := newTestEngine(t, []Tool{echoTool()}, nil)

	out, err := e.Execute(context.Background(), core.ToolCall{
		ID: "call_1", Name: "echo", Arguments: map[string]any{"text": "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestEngineUnknownTool(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	_, err := e.Execute(context.Background(), core.ToolCall{ID: "call_1", Name: "nope"})
	assert.True(t, core.IsKind(err, core.KindToolNotFound))
}

func TestEngineRejectsBadArguments(t *testing.T) {
	e := newTestEngine(t, []Tool{echoTool()}, nil)

	// Missing the required field.
	_, err := e.Execute(context.Background(), core.ToolCall{
		ID: "call_1", Name: "echo", Arguments: map[string]any{},
	})
	assert.True(t, core.IsKind(err, core.KindArgumentParse))

	// Wrong type.
	_, err = e.Execute(context.Background(), core.ToolCall{
		ID: "call_2", Name: "echo", Arguments: map[string]any{"text": 42},
	})
	assert.True(t, core.IsKind(err, core.KindArgumentParse))
}

func TestEngineTimeout(t *testing.T) {
	slow := NewFunctionTool("slow", "sleeps past the deadline", nil,
		func(ctx context.Context, _ map[string]any) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
	e := newTestEngine(t, []Tool{slow}, nil, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := e.Execute(context.Background(), core.ToolCall{ID: "call_1", Name: "slow"})
	assert.True(t, core.IsKind(err, core.KindExecutionTimeout))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEngineExecutionFailure(t *testing.T) {
	failing := NewFunctionTool("failing", "always fails", nil,
		func(context.Context, map[string]any) (string, error) {
			return "", errors.New("boom")
		})
	e := newTestEngine(t, []Tool{failing}, nil)

	_, err := e.Execute(context.Background(), core.ToolCall{ID: "call_1", Name: "failing"})
	assert.True(t, core.IsKind(err, core.KindExecutionFailed))
	assert.Contains(t, err.Error(), "boom")
}

func TestEngineTruncatesLongResults(t *testing.T) {
	big := NewFunctionTool("big", "returns a large payload", nil,
		func(context.Context, map[string]any) (string, error) {
			return strings.Repeat("x", 100), nil
		})
	e := newTestEngine(t, []Tool{big}, nil, WithMaxResultBytes(32))

	out, err := e.Execute(context.Background(), core.ToolCall{ID: "call_1", Name: "big"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, truncationMarker))
	assert.Equal(t, 32+len(truncationMarker), len(out))
}

func TestEngineDelegatesToSpecialist(t *testing.T) {
	runner := &stubRunner{out: "It is sunny in Berlin."}
	e := newTestEngine(t, nil, runner)

	out, err := e.Execute(context.Background(), core.ToolCall{
		ID: "call_1", Name: "web_search", Arguments: map[string]any{"query": "berlin weather"},
	})
	require.NoError(t, err)
	assert.Equal(t, "It is sunny in Berlin.", out)
	assert.Equal(t, "web_search", runner.lastAgent.ID)
	assert.Equal(t, "berlin weather", runner.lastInput)
}

func TestEngineSpecialistWithoutRunner(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	_, err := e.Execute(context.Background(), core.ToolCall{
		ID: "call_1", Name: "web_search", Arguments: map[string]any{"query": "q"},
	})
	assert.True(t, core.IsKind(err, core.KindExecutionFailed))
}

func TestSpecialistPrompt(t *testing.T) {
	// Single string argument passes through as plain text.
	assert.Equal(t, "berlin weather", SpecialistPrompt(map[string]any{"query": "berlin weather"}))

	// Richer arguments are handed over as JSON.
	p := SpecialistPrompt(map[string]any{"a": 1, "b": "x"})
	assert.True(t, strings.HasPrefix(p, "Execute with arguments: "))
	assert.Contains(t, p, `"a":1`)
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type args struct {
		Query string `json:"query" description:"Search query"`
		Limit *int   `json:"limit,omitempty" description:"Max results"`
	}
	ft := NewFunctionToolFromStruct("search", "Search things", args{},
		func(context.Context, map[string]any) (string, error) { return "", nil })

	schema := ft.Parameters()
	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")
	assert.Equal(t, []string{"query"}, schema["required"])
}
