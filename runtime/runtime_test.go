package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmatnyc/rustbot-sub001/agent"
	"github.com/bobmatnyc/rustbot-sub001/core"
	"github.com/bobmatnyc/rustbot-sub001/internal/testutil"
	"github.com/bobmatnyc/rustbot-sub001/tool"
	"github.com/bobmatnyc/rustbot-sub001/wire"
)

func primaryOnly() []agent.Config {
	return []agent.Config{agent.DefaultAssistant()}
}

func echoTool() tool.Tool {
	return tool.NewFunctionTool(
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

func TestRoundPlainText(t *testing.T) {
	b := testutil.NewScriptedBackend().Respond(testutil.TextResponse("hello there"))
	rt, err := New(b, primaryOnly())
	require.NoError(t, err)

	out, err := rt.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	msgs := rt.History()
	require.Len(t, msgs, 3)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.Equal(t, "hello there", msgs[2].Content)
	assert.Equal(t, StateIdle, rt.State())
}

func TestRoundWithToolExecution(t *testing.T) {
	b := testutil.NewScriptedBackend().
		Respond(testutil.ToolUseResponse("Let me check.", "call_1", "echo", map[string]any{"text": "pong"})).
		Respond(testutil.TextResponse("The tool said pong."))
	rt, err := New(b, primaryOnly(), WithLocalTools(echoTool()))
	require.NoError(t, err)

	out, err := rt.Ask(context.Background(), "ping the tool")
	require.NoError(t, err)
	assert.Equal(t, "The tool said pong.", out)
	assert.Equal(t, 2, b.Calls())

	// system, user, assistant(call), tool result, final assistant
	msgs := rt.History()
	require.Len(t, msgs, 5)
	assert.Equal(t, core.RoleAssistant, msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, core.RoleTool, msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.Equal(t, "pong", msgs[3].Content)
	assert.Equal(t, "The tool said pong.", msgs[4].Content)

	// The follow-up request carries the tool result as a user-role message
	// with a tool_result block.
	second := b.Requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "user", last.Role)
	require.Len(t, last.Content.Blocks, 1)
	assert.Equal(t, wire.BlockToolResult, last.Content.Blocks[0].Type)
	assert.Equal(t, "call_1", last.Content.Blocks[0].ToolUseID)
}

func TestRoundToolFailureReportedToModel(t *testing.T) {
	failing := tool.NewFunctionTool("failing", "always fails", nil,
		func(context.Context, map[string]any) (string, error) {
			return "", errors.New("boom")
		})
	b := testutil.NewScriptedBackend().
		Respond(testutil.ToolUseResponse("", "call_1", "failing", map[string]any{})).
		Respond(testutil.TextResponse("That did not work, sorry."))
	rt, err := New(b, primaryOnly(), WithLocalTools(failing))
	require.NoError(t, err)

	out, err := rt.Ask(context.Background(), "try it")
	require.NoError(t, err)
	assert.Equal(t, "That did not work, sorry.", out)

	msgs := rt.History()
	require.Len(t, msgs, 5)
	assert.Equal(t, core.RoleTool, msgs[3].Role)
	assert.Contains(t, msgs[3].Content, "Error:")
	assert.Contains(t, msgs[3].Content, "boom")
}

func TestRoundUnknownToolReportedToModel(t *testing.T) {
	b := testutil.NewScriptedBackend().
		Respond(testutil.ToolUseResponse("", "call_1", "no_such_tool", map[string]any{})).
		Respond(testutil.TextResponse("I lack that tool."))
	rt, err := New(b, primaryOnly())
	require.NoError(t, err)

	out, err := rt.Ask(context.Background(), "use a tool")
	require.NoError(t, err)
	assert.Equal(t, "I lack that tool.", out)

	msgs := rt.History()
	assert.Contains(t, msgs[3].Content, "no_such_tool")
}

func TestRoundMalformedSiblingCallDropped(t *testing.T) {
	first := &wire.Response{
		Role: "assistant",
		Content: wire.Content{Blocks: []wire.Block{
			{Type: wire.BlockToolUse, ID: "call_bad", Name: "echo", Input: []byte(`{not json`)},
			{Type: wire.BlockToolUse, ID: "call_ok", Name: "echo", Input: []byte(`{"text":"pong"}`)},
		}},
		StopReason: "tool_use",
	}
	b := testutil.NewScriptedBackend().
		Respond(first).
		Respond(testutil.TextResponse("done"))
	rt, err := New(b, primaryOnly(), WithLocalTools(echoTool()))
	require.NoError(t, err)

	out, err := rt.Ask(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	// Only the well-formed call survived normalization: one assistant call,
	// exactly one tool result, then the follow-up model call.
	msgs := rt.History()
	require.Len(t, msgs, 5)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "call_ok", msgs[2].ToolCalls[0].ID)
	assert.Equal(t, core.RoleTool, msgs[3].Role)
	assert.Equal(t, "pong", msgs[3].Content)
}

func TestRoundChoicesShapeBackend(t *testing.T) {
	b := testutil.NewScriptedBackend().
		Respond(testutil.ChoicesToolResponse("call_1", "echo", map[string]any{"text": "pong"})).
		Respond(testutil.ChoicesTextResponse("done"))
	rt, err := New(b, primaryOnly(), WithLocalTools(echoTool()))
	require.NoError(t, err)

	out, err := rt.Ask(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Len(t, rt.History(), 5)
}

func TestRoundSpecialistDelegation(t *testing.T) {
	agents := []agent.Config{agent.DefaultAssistant(), agent.WebSearch()}
	b := testutil.NewScriptedBackend().
		Respond(testutil.ToolUseResponse("", "call_1", "web_search", map[string]any{"query": "berlin weather"})).
		Respond(testutil.TextResponse("Sunny, 24°C in Berlin.")).
		Respond(testutil.TextResponse("It is sunny and 24°C in Berlin right now."))
	rt, err := New(b, agents)
	require.NoError(t, err)

	out, err := rt.Ask(context.Background(), "weather in berlin?")
	require.NoError(t, err)
	assert.Equal(t, "It is sunny and 24°C in Berlin right now.", out)
	require.Equal(t, 3, b.Calls())

	// The delegated call runs isolated: specialist system prompt, the query
	// as the only user turn, and no tool surface.
	sub := b.Requests[1]
	assert.Contains(t, sub.System, "web search specialist")
	assert.Empty(t, sub.Tools)
	require.Len(t, sub.Messages, 1)
	assert.Equal(t, "berlin weather", sub.Messages[0].Content.Text)

	// The primary conversation never sees the sub-run, only its result.
	msgs := rt.History()
	require.Len(t, msgs, 5)
	assert.Equal(t, "Sunny, 24°C in Berlin.", msgs[3].Content)
}

func TestRoundEmptyFinalResponse(t *testing.T) {
	b := testutil.NewScriptedBackend().Respond(testutil.TextResponse(""))
	rt, err := New(b, primaryOnly())
	require.NoError(t, err)

	_, err = rt.Ask(context.Background(), "hi")
	assert.True(t, core.IsKind(err, core.KindEmptyContent))
}

func TestRoundModelCallLimit(t *testing.T) {
	b := testutil.NewScriptedBackend()
	for i := 0; i < 5; i++ {
		b.Respond(testutil.ToolUseResponse("", "call_x", "echo", map[string]any{"text": "again"}))
	}
	rt, err := New(b, primaryOnly(), WithLocalTools(echoTool()), WithMaxModelCalls(2))
	require.NoError(t, err)

	_, err = rt.Ask(context.Background(), "loop forever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max model calls")
	assert.Equal(t, 2, b.Calls())
}

func TestRoundBackendError(t *testing.T) {
	b := testutil.NewScriptedBackend().
		RespondErr(core.NewError(core.KindNetwork, "connection refused"))
	rt, err := New(b, primaryOnly())
	require.NoError(t, err)

	_, err = rt.Ask(context.Background(), "hi")
	assert.True(t, core.IsKind(err, core.KindNetwork))
}

func TestRoundEmptyInput(t *testing.T) {
	rt, err := New(testutil.NewScriptedBackend(), primaryOnly())
	require.NoError(t, err)

	_, err = rt.Ask(context.Background(), "")
	assert.True(t, core.IsKind(err, core.KindProtocol))
}

func TestReloadSwapsConfigurationAndClearsHistory(t *testing.T) {
	b := testutil.NewScriptedBackend().
		Respond(testutil.TextResponse("hello")).
		Respond(testutil.TextResponse("bonjour"))
	rt, err := New(b, primaryOnly())
	require.NoError(t, err)

	_, err = rt.Ask(context.Background(), "hi")
	require.NoError(t, err)
	require.Len(t, rt.History(), 3)

	next := agent.DefaultAssistant()
	next.Name = "French Assistant"
	next.Personality = "Always answer in French."
	require.NoError(t, rt.Reload([]agent.Config{next}))

	// Fresh epoch: history holds only the new system prompt.
	msgs := rt.History()
	require.Len(t, msgs, 1)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Always answer in French.")

	out, err := rt.Ask(context.Background(), "salut")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", out)
}

func TestReloadDuringInFlightRound(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gated := tool.NewFunctionTool("gated", "blocks until released", nil,
		func(ctx context.Context, _ map[string]any) (string, error) {
			close(entered)
			select {
			case <-release:
				return "gated result", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		})
	b := testutil.NewScriptedBackend().
		Respond(testutil.ToolUseResponse("", "call_1", "gated", map[string]any{})).
		Respond(testutil.TextResponse("finished"))
	rt, err := New(b, primaryOnly(), WithLocalTools(gated))
	require.NoError(t, err)

	ch := rt.Submit(context.Background(), "go")
	<-entered

	// Swap configuration while the round is executing its tool.
	next := agent.DefaultAssistant()
	next.Personality = "Terse."
	require.NoError(t, rt.Reload([]agent.Config{next}))
	close(release)

	// The in-flight round completes against the configuration it started
	// with; nothing of it lands in the post-reload history.
	res := <-ch
	require.NoError(t, res.Err)
	assert.Equal(t, "finished", res.Text)

	msgs := rt.History()
	require.Len(t, msgs, 1)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Terse.")
}

func TestReloadRejectsInvalidSetKeepingOld(t *testing.T) {
	b := testutil.NewScriptedBackend().Respond(testutil.TextResponse("ok"))
	rt, err := New(b, primaryOnly())
	require.NoError(t, err)

	err = rt.Reload(nil)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindReload))

	two := agent.DefaultAssistant()
	two.ID = "second"
	err = rt.Reload([]agent.Config{agent.DefaultAssistant(), two})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindReload))

	// The old configuration is fully intact.
	out, err := rt.Ask(context.Background(), "still there?")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestNewRejectsInvalidAgentSet(t *testing.T) {
	_, err := New(testutil.NewScriptedBackend(), nil)
	assert.True(t, core.IsKind(err, core.KindReload))

	disabled := agent.DefaultAssistant()
	disabled.Enabled = false
	_, err = New(testutil.NewScriptedBackend(), []agent.Config{disabled})
	assert.True(t, core.IsKind(err, core.KindReload))
}

func TestSubmitAbortDiscardsRound(t *testing.T) {
	block := make(chan struct{})
	slow := tool.NewFunctionTool("slow", "waits for cancellation", nil,
		func(ctx context.Context, _ map[string]any) (string, error) {
			close(block)
			<-ctx.Done()
			return "late result", ctx.Err()
		})
	b := testutil.NewScriptedBackend().
		Respond(testutil.ToolUseResponse("", "call_1", "slow", map[string]any{}))
	rt, err := New(b, primaryOnly(), WithLocalTools(slow))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch := rt.Submit(ctx, "go")
	<-block
	cancel()

	res := <-ch
	require.Error(t, res.Err)

	// Nothing from the aborted tool phase leaks into history.
	for _, m := range rt.History() {
		assert.NotEqual(t, core.RoleTool, m.Role)
		assert.NotContains(t, m.Content, "late result")
	}
}

func TestToolDefinitionsSurface(t *testing.T) {
	agents := []agent.Config{agent.DefaultAssistant(), agent.WebSearch()}
	rt, err := New(testutil.NewScriptedBackend(), agents, WithLocalTools(echoTool()))
	require.NoError(t, err)

	names := make([]string, 0)
	for _, d := range rt.ToolDefinitions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"echo", "web_search"}, names)
	assert.Equal(t, "assistant", rt.Primary().ID)
}

func TestSpecialistPromptRendering(t *testing.T) {
	assert.True(t, strings.HasPrefix(
		tool.SpecialistPrompt(map[string]any{"a": 1, "b": 2}), "Execute with arguments: "))
}
