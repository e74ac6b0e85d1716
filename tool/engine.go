package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"

	"github.com/bobmatnyc/rustbot-sub001/agent"
	"github.com/bobmatnyc/rustbot-sub001/core"
	"github.com/bobmatnyc/rustbot-sub001/logging"
)

const (
	// DefaultCallTimeout bounds a single tool execution, including the
	// model round-trip of a specialist delegation.
	DefaultCallTimeout = 2 * time.Minute

	// DefaultMaxResultBytes caps the text fed back into history per result.
	DefaultMaxResultBytes = 16 * 1024

	truncationMarker = "\n[truncated]"
)

// SpecialistRunner executes a delegated sub-run against a specialist agent.
// The runtime implements this; the indirection keeps the engine free of a
// dependency on the runtime package.
type SpecialistRunner interface {
	// RunSpecialist sends input to the specialist as a single user turn and
	// returns the specialist's final text. The sub-run is isolated: it shares
	// no history with the primary conversation and is offered no tools.
	RunSpecialist(ctx context.Context, cfg agent.Config, input string) (string, error)
}

// Engine executes resolved tool calls: it validates arguments against the
// handler's schema, applies the per-call deadline, dispatches locally or to
// a specialist, and bounds the result text.
type Engine struct {
	router    *Router
	runner    SpecialistRunner
	timeout   time.Duration
	maxResult int
	logger    *logging.RuntimeLogger
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Timeout bounds each tool execution. Defaults to DefaultCallTimeout.
	Timeout time.Duration

	// MaxResultBytes caps result text before it enters history.
	// Defaults to DefaultMaxResultBytes.
	MaxResultBytes int

	// Logger receives execution diagnostics.
	Logger *logging.RuntimeLogger
}

// NewEngine constructs an engine over a router. The runner may be nil when
// the router registers no specialists; resolving a specialist handler
// without a runner is reported as an execution failure.
func NewEngine(router *Router, runner SpecialistRunner, opts ...func(*EngineOptions)) *Engine {
	o := EngineOptions{
		Timeout:        DefaultCallTimeout,
		MaxResultBytes: DefaultMaxResultBytes,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = logging.NewLogger(nil)
	}
	return &Engine{
		router:    router,
		runner:    runner,
		timeout:   o.Timeout,
		maxResult: o.MaxResultBytes,
		logger:    o.Logger.WithComponent("tool.engine"),
	}
}

// WithTimeout overrides the per-call execution deadline.
func WithTimeout(d time.Duration) func(*EngineOptions) {
	return func(o *EngineOptions) { o.Timeout = d }
}

// WithMaxResultBytes overrides the result size cap.
func WithMaxResultBytes(n int) func(*EngineOptions) {
	return func(o *EngineOptions) { o.MaxResultBytes = n }
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.RuntimeLogger) func(*EngineOptions) {
	return func(o *EngineOptions) { o.Logger = l }
}

// Execute runs one tool call to completion and returns the (possibly
// truncated) result text. Failures carry a core.Kind so the caller can
// report them back to the model as tool results rather than aborting the
// round:
//
//	tool_not_found        unknown or disabled tool name
//	argument_parse_error  arguments rejected by the handler's schema
//	execution_timeout     deadline exceeded
//	execution_failed      handler returned an error
func (e *Engine) Execute(ctx context.Context, call core.ToolCall) (string, error) {
	start := time.Now()

	handler, ok := e.router.Resolve(call.Name)
	if !ok {
		err := core.NewError(core.KindToolNotFound, "no tool or enabled agent named %q", call.Name)
		e.logger.LogToolCall(call.Name, time.Since(start), false, err)
		return "", err
	}

	if err := e.validateArguments(handler, call); err != nil {
		e.logger.LogToolCall(call.Name, time.Since(start), false, err)
		return "", err
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		result string
		err    error
	)
	switch handler.Kind {
	case HandlerLocal:
		result, err = handler.Tool.Call(cctx, call.Arguments)
	case HandlerSpecialist:
		if e.runner == nil {
			err = core.NewError(core.KindExecutionFailed, "no specialist runner configured for agent %q", call.Name)
			break
		}
		result, err = e.runner.RunSpecialist(cctx, handler.Agent, SpecialistPrompt(call.Arguments))
	}

	if err != nil {
		err = e.classifyError(cctx, call.Name, err)
		e.logger.LogToolCall(call.Name, time.Since(start), false, err)
		return "", err
	}

	result = e.truncate(call.Name, result)
	e.logger.LogToolCall(call.Name, time.Since(start), true, nil)
	return result, nil
}

// validateArguments checks the call arguments against the handler schema.
func (e *Engine) validateArguments(h Handler, call core.ToolCall) error {
	var schema map[string]any
	switch h.Kind {
	case HandlerLocal:
		schema = h.Tool.Parameters()
	case HandlerSpecialist:
		schema = agent.ToolDefinition(h.Agent).InputSchema
	}
	if schema == nil {
		return nil
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	res, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return core.WrapError(core.KindArgumentParse, err, "invalid argument schema for %q", call.Name)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, desc := range res.Errors() {
			msgs = append(msgs, desc.String())
		}
		return core.NewError(core.KindArgumentParse, "arguments for %q rejected: %s", call.Name, strings.Join(msgs, "; "))
	}
	return nil
}

// classifyError maps handler failures to tagged errors, preserving tags the
// handler already applied.
func (e *Engine) classifyError(ctx context.Context, name string, err error) error {
	if core.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.WrapError(core.KindExecutionTimeout, err, "tool %q exceeded %s deadline", name, e.timeout)
	}
	return core.WrapError(core.KindExecutionFailed, err, "tool %q failed", name)
}

// truncate bounds result text to the configured cap at a byte boundary.
func (e *Engine) truncate(name, result string) string {
	if e.maxResult <= 0 || len(result) <= e.maxResult {
		return result
	}
	e.logger.Warn("tool result truncated", "tool", name, "bytes", len(result), "cap", e.maxResult)
	cut := result[:e.maxResult]
	// Back off to a rune boundary so the marker never splits a character.
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + truncationMarker
}

// SpecialistPrompt renders the delegated tool arguments as the single user
// turn of a specialist sub-run. Arguments carrying exactly one string field
// (the common query/message case) pass through as plain text; anything
// richer is handed over as compact JSON.
func SpecialistPrompt(args map[string]any) string {
	if len(args) == 1 {
		for _, v := range args {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "Execute with the provided arguments."
	}
	return "Execute with arguments: " + string(raw)
}
