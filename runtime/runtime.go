// Package runtime drives conversations: it owns the message history, runs
// the model/tool round loop, delegates tool calls to specialist agents, and
// supports atomic configuration reloads that never disturb an in-flight
// round.
package runtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobmatnyc/rustbot-sub001/agent"
	"github.com/bobmatnyc/rustbot-sub001/backend"
	"github.com/bobmatnyc/rustbot-sub001/core"
	"github.com/bobmatnyc/rustbot-sub001/history"
	"github.com/bobmatnyc/rustbot-sub001/logging"
	"github.com/bobmatnyc/rustbot-sub001/tool"
	"github.com/bobmatnyc/rustbot-sub001/wire"
)

const (
	// DefaultMaxTokens is the per-request generation budget.
	DefaultMaxTokens int64 = 4096

	// DefaultMaxModelCalls bounds model calls per round; a round that keeps
	// requesting tools past this fails rather than looping.
	DefaultMaxModelCalls = 8
)

// Options configures a Runtime.
type Options struct {
	// SharedPrompt is prepended to every agent's system prompt.
	SharedPrompt string

	// MaxTokens bounds each model response. <= 0 selects DefaultMaxTokens.
	MaxTokens int64

	// Temperature, when non-nil, is forwarded on every request.
	Temperature *float64

	// MaxModelCalls bounds model calls per round. <= 0 selects
	// DefaultMaxModelCalls.
	MaxModelCalls int

	// MaxMessages bounds the history length; see history.Options.
	MaxMessages int

	// LocalTools are in-process tools registered alongside specialist agents.
	LocalTools []tool.Tool

	// ToolTimeout bounds each tool execution; zero selects the engine default.
	ToolTimeout time.Duration

	// MaxToolResultBytes caps tool result text; zero selects the engine
	// default.
	MaxToolResultBytes int

	// Logger receives runtime diagnostics. Nil selects a default logger.
	Logger *logging.RuntimeLogger
}

// WithSharedPrompt sets the prompt text shared by all agents.
func WithSharedPrompt(p string) func(*Options) {
	return func(o *Options) { o.SharedPrompt = p }
}

// WithMaxTokens sets the per-request generation budget.
func WithMaxTokens(n int64) func(*Options) {
	return func(o *Options) { o.MaxTokens = n }
}

// WithTemperature sets the sampling temperature on every request.
func WithTemperature(t float64) func(*Options) {
	return func(o *Options) { o.Temperature = &t }
}

// WithMaxModelCalls bounds model calls per round.
func WithMaxModelCalls(n int) func(*Options) {
	return func(o *Options) { o.MaxModelCalls = n }
}

// WithMaxMessages bounds the conversation history length.
func WithMaxMessages(n int) func(*Options) {
	return func(o *Options) { o.MaxMessages = n }
}

// WithLocalTools registers in-process tools.
func WithLocalTools(tools ...tool.Tool) func(*Options) {
	return func(o *Options) { o.LocalTools = append(o.LocalTools, tools...) }
}

// WithToolTimeout bounds each tool execution.
func WithToolTimeout(d time.Duration) func(*Options) {
	return func(o *Options) { o.ToolTimeout = d }
}

// WithLogger sets the runtime logger.
func WithLogger(l *logging.RuntimeLogger) func(*Options) {
	return func(o *Options) { o.Logger = l }
}

// epoch is one immutable configuration generation: the agent set plus every
// structure derived from it. Reload builds a fresh epoch and swaps the
// pointer; a round that already captured the old epoch finishes against it.
type epoch struct {
	configs []agent.Config
	primary agent.Config
	router  *tool.Router
	engine  *tool.Engine
	history *history.History
}

// Runtime executes rounds against a backend on behalf of the primary agent.
// Submit serializes rounds internally; Reload may be called concurrently
// with a round in flight.
type Runtime struct {
	backend        backend.Backend
	codec          *wire.Codec
	opts           Options
	logger         *logging.RuntimeLogger
	conversationID string

	epoch atomic.Pointer[epoch]
	state atomic.Int32

	// roundMu serializes rounds. Held for the whole round, never by Reload.
	roundMu sync.Mutex
}

// New constructs a runtime over a backend and a validated agent set.
func New(b backend.Backend, configs []agent.Config, optFns ...func(*Options)) (*Runtime, error) {
	opts := Options{
		MaxTokens:     DefaultMaxTokens,
		MaxModelCalls: DefaultMaxModelCalls,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.MaxModelCalls <= 0 {
		opts.MaxModelCalls = DefaultMaxModelCalls
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(nil)
	}

	conversationID := core.NewID()
	logger := opts.Logger.WithConversation(conversationID)

	r := &Runtime{
		backend:        b,
		codec:          wire.NewCodec(logger.WithComponent("wire")),
		opts:           opts,
		logger:         logger.WithComponent("runtime"),
		conversationID: conversationID,
	}

	ep, err := r.buildEpoch(configs)
	if err != nil {
		return nil, err
	}
	r.epoch.Store(ep)
	return r, nil
}

// buildEpoch validates an agent set and derives its router, engine and a
// fresh history seeded with the primary agent's system prompt.
func (r *Runtime) buildEpoch(configs []agent.Config) (*epoch, error) {
	if err := agent.ValidateSet(configs); err != nil {
		return nil, core.WrapError(core.KindReload, err, "invalid agent set")
	}
	primary, _ := agent.Primary(configs)

	router, err := tool.NewRouter(r.opts.LocalTools, configs)
	if err != nil {
		return nil, core.WrapError(core.KindReload, err, "tool routing rejected agent set")
	}

	engineOpts := []func(*tool.EngineOptions){tool.WithLogger(r.logger)}
	if r.opts.ToolTimeout > 0 {
		engineOpts = append(engineOpts, tool.WithTimeout(r.opts.ToolTimeout))
	}
	if r.opts.MaxToolResultBytes > 0 {
		engineOpts = append(engineOpts, tool.WithMaxResultBytes(r.opts.MaxToolResultBytes))
	}

	system := agent.BuildSystemPrompt(r.opts.SharedPrompt, primary)
	hist := history.NewWithSystem(system, func(o *history.Options) {
		o.MaxMessages = r.opts.MaxMessages
		o.Logger = r.logger.WithComponent("history")
	})

	return &epoch{
		configs: configs,
		primary: primary,
		router:  router,
		engine:  tool.NewEngine(router, r, engineOpts...),
		history: hist,
	}, nil
}

// Reload replaces the agent set atomically. On success the next round starts
// against the new configuration with a cleared history; a round already in
// flight finishes against the configuration it started with. On failure the
// current configuration stays fully in effect.
func (r *Runtime) Reload(configs []agent.Config) error {
	ep, err := r.buildEpoch(configs)
	if err != nil {
		r.logger.Error("reload rejected", "error", err)
		return err
	}
	r.epoch.Store(ep)
	r.logger.Info("configuration reloaded",
		"agents", len(ep.configs), "primary", ep.primary.ID, "tools", ep.router.Len())
	return nil
}

// State reports the runtime's position within the current round.
func (r *Runtime) State() State { return State(r.state.Load()) }

func (r *Runtime) setState(s State) { r.state.Store(int32(s)) }

// History returns a snapshot of the current epoch's conversation.
func (r *Runtime) History() []core.Message {
	return r.epoch.Load().history.Snapshot()
}

// ConversationID returns the stable identifier for this runtime's
// conversation, present on every log record it emits.
func (r *Runtime) ConversationID() string { return r.conversationID }

// Primary returns the primary agent of the current epoch.
func (r *Runtime) Primary() agent.Config {
	return r.epoch.Load().primary
}

// ToolDefinitions returns the tool surface currently advertised to the model.
func (r *Runtime) ToolDefinitions() []wire.ToolDefinition {
	return r.epoch.Load().router.Definitions()
}
