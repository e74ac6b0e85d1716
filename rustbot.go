// Package rustbot provides a high-level façade over the conversation runtime
// and provider backends. Most applications interact with this package by:
//  1. Creating a Rustbot via New() with a provider and an agent set
//  2. Sending user turns asynchronously (Submit) or synchronously (Ask)
//  3. Swapping agent configuration at runtime via Reload
//
// The façade delegates orchestration to runtime.Runtime while keeping setup
// ergonomics concise. Defaults give a single primary assistant over
// OpenRouter with credentials drawn from the provider's environment variable.
package rustbot

import (
	"context"
	"os"

	"github.com/bobmatnyc/rustbot-sub001/agent"
	"github.com/bobmatnyc/rustbot-sub001/backend"
	"github.com/bobmatnyc/rustbot-sub001/backend/anthropic"
	"github.com/bobmatnyc/rustbot-sub001/backend/openai"
	"github.com/bobmatnyc/rustbot-sub001/backend/openrouter"
	"github.com/bobmatnyc/rustbot-sub001/core"
	"github.com/bobmatnyc/rustbot-sub001/logging"
	"github.com/bobmatnyc/rustbot-sub001/runtime"
)

// Options configures the Rustbot instance.
type Options struct {
	// Provider selects the backend when Backend is nil.
	Provider backend.Provider

	// APIKey overrides the provider's environment variable lookup.
	APIKey string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// Backend overrides provider-based construction entirely.
	Backend backend.Backend

	// Agents is the agent set; empty selects the built-in primary assistant
	// plus the web-search specialist.
	Agents []agent.Config

	// Logger configures structured logging; nil selects defaults.
	Logger *logging.LoggerConfig

	// Runtime options forwarded to runtime.New.
	RuntimeOptions []func(*runtime.Options)
}

// Rustbot is the high-level façade aggregating the backend and the runtime.
type Rustbot struct {
	opts    Options
	backend backend.Backend
	runtime *runtime.Runtime
}

// New creates a Rustbot with optional overrides.
//
// Credentials are resolved at construction: a provider that requires an API
// key and has neither an explicit key nor its environment variable set is
// rejected with a reload error, so misconfiguration surfaces immediately
// rather than on the first round.
func New(optFns ...func(o *Options)) (*Rustbot, error) {
	opts := Options{
		Provider: backend.ProviderOpenRouter,
		Agents:   []agent.Config{agent.DefaultAssistant(), agent.WebSearch()},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.NewLogger(opts.Logger)

	b := opts.Backend
	if b == nil {
		built, err := buildBackend(opts)
		if err != nil {
			return nil, err
		}
		b = built
	}

	rtOpts := append([]func(*runtime.Options){runtime.WithLogger(logger)}, opts.RuntimeOptions...)
	rt, err := runtime.New(b, opts.Agents, rtOpts...)
	if err != nil {
		return nil, err
	}

	return &Rustbot{opts: opts, backend: b, runtime: rt}, nil
}

// buildBackend constructs the provider-selected backend, resolving the API
// key from the options or the provider's environment variable.
func buildBackend(opts Options) (backend.Backend, error) {
	p := opts.Provider
	if !p.Valid() {
		return nil, core.NewError(core.KindReload, "unknown provider %q", string(p))
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(p.APIKeyEnvVar())
	}
	if apiKey == "" && p.RequiresAPIKey() {
		return nil, core.NewError(core.KindReload,
			"provider %q requires an API key: set %s or pass WithAPIKey", string(p), p.APIKeyEnvVar())
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = p.DefaultBaseURL()
	}

	switch p {
	case backend.ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			o.APIKey = apiKey
			o.BaseURL = opts.BaseURL
		}), nil
	case backend.ProviderOpenAI:
		return openai.New(func(o *openai.Options) {
			o.APIKey = apiKey
			o.BaseURL = opts.BaseURL
		}), nil
	default:
		// OpenRouter and Ollama both speak the OpenAI-compatible chat
		// completions protocol.
		return openrouter.New(func(o *openrouter.Options) {
			o.APIKey = apiKey
			o.BaseURL = baseURL
		}), nil
	}
}

// WithProvider selects the backend provider.
func WithProvider(p backend.Provider) func(*Options) {
	return func(o *Options) { o.Provider = p }
}

// WithAPIKey sets the backend credential explicitly.
func WithAPIKey(key string) func(*Options) {
	return func(o *Options) { o.APIKey = key }
}

// WithBaseURL overrides the provider's default endpoint.
func WithBaseURL(u string) func(*Options) {
	return func(o *Options) { o.BaseURL = u }
}

// WithBackend supplies a pre-built backend, bypassing provider construction.
func WithBackend(b backend.Backend) func(*Options) {
	return func(o *Options) { o.Backend = b }
}

// WithAgents sets the agent set.
func WithAgents(configs ...agent.Config) func(*Options) {
	return func(o *Options) { o.Agents = configs }
}

// WithLogging configures structured logging.
func WithLogging(cfg *logging.LoggerConfig) func(*Options) {
	return func(o *Options) { o.Logger = cfg }
}

// WithRuntimeOptions forwards options to the underlying runtime.
func WithRuntimeOptions(optFns ...func(*runtime.Options)) func(*Options) {
	return func(o *Options) { o.RuntimeOptions = append(o.RuntimeOptions, optFns...) }
}

// Submit starts a round for one user turn; see runtime.Runtime.Submit.
func (rb *Rustbot) Submit(ctx context.Context, text string) <-chan runtime.Result {
	return rb.runtime.Submit(ctx, text)
}

// Ask runs a round synchronously and returns the assistant's final text.
func (rb *Rustbot) Ask(ctx context.Context, text string) (string, error) {
	return rb.runtime.Ask(ctx, text)
}

// Reload swaps the agent set; see runtime.Runtime.Reload.
func (rb *Rustbot) Reload(configs []agent.Config) error {
	return rb.runtime.Reload(configs)
}

// History returns a snapshot of the current conversation.
func (rb *Rustbot) History() []core.Message {
	return rb.runtime.History()
}

// Runtime exposes the underlying runtime for advanced use.
func (rb *Rustbot) Runtime() *runtime.Runtime { return rb.runtime }

// Backend exposes the active backend.
func (rb *Rustbot) Backend() backend.Backend { return rb.backend }
