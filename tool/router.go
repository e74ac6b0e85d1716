package tool

import (
	"fmt"

	"github.com/bobmatnyc/rustbot-sub001/agent"
	"github.com/bobmatnyc/rustbot-sub001/wire"
)

// HandlerKind discriminates how a resolved tool call is dispatched.
type HandlerKind int

const (
	// HandlerLocal dispatches to an in-process Tool implementation.
	HandlerLocal HandlerKind = iota
	// HandlerSpecialist delegates to a specialist agent via a sub-run.
	HandlerSpecialist
)

// Handler is the dispatch target a Router resolves a tool name to.
// Exactly one of Tool or Agent is set, per Kind.
type Handler struct {
	Kind  HandlerKind
	Tool  Tool
	Agent agent.Config
}

// Router maps tool names the model may emit to their handlers. Local tools
// and enabled specialist agents share one namespace; disabled specialists
// are not registered and resolve the same as unknown names.
//
// A Router is immutable after construction. Configuration reloads build a
// fresh Router rather than mutating the live one.
type Router struct {
	handlers map[string]Handler
	defs     []wire.ToolDefinition
}

// NewRouter builds a router over the given local tools and agent set.
// Registration order (locals first, then enabled specialists in set order)
// fixes the order of Definitions. Name collisions are configuration errors.
func NewRouter(locals []Tool, configs []agent.Config) (*Router, error) {
	r := &Router{handlers: make(map[string]Handler)}

	for _, t := range locals {
		if t.Name() == "" {
			return nil, fmt.Errorf("local tool has empty name")
		}
		if _, dup := r.handlers[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name())
		}
		r.handlers[t.Name()] = Handler{Kind: HandlerLocal, Tool: t}
		r.defs = append(r.defs, Definition(t))
	}

	for _, cfg := range agent.Specialists(configs) {
		if _, dup := r.handlers[cfg.ID]; dup {
			return nil, fmt.Errorf("agent id %q collides with a registered tool", cfg.ID)
		}
		r.handlers[cfg.ID] = Handler{Kind: HandlerSpecialist, Agent: cfg}
		r.defs = append(r.defs, agent.ToolDefinition(cfg))
	}

	return r, nil
}

// Resolve returns the handler for a tool name.
func (r *Router) Resolve(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Definitions returns the tool definitions to advertise to the model, in
// registration order. The returned slice is shared; callers must not mutate it.
func (r *Router) Definitions() []wire.ToolDefinition {
	return r.defs
}

// Len returns the number of registered handlers.
func (r *Router) Len() int { return len(r.handlers) }
