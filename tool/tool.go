// Package tool implements the tool-calling subsystem: local handlers exposed
// to the model, the delegation router that resolves a tool name to a local
// handler or a specialist agent, and the execution engine that runs a tool
// call with schema-validated arguments and a bounded result.
package tool

import (
	"context"

	"github.com/bobmatnyc/rustbot-sub001/wire"
)

// Tool is a locally executed capability exposed to the model.
//
// Implementations should provide clear, descriptive names and descriptions
// (the model decides when to call a tool based on them), define a proper
// JSON schema for parameters, and be safe for concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description returns a human-readable description provided to the model.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with already-validated structured arguments.
	// The context carries the per-call deadline; implementations performing
	// I/O must honor cancellation.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Definition exposes a local tool to the wire protocol.
func Definition(t Tool) wire.ToolDefinition {
	return wire.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.Parameters(),
	}
}
