// Package backend defines the contract between the orchestration runtime and
// remote language-model services. Adapters translate the codec's wire format
// into vendor SDK parameters (see the anthropic and openai subpackages) or
// post it directly over HTTP (openrouter). Adapters never retry on their own;
// rate limits and transport failures surface as tagged core errors so the
// caller owns backoff policy.
package backend

import (
	"context"

	"github.com/bobmatnyc/rustbot-sub001/wire"
)

// Info contains metadata about a backend implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Backend is the minimal interface required to drive one completion call.
// Implementations must be safe for concurrent use; the runtime issues calls
// from multiple conversations against a shared client.
type Backend interface {
	// Complete performs a single non-streaming completion for the request.
	Complete(ctx context.Context, req *wire.Request) (*wire.Response, error)

	// Info returns metadata describing the backend implementation.
	Info() Info
}
