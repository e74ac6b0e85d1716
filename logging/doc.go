// Package logging provides a tiny abstraction over slog so the orchestration
// core can depend on a minimal interface (Logger) while allowing callers to
// plug any structured logger. It also offers a richer RuntimeLogger with
// contextual helpers (component, conversation) and domain specific helpers
// for tool and model calls.
package logging
