package core

import (
	"errors"
	"fmt"
	"time"
)

// Kind categorizes a runtime failure for callers that switch on error class
// rather than message text.
type Kind string

const (
	// KindProtocol marks a malformed or unparseable backend payload, or a
	// history that failed serialization-time validation.
	KindProtocol Kind = "protocol_error"
	// KindEmptyContent marks a would-be history entry with neither content
	// nor tool calls, surfaced when it occurs as the final response of a round.
	KindEmptyContent Kind = "empty_content"
	// KindToolNotFound marks an unresolvable tool name or a disabled agent.
	KindToolNotFound Kind = "tool_not_found"
	// KindArgumentParse marks tool arguments that failed structural validation.
	KindArgumentParse Kind = "argument_parse_error"
	// KindExecutionTimeout marks a tool call that exceeded its deadline.
	KindExecutionTimeout Kind = "execution_timeout"
	// KindExecutionFailed marks a tool call that returned an error.
	KindExecutionFailed Kind = "execution_failed"
	// KindRateLimited marks a backend 429; RetryAfter carries the server hint.
	KindRateLimited Kind = "rate_limited"
	// KindNetwork marks a transport-level failure reaching the backend.
	KindNetwork Kind = "network_error"
	// KindReload marks a rejected configuration reload; no partial swap occurs.
	KindReload Kind = "reload_error"
	// KindInvariant marks a history append that would violate referential
	// integrity between tool results and their originating calls.
	KindInvariant Kind = "invariant_violation"
)

// Error is the tagged error surfaced by the runtime. It wraps an optional
// cause and, for rate limiting, carries the retry hint. The core performs no
// implicit retry; backoff policy belongs to the caller.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// NewError constructs a tagged error without a cause.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError constructs a tagged error wrapping an underlying cause.
func WrapError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// NewRateLimitedError constructs a rate-limit error carrying the server's
// retry hint (zero if the backend supplied none).
func NewRateLimitedError(retryAfter time.Duration, format string, args ...any) *Error {
	return &Error{Kind: KindRateLimited, Message: fmt.Sprintf(format, args...), RetryAfter: retryAfter}
}

// KindOf extracts the Kind from an error chain; empty string if the chain
// contains no tagged error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether the error chain contains a tagged error of the
// given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
