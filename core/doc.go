// Package core provides the foundational domain types shared across the
// orchestration runtime. It defines:
//
//   - Message / ToolCall (the canonical, provider-neutral conversation model)
//   - Role (the closed set of conversation roles)
//   - Error / Kind (the error taxonomy surfaced to callers)
//   - ID generation helpers for correlation
//
// The package intentionally keeps implementation concerns (history storage,
// wire encoding, tool execution, backends) out of scope so higher layers can
// depend on a small, stable vocabulary.
package core
