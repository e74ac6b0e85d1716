// Package wire implements the protocol codec between the canonical message
// model and the backend's JSON content-block format.
//
// Core goals:
//   - Serialize a conversation snapshot plus tool schemas into a Request
//     (plain text for simple turns, block arrays for tool traffic)
//   - Deserialize backend responses into canonical messages, normalizing
//     both supported tool-call shapes: content-block tool_use entries and
//     OpenAI-style function-nested calls with JSON-encoded argument strings
//   - Locally recover from malformed individual tool-call payloads (drop and
//     log, keep siblings) instead of failing the whole response
//
// Backends translate Request into vendor SDK parameters or post it directly;
// the codec itself is transport independent.
package wire
