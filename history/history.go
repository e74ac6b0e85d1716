// Package history implements the ordered, invariant-enforcing message store
// for one conversation. A History is owned by exactly one runtime instance;
// the internal lock only guards snapshot readers against the single writer.
//
// Invariants held at every observable point:
//  1. A tool message's ToolCallID matches a call id in the nearest preceding
//     assistant message.
//  2. No assistant message is stored with empty content and zero tool calls.
//  3. Eviction removes oldest non-pinned messages first and never splits an
//     assistant message from its tool results.
package history

import (
	"sync"

	"github.com/bobmatnyc/rustbot-sub001/core"
	"github.com/bobmatnyc/rustbot-sub001/logging"
)

// DefaultMaxMessages bounds a history when no explicit limit is configured.
const DefaultMaxMessages = 50

// Options configures a History.
type Options struct {
	// MaxMessages bounds the history length; <= 0 selects DefaultMaxMessages.
	// The pinned system message does not count against the bound.
	MaxMessages int
	// Logger receives drop/eviction diagnostics. Nil selects NoOpLogger.
	Logger logging.Logger
}

// History is the ordered message store for a single conversation. An optional
// leading system message is pinned and exempt from eviction.
type History struct {
	mu       sync.RWMutex
	max      int
	messages []core.Message
	pinned   bool // messages[0] is a pinned system message
	logger   logging.Logger
}

// New constructs an empty history.
func New(optFns ...func(o *Options)) *History {
	opts := Options{MaxMessages: DefaultMaxMessages, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = DefaultMaxMessages
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &History{max: opts.MaxMessages, logger: opts.Logger}
}

// NewWithSystem constructs a history seeded with a pinned system message.
// An empty system string yields an unpinned, empty history.
func NewWithSystem(system string, optFns ...func(o *Options)) *History {
	h := New(optFns...)
	if system != "" {
		h.messages = append(h.messages, core.NewSystemMessage(system))
		h.pinned = true
	}
	return h
}

// Append validates and stores a message, then enforces the length bound.
//
// Assistant messages with empty content and no tool calls are dropped with a
// warning rather than rejected: the caller cannot act on the rejection and
// silently storing them would poison later serialization. Tool messages that
// do not answer a call in the nearest preceding assistant message are
// rejected with an invariant error and the history is left unchanged.
func (h *History) Append(msg core.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch msg.Role {
	case core.RoleSystem:
		if len(h.messages) > 0 {
			return core.NewError(core.KindInvariant, "system message only permitted at head of history")
		}
		h.messages = append(h.messages, msg)
		h.pinned = true
		return nil
	case core.RoleAssistant:
		if msg.IsEmpty() {
			h.logger.Warn("dropping empty assistant message", "reason", "no content and no tool calls")
			return nil
		}
	case core.RoleTool:
		if msg.ToolCallID == "" {
			return core.NewError(core.KindInvariant, "tool message missing tool_call_id")
		}
		if !h.answersPrecedingCallLocked(msg.ToolCallID) {
			return core.NewError(core.KindInvariant,
				"tool result %q does not answer a call in the nearest preceding assistant message", msg.ToolCallID)
		}
	}

	h.messages = append(h.messages, msg)
	h.trimLocked()
	return nil
}

// Trim enforces the maximum length policy, preserving the pinned system
// message and pair-atomicity between assistant messages and their results.
func (h *History) Trim() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trimLocked()
}

// Snapshot returns a copy of the current message sequence.
func (h *History) Snapshot() []core.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]core.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of stored messages, pinned system included.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Reset clears the history, reseeding it with the supplied system message
// (empty string leaves it fully empty).
func (h *History) Reset(system string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = h.messages[:0]
	h.pinned = false
	if system != "" {
		h.messages = append(h.messages, core.NewSystemMessage(system))
		h.pinned = true
	}
}

// answersPrecedingCallLocked walks back over the contiguous run of tool
// results at the tail; the message before that run must be an assistant
// message containing the referenced call id.
func (h *History) answersPrecedingCallLocked(callID string) bool {
	for i := len(h.messages) - 1; i >= 0; i-- {
		m := h.messages[i]
		if m.Role == core.RoleTool {
			continue
		}
		if m.Role != core.RoleAssistant {
			return false
		}
		for _, c := range m.ToolCalls {
			if c.ID == callID {
				return true
			}
		}
		return false
	}
	return false
}

func (h *History) trimLocked() {
	floor := 0
	if h.pinned {
		floor = 1
	}
	for len(h.messages)-floor > h.max {
		unit := 1
		oldest := h.messages[floor]
		if oldest.Role == core.RoleAssistant && oldest.HasToolCalls() {
			for floor+unit < len(h.messages) && h.messages[floor+unit].Role == core.RoleTool {
				unit++
			}
		}
		if floor+unit >= len(h.messages) {
			// Eviction unit spans the tail; removing it would empty the
			// conversation mid-round. Leave the overflow in place.
			return
		}
		h.logger.Debug("evicting history messages", "count", unit, "role", string(oldest.Role))
		h.messages = append(h.messages[:floor], h.messages[floor+unit:]...)
	}
}
