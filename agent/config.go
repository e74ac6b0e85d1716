// Package agent defines agent configurations: the in-memory contract the
// runtime requires from an externally loaded agent set. The primary agent
// handles all direct user turns; specialist agents are reachable only as
// tools, and only while enabled.
package agent

import (
	"fmt"
	"strings"
)

// DefaultModel is applied to configs constructed without an explicit model.
const DefaultModel = "anthropic/claude-sonnet-4.5"

// Config describes one agent. Field names mirror the persisted schema the
// external config loader materializes; the core never parses files itself.
type Config struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Instructions     string `json:"instructions"`
	Personality      string `json:"personality,omitempty"`
	Model            string `json:"model"`
	Enabled          bool   `json:"enabled"`
	IsPrimary        bool   `json:"isPrimary"`
	WebSearchEnabled bool   `json:"webSearchEnabled,omitempty"`
}

// New constructs an enabled, non-primary config with the default model.
func New(id, name string) Config {
	return Config{ID: id, Name: name, Model: DefaultModel, Enabled: true}
}

// DefaultAssistant returns the built-in primary assistant configuration.
func DefaultAssistant() Config {
	return Config{
		ID:   "assistant",
		Name: "Assistant",
		Instructions: strings.TrimSpace(`
You are a helpful, knowledgeable assistant. Answer questions directly and
accurately. When a specialist tool can provide better information than you
have, delegate to it rather than guessing.`),
		Model:     DefaultModel,
		Enabled:   true,
		IsPrimary: true,
	}
}

// WebSearch returns the built-in web-search specialist configuration. It
// runs a lightweight model and carries instructions tuned for synthesizing
// search results; pure tool agent, no personality.
func WebSearch() Config {
	return Config{
		ID:   "web_search",
		Name: "Web Search",
		Instructions: strings.TrimSpace(`
You are a web search specialist agent.

Your job is to:
1. Understand the user's search intent
2. Use web search capabilities to find current, relevant information
3. Synthesize findings into a clear, concise response
4. Cite your sources with URLs

Guidelines:
- Be concise but thorough
- Focus on factual, current information
- Prioritize authoritative sources
- Acknowledge if information is conflicting or uncertain

Format your responses with the summary answer first, supporting details
from sources next, and source citations at the end.`),
		Model:            "anthropic/claude-3.5-haiku",
		Enabled:          true,
		WebSearchEnabled: true,
	}
}

// ValidateSet checks an agent set for use by a runtime: ids must be unique
// and non-empty, and exactly one agent must be primary. The primary agent is
// always reachable, so a disabled primary is rejected.
func ValidateSet(configs []Config) error {
	if len(configs) == 0 {
		return fmt.Errorf("agent set is empty")
	}
	seen := make(map[string]struct{}, len(configs))
	primaries := 0
	for _, c := range configs {
		if c.ID == "" {
			return fmt.Errorf("agent %q has empty id", c.Name)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("duplicate agent id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
		if c.IsPrimary {
			primaries++
			if !c.Enabled {
				return fmt.Errorf("primary agent %q is disabled", c.ID)
			}
		}
	}
	if primaries != 1 {
		return fmt.Errorf("agent set must contain exactly one primary agent, found %d", primaries)
	}
	return nil
}

// Primary returns the primary agent of a validated set.
func Primary(configs []Config) (Config, bool) {
	for _, c := range configs {
		if c.IsPrimary {
			return c, true
		}
	}
	return Config{}, false
}

// Specialists returns the enabled non-primary agents of a set, in order.
func Specialists(configs []Config) []Config {
	var out []Config
	for _, c := range configs {
		if !c.IsPrimary && c.Enabled {
			out = append(out, c)
		}
	}
	return out
}
