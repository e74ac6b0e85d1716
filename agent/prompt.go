package agent

import "strings"

// BuildSystemPrompt assembles the complete system message for an agent:
// shared system-level instructions, then the agent's own instructions and
// personality as separate sections. Empty parts are skipped.
func BuildSystemPrompt(shared string, cfg Config) string {
	var parts []string
	if shared != "" {
		parts = append(parts, shared)
	}
	if cfg.Instructions != "" {
		parts = append(parts, "## Agent Instructions\n\n"+cfg.Instructions)
	}
	if cfg.Personality != "" {
		parts = append(parts, "## Agent Personality\n\n"+cfg.Personality)
	}
	return strings.Join(parts, "\n\n")
}
