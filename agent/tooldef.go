package agent

import (
	"strings"

	"github.com/bobmatnyc/rustbot-sub001/wire"
)

// webSearchDescription is a hand-tuned description for the built-in search
// specialist; it matters more than most because it steers the primary
// agent's delegation decisions.
const webSearchDescription = "Search the web for current, real-time information. " +
	"Use this when the user asks about recent events, current data, weather, news, " +
	"or any information after your knowledge cutoff. Provide a clear, specific search query."

// ToolDefinition converts an enabled specialist agent into a tool definition
// the primary agent can call. Primary or disabled agents are never tools;
// callers should filter with Specialists first.
func ToolDefinition(cfg Config) wire.ToolDefinition {
	return wire.ToolDefinition{
		Name:        cfg.ID,
		Description: toolDescription(cfg),
		InputSchema: toolParameters(cfg),
	}
}

// ToolDefinitions converts every enabled specialist in the set.
func ToolDefinitions(configs []Config) []wire.ToolDefinition {
	specialists := Specialists(configs)
	if len(specialists) == 0 {
		return nil
	}
	defs := make([]wire.ToolDefinition, len(specialists))
	for i, c := range specialists {
		defs[i] = ToolDefinition(c)
	}
	return defs
}

// maxToolDescription caps derived descriptions; backends reject or waste
// tokens on overlong function descriptions.
const maxToolDescription = 300

// toolDescription derives a tool description from the agent's instructions:
// the first paragraph is usually a good summary of what the agent does.
func toolDescription(cfg Config) string {
	if cfg.ID == "web_search" {
		return webSearchDescription
	}
	var lines []string
	for _, line := range strings.Split(cfg.Instructions, "\n") {
		if strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}
	desc := strings.TrimSpace(strings.Join(lines, " "))
	if desc == "" {
		return cfg.Name + " agent"
	}
	if len(desc) > maxToolDescription {
		desc = desc[:maxToolDescription-3] + "..."
	}
	return desc
}

// toolParameters builds the argument schema. Web search takes a dedicated
// query parameter; generic specialists take a free-form message.
func toolParameters(cfg Config) map[string]any {
	if cfg.ID == "web_search" {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query to execute",
				},
			},
			"required": []string{"query"},
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The message to send to the agent",
			},
		},
		"required": []string{"message"},
	}
}
