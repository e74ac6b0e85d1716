package tool

import (
	"context"
	"fmt"
	"time"
)

// NewCurrentTimeTool returns a local tool reporting the current date and
// time, optionally in a named IANA timezone. Models have no clock; exposing
// one keeps time-sensitive answers from drifting to the training cutoff.
func NewCurrentTimeTool() *FunctionTool {
	return NewFunctionTool(
		"current_time",
		"Get the current date and time. Accepts an optional IANA timezone name (e.g. \"Europe/Berlin\"); defaults to UTC.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "IANA timezone name, defaults to UTC",
				},
			},
		},
		func(_ context.Context, args map[string]any) (string, error) {
			loc := time.UTC
			if tz, ok := args["timezone"].(string); ok && tz != "" {
				l, err := time.LoadLocation(tz)
				if err != nil {
					return "", fmt.Errorf("unknown timezone %q: %w", tz, err)
				}
				loc = l
			}
			return time.Now().In(loc).Format("Monday, 2 January 2006 15:04:05 MST"), nil
		},
	)
}
