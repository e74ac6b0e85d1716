// Package openrouter provides a Backend over any OpenAI-compatible chat
// completions endpoint (OpenRouter, Ollama, self-hosted gateways). It posts
// raw JSON rather than going through a vendor SDK, translating the codec's
// content-block format into the endpoint's function-nested tool-call shape.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bobmatnyc/rustbot-sub001/backend"
	"github.com/bobmatnyc/rustbot-sub001/core"
	"github.com/bobmatnyc/rustbot-sub001/wire"
)

// Options configures the adapter.
type Options struct {
	// BaseURL of the chat completions API, without the trailing path.
	BaseURL string
	// APIKey sent as a bearer token; may be empty for local endpoints.
	APIKey string
	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
}

// Backend posts completion requests to an OpenAI-compatible endpoint.
type Backend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ backend.Backend = (*Backend)(nil)

// New constructs an OpenRouter-style backend.
func New(optFns ...func(o *Options)) *Backend {
	opts := Options{
		BaseURL:    backend.ProviderOpenRouter.DefaultBaseURL(),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Backend{baseURL: opts.BaseURL, apiKey: opts.APIKey, client: opts.HTTPClient}
}

// chatMessage is the endpoint's message shape. Tool calls reuse the wire
// package's function-nested types since responses arrive in the same form.
type chatMessage struct {
	Role       string                  `json:"role"`
	Content    string                  `json:"content"`
	ToolCalls  []wire.ResponseToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                  `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	MaxTokens   int64         `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// Complete implements backend.Backend.
func (b *Backend) Complete(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	body, err := json.Marshal(buildChatRequest(req))
	if err != nil {
		return nil, core.WrapError(core.KindProtocol, err, "encode chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, core.WrapError(core.KindNetwork, err, "build chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, core.WrapError(core.KindNetwork, err, "chat completions call")
	}
	defer func() { _ = httpResp.Body.Close() }()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, core.WrapError(core.KindNetwork, err, "read chat completions response")
	}

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, core.NewRateLimitedError(retryAfter(httpResp), "chat completions rate limited")
	case httpResp.StatusCode >= 400 && httpResp.StatusCode < 500:
		return nil, core.NewError(core.KindProtocol, "chat completions rejected (%d): %s", httpResp.StatusCode, truncateBody(payload))
	case httpResp.StatusCode >= 500:
		return nil, core.NewError(core.KindNetwork, "chat completions failed (%d): %s", httpResp.StatusCode, truncateBody(payload))
	}

	var resp wire.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, core.WrapError(core.KindProtocol, err, "decode chat completions response")
	}
	return &resp, nil
}

// Info implements backend.Backend.
func (b *Backend) Info() backend.Info {
	return backend.Info{Name: b.baseURL, Provider: string(backend.ProviderOpenRouter), SupportsTools: true}
}

// buildChatRequest flattens the content-block request into the endpoint's
// shape: tool_use blocks become function-nested tool calls with re-encoded
// argument strings, tool_result messages become role "tool" entries.
func buildChatRequest(req *wire.Request) chatRequest {
	out := chatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		if m.Content.Blocks == nil {
			out.Messages = append(out.Messages, chatMessage{Role: m.Role, Content: m.Content.Text})
			continue
		}
		cm := chatMessage{Role: m.Role}
		for _, blk := range m.Content.Blocks {
			switch blk.Type {
			case wire.BlockText:
				cm.Content += blk.Text
			case wire.BlockToolUse:
				cm.ToolCalls = append(cm.ToolCalls, wire.ResponseToolCall{
					ID:   blk.ID,
					Type: "function",
					Function: wire.FunctionCall{
						Name:      blk.Name,
						Arguments: string(blk.Input),
					},
				})
			case wire.BlockToolResult:
				cm.Role = "tool"
				cm.ToolCallID = blk.ToolUseID
				cm.Content = blk.Content
			}
		}
		out.Messages = append(out.Messages, cm)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, chatTool{
			Type: "function",
			Function: chatToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return fmt.Sprintf("%s... (%d bytes)", body[:limit], len(body))
	}
	return string(body)
}
