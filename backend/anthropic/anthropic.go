// Package anthropic provides a Backend over the Anthropic Messages API using
// the official SDK. The codec's content-block format maps almost one-to-one
// onto the Messages API, so translation here is mechanical.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bobmatnyc/rustbot-sub001/backend"
	"github.com/bobmatnyc/rustbot-sub001/core"
	"github.com/bobmatnyc/rustbot-sub001/wire"
)

const defaultMaxTokens = 4096

// Options configures the adapter.
type Options struct {
	// APIKey overrides the SDK's environment-based key lookup.
	APIKey string
	// BaseURL overrides the default API endpoint.
	BaseURL string
}

// Backend wraps the Anthropic Messages API behind the backend.Backend interface.
type Backend struct {
	client anthropicsdk.Client
}

var _ backend.Backend = (*Backend)(nil)

// New constructs an Anthropic backend using the official client.
func New(optFns ...func(o *Options)) *Backend {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &Backend{client: anthropicsdk.NewClient(clientOpts...)}
}

// Complete implements backend.Backend.
func (b *Backend) Complete(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}
	return fromSDKMessage(resp), nil
}

// Info implements backend.Backend.
func (b *Backend) Info() backend.Info {
	return backend.Info{Name: "messages-api", Provider: string(backend.ProviderAnthropic), SupportsTools: true}
}

func buildParams(req *wire.Request) (anthropicsdk.MessageNewParams, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		MaxTokens: maxTokens,
	}
	if req.Temperature != nil {
		params.Temperature = anthropicsdk.Float(*req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.System}}
	}
	for _, m := range req.Messages {
		mp, err := buildMessage(m)
		if err != nil {
			return anthropicsdk.MessageNewParams{}, err
		}
		params.Messages = append(params.Messages, mp)
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, buildTool(t))
	}
	return params, nil
}

func buildMessage(m wire.Message) (anthropicsdk.MessageParam, error) {
	var blocks []anthropicsdk.ContentBlockParamUnion
	if m.Content.Blocks == nil {
		blocks = append(blocks, anthropicsdk.NewTextBlock(m.Content.Text))
	} else {
		for _, blk := range m.Content.Blocks {
			switch blk.Type {
			case wire.BlockText:
				blocks = append(blocks, anthropicsdk.NewTextBlock(blk.Text))
			case wire.BlockToolUse:
				var input any
				if len(blk.Input) > 0 {
					if err := json.Unmarshal(blk.Input, &input); err != nil {
						return anthropicsdk.MessageParam{}, core.WrapError(core.KindProtocol, err, "tool_use input for %q", blk.Name)
					}
				}
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(blk.ID, input, blk.Name))
			case wire.BlockToolResult:
				blocks = append(blocks, anthropicsdk.NewToolResultBlock(blk.ToolUseID, blk.Content, false))
			}
		}
	}
	if m.Role == string(core.RoleAssistant) {
		return anthropicsdk.MessageParam{Role: anthropicsdk.MessageParamRoleAssistant, Content: blocks}, nil
	}
	return anthropicsdk.NewUserMessage(blocks...), nil
}

func buildTool(t wire.ToolDefinition) anthropicsdk.ToolUnionParam {
	toolParam := anthropicsdk.ToolParam{
		Name:        t.Name,
		Description: anthropicsdk.String(t.Description),
	}
	if props, ok := t.InputSchema["properties"]; ok {
		toolParam.InputSchema.Properties = props
	}
	if required, ok := t.InputSchema["required"]; ok {
		switch req := required.(type) {
		case []string:
			toolParam.InputSchema.Required = req
		case []any:
			for _, v := range req {
				if s, ok := v.(string); ok {
					toolParam.InputSchema.Required = append(toolParam.InputSchema.Required, s)
				}
			}
		}
	}
	return anthropicsdk.ToolUnionParam{OfTool: &toolParam}
}

// fromSDKMessage converts an SDK response into the codec's block shape.
func fromSDKMessage(msg *anthropicsdk.Message) *wire.Response {
	resp := &wire.Response{
		Role:       string(core.RoleAssistant),
		StopReason: string(msg.StopReason),
	}
	blocks := make([]wire.Block, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			blocks = append(blocks, wire.Block{Type: wire.BlockText, Text: b.Text})
		case anthropicsdk.ToolUseBlock:
			blocks = append(blocks, wire.Block{
				Type:  wire.BlockToolUse,
				ID:    b.ID,
				Name:  b.Name,
				Input: json.RawMessage(b.JSON.Input.Raw()),
			})
		}
	}
	resp.Content = wire.Content{Blocks: blocks}
	return resp
}

func classifyError(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return core.NewRateLimitedError(retryAfter(apiErr.Response), "anthropic rate limited")
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return core.WrapError(core.KindProtocol, err, "anthropic rejected request")
		}
	}
	return core.WrapError(core.KindNetwork, err, "anthropic api error")
}

func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
