// Package openai provides a Backend over the OpenAI Chat Completions API
// using the official SDK. Responses are returned in the OpenAI choice shape;
// the codec's Deserialize normalizes the function-nested tool calls.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bobmatnyc/rustbot-sub001/backend"
	"github.com/bobmatnyc/rustbot-sub001/core"
	"github.com/bobmatnyc/rustbot-sub001/wire"
)

// Options configures the adapter.
type Options struct {
	// APIKey overrides the SDK's environment-based key lookup.
	APIKey string
	// BaseURL overrides the default API endpoint.
	BaseURL string
}

// Backend wraps the OpenAI Chat Completions API behind the backend.Backend interface.
type Backend struct {
	client openaisdk.Client
}

var _ backend.Backend = (*Backend)(nil)

// New constructs an OpenAI backend using the official client.
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
	return &Backend{client: openaisdk.NewClient(clientOpts...)}
}

// Complete implements backend.Backend.
func (b *Backend) Complete(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	resp, err := b.client.Chat.Completions.New(ctx, buildParams(req))
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewError(core.KindProtocol, "no choices returned")
	}
	return fromSDKResponse(resp), nil
}

// Info implements backend.Backend.
func (b *Backend) Info() backend.Info {
	return backend.Info{Name: "chat-completions", Provider: string(backend.ProviderOpenAI), SupportsTools: true}
}

// buildParams converts the content-block request into chat messages,
// re-nesting tool_use blocks into function-style tool calls.
func buildParams(req *wire.Request) openaisdk.ChatCompletionNewParams {
	params := openaisdk.ChatCompletionNewParams{
		Model: req.Model,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = openaisdk.Float(*req.Temperature)
	}
	if req.System != "" {
		params.Messages = append(params.Messages, openaisdk.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		params.Messages = append(params.Messages, buildMessages(m)...)
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openaisdk.ChatCompletionToolParam{
			Type: "function",
			Function: openaisdk.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openaisdk.String(t.Description),
				Parameters:  t.InputSchema,
			},
		})
	}
	return params
}

func buildMessages(m wire.Message) []openaisdk.ChatCompletionMessageParamUnion {
	if m.Content.Blocks == nil {
		switch m.Role {
		case string(core.RoleAssistant):
			return []openaisdk.ChatCompletionMessageParamUnion{openaisdk.AssistantMessage(m.Content.Text)}
		default:
			return []openaisdk.ChatCompletionMessageParamUnion{openaisdk.UserMessage(m.Content.Text)}
		}
	}

	var out []openaisdk.ChatCompletionMessageParamUnion
	var text string
	var toolCalls []openaisdk.ChatCompletionMessageToolCallParam
	for _, blk := range m.Content.Blocks {
		switch blk.Type {
		case wire.BlockText:
			text += blk.Text
		case wire.BlockToolUse:
			toolCalls = append(toolCalls, openaisdk.ChatCompletionMessageToolCallParam{
				ID:   blk.ID,
				Type: "function",
				Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
					Name:      blk.Name,
					Arguments: string(blk.Input),
				},
			})
		case wire.BlockToolResult:
			out = append(out, openaisdk.ToolMessage(blk.Content, blk.ToolUseID))
		}
	}
	if len(toolCalls) > 0 {
		out = append(out, openaisdk.ChatCompletionMessageParamUnion{
			OfAssistant: &openaisdk.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: toolCalls,
			},
		})
	} else if text != "" {
		if m.Role == string(core.RoleAssistant) {
			out = append(out, openaisdk.AssistantMessage(text))
		} else {
			out = append(out, openaisdk.UserMessage(text))
		}
	}
	return out
}

// fromSDKResponse carries the first choice over in the OpenAI wire shape.
func fromSDKResponse(resp *openaisdk.ChatCompletion) *wire.Response {
	ch0 := resp.Choices[0]
	content := ch0.Message.Content
	choice := wire.Choice{
		Message: wire.ChoiceMessage{
			Role:    string(core.RoleAssistant),
			Content: &content,
		},
		FinishReason: string(ch0.FinishReason),
	}
	for _, tc := range ch0.Message.ToolCalls {
		choice.Message.ToolCalls = append(choice.Message.ToolCalls, wire.ResponseToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: wire.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return &wire.Response{Choices: []wire.Choice{choice}}
}

func classifyError(err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return core.NewRateLimitedError(retryAfter(apiErr.Response), "openai rate limited")
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return core.WrapError(core.KindProtocol, err, "openai rejected request")
		}
	}
	return core.WrapError(core.KindNetwork, err, "openai api error")
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
