package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmatnyc/rustbot-sub001/core"
	"github.com/bobmatnyc/rustbot-sub001/wire"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Backend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(func(o *Options) {
		o.BaseURL = srv.URL
		o.APIKey = "test-key"
	})
}

func sampleRequest() *wire.Request {
	return &wire.Request{
		Model:  "anthropic/claude-sonnet-4.5",
		System: "You are helpful.",
		Messages: []wire.Message{
			{Role: "user", Content: wire.Content{Text: "hi"}},
		},
		Tools: []wire.ToolDefinition{{
			Name:        "echo",
			Description: "Echo text",
			InputSchema: map[string]any{"type": "object"},
		}},
		MaxTokens: 1024,
	}
}

func TestCompleteBuildsChatRequest(t *testing.T) {
	var got chatRequest
	var auth string
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`))
	})

	resp, err := b.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello", *resp.Choices[0].Message.Content)

	assert.Equal(t, "Bearer test-key", auth)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "You are helpful.", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "function", got.Tools[0].Type)
	assert.Equal(t, "echo", got.Tools[0].Function.Name)
}

func TestCompleteFlattensToolTraffic(t *testing.T) {
	var got chatRequest
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})

	req := &wire.Request{
		Model: "m",
		Messages: []wire.Message{
			{Role: "assistant", Content: wire.Content{Blocks: []wire.Block{
				{Type: wire.BlockText, Text: "checking"},
				{Type: wire.BlockToolUse, ID: "call_1", Name: "echo", Input: json.RawMessage(`{"text":"x"}`)},
			}}},
			{Role: "user", Content: wire.Content{Blocks: []wire.Block{
				{Type: wire.BlockToolResult, ToolUseID: "call_1", Content: "x"},
			}}},
		},
	}
	_, err := b.Complete(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, got.Messages, 2)
	asst := got.Messages[0]
	assert.Equal(t, "assistant", asst.Role)
	assert.Equal(t, "checking", asst.Content)
	require.Len(t, asst.ToolCalls, 1)
	assert.Equal(t, "call_1", asst.ToolCalls[0].ID)
	assert.JSONEq(t, `{"text":"x"}`, asst.ToolCalls[0].Function.Arguments)

	result := got.Messages[1]
	assert.Equal(t, "tool", result.Role)
	assert.Equal(t, "call_1", result.ToolCallID)
	assert.Equal(t, "x", result.Content)
}

func TestCompleteRateLimited(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := b.Complete(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindRateLimited))

	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, 7*time.Second, coreErr.RetryAfter)
}

func TestCompleteClientError(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	})

	_, err := b.Complete(context.Background(), sampleRequest())
	assert.True(t, core.IsKind(err, core.KindProtocol))
}

func TestCompleteServerError(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := b.Complete(context.Background(), sampleRequest())
	assert.True(t, core.IsKind(err, core.KindNetwork))
}

func TestCompleteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	b := New(func(o *Options) { o.BaseURL = srv.URL })

	_, err := b.Complete(context.Background(), sampleRequest())
	assert.True(t, core.IsKind(err, core.KindNetwork))
}

func TestCompleteMalformedBody(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := b.Complete(context.Background(), sampleRequest())
	assert.True(t, core.IsKind(err, core.KindProtocol))
}
