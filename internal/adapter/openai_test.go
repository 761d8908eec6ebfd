package adapter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laplaque/llmguard/internal/adapter"
	"github.com/laplaque/llmguard/internal/types"
)

func newTestOpenAIAdapter(t *testing.T, handler http.HandlerFunc) *adapter.OpenAIAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := openai.NewClient(
		option.WithAPIKey("sk-test"),
		option.WithBaseURL(server.URL),
		option.WithHTTPClient(server.Client()),
	)
	return adapter.NewOpenAIAdapterWithClient(&client, 0)
}

func TestOpenAIAdapter_RoundTrip(t *testing.T) {
	a := newTestOpenAIAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": "hi there"}}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14},
		})
	})

	req := types.Request{
		ID:       "req-1",
		Provider: types.ProviderOpenAI,
		Model:    "gpt-4o-mini",
		Messages: []types.Message{{Role: types.RoleUser, TextContent: "hello"}},
	}
	providerReq, err := a.TransformRequest(req)
	require.NoError(t, err)

	raw, err := a.Execute(context.Background(), providerReq)
	require.NoError(t, err)

	resp, err := a.TransformResponse(raw, req.ID)
	require.NoError(t, err)
	m := resp.(map[string]any)
	assert.Equal(t, "hi there", m["content"])
	assert.Equal(t, string(types.FinishStop), m["finish_reason"])
}

func TestOpenAIAdapter_ValidateCapabilities(t *testing.T) {
	a := adapter.NewOpenAIAdapter("sk-test", "", 0)
	assert.True(t, a.ValidateCapabilities("gpt-4o", adapter.CapabilityToolUse))
	assert.True(t, a.ValidateCapabilities("gpt-4o", adapter.CapabilityStreaming))
}
