package adapter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laplaque/llmguard/internal/adapter"
	"github.com/laplaque/llmguard/internal/types"
)

func TestOllamaAdapter_RoundTrip(t *testing.T) {
	fetcher := &fakeFetcher{status: 200, body: `{
		"model": "qwen2.5:3b",
		"message": {"role":"assistant","content":"hi from ollama"},
		"done": true,
		"prompt_eval_count": 12,
		"eval_count": 6
	}`}
	a := adapter.NewOllamaAdapter("http://localhost:11434", fetcher)

	req := types.Request{
		ID:       "req-3",
		Provider: types.ProviderLocalOllama,
		Model:    "qwen2.5:3b",
		Messages: []types.Message{{Role: types.RoleUser, TextContent: "hello"}},
	}

	providerReq, err := a.TransformRequest(req)
	require.NoError(t, err)

	raw, err := a.Execute(context.Background(), providerReq)
	require.NoError(t, err)

	resp, err := a.TransformResponse(raw, req.ID)
	require.NoError(t, err)
	m := resp.(map[string]any)
	assert.Equal(t, "hi from ollama", m["content"])
	usage := m["usage"].(map[string]any)
	assert.Equal(t, 0.0, usage["cost_usd"])
}

func TestOllamaAdapter_NoToolUseCapability(t *testing.T) {
	a := adapter.NewOllamaAdapter("http://localhost:11434", &fakeFetcher{})
	assert.False(t, a.ValidateCapabilities("qwen2.5:3b", adapter.CapabilityToolUse))
	assert.True(t, a.ValidateCapabilities("qwen2.5:3b", adapter.CapabilitySystemPrompt))
}

func TestOllamaAdapter_5xxIsRetried(t *testing.T) {
	fetcher := &fakeFetcher{status: 503, body: `server busy`}
	a := adapter.NewOllamaAdapter("http://localhost:11434", fetcher)

	providerReq, err := a.TransformRequest(types.Request{Model: "qwen2.5:3b", Messages: []types.Message{{Role: types.RoleUser, TextContent: "hi"}}})
	require.NoError(t, err)

	_, err = a.Execute(context.Background(), providerReq)
	assert.Error(t, err)
	assert.GreaterOrEqual(t, fetcher.calls, 2, "a 5xx should be retried")
}
