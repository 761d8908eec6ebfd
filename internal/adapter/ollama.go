package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/laplaque/llmguard/internal/types"
)

// OllamaAdapter implements Adapter against a local Ollama server's chat
// endpoint (POST /api/chat). Local inference has no metered cost, so every
// call reports cost_usd of zero regardless of token counts.
type OllamaAdapter struct {
	*Base
	Endpoint string
}

// NewOllamaAdapter constructs an adapter against endpoint (e.g.
// "http://localhost:11434"). Local calls are not rate limited by default.
func NewOllamaAdapter(endpoint string, fetcher Fetcher) *OllamaAdapter {
	return &OllamaAdapter{
		Base:     NewBase(fetcher, 0),
		Endpoint: strings.TrimRight(endpoint, "/"),
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TransformRequest converts a canonical Request into Ollama's chat body.
// Ollama has no tool-use support in the reference adapter, so a request
// carrying tool definitions is rejected.
func (a *OllamaAdapter) TransformRequest(req types.Request) (any, error) {
	if len(req.Tools) > 0 && !a.ValidateCapabilities(req.Model, CapabilityToolUse) {
		return nil, fmt.Errorf("ollama: model %q does not support tool use", req.Model)
	}

	out := ollamaRequest{Model: req.Model, Stream: false}
	if req.System != "" {
		out.Messages = append(out.Messages, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		text := m.TextContent
		if m.IsBlockForm() {
			text = ""
			for _, b := range m.Blocks {
				text += flattenBlockText(b)
			}
		}
		out.Messages = append(out.Messages, ollamaMessage{Role: string(m.Role), Content: text})
	}
	return out, nil
}

// Execute posts to the local Ollama server through the shared
// retry/backoff/timeout machinery.
func (a *OllamaAdapter) Execute(ctx context.Context, providerRequest any) (any, error) {
	body, err := json.Marshal(providerRequest)
	if err != nil {
		return nil, fmt.Errorf("ollama: encode request: %w", err)
	}

	return a.ExecuteWithRetry(ctx, func(attemptCtx context.Context) (any, error) {
		httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, a.Endpoint+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := a.Fetcher.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("ollama: transport error: %w", err)
		}
		defer resp.Body.Close() //nolint:errcheck // best-effort close on response body

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("ollama: read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			err := fmt.Errorf("ollama: status %d: %s", resp.StatusCode, respBody)
			if resp.StatusCode < 500 {
				return nil, permanent(err)
			}
			return nil, err
		}

		var parsed map[string]any
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("ollama: decode response: %w", err)
		}
		return parsed, nil
	})
}

// TransformResponse maps Ollama's chat response into the canonical map the
// schema enforcer expects.
func (a *OllamaAdapter) TransformResponse(raw any, requestID string) (any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("ollama: unexpected response shape %T", raw)
	}

	model, _ := m["model"].(string)
	var content string
	if msg, ok := m["message"].(map[string]any); ok {
		content, _ = msg["content"].(string)
	}

	inputTokens := intFrom(m["prompt_eval_count"])
	outputTokens := intFrom(m["eval_count"])

	finish := types.FinishStop
	if done, ok := m["done"].(bool); ok && !done {
		finish = types.FinishLength
	}

	return map[string]any{
		"schema_version": types.SchemaVersion,
		"id":             requestID,
		"model_used":     model,
		"content":        content,
		"tool_calls":     []any{},
		"finish_reason":  string(finish),
		"usage": map[string]any{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"cost_usd":      0.0,
		},
	}, nil
}

// ValidateCapabilities reports only system prompts as supported; the
// reference adapter does not implement tool use or streaming for local
// models.
func (a *OllamaAdapter) ValidateCapabilities(model string, capability Capability) bool {
	return capability == CapabilitySystemPrompt
}
