package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/laplaque/llmguard/internal/types"
)

// Per-million-token pricing used by ComputeCost. Anthropic does not publish
// these through an API the adapter can query at request time, so the
// reference adapter hardcodes a small table and falls back to the
// cheapest-tier rate for an unlisted model rather than failing the call.
var anthropicRates = map[string][2]float64{
	"claude-3-5-sonnet-20241022": {3.00, 15.00},
	"claude-3-5-haiku-20241022":  {0.80, 4.00},
	"claude-3-opus-20240229":     {15.00, 75.00},
}

const anthropicDefaultInputRate, anthropicDefaultOutputRate = 0.80, 4.00

// AnthropicAdapter implements Adapter against Anthropic's Messages API
// (https://api.anthropic.com/v1/messages) using the shared Base for
// retry/backoff/timeout/rate-limiting (§4.9).
type AnthropicAdapter struct {
	*Base
	APIKey     string
	BaseURL    string
	APIVersion string
}

// NewAnthropicAdapter constructs an adapter. fetcher is typically an
// *http.Client; tests substitute a fake. requestsPerSecond <= 0 disables
// adapter-side rate limiting.
func NewAnthropicAdapter(apiKey string, fetcher Fetcher, requestsPerSecond float64) *AnthropicAdapter {
	return &AnthropicAdapter{
		Base:       NewBase(fetcher, requestsPerSecond),
		APIKey:     apiKey,
		BaseURL:    "https://api.anthropic.com/v1/messages",
		APIVersion: "2023-06-01",
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string                `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

// TransformRequest converts a canonical Request into Anthropic's Messages
// API body. A missing MaxOutputTokens defaults to 4096, mirroring
// Anthropic's own SDK default.
func (a *AnthropicAdapter) TransformRequest(req types.Request) (any, error) {
	if len(req.Tools) > 0 && !a.ValidateCapabilities(req.Model, CapabilityToolUse) {
		return nil, fmt.Errorf("anthropic: model %q does not support tool use", req.Model)
	}

	maxTokens := 4096
	if req.MaxOutputTokens != nil {
		maxTokens = *req.MaxOutputTokens
	}

	out := anthropicRequest{
		Model:     req.Model,
		System:    req.System,
		MaxTokens: maxTokens,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, anthropicMessage{
			Role:    string(m.Role),
			Content: flattenToAnthropicBlocks(m),
		})
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out, nil
}

func flattenToAnthropicBlocks(m types.Message) []anthropicContentBlock {
	if !m.IsBlockForm() {
		return []anthropicContentBlock{{Type: "text", Text: m.TextContent}}
	}
	var out []anthropicContentBlock
	for _, b := range m.Blocks {
		out = append(out, anthropicContentBlock{Type: "text", Text: flattenBlockText(b)})
	}
	return out
}

func flattenBlockText(b types.ContentBlock) string {
	text := b.Text
	for _, c := range b.Content {
		text += flattenBlockText(c)
	}
	return text
}

// Execute performs the HTTP call through the shared retry/backoff/timeout
// machinery. A 4xx response other than 429 is permanent (retrying cannot
// help); a 429, a 5xx, or a transport error is retried up to the base's
// configured attempt count.
func (a *AnthropicAdapter) Execute(ctx context.Context, providerRequest any) (any, error) {
	body, err := json.Marshal(providerRequest)
	if err != nil {
		return nil, fmt.Errorf("anthropic: encode request: %w", err)
	}

	result, err := a.ExecuteWithRetry(ctx, func(attemptCtx context.Context) (any, error) {
		httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, a.BaseURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", a.APIKey)
		httpReq.Header.Set("anthropic-version", a.APIVersion)

		resp, err := a.Fetcher.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("anthropic: transport error: %w", err)
		}
		defer resp.Body.Close() //nolint:errcheck // best-effort close on response body

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("anthropic: read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			httpErr := fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, respBody)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, permanent(httpErr)
			}
			return nil, httpErr
		}

		var parsed map[string]any
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("anthropic: decode response: %w", err)
		}
		return parsed, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransformResponse maps Anthropic's Messages API response shape into the
// canonical map the schema enforcer expects.
func (a *AnthropicAdapter) TransformResponse(raw any, requestID string) (any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("anthropic: unexpected response shape %T", raw)
	}

	var contentText *string
	var toolCalls []any
	if contentArr, ok := m["content"].([]any); ok {
		for _, item := range contentArr {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			switch block["type"] {
			case "text":
				if s, ok := block["text"].(string); ok {
					if contentText == nil {
						contentText = new(string)
					}
					*contentText += s
				}
			case "tool_use":
				args, _ := json.Marshal(block["input"])
				toolCalls = append(toolCalls, map[string]any{
					"id":            block["id"],
					"function_name": block["name"],
					"arguments":     string(args),
				})
			}
		}
	}

	model, _ := m["model"].(string)
	inputTokens, outputTokens := 0, 0
	if usage, ok := m["usage"].(map[string]any); ok {
		inputTokens = intFrom(usage["input_tokens"])
		outputTokens = intFrom(usage["output_tokens"])
	}
	inRate, outRate := anthropicDefaultInputRate, anthropicDefaultOutputRate
	if rates, ok := anthropicRates[model]; ok {
		inRate, outRate = rates[0], rates[1]
	}

	out := map[string]any{
		"schema_version": types.SchemaVersion,
		"id":             requestID,
		"model_used":     model,
		"finish_reason":  string(anthropicFinishReason(stringFrom(m["stop_reason"]))),
		"tool_calls":     toolCalls,
		"usage": map[string]any{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"cost_usd":      ComputeCost(inputTokens, outputTokens, inRate, outRate),
		},
	}
	if contentText != nil {
		out["content"] = *contentText
	}
	return out, nil
}

func anthropicFinishReason(stopReason string) types.FinishReason {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return types.FinishStop
	case "tool_use":
		return types.FinishToolUse
	case "max_tokens":
		return types.FinishLength
	default:
		return types.FinishContentFilter
	}
}

// ValidateCapabilities reports tool use and system prompts as universally
// supported by current Claude models; streaming is not implemented by this
// adapter.
func (a *AnthropicAdapter) ValidateCapabilities(model string, capability Capability) bool {
	switch capability {
	case CapabilityToolUse, CapabilitySystemPrompt:
		return true
	default:
		return false
	}
}

func intFrom(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func stringFrom(v any) string {
	s, _ := v.(string)
	return s
}
