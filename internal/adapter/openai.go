package adapter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/laplaque/llmguard/internal/types"
)

var openaiRates = map[string][2]float64{
	"gpt-4o":      {2.50, 10.00},
	"gpt-4o-mini": {0.15, 0.60},
	"gpt-4-turbo": {10.00, 30.00},
}

const openaiDefaultInputRate, openaiDefaultOutputRate = 0.15, 0.60

// OpenAIAdapter implements Adapter over the official openai-go SDK client.
// Unlike AnthropicAdapter and OllamaAdapter it does not go through the
// shared Base's Fetcher — the SDK owns its own HTTP transport — but it
// still runs every call through Base.ExecuteWithRetry for the shared
// rate-limiting and bounded-retry policy (§4.9).
type OpenAIAdapter struct {
	*Base
	client *openai.Client
}

// NewOpenAIAdapter constructs an adapter. baseURL overrides the SDK's
// default endpoint (empty string keeps api.openai.com); this is also how a
// caller would point the adapter at an OpenAI-compatible gateway.
func NewOpenAIAdapter(apiKey, baseURL string, requestsPerSecond float64) *OpenAIAdapter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIAdapter{
		Base:   NewBase(nil, requestsPerSecond),
		client: &client,
	}
}

// NewOpenAIAdapterWithClient wraps an already-configured SDK client,
// e.g. one pointed at Azure OpenAI or a test server via option.WithBaseURL
// and option.WithHTTPClient.
func NewOpenAIAdapterWithClient(client *openai.Client, requestsPerSecond float64) *OpenAIAdapter {
	return &OpenAIAdapter{Base: NewBase(nil, requestsPerSecond), client: client}
}

// TransformRequest converts a canonical Request into OpenAI chat-completion
// parameters.
func (a *OpenAIAdapter) TransformRequest(req types.Request) (any, error) {
	if len(req.Tools) > 0 && !a.ValidateCapabilities(req.Model, CapabilityToolUse) {
		return nil, fmt.Errorf("openai: model %q does not support tool use", req.Model)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: openaiMessages(req),
	}
	if req.MaxOutputTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxOutputTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = openaiTools(req.Tools)
	}
	return params, nil
}

func openaiMessages(req types.Request) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		out = append(out, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		text := m.TextContent
		if m.IsBlockForm() {
			text = ""
			for _, b := range m.Blocks {
				text += flattenBlockText(b)
			}
		}
		switch m.Role {
		case types.RoleUser:
			out = append(out, openai.UserMessage(text))
		case types.RoleAssistant:
			out = append(out, openai.AssistantMessage(text))
		case types.RoleTool:
			out = append(out, openai.ToolMessage(text, ""))
		default:
			out = append(out, openai.UserMessage(text))
		}
	}
	return out
}

func openaiTools(tools []types.ToolDefinition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, t := range tools {
		var params openai.FunctionParameters
		if schema, ok := t.InputSchema.(map[string]any); ok {
			params = schema
		}
		out[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  params,
		})
	}
	return out
}

// Execute calls the OpenAI SDK's chat completion endpoint through the
// shared rate limiter and bounded retry.
func (a *OpenAIAdapter) Execute(ctx context.Context, providerRequest any) (any, error) {
	params, ok := providerRequest.(openai.ChatCompletionNewParams)
	if !ok {
		return nil, fmt.Errorf("openai: unexpected provider request type %T", providerRequest)
	}

	return a.ExecuteWithRetry(ctx, func(attemptCtx context.Context) (any, error) {
		completion, err := a.client.Chat.Completions.New(attemptCtx, params)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		return completion, nil
	})
}

// TransformResponse maps an *openai.ChatCompletion into the canonical map
// the schema enforcer expects.
func (a *OpenAIAdapter) TransformResponse(raw any, requestID string) (any, error) {
	completion, ok := raw.(*openai.ChatCompletion)
	if !ok {
		return nil, fmt.Errorf("openai: unexpected response type %T", raw)
	}

	out := map[string]any{
		"schema_version": types.SchemaVersion,
		"id":             requestID,
		"model_used":     completion.Model,
		"tool_calls":     []any{},
		"finish_reason":  string(types.FinishContentFilter),
	}

	inputTokens := int(completion.Usage.PromptTokens)
	outputTokens := int(completion.Usage.CompletionTokens)
	inRate, outRate := openaiDefaultInputRate, openaiDefaultOutputRate
	if rates, ok := openaiRates[completion.Model]; ok {
		inRate, outRate = rates[0], rates[1]
	}
	out["usage"] = map[string]any{
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
		"cost_usd":      ComputeCost(inputTokens, outputTokens, inRate, outRate),
	}

	if len(completion.Choices) == 0 {
		return out, nil
	}
	choice := completion.Choices[0]

	if choice.Message.Content != "" {
		out["content"] = choice.Message.Content
	}
	if len(choice.Message.ToolCalls) > 0 {
		toolCalls := make([]any, 0, len(choice.Message.ToolCalls))
		for _, tc := range choice.Message.ToolCalls {
			toolCalls = append(toolCalls, map[string]any{
				"id":            tc.ID,
				"function_name": tc.Function.Name,
				"arguments":     tc.Function.Arguments,
			})
		}
		out["tool_calls"] = toolCalls
	}
	out["finish_reason"] = string(openaiFinishReason(string(choice.FinishReason)))
	return out, nil
}

func openaiFinishReason(reason string) types.FinishReason {
	switch reason {
	case "stop":
		return types.FinishStop
	case "tool_calls":
		return types.FinishToolUse
	case "length":
		return types.FinishLength
	default:
		return types.FinishContentFilter
	}
}

// ValidateCapabilities reports tool use, system prompts, and streaming as
// supported by every current GPT-4-class chat model.
func (a *OpenAIAdapter) ValidateCapabilities(model string, capability Capability) bool {
	switch capability {
	case CapabilityToolUse, CapabilitySystemPrompt, CapabilityStreaming:
		return true
	default:
		return false
	}
}
