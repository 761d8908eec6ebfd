package pipeline_test

import (
	"context"
	"errors"

	"github.com/laplaque/llmguard/internal/adapter"
	"github.com/laplaque/llmguard/internal/types"
)

// stubAdapter is the §8 "stub adapter whose execute returns pre-canned
// bytes" — every scenario in the end-to-end table is realizable with it, so
// no network is needed.
type stubAdapter struct {
	rawResponse     map[string]any
	transformErr    error
	executeErr      error
	transformRespErr error
	executeCalled   bool
	lastRequest     types.Request
}

func (s *stubAdapter) TransformRequest(req types.Request) (any, error) {
	s.lastRequest = req
	if s.transformErr != nil {
		return nil, s.transformErr
	}
	return req, nil
}

func (s *stubAdapter) Execute(ctx context.Context, providerRequest any) (any, error) {
	s.executeCalled = true
	if s.executeErr != nil {
		return nil, s.executeErr
	}
	return providerRequest, nil
}

func (s *stubAdapter) TransformResponse(raw any, requestID string) (any, error) {
	if s.transformRespErr != nil {
		return nil, s.transformRespErr
	}
	out := make(map[string]any, len(s.rawResponse))
	for k, v := range s.rawResponse {
		out[k] = v
	}
	if _, present := out["id"]; !present {
		out["id"] = requestID
	}
	return out, nil
}

func (s *stubAdapter) ValidateCapabilities(model string, capability adapter.Capability) bool {
	return true
}

var errStubExecute = errors.New("stub transport failure")

func okRawResponse(content string, finish types.FinishReason) map[string]any {
	return map[string]any{
		"schema_version": 1,
		"model_used":     "stub-model",
		"content":        content,
		"tool_calls":     []any{},
		"finish_reason":  string(finish),
		"usage": map[string]any{
			"input_tokens":  10,
			"output_tokens": 8,
			"cost_usd":      0.00015,
		},
	}
}
