package interceptors

import (
	"fmt"

	"github.com/laplaque/llmguard/internal/result"
	"github.com/laplaque/llmguard/internal/types"
)

// EnforceSchema validates an adapter's raw transformResponse output field by
// field (§4.5) and, on success, returns it typed as a canonical
// types.Response. Every failing field emits its own SCHEMA_MISMATCH
// violation; all are collected rather than short-circuited, so a caller
// sees every structural problem at once.
func EnforceSchema(raw any) result.Result[types.Response] {
	m, ok := raw.(map[string]any)
	if !ok {
		return result.Block[types.Response](fieldViolation("<root>", "response value is not an object"))
	}

	var violations []types.Violation
	resp := types.Response{}

	if v, present := m["schema_version"]; !present {
		violations = append(violations, fieldViolation("schema_version", "missing"))
	} else if n, ok := asNumber(v); !ok || int(n) != types.SchemaVersion {
		violations = append(violations, fieldViolation("schema_version", fmt.Sprintf("must equal %d", types.SchemaVersion)))
	} else {
		resp.SchemaVersion = types.SchemaVersion
	}

	if id, ok := m["id"].(string); !ok || id == "" {
		violations = append(violations, fieldViolation("id", "must be a non-empty string"))
	} else {
		resp.ID = id
	}

	if mu, ok := m["model_used"].(string); !ok {
		violations = append(violations, fieldViolation("model_used", "must be a string"))
	} else {
		resp.ModelUsed = mu
	}

	if cv, present := m["content"]; present && cv != nil {
		if s, ok := cv.(string); ok {
			resp.Content = &s
		} else {
			violations = append(violations, fieldViolation("content", "must be a string or absent"))
		}
	}

	if tcRaw, present := m["tool_calls"]; present && tcRaw != nil {
		arr, ok := tcRaw.([]any)
		if !ok {
			violations = append(violations, fieldViolation("tool_calls", "must be an ordered sequence"))
		} else {
			for _, item := range arr {
				tc, ok := toolCallFrom(item)
				if !ok {
					violations = append(violations, fieldViolation("tool_calls", "each element needs string function_name and arguments"))
					continue
				}
				resp.ToolCalls = append(resp.ToolCalls, tc)
			}
		}
	}

	if fr, ok := m["finish_reason"].(string); !ok || !types.FinishReason(fr).Valid() {
		violations = append(violations, fieldViolation("finish_reason", "must be one of stop, tool_use, length, content_filter"))
	} else {
		resp.FinishReason = types.FinishReason(fr)
	}

	if usageRaw, ok := m["usage"].(map[string]any); !ok {
		violations = append(violations, fieldViolation("usage", "must be a record"))
	} else if usage, ok := usageFrom(usageRaw); !ok {
		violations = append(violations, fieldViolation("usage", "must contain numeric input_tokens, output_tokens, cost_usd"))
	} else {
		resp.Usage = usage
	}

	if len(violations) > 0 {
		return result.Block[types.Response](violations...)
	}
	return result.Pass(resp)
}

func toolCallFrom(item any) (types.ToolCall, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return types.ToolCall{}, false
	}
	fn, fnOK := m["function_name"].(string)
	args, argsOK := m["arguments"].(string)
	if !fnOK || !argsOK {
		return types.ToolCall{}, false
	}
	id, _ := m["id"].(string)
	return types.ToolCall{ID: id, FunctionName: fn, Arguments: args}, true
}

func usageFrom(m map[string]any) (types.Usage, bool) {
	in, inOK := asNumber(m["input_tokens"])
	out, outOK := asNumber(m["output_tokens"])
	cost, costOK := asNumber(m["cost_usd"])
	if !inOK || !outOK || !costOK {
		return types.Usage{}, false
	}
	return types.Usage{InputTokens: int(in), OutputTokens: int(out), CostUSD: cost}, true
}

// asNumber accepts both float64 (the shape encoding/json produces) and int
// (the shape a hand-built stub adapter in a test is likely to use).
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func fieldViolation(field, reason string) types.Violation {
	return types.NewViolation(types.CodeSchemaMismatch, types.InterceptorSchema,
		fmt.Sprintf("field %q invalid: %s", field, reason),
		map[string]any{"field": field})
}
