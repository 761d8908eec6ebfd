package interceptors

import (
	"encoding/json"
	"fmt"

	"github.com/laplaque/llmguard/internal/result"
	"github.com/laplaque/llmguard/internal/types"
)

// GroundToolCalls validates each tool call in resp against an optional
// Skill Registry (§4.6). With no tool calls, or no registry injected,
// grounding is skipped and the response passes unchanged — a mandatory-
// registry mode is an explicitly open question (§9), not resolved here.
func GroundToolCalls(resp types.Response, registry SkillRegistry) result.Result[types.Response] {
	if len(resp.ToolCalls) == 0 {
		return result.Pass(resp)
	}
	if registry == nil {
		return result.Pass(resp)
	}

	validator, _ := registry.(ArgumentValidatingRegistry)

	var violations []types.Violation
	for _, tc := range resp.ToolCalls {
		if !registry.Has(tc.FunctionName) {
			violations = append(violations, types.NewViolation(
				types.CodeToolNotGrounded,
				types.InterceptorGrounding,
				fmt.Sprintf("tool call %q references an ungrounded skill", tc.FunctionName),
				map[string]any{"tool_call_id": tc.ID, "function_name": tc.FunctionName},
			))
			continue
		}

		if validator == nil {
			continue
		}

		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			violations = append(violations, types.NewViolation(
				types.CodeToolNotGrounded,
				types.InterceptorGrounding,
				fmt.Sprintf("tool call %q arguments are not valid JSON", tc.FunctionName),
				map[string]any{"tool_call_id": tc.ID, "function_name": tc.FunctionName, "raw_arguments": tc.Arguments},
			))
			continue
		}

		if !validator.ValidateArguments(tc.FunctionName, args) {
			violations = append(violations, types.NewViolation(
				types.CodeToolNotGrounded,
				types.InterceptorGrounding,
				fmt.Sprintf("tool call %q arguments failed registry validation", tc.FunctionName),
				map[string]any{"tool_call_id": tc.ID, "function_name": tc.FunctionName},
			))
		}
	}

	if len(violations) > 0 {
		return result.Block[types.Response](violations...)
	}
	return result.Pass(resp)
}
