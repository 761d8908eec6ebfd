package interceptors

import (
	"fmt"
	"math"

	"github.com/laplaque/llmguard/internal/result"
	"github.com/laplaque/llmguard/internal/types"
)

// conservativePerTokenUSD is the pre-flight cost-estimation rate named in
// §4.4: a deliberately conservative per-token price used only to reject
// requests before any provider is ever called.
const conservativePerTokenUSD = 15.0 / 1_000_000

// AlignmentPolicy is the subset of the Policy Configuration the alignment
// checker needs. Declared locally (rather than importing internal/config)
// so this package has no dependency on how configuration is loaded —
// only on the values it enforces.
type AlignmentPolicy struct {
	AllowedProviders     map[types.Provider]bool
	MaxTokenSpendPerCall float64
}

// CheckAlignment runs the three pre-flight policy checks (§4.4). All three
// always run; their violations are aggregated into a single block rather
// than short-circuiting at the first failure.
func CheckAlignment(req types.Request, policy AlignmentPolicy, registry SkillRegistry) result.Result[types.Request] {
	var violations []types.Violation

	if !policy.AllowedProviders[req.Provider] {
		violations = append(violations, types.NewViolation(
			types.CodeProviderNotAllowed,
			types.InterceptorAlignment,
			fmt.Sprintf("provider %q is not in the allowed-providers list", req.Provider),
			map[string]any{
				"requested_provider": req.Provider,
				"allowed_providers":  allowedProviderList(policy.AllowedProviders),
			},
		))
	}

	estimatedTokens, estimatedCost := estimateCost(req)
	if estimatedCost > policy.MaxTokenSpendPerCall {
		violations = append(violations, types.NewViolation(
			types.CodeBudgetExceeded,
			types.InterceptorAlignment,
			fmt.Sprintf("estimated cost %.6f exceeds ceiling %.6f", estimatedCost, policy.MaxTokenSpendPerCall),
			map[string]any{
				"estimated_tokens": estimatedTokens,
				"estimated_cost":   estimatedCost,
				"ceiling":          policy.MaxTokenSpendPerCall,
			},
		))
	}

	if registry != nil && len(req.Tools) > 0 {
		for _, tool := range req.Tools {
			if !registry.Has(tool.Name) {
				violations = append(violations, types.NewViolation(
					types.CodeToolNotGrounded,
					types.InterceptorAlignment,
					fmt.Sprintf("tool %q is not present in the skill registry", tool.Name),
					map[string]any{"tool_name": tool.Name},
				))
			}
		}
	}

	if len(violations) > 0 {
		return result.Block[types.Request](violations...)
	}
	return result.Pass(req)
}

// estimateCost computes the pre-flight token/cost estimate (§4.4): total
// characters across the system prompt and every message/block of textual
// content, divided by 4 and rounded up, times the conservative rate.
func estimateCost(req types.Request) (estimatedTokens int, estimatedCost float64) {
	total := 0
	for _, text := range extractTexts(req) {
		total += len(text)
	}
	estimatedTokens = int(math.Ceil(float64(total) / 4.0))
	estimatedCost = float64(estimatedTokens) * conservativePerTokenUSD
	return estimatedTokens, estimatedCost
}

func allowedProviderList(set map[types.Provider]bool) []types.Provider {
	out := make([]types.Provider, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}
