// Package interceptors implements the six fixed pipeline stages (§4.2–§4.7).
// Every stage is a pure function from (request or response, policy
// context) to a result.Result — none of them throws or panics; a stage
// that wants to fail returns result.Block with one or more types.Violation
// values.
package interceptors

import (
	"fmt"
	"regexp"

	"github.com/laplaque/llmguard/internal/result"
	"github.com/laplaque/llmguard/internal/types"
)

// injectionPattern pairs a compiled regex with a human label used in the
// violation payload so forensic tooling can tell which structural-intent
// category fired.
type injectionPattern struct {
	label string
	re    *regexp.Regexp
}

// baseInjectionPatterns apply at every security tier (§4.2, categories i–iv).
var baseInjectionPatterns = []injectionPattern{
	{"explicit_override", regexp.MustCompile(
		`(?i)\b(ignore|disregard|forget)\b(\s+\w+){0,3}\s+(previous|prior|above|earlier)\s+(instructions?|prompts?|context|commands?)`)},
	{"role_reassignment", regexp.MustCompile(
		`(?i)your\s+(real|true|actual|new|primary)\s+(role|purpose|goal|task|job|objective)\s+is`)},
	{"role_reassignment_now", regexp.MustCompile(
		`(?i)you\s+are\s+(now|actually|really)\s+an?\s+`)},
	{"role_reassignment_act_as", regexp.MustCompile(
		`(?i)act\s+as\s+if\s+you\s+(are|were)\s+`)},
	{"priority_inversion_reminder", regexp.MustCompile(
		`(?i)as\s+a\s+reminder,?\s+your\s+(real|actual|true|primary)\s+task`)},
	{"priority_inversion_real_instructions", regexp.MustCompile(
		`(?i)the\s+(real|actual|true)\s+instructions?\s+(are|is|follow)`)},
	{"context_poisoning_system_tag", regexp.MustCompile(`(?i)</?system>`)},
	{"context_poisoning_bracket", regexp.MustCompile(
		`(?i)\[system\][\s\S]{0,50}?(ignore|override|forget|disregard)`)},
}

// strictOnlyInjectionPatterns apply only at TierStrict (§4.2).
var strictOnlyInjectionPatterns = []injectionPattern{
	{"roleplay_framing", regexp.MustCompile(
		`(?i)in\s+this\s+(scenario|roleplay|game|story|fiction),?\s+you\s+(are|ignore)`)},
	{"hypothetical_framing", regexp.MustCompile(
		`(?i)hypothetically,?\s+if\s+you\s+(were|had\s+no)`)},
	{"pretend_persona", regexp.MustCompile(
		`(?i)pretend\s+you\s+(are|lack|have\s+no)\s+(restrictions|guidelines|rules|limits)`)},
}

// patternsForTier returns the pattern set active for a given security tier.
func patternsForTier(tier types.SecurityTier) []injectionPattern {
	if tier == types.TierStrict {
		all := make([]injectionPattern, 0, len(baseInjectionPatterns)+len(strictOnlyInjectionPatterns))
		all = append(all, baseInjectionPatterns...)
		all = append(all, strictOnlyInjectionPatterns...)
		return all
	}
	return baseInjectionPatterns
}

// ScanInjection extracts all textual request fields and tests each against
// the tier-selected pattern set. It is purely read-only: it never mutates
// req, and the result's pass variant simply echoes it back.
func ScanInjection(req types.Request, tier types.SecurityTier) result.Result[types.Request] {
	patterns := patternsForTier(tier)
	for _, text := range extractTexts(req) {
		for _, p := range patterns {
			if p.re.MatchString(text) {
				v := types.NewViolation(
					types.CodeInjectionDetected,
					types.InterceptorInjection,
					fmt.Sprintf("structural injection pattern matched: %s", p.label),
					map[string]any{
						"request_id": req.ID,
						"pattern":    p.re.String(),
						"category":   p.label,
					},
				)
				return result.Block[types.Request](v)
			}
		}
	}
	return result.Pass(req)
}
