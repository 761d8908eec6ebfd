package interceptors

import (
	"regexp"

	"github.com/laplaque/llmguard/internal/result"
	"github.com/laplaque/llmguard/internal/types"
)

// Replacement tokens (§4.3). Unlike the teacher's anonymizer, which embeds
// a type-tagged hash so values can be de-anonymized per session, the
// policy gateway's masker is one-way: the orchestrator's caller never sees
// the original value again, so a flat bracketed literal is sufficient and
// matches the spec's replacement table exactly.
const (
	tokenEmail = "[EMAIL]"
	tokenCC    = "[CC]"
	tokenSSN   = "[SSN]"
	tokenPhone = "[PHONE]"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	ccPattern    = regexp.MustCompile(`\b(?:\d{4}[\-\s]?){3}\d{4}\b`)
	ssnPattern   = regexp.MustCompile(`\b(\d{3})[\- ](\d{2})[\- ](\d{4})\b|\b(\d{9})\b`)
	phonePattern = regexp.MustCompile(
		`(?:\+\d{1,3}[\-.\s]?)?\(?\d{3}\)?[\-.\s]?\d{3}[\-.\s]?\d{4}\b`)
)

// MaskRequest applies PII redaction to every textual field of req and
// returns a new, structurally identical request. When redactPII is false
// the original request is returned unchanged — the masker never blocks;
// it is always a pass (§4.3).
func MaskRequest(req types.Request, redactPII bool) result.Result[types.Request] {
	if !redactPII {
		return result.Pass(req)
	}

	masked := req.Clone()
	masked.System = maskText(masked.System)
	for i := range masked.Messages {
		m := &masked.Messages[i]
		if m.TextContent != "" {
			m.TextContent = maskText(m.TextContent)
		}
		for j := range m.Blocks {
			m.Blocks[j] = maskBlock(m.Blocks[j])
		}
	}
	return result.Pass(masked)
}

func maskBlock(b types.ContentBlock) types.ContentBlock {
	if b.Text != "" {
		b.Text = maskText(b.Text)
	}
	for i := range b.Content {
		b.Content[i] = maskBlock(b.Content[i])
	}
	return b
}

// maskText applies every PII pattern in the order given by §4.3's table:
// email, credit card, SSN, phone. Order matters because a credit-card-like
// digit run inside an already-bracketed token must not be re-matched —
// each pattern's replacement is applied to the cumulative result of the
// previous one.
func maskText(s string) string {
	if s == "" {
		return s
	}
	s = emailPattern.ReplaceAllString(s, tokenEmail)
	s = ccPattern.ReplaceAllString(s, tokenCC)
	s = maskSSN(s)
	s = phonePattern.ReplaceAllString(s, tokenPhone)
	return s
}

// maskSSN replaces valid-format SSNs, excluding the invalid-prefix ranges
// named in §4.3: area 000, area 666, area 9xx, group 00, and serial 0000.
func maskSSN(s string) string {
	return ssnPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := ssnPattern.FindStringSubmatch(m)
		var area, group, serial string
		switch {
		case parts[1] != "": // hyphen/space form
			area, group, serial = parts[1], parts[2], parts[3]
		case parts[4] != "": // bare 9-digit form
			digits := parts[4]
			area, group, serial = digits[0:3], digits[3:5], digits[5:9]
		default:
			return m
		}
		if area == "000" || area == "666" || area[0] == '9' || group == "00" || serial == "0000" {
			return m
		}
		return tokenSSN
	})
}
