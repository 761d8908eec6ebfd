package interceptors

import "github.com/laplaque/llmguard/internal/types"

// extractTexts returns every textual field reachable from a request: the
// system prompt, each message's string-form content, and the text/content
// fields of every block, recursively. Both the injection scanner and the
// alignment checker's cost estimate use this; the PII masker has
// its own walker because it must rebuild the structure with replacements
// rather than just collect strings.
func extractTexts(req types.Request) []string {
	var out []string
	if req.System != "" {
		out = append(out, req.System)
	}
	for _, m := range req.Messages {
		if m.TextContent != "" {
			out = append(out, m.TextContent)
		}
		for _, b := range m.Blocks {
			out = append(out, extractBlockTexts(b)...)
		}
	}
	return out
}

func extractBlockTexts(b types.ContentBlock) []string {
	var out []string
	if b.Text != "" {
		out = append(out, b.Text)
	}
	for _, nested := range b.Content {
		out = append(out, extractBlockTexts(nested)...)
	}
	return out
}
