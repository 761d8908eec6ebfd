package interceptors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/laplaque/llmguard/internal/result"
	"github.com/laplaque/llmguard/internal/types"
)

var (
	importFromPattern = regexp.MustCompile(`import\s+[^'"]*from\s+['"]([^'"]+)['"]`)
	requirePattern    = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
)

// ScrapeHallucinations extracts external package references from resp's
// content and flags any whose root is not in whitelist (§4.7). An empty
// whitelist disables scraping entirely, and a response with absent content
// has nothing to scrape — both pass.
func ScrapeHallucinations(resp types.Response, whitelist []string) result.Result[types.Response] {
	if len(whitelist) == 0 {
		return result.Pass(resp)
	}
	if resp.Content == nil {
		return result.Pass(resp)
	}

	allowed := make(map[string]bool, len(whitelist))
	for _, w := range whitelist {
		allowed[w] = true
	}

	roots := extractPackageRoots(*resp.Content)

	seen := make(map[string]bool, len(roots))
	var violations []types.Violation
	for _, root := range roots {
		if seen[root] || allowed[root] {
			continue
		}
		seen[root] = true
		violations = append(violations, types.NewViolation(
			types.CodeHallucinationFound,
			types.InterceptorHallucination,
			fmt.Sprintf("response references ungrounded package %q", root),
			map[string]any{"package": root},
		))
	}

	if len(violations) > 0 {
		return result.Block[types.Response](violations...)
	}
	return result.Pass(resp)
}

// extractPackageRoots finds every import-from and require() specifier in
// content, skips relative specifiers, and reduces each to its package root
// (§4.7: scoped packages keep their first two segments, bare packages
// keep only the first).
func extractPackageRoots(content string) []string {
	var specs []string
	for _, m := range importFromPattern.FindAllStringSubmatch(content, -1) {
		specs = append(specs, m[1])
	}
	for _, m := range requirePattern.FindAllStringSubmatch(content, -1) {
		specs = append(specs, m[1])
	}

	var roots []string
	for _, spec := range specs {
		if strings.HasPrefix(spec, "/") || strings.HasPrefix(spec, ".") {
			continue
		}
		roots = append(roots, packageRoot(spec))
	}
	return roots
}

func packageRoot(spec string) string {
	segments := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") && len(segments) >= 2 {
		return segments[0] + "/" + segments[1]
	}
	return segments[0]
}
