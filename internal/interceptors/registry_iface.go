package interceptors

// SkillRegistry is the external collaborator that reports which tool names
// are callable (§6 GLOSSARY, §4.4, §4.6). It is injected by the
// orchestrator's caller; a nil registry means grounding/tool-scope checks
// are skipped silently, per spec.
type SkillRegistry interface {
	Has(name string) bool
}

// ArgumentValidatingRegistry is the optional extension a SkillRegistry may
// implement to validate a tool call's decoded arguments (§4.6). Callers
// type-assert for it; its absence is not an error.
type ArgumentValidatingRegistry interface {
	SkillRegistry
	ValidateArguments(name string, arguments map[string]any) bool
}
