// Package config loads and validates the Policy Configuration (spec §3, §6).
// Settings are layered: JSON file → environment variable overrides, mirroring
// the teacher proxy's defaults → file → env layering. Unlike the teacher,
// there are no built-in defaults for the policy fields themselves — a
// missing or malformed required field is a CONFIG_ERROR, since a silently
// defaulted security policy is worse than a startup failure.
//
// A *Config value, once returned by Load, is never mutated. Reload (see
// Watcher) produces a brand new value and swaps an atomic pointer; it never
// writes through an existing value.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/laplaque/llmguard/internal/types"
)

// AgnosticSettings holds the provider-independent policy knobs.
type AgnosticSettings struct {
	RedactPII            bool             `json:"redact_pii"`
	MaxTokenSpendPerCall float64          `json:"max_token_spend_per_call"`
	AllowedProviders     []types.Provider `json:"allowed_providers"`
}

// SafetyHooks holds free-form audit labels. They are never interpreted by
// the core; they exist purely for the audit trail (§6).
type SafetyHooks struct {
	PreFlight  []string `json:"pre_flight"`
	PostFlight []string `json:"post_flight"`
}

// Config is the Policy Configuration (§3, §6). Logically immutable after
// Load returns it — no interceptor accepts a mutable reference to one.
type Config struct {
	ProjectName         string             `json:"project_name"`
	SecurityTier        types.SecurityTier `json:"security_tier"`
	SchemaVersion       int                `json:"schema_version"`
	AgnosticSettings    AgnosticSettings   `json:"agnostic_settings"`
	SafetyHooks         SafetyHooks        `json:"safety_hooks"`
	DependencyWhitelist []string           `json:"dependency_whitelist,omitempty"`

	// ManagementToken gates the management HTTP API. Not part of the
	// policy document proper; set via MANAGEMENT_TOKEN env var only.
	ManagementToken string `json:"-"`
	// RedisAddr configures the reference cost-ledger's Redis backend.
	// Empty means use the in-memory ledger. Set via LEDGER_REDIS_ADDR.
	RedisAddr string `json:"-"`
	// SkillRegistryPath configures the reference Skill Registry's bbolt
	// persistence file. Empty means in-memory only.
	SkillRegistryPath string `json:"-"`
	// LogLevel gates the structured logger. Set via LOG_LEVEL env var.
	LogLevel string `json:"-"`
}

// ConfigError names the offending field of an invalid configuration. It is
// a conventional Go error — configuration loading happens at startup,
// before any canonical response exists, so it is the one place in the
// system allowed to surface as a thrown/returned error rather than as a
// Violation (§7).
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// AsViolation renders a ConfigError as a types.Violation with code
// CONFIG_ERROR, for callers that want to fold startup failures into the
// same structured-reporting vocabulary as runtime violations.
func (e *ConfigError) AsViolation() types.Violation {
	return types.NewViolation(types.CodeConfigError, types.InterceptorOrchestrator, e.Error(), map[string]any{
		"field": e.Field,
	})
}

func fieldErr(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// Load reads the policy document at path, applies environment overrides,
// and validates the result. It returns a *ConfigError (never a panic) on
// any deviation from §6.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is an operator-supplied startup argument, not user input
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fieldErr("<document>", fmt.Sprintf("invalid JSON: %v", err))
	}

	loadEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.ProjectName == "" {
		return fieldErr("project_name", "must be a non-empty string")
	}
	if !cfg.SecurityTier.Valid() {
		return fieldErr("security_tier", "must be one of STRICT, MODERATE, PERMISSIVE")
	}
	if cfg.SchemaVersion != types.SchemaVersion {
		return fieldErr("schema_version", fmt.Sprintf("must equal %d", types.SchemaVersion))
	}
	if !isFinite(cfg.AgnosticSettings.MaxTokenSpendPerCall) {
		return fieldErr("agnostic_settings.max_token_spend_per_call", "must be a finite number")
	}
	if len(cfg.AgnosticSettings.AllowedProviders) == 0 {
		return fieldErr("agnostic_settings.allowed_providers", "must be a non-empty array")
	}
	for _, p := range cfg.AgnosticSettings.AllowedProviders {
		if !p.Valid() {
			return fieldErr("agnostic_settings.allowed_providers", fmt.Sprintf("unknown provider %q", p))
		}
	}
	return nil
}

func isFinite(f float64) bool {
	return f == f && f < 1e308 && f > -1e308 //nolint:staticcheck // f==f excludes NaN without importing math for one check
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("MANAGEMENT_TOKEN"); v != "" {
		cfg.ManagementToken = v
	}
	if v := os.Getenv("LEDGER_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("SKILL_REGISTRY_PATH"); v != "" {
		cfg.SkillRegistryPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	} else if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// AllowedProviderSet returns the allowed providers as a lookup set.
func (c *Config) AllowedProviderSet() map[types.Provider]bool {
	out := make(map[types.Provider]bool, len(c.AgnosticSettings.AllowedProviders))
	for _, p := range c.AgnosticSettings.AllowedProviders {
		out[p] = true
	}
	return out
}
