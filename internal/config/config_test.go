package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validPolicy = `{
  "project_name": "acme-gateway",
  "security_tier": "STRICT",
  "schema_version": 1,
  "agnostic_settings": {
    "redact_pii": true,
    "max_token_spend_per_call": 0.5,
    "allowed_providers": ["anthropic", "openai"]
  },
  "safety_hooks": {
    "pre_flight": ["injection", "pii"],
    "post_flight": ["schema", "grounding"]
  },
  "dependency_whitelist": ["react", "express"]
}`

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, validPolicy)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acme-gateway", cfg.ProjectName)
	assert.True(t, cfg.AllowedProviderSet()["anthropic"])
	assert.False(t, cfg.AllowedProviderSet()["local-ollama"])
}

func TestLoad_MissingProjectName(t *testing.T) {
	path := writeConfig(t, `{
		"security_tier": "STRICT", "schema_version": 1,
		"agnostic_settings": {"max_token_spend_per_call": 1, "allowed_providers": ["anthropic"]}
	}`)
	_, err := Load(path)
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "project_name", cerr.Field)
}

func TestLoad_BadSecurityTier(t *testing.T) {
	path := writeConfig(t, `{
		"project_name": "x", "security_tier": "YOLO", "schema_version": 1,
		"agnostic_settings": {"max_token_spend_per_call": 1, "allowed_providers": ["anthropic"]}
	}`)
	_, err := Load(path)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "security_tier", cerr.Field)
}

func TestLoad_WrongSchemaVersion(t *testing.T) {
	path := writeConfig(t, `{
		"project_name": "x", "security_tier": "STRICT", "schema_version": 2,
		"agnostic_settings": {"max_token_spend_per_call": 1, "allowed_providers": ["anthropic"]}
	}`)
	_, err := Load(path)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "schema_version", cerr.Field)
}

func TestLoad_EmptyAllowedProviders(t *testing.T) {
	path := writeConfig(t, `{
		"project_name": "x", "security_tier": "STRICT", "schema_version": 1,
		"agnostic_settings": {"max_token_spend_per_call": 1, "allowed_providers": []}
	}`)
	_, err := Load(path)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "agnostic_settings.allowed_providers", cerr.Field)
}

func TestLoad_UnknownProvider(t *testing.T) {
	path := writeConfig(t, `{
		"project_name": "x", "security_tier": "STRICT", "schema_version": 1,
		"agnostic_settings": {"max_token_spend_per_call": 1, "allowed_providers": ["bedrock"]}
	}`)
	_, err := Load(path)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "agnostic_settings.allowed_providers", cerr.Field)
}

func TestLoad_ManagementTokenFromEnv(t *testing.T) {
	t.Setenv("MANAGEMENT_TOKEN", "secret-token")
	path := writeConfig(t, validPolicy)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.ManagementToken)
}
