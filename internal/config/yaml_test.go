package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_PrefersYAMLOverJSON(t *testing.T) {
	dir := t.TempDir()

	writeYAML(t, dir, `
host: from-yaml
bindings: []
routes: []
`)

	err := os.WriteFile(filepath.Join(dir, DefaultConfigFilename), []byte(`{"host":"from-json","bindings":[],"routes":[]}`), 0o644)
	require.NoError(t, err)

	manager := NewManager(dir)

	cfg, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.Host)
}

func TestLoad_FallsBackToJSONWhenNoYAML(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, DefaultConfigFilename), []byte(`{"host":"from-json","port":1234,"bindings":[],"routes":[]}`), 0o644)
	require.NoError(t, err)

	manager := NewManager(dir)

	cfg, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-json", cfg.Host)
	assert.Equal(t, 1234, cfg.Port)
}

func TestInterpolateEnv_ResolvesVariableWithFallback(t *testing.T) {
	t.Setenv("ROUTECODEX_TEST_KEY", "resolved-value")

	dir := t.TempDir()
	writeYAML(t, dir, `
bindings:
  - providerId: p1
    protocol: openai-chat
    family: openai
    baseUrl: https://api.openai.com/v1
    authMode: bearer
    apiKey: "${ROUTECODEX_TEST_KEY:fallback}"
  - providerId: p2
    protocol: openai-chat
    family: openai
    baseUrl: https://api.openai.com/v1
    authMode: bearer
    apiKey: "${ROUTECODEX_TEST_KEY_UNSET:fallback-value}"
routes: []
`)

	manager := NewManager(dir)

	cfg, err := manager.Load()
	require.NoError(t, err)

	assert.Equal(t, "resolved-value", cfg.Bindings[0].APIKey)
	assert.Equal(t, "fallback-value", cfg.Bindings[1].APIKey)
}

func TestGetPath_PrefersYAML(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "bindings: []\nroutes: []\n")

	manager := NewManager(dir)
	assert.Equal(t, manager.yamlPath, manager.GetPath())
}
