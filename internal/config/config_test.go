package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, dir, content string) {
	t.Helper()

	err := os.WriteFile(filepath.Join(dir, DefaultYAMLFilename), []byte(content), 0o644)
	require.NoError(t, err)
}

func TestLoad_ParsesBindingsAndRoutes(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, `
host: 0.0.0.0
port: 9000
bindings:
  - providerId: main-openai
    protocol: openai-chat
    family: openai
    baseUrl: https://api.openai.com/v1
    authMode: bearer
    apiKey: sk-test
routes:
  - id: default
    modelRegex: ".*"
    default: true
    modules:
      - type: provider
        config:
          providerId: main-openai
      - type: llmswitch
`)

	manager := NewManager(dir)

	cfg, err := manager.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	require.Len(t, cfg.Bindings, 1)
	assert.Equal(t, "main-openai", cfg.Bindings[0].ProviderID)
	require.Len(t, cfg.Routes, 1)
	assert.True(t, cfg.Routes[0].Default)
	assert.Len(t, cfg.Routes[0].Modules, 2)
}

func TestLoad_AppliesDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, `
bindings: []
routes: []
`)

	manager := NewManager(dir)

	cfg, err := manager.Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	manager := NewManager(dir)

	_, err := manager.Load()
	assert.Error(t, err)
}

func TestGet_FallsBackToDefaultsOnLoadFailure(t *testing.T) {
	dir := t.TempDir()
	manager := NewManager(dir)

	cfg := manager.Get()
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestIsModelAllowed(t *testing.T) {
	assert.True(t, IsModelAllowed("gpt-4o", nil))
	assert.True(t, IsModelAllowed("gpt-4o-mini", []string{"gpt-4o"}))
	assert.False(t, IsModelAllowed("claude-3-opus", []string{"gpt-4o"}))
}
