// Package config implements the configuration surface (§6.2, §10): loading
// a Provider Binding + Route Definition document from YAML/JSON, resolving
// ${NAME:default} environment interpolation, filling gaps with
// dario.cat/mergo, and watching the file for hot reload via fsnotify.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = 6970
	DefaultHost           = "127.0.0.1"
	DefaultConfigFilename = "config.json"
	DefaultYAMLFilename   = "config.yaml"
)

// ProviderBinding is the explicit (protocol, providerId, compatibility)
// triple plus connection details (§3 "Provider Binding"). It is immutable
// once loaded — changing a binding means reloading the whole config, never
// mutating one in place.
type ProviderBinding struct {
	ProviderID    string `json:"providerId" yaml:"providerId"`
	Protocol      string `json:"protocol" yaml:"protocol"`
	Family        string `json:"family" yaml:"family"`
	Compatibility string `json:"compatibility,omitempty" yaml:"compatibility,omitempty"`
	BaseURL       string `json:"baseUrl" yaml:"baseUrl"`

	AuthMode string `json:"authMode" yaml:"authMode"`
	// AuthHeaderName overrides the kernel's default header name for
	// AuthAPIKey/AuthBearer/AuthTokenFile credentials. Leave empty for
	// families whose profile owns the auth header entirely (their
	// ApplyHeaderPolicy already sets it) — pair those with
	// AuthMode: "none" so the kernel contributes no header of its own.
	AuthHeaderName string `json:"authHeaderName,omitempty" yaml:"authHeaderName,omitempty"`
	APIKey         string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	TokenFile      string `json:"tokenFile,omitempty" yaml:"tokenFile,omitempty"`
	CookieName     string `json:"cookieName,omitempty" yaml:"cookieName,omitempty"`

	RetryStrategy string `json:"retryStrategy,omitempty" yaml:"retryStrategy,omitempty"`
	MaxRetries    int    `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
}

// ConditionConfig is the on-disk form of a module spec's condition (§4.2
// step 2), parsed into internal/corex.Condition at route-build time.
type ConditionConfig struct {
	FieldEquals  map[string]any `json:"fieldEquals,omitempty" yaml:"fieldEquals,omitempty"`
	FieldPresent []string       `json:"fieldPresent,omitempty" yaml:"fieldPresent,omitempty"`
	NumericField string         `json:"numericField,omitempty" yaml:"numericField,omitempty"`
	NumericMin   *float64       `json:"numericMin,omitempty" yaml:"numericMin,omitempty"`
	NumericMax   *float64       `json:"numericMax,omitempty" yaml:"numericMax,omitempty"`
}

// ModuleSpecConfig is the on-disk form of a Route Definition's module entry.
type ModuleSpecConfig struct {
	Type      string           `json:"type" yaml:"type"`
	Config    map[string]any   `json:"config,omitempty" yaml:"config,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// RouteConfig is the on-disk form of a Route Definition (§3, §4.8).
type RouteConfig struct {
	ID          string             `json:"id" yaml:"id"`
	ModelRegex  string             `json:"modelRegex,omitempty" yaml:"modelRegex,omitempty"`
	Provider    string             `json:"provider,omitempty" yaml:"provider,omitempty"`
	Priority    int                `json:"priority,omitempty" yaml:"priority,omitempty"`
	Category    string             `json:"category,omitempty" yaml:"category,omitempty"`
	Default     bool               `json:"default,omitempty" yaml:"default,omitempty"`
	Modules     []ModuleSpecConfig `json:"modules" yaml:"modules"`
}

// Config is the top-level document loaded from config.yaml/config.json.
type Config struct {
	Host   string `json:"host,omitempty" yaml:"host,omitempty"`
	Port   int    `json:"port,omitempty" yaml:"port,omitempty"`
	APIKey string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`

	Bindings []ProviderBinding `json:"bindings" yaml:"bindings"`
	Routes   []RouteConfig     `json:"routes" yaml:"routes"`
}

func defaultConfig() Config {
	return Config{Host: DefaultHost, Port: DefaultPort}
}

// Manager owns the loaded configuration and the paths it was read from,
// analogous to the teacher's config.Manager but over the new document
// shape.
type Manager struct {
	baseDir  string
	jsonPath string
	yamlPath string
	current  atomic.Value // *Config
}

// NewManager constructs a Manager rooted at baseDir.
func NewManager(baseDir string) *Manager {
	return &Manager{
		baseDir:  baseDir,
		jsonPath: filepath.Join(baseDir, DefaultConfigFilename),
		yamlPath: filepath.Join(baseDir, DefaultYAMLFilename),
	}
}

// Load reads config.yaml (preferred) or config.json, interpolates
// ${NAME:default} environment references, fills gaps against
// defaultConfig() with mergo, and stores the result for Get. When neither
// file exists but ROUTECODEX_API_KEY is set, a minimal configuration holding
// only that API key is used instead.
func (m *Manager) Load() (*Config, error) {
	var (
		cfg Config
		err error
	)

	switch {
	case fileExists(m.yamlPath):
		cfg, err = m.loadYAML()
	case fileExists(m.jsonPath):
		cfg, err = m.loadJSON()
	default:
		apiKey := os.Getenv("ROUTECODEX_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("no configuration file found (looked for %s or %s)", m.yamlPath, m.jsonPath)
		}

		cfg = Config{APIKey: apiKey}
	}

	if err != nil {
		return nil, err
	}

	interpolateEnv(&cfg)

	def := defaultConfig()
	if err := mergo.Merge(&cfg, def); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	m.current.Store(&cfg)

	return &cfg, nil
}

func (m *Manager) loadYAML() (Config, error) {
	var cfg Config

	data, err := os.ReadFile(m.yamlPath)
	if err != nil {
		return cfg, fmt.Errorf("read yaml config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal yaml config: %w", err)
	}

	return cfg, nil
}

func (m *Manager) loadJSON() (Config, error) {
	var cfg Config

	data, err := os.ReadFile(m.jsonPath)
	if err != nil {
		return cfg, fmt.Errorf("read json config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal json config: %w", err)
	}

	return cfg, nil
}

// Get returns the most recently loaded configuration, loading it from disk
// on first use.
func (m *Manager) Get() *Config {
	if v := m.current.Load(); v != nil {
		return v.(*Config)
	}

	cfg, err := m.Load()
	if err != nil {
		fallback := defaultConfig()
		return &fallback
	}

	return cfg
}

// GetPath returns whichever config path currently exists, preferring YAML.
func (m *Manager) GetPath() string {
	if fileExists(m.yamlPath) {
		return m.yamlPath
	}

	return m.jsonPath
}

// GetYAMLPath returns the path config.yaml would live at, whether or not it
// exists yet.
func (m *Manager) GetYAMLPath() string {
	return m.yamlPath
}

// Exists reports whether either config file is present.
func (m *Manager) Exists() bool {
	return fileExists(m.yamlPath) || fileExists(m.jsonPath)
}

// HasYAML reports whether config.yaml specifically is present.
func (m *Manager) HasYAML() bool {
	return fileExists(m.yamlPath)
}

// Save writes cfg to whichever format is already in use, defaulting to YAML
// for a fresh install.
func (m *Manager) Save(cfg *Config) error {
	if fileExists(m.jsonPath) && !fileExists(m.yamlPath) {
		return m.saveJSON(cfg)
	}

	return m.saveYAML(cfg)
}

func (m *Manager) saveYAML(cfg *Config) error {
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml config: %w", err)
	}

	if err := os.WriteFile(m.yamlPath, data, 0o600); err != nil {
		return fmt.Errorf("write yaml config: %w", err)
	}

	m.current.Store(cfg)

	return nil
}

func (m *Manager) saveJSON(cfg *Config) error {
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json config: %w", err)
	}

	if err := os.WriteFile(m.jsonPath, data, 0o600); err != nil {
		return fmt.Errorf("write json config: %w", err)
	}

	m.current.Store(cfg)

	return nil
}

// CreateExampleYAML writes a starter config.yaml documenting the binding and
// route shapes, for `config generate` to hand a new operator something
// editable rather than an empty document.
func (m *Manager) CreateExampleYAML() error {
	example := Config{
		Host: DefaultHost,
		Port: DefaultPort,
		Bindings: []ProviderBinding{
			{
				ProviderID: "openai-main",
				Protocol:   "openai-chat",
				Family:     "openai",
				BaseURL:    "https://api.openai.com/v1",
				AuthMode:   "bearer",
				APIKey:     "${OPENAI_API_KEY}",
			},
			{
				ProviderID: "anthropic-main",
				Protocol:   "anthropic-messages",
				Family:     "anthropic",
				BaseURL:    "https://api.anthropic.com",
				AuthMode:   "none",
				APIKey:     "${ANTHROPIC_API_KEY}",
			},
			{
				ProviderID: "gemini-main",
				Protocol:   "gemini-chat",
				Family:     "gemini",
				BaseURL:    "https://generativelanguage.googleapis.com",
				AuthMode:   "none",
				APIKey:     "${GEMINI_API_KEY}",
			},
		},
		Routes: []RouteConfig{
			{
				ID:         "default",
				ModelRegex: ".*",
				Default:    true,
				Modules: []ModuleSpecConfig{
					{Type: "provider", Config: map[string]any{"providerId": "openai-main"}},
					{Type: "compatibility"},
					{Type: "llmswitch"},
				},
			},
		},
	}

	return m.saveYAML(&example)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:([^}]*))?\}`)

// interpolateEnv resolves ${NAME:default} references in every string field
// of the config, reading NAME from the process environment and falling
// back to the declared default when NAME is unset (§10 "configuration").
func interpolateEnv(cfg *Config) {
	for i := range cfg.Bindings {
		b := &cfg.Bindings[i]
		b.BaseURL = expandEnv(b.BaseURL)
		b.APIKey = expandEnv(b.APIKey)
		b.TokenFile = expandEnv(b.TokenFile)
	}

	cfg.APIKey = expandEnv(cfg.APIKey)
}

func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		groups := envRef.FindStringSubmatch(match)
		name, def := groups[1], groups[3]

		if v, ok := os.LookupEnv(name); ok {
			return v
		}

		return def
	})
}

// IsModelAllowed reports whether model equals or contains any whitelist
// entry; an empty whitelist allows every model.
func IsModelAllowed(model string, whitelist []string) bool {
	if len(whitelist) == 0 {
		return true
	}

	for _, w := range whitelist {
		if model == w || strings.Contains(model, w) {
			return true
		}
	}

	return false
}
