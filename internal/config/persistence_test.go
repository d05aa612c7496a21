package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManagerExistsAndHasYAMLReflectFilesystem(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	if mgr.Exists() || mgr.HasYAML() {
		t.Fatal("expected Exists/HasYAML to be false before anything is written")
	}

	cfg := &Config{Host: DefaultHost, Port: DefaultPort}
	if err := mgr.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !mgr.Exists() || !mgr.HasYAML() {
		t.Fatal("expected Exists/HasYAML to be true once config.yaml exists")
	}
}

func TestManagerSaveDefaultsToYAMLOnFreshInstall(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	if err := mgr.Save(&Config{Host: DefaultHost, Port: DefaultPort}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, DefaultYAMLFilename)); err != nil {
		t.Fatalf("expected config.yaml to be written: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, DefaultConfigFilename)); err == nil {
		t.Fatal("expected no config.json to be written on a fresh install")
	}
}

func TestManagerSavePrefersJSONWhenOnlyJSONExists(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFilename), []byte(`{"host":"127.0.0.1","port":6970}`), 0o600); err != nil {
		t.Fatalf("seed json config: %v", err)
	}

	mgr := NewManager(dir)

	if err := mgr.Save(&Config{Host: "0.0.0.0", Port: 9999}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, DefaultYAMLFilename)); err == nil {
		t.Fatal("expected Save to keep writing JSON, not introduce a YAML file")
	}

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Port != 9999 {
		t.Fatalf("Port = %d, want 9999", loaded.Port)
	}
}

func TestManagerCreateExampleYAMLWritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	if err := mgr.CreateExampleYAML(); err != nil {
		t.Fatalf("CreateExampleYAML: %v", err)
	}

	if !mgr.HasYAML() {
		t.Fatal("expected config.yaml to exist after CreateExampleYAML")
	}

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load example config: %v", err)
	}

	if len(loaded.Bindings) == 0 {
		t.Fatal("expected example config to declare at least one provider binding")
	}

	foundDefault := false
	for _, r := range loaded.Routes {
		if r.Default {
			foundDefault = true
		}
	}

	if !foundDefault {
		t.Fatal("expected example config to declare a default route")
	}
}

func TestManagerGetYAMLPathAndGetPath(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	if mgr.GetYAMLPath() != filepath.Join(dir, DefaultYAMLFilename) {
		t.Fatalf("GetYAMLPath = %q", mgr.GetYAMLPath())
	}

	if mgr.GetPath() != filepath.Join(dir, DefaultConfigFilename) {
		t.Fatalf("GetPath without any file written should fall back to json path, got %q", mgr.GetPath())
	}

	if err := mgr.Save(&Config{Host: DefaultHost, Port: DefaultPort}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if mgr.GetPath() != filepath.Join(dir, DefaultYAMLFilename) {
		t.Fatalf("GetPath after saving yaml should prefer it, got %q", mgr.GetPath())
	}
}
