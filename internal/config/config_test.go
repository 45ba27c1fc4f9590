package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Threshold != 1000 {
		t.Errorf("expected Threshold=1000, got %d", cfg.Threshold)
	}
	if cfg.IncludeCode {
		t.Errorf("expected IncludeCode=false by default")
	}
	if cfg.MaxSchemaDepth != 3 {
		t.Errorf("expected MaxSchemaDepth=3, got %d", cfg.MaxSchemaDepth)
	}
	if len(cfg.PatchExcludeGlobs) != 4 {
		t.Errorf("expected 4 default patch exclude globs, got %d", len(cfg.PatchExcludeGlobs))
	}
}

func TestConfigSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Threshold = 2000
	cfg.IncludeCode = true

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Threshold != 2000 {
		t.Errorf("expected Threshold=2000, got %d", loaded.Threshold)
	}
	if !loaded.IncludeCode {
		t.Errorf("expected IncludeCode=true after load")
	}
	if loaded.BridgeModuleName != "config_paths" {
		t.Errorf("expected BridgeModuleName=config_paths, got %s", loaded.BridgeModuleName)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "does-not-exist.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load on missing file should not error, got: %v", err)
	}
	if cfg.Threshold != DefaultConfig().Threshold {
		t.Errorf("expected defaults when config file is absent")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte("threshold: [this is not an int\n"), 0644); err != nil {
		t.Fatalf("failed to write malformed config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected Load to error on malformed YAML")
	}
}
