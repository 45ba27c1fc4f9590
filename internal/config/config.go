// Package config holds deepclean's YAML-backed configuration, modeled on
// the teacher's internal/config/config.go: a struct tree with yaml tags, a
// DefaultConfig constructor, and Load/Save helpers.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the internal/logging category logger.
type LoggingConfig struct {
	DebugMode  bool `yaml:"debug_mode"`
	JSONFormat bool `yaml:"json_format"`
}

// Config holds all deepclean configuration.
type Config struct {
	// Threshold is the minimum estimated-token weight (bytes/4) a file must
	// meet to be considered heavy. Design Note #3: unit is preserved even
	// if the estimator changes.
	Threshold int `yaml:"threshold"`

	// IncludeCode controls whether Code-category files are eligible to be
	// flagged heavy at all (spec.md 4.2: "either include_code=true or
	// category != Code").
	IncludeCode bool `yaml:"include_code"`

	// MaxSchemaDepth bounds JSON/YAML schema recursion (spec.md 3, default 3).
	MaxSchemaDepth int `yaml:"max_schema_depth"`

	// CSVSampleRows bounds the number of sample rows captured per CSV schema.
	CSVSampleRows int `yaml:"csv_sample_rows"`

	// ProtectedNames lists file basenames get_moveable always excludes
	// (bootstrap/config/readme/entry-point scripts, the bridge itself).
	ProtectedNames []string `yaml:"protected_names"`

	// SkipDirs lists directory basenames the scanner never descends into,
	// beyond dotdirs (which are skipped unconditionally except .github).
	SkipDirs []string `yaml:"skip_dirs"`

	// PatchExcludeGlobs lists doublestar globs matched against a source
	// file's basename to exclude it from AST patching (Design Note #4:
	// this exclusion list is part of the public contract).
	PatchExcludeGlobs []string `yaml:"patch_exclude_globs"`

	// BridgeModuleName is the generated indirection module's filename,
	// without extension.
	BridgeModuleName string `yaml:"bridge_module_name"`

	// IgnoreFileName is the indexer-ignore file the relocator edits.
	IgnoreFileName string `yaml:"ignore_file_name"`

	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns deepclean's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Threshold:      1000,
		IncludeCode:    false,
		MaxSchemaDepth: 3,
		CSVSampleRows:  5,
		ProtectedNames: []string{
			"__init__.py", "setup.py", "config.py", "main.py", "app.py",
			"wsgi.py", "asgi.py", "manage.py", "readme.md", "readme.rst",
			"config_paths.py",
		},
		SkipDirs: []string{
			"venv", ".venv", "env", "node_modules", "__pycache__",
			".git", ".idea", ".vscode", "dist", "build", "*.egg-info",
		},
		PatchExcludeGlobs: []string{
			"test_*.py", "*_test.py", "conftest.py", "setup.py",
		},
		BridgeModuleName: "config_paths",
		IgnoreFileName:   ".cursorignore",
		Logging: LoggingConfig{
			DebugMode:  false,
			JSONFormat: false,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults for
// any field the file omits and for the whole config when the file is
// absent.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to a YAML file, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
