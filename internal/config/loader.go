package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config,
// defaults. Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*RunnerConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.maxpar/config.json
// Project: .maxpar/config.json (relative to cwd)
func LoadDefault() (*RunnerConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".maxpar", "config.json")
	projectPath := filepath.Join(".maxpar", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and overlays the settings it
// names onto the base config. Missing files are silently skipped; malformed
// JSON returns an error.
func mergeConfigFile(base *RunnerConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded fileConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.Workers != nil {
		base.Workers = *loaded.Workers
	}
	if loaded.Trials != nil {
		base.Trials = *loaded.Trials
	}
	if loaded.Seed != nil {
		base.Seed = *loaded.Seed
	}
	if loaded.Strict != nil {
		base.Strict = *loaded.Strict
	}
	if loaded.HistoryPath != nil {
		base.HistoryPath = *loaded.HistoryPath
	}

	return nil
}
