package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Workers != 0 {
		t.Errorf("Workers = %d, want 0", cfg.Workers)
	}
	if cfg.Trials != 50 {
		t.Errorf("Trials = %d, want 50", cfg.Trials)
	}
	if cfg.Strict {
		t.Error("Strict = true, want false")
	}
	if cfg.HistoryPath != "" {
		t.Errorf("HistoryPath = %q, want empty", cfg.HistoryPath)
	}
}

func TestLoadMissingFilesAreNotErrors(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "nope.json"), filepath.Join(dir, "also-nope.json"))
	if err != nil {
		t.Fatalf("Load() error = %v, missing files should be skipped", err)
	}
	if cfg.Trials != 50 {
		t.Errorf("Trials = %d, want default 50", cfg.Trials)
	}
}

func TestLoadProjectOverridesGlobal(t *testing.T) {
	dir := t.TempDir()
	global := writeConfig(t, dir, "global.json", `{"workers": 4, "trials": 10, "strict": true}`)
	project := writeConfig(t, dir, "project.json", `{"workers": 8}`)

	cfg, err := Load(global, project)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want project override 8", cfg.Workers)
	}
	// Settings the project file doesn't name keep the global values.
	if cfg.Trials != 10 {
		t.Errorf("Trials = %d, want global 10", cfg.Trials)
	}
	if !cfg.Strict {
		t.Error("Strict = false, want global true")
	}
}

func TestLoadPartialOverrideKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	global := writeConfig(t, dir, "global.json", `{"seed": 42}`)

	cfg, err := Load(global, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Seed)
	}
	if cfg.Trials != 50 {
		t.Errorf("Trials = %d, want default 50", cfg.Trials)
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	bad := writeConfig(t, dir, "bad.json", `{"workers": }`)

	_, err := Load(bad, "")
	if err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
	if !strings.Contains(err.Error(), "parsing") {
		t.Errorf("error %q should mention parsing", err.Error())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := &RunnerConfig{
		Workers:     3,
		Trials:      25,
		Seed:        7,
		Strict:      true,
		HistoryPath: "runs.db",
	}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip mismatch: got %+v, want %+v", loaded, cfg)
	}
}
