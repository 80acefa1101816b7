// Package config loads the demo runner's configuration from JSON files,
// merging project settings over global settings over built-in defaults.
package config

// RunnerConfig is the top-level configuration for the maxpar demo runner.
type RunnerConfig struct {
	Workers     int    `json:"workers"`      // Parallel worker count; 0 uses hardware concurrency
	Trials      int    `json:"trials"`       // Determinism verification trials
	Seed        int64  `json:"seed"`         // PRNG seed for randomized scheduling; 0 = time-seeded
	Strict      bool   `json:"strict"`       // Reject undeclared variable accesses
	HistoryPath string `json:"history_path"` // SQLite run-history path; empty disables history
}

// fileConfig mirrors RunnerConfig with pointer fields so a config file can
// override only the settings it names.
type fileConfig struct {
	Workers     *int    `json:"workers"`
	Trials      *int    `json:"trials"`
	Seed        *int64  `json:"seed"`
	Strict      *bool   `json:"strict"`
	HistoryPath *string `json:"history_path"`
}
