package config

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *RunnerConfig {
	return &RunnerConfig{
		Workers:     0, // hardware concurrency
		Trials:      50,
		Seed:        0, // time-seeded
		Strict:      false,
		HistoryPath: "",
	}
}
