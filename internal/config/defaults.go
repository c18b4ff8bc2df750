package config

// DefaultConfig returns the built-in configuration. Paths are relative to
// the working directory; the loader leaves them untouched so a project-local
// .taskmill directory works out of the box.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:       ".taskmill/outputs",
		HistoryPath:     ".taskmill/history.db",
		MaxConcurrent:   4,
		PruneAfterHours: 168,
	}
}
