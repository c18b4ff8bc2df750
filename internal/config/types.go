package config

// Config is the top-level daemon configuration.
type Config struct {
	// OutputDir is the directory where per-task capture files are created.
	// It must exist and be writable when the daemon starts.
	OutputDir string `json:"output_dir"`

	// HistoryPath is the SQLite file for the run journal. Empty disables
	// journaling.
	HistoryPath string `json:"history_path,omitempty"`

	// MaxConcurrent bounds how many task programs run at once.
	MaxConcurrent int64 `json:"max_concurrent,omitempty"`

	// PruneAfterHours controls how old a capture file must be before startup
	// pruning removes it. Zero disables pruning.
	PruneAfterHours int `json:"prune_after_hours,omitempty"`
}
