package config

// Config is the optional config file. Every section may be omitted; explicit
// command-line flags take precedence over values found here.
//
// Example (YAML):
//
//	logging:
//	  level: debug
//	  console: true
//	interval: { unit: minutes, value: 5 }
//	repeats: 12
//	poll_interval: 50ms
//	history: { driver: sqlite, path: ./repeat.db }
type Config struct {
	Logging LoggingConfig `json:"logging"`

	Interval *IntervalConfig `json:"interval,omitempty"`
	Repeats  *uint64         `json:"repeats,omitempty"`

	// PollInterval is a Go duration string (e.g. "10ms"). "0s" polls without pausing.
	PollInterval string `json:"poll_interval,omitempty"`

	History *HistoryConfig `json:"history,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// IntervalConfig is the interval between executions.
// Unit is one of seconds, minutes, hours, days (or s, m, h, d).
type IntervalConfig struct {
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

// HistoryConfig controls the optional firing history.
//
// Example:
//
//	"history": { "driver": "file", "path": "./repeat.history.jsonl" }
type HistoryConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
	}
}
