// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Loaders accept context.Context as the first parameter.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBDriver is sqlite or postgres; DBDSN is passed to the driver as-is.
	DBDriver string `koanf:"db_driver"`
	DBDSN    string `koanf:"db_dsn"`

	// QueueSize bounds the in-memory ingest queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingest workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize is how many submission ids are remembered for retries.
	DedupeSize int `koanf:"dedupe_size"`

	// NeighborK is the default number of neighbours averaged by predictions.
	NeighborK int `koanf:"neighbor_k"`

	// ExtendedDimensions adds the three boolean flags to the distance.
	ExtendedDimensions bool `koanf:"extended_dimensions"`

	// Per-dimension normalisation divisors.
	RareSkillsScale   float64 `koanf:"rare_skills_scale"`
	NormalSkillsScale float64 `koanf:"normal_skills_scale"`
	FinalPlaceScale   float64 `koanf:"final_place_scale"`

	// MaxRecentRuns caps the recent/best lists on dashboards.
	MaxRecentRuns int `koanf:"max_recent_runs"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		DBDriver:           "sqlite",
		DBDSN:              "trials.db",
		QueueSize:          10_000,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         50_000,
		NeighborK:          5,
		ExtendedDimensions: false,
		RareSkillsScale:    10,
		NormalSkillsScale:  20,
		FinalPlaceScale:    18,
		MaxRecentRuns:      10,
	}
}

// Validate checks the values a running service depends on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBDriver != "sqlite" && c.DBDriver != "postgres":
		return fmt.Errorf("%w: db_driver must be sqlite or postgres, got %q", ErrInvalidConfig, c.DBDriver)
	case strings.TrimSpace(c.DBDSN) == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < 0:
		return fmt.Errorf("%w: worker_count must not be negative", ErrInvalidConfig)
	case c.NeighborK < 1:
		return fmt.Errorf("%w: neighbor_k must be at least 1", ErrInvalidConfig)
	case c.RareSkillsScale <= 0 || c.NormalSkillsScale <= 0 || c.FinalPlaceScale <= 0:
		return fmt.Errorf("%w: dimension scales must be positive", ErrInvalidConfig)
	case c.MaxRecentRuns < 1:
		return fmt.Errorf("%w: max_recent_runs must be positive", ErrInvalidConfig)
	}
	return nil
}
