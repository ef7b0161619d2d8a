// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and TIPSTER_ env vars.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`
	// LogFile enables size-rotated file output when set.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// MinBetsForAnalysis is the smallest history a profile may be built from.
	MinBetsForAnalysis int `koanf:"min_bets_for_analysis"`
	// ProfitableThreshold is the minimum returns-to-stake ratio a profile needs.
	ProfitableThreshold float64 `koanf:"profitable_threshold"`
	// UpdateIntervalMS is both the cycle period and the decay threshold.
	UpdateIntervalMS int `koanf:"update_interval_ms"`
	// CycleSchedule overrides the cron spec; defaults to @every UpdateInterval.
	CycleSchedule string `koanf:"cycle_schedule"`
	// StrategyTopN bounds venues and categories considered per cycle.
	StrategyTopN int `koanf:"strategy_top_n"`

	// QueryMinConfidence and QueryLimit are the read defaults.
	QueryMinConfidence float64 `koanf:"query_min_confidence"`
	QueryLimit         int     `koanf:"query_limit"`
	// MaxQueryLimit caps ?limit on the HTTP API.
	MaxQueryLimit int `koanf:"max_query_limit"`

	// PublishMinConfidence and PublishLimit gate what gets published.
	PublishMinConfidence float64 `koanf:"publish_min_confidence"`
	PublishLimit         int     `koanf:"publish_limit"`
	// PublishPerMinute paces outgoing messages.
	PublishPerMinute int `koanf:"publish_per_minute"`

	// WorkerCount sets the number of profile-building workers.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size"`
	// CollaboratorTimeoutMS bounds each history fetch and extraction call.
	CollaboratorTimeoutMS int `koanf:"collaborator_timeout_ms"`

	// HistoryDSN points at the SQLite wager ledger.
	HistoryDSN string `koanf:"history_dsn"`
	// Actors, when set, replaces the actor list read from the ledger.
	Actors []string `koanf:"actors"`

	// Extractor* configure the pattern-extraction text model.
	ExtractorBaseURL   string  `koanf:"extractor_base_url"`
	ExtractorAPIKey    string  `koanf:"extractor_api_key"`
	ExtractorModel     string  `koanf:"extractor_model"`
	ExtractorMaxTokens int     `koanf:"extractor_max_tokens"`
	ExtractorRatePerS  float64 `koanf:"extractor_rate_per_sec"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		MinBetsForAnalysis:    50,
		ProfitableThreshold:   1.5,
		UpdateIntervalMS:      300_000,
		StrategyTopN:          3,
		QueryMinConfidence:    0.7,
		QueryLimit:            10,
		MaxQueryLimit:         100,
		PublishMinConfidence:  0.8,
		PublishLimit:          3,
		PublishPerMinute:      6,
		WorkerCount:           runtime.NumCPU() * 2,
		QueueSize:             10_000,
		CollaboratorTimeoutMS: 30_000,
		HistoryDSN:            "tipster.db",
		ExtractorBaseURL:      "https://api.anthropic.com/v1",
		ExtractorModel:        "claude-sonnet-4-20250514",
		ExtractorMaxTokens:    1024,
		ExtractorRatePerS:     1,
	}
}

// UpdateInterval returns UpdateIntervalMS as a duration.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMS) * time.Millisecond
}

// CollaboratorTimeout returns CollaboratorTimeoutMS as a duration.
func (c *Config) CollaboratorTimeout() time.Duration {
	return time.Duration(c.CollaboratorTimeoutMS) * time.Millisecond
}

// Schedule returns the cron spec for periodic cycles.
func (c *Config) Schedule() string {
	if s := strings.TrimSpace(c.CycleSchedule); s != "" {
		return s
	}
	return "@every " + c.UpdateInterval().String()
}

// Validate checks the values the engine cannot run without.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MinBetsForAnalysis < 1:
		return fmt.Errorf("%w: min_bets_for_analysis must be positive", ErrInvalidConfig)
	case c.ProfitableThreshold < 0:
		return fmt.Errorf("%w: profitable_threshold must not be negative", ErrInvalidConfig)
	case c.UpdateIntervalMS <= 0:
		return fmt.Errorf("%w: update_interval_ms must be positive", ErrInvalidConfig)
	case c.QueryLimit < 1 || c.PublishLimit < 1:
		return fmt.Errorf("%w: query_limit and publish_limit must be positive", ErrInvalidConfig)
	case c.MaxQueryLimit < c.QueryLimit:
		return fmt.Errorf("%w: max_query_limit below query_limit", ErrInvalidConfig)
	case c.CollaboratorTimeoutMS <= 0:
		return fmt.Errorf("%w: collaborator_timeout_ms must be positive", ErrInvalidConfig)
	}
	return nil
}
