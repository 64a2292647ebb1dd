package foreman

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds process-wide configuration for the Orchestrator.
// Per-queue settings (cap, stale timeout, poll cadence) live in
// queue.Family; the values here are defaults for families that leave
// them unset.
type Config struct {
	// Concurrency is the maximum number of jobs executing at once in
	// this process, across all queues.
	Concurrency int `env:"FOREMAN_CONCURRENCY" envDefault:"10"`

	// Queues is the list of queue families this process will poll.
	Queues []string `env:"FOREMAN_QUEUES" envSeparator:"," envDefault:"default"`

	// PollInterval is the default poll cadence for queues that do not
	// set their own.
	PollInterval time.Duration `env:"FOREMAN_POLL_INTERVAL" envDefault:"1s"`

	// BatchSize is the default number of candidates fetched per tick
	// for queues without a concurrency cap.
	BatchSize int `env:"FOREMAN_BATCH_SIZE" envDefault:"10"`

	// StaleAfter is the default lease age past which a processing job
	// is considered abandoned and becomes claimable again.
	StaleAfter time.Duration `env:"FOREMAN_STALE_AFTER" envDefault:"5m"`

	// DefaultMaxAttempts is the attempts ceiling for jobs enqueued
	// without an explicit override.
	DefaultMaxAttempts int `env:"FOREMAN_DEFAULT_MAX_ATTEMPTS" envDefault:"5"`

	// ShutdownTimeout is the maximum time to wait for in-flight jobs
	// during graceful shutdown.
	ShutdownTimeout time.Duration `env:"FOREMAN_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:        10,
		Queues:             []string{"default"},
		PollInterval:       1 * time.Second,
		BatchSize:          10,
		StaleAfter:         5 * time.Minute,
		DefaultMaxAttempts: 5,
		ShutdownTimeout:    30 * time.Second,
	}
}

// ConfigFromEnv builds a Config from FOREMAN_* environment variables,
// falling back to the documented defaults for unset values.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("foreman: parse env config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidConfig)
	}
	if len(c.Queues) == 0 {
		return fmt.Errorf("%w: at least one queue is required", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("%w: stale-lease timeout must be positive", ErrInvalidConfig)
	}
	if c.DefaultMaxAttempts < 1 {
		return fmt.Errorf("%w: default max attempts must be at least 1", ErrInvalidConfig)
	}
	return nil
}
