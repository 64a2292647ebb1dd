package foreman_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/xraph/foreman"
)

func TestDefaultConfig(t *testing.T) {
	cfg := foreman.DefaultConfig()

	if cfg.Concurrency != 10 {
		t.Errorf("Concurrency = %d, want 10", cfg.Concurrency)
	}
	if !slices.Equal(cfg.Queues, []string{"default"}) {
		t.Errorf("Queues = %v, want [default]", cfg.Queues)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %v, want 1s", cfg.PollInterval)
	}
	if cfg.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want 10", cfg.BatchSize)
	}
	if cfg.StaleAfter != 5*time.Minute {
		t.Errorf("StaleAfter = %v, want 5m", cfg.StaleAfter)
	}
	if cfg.DefaultMaxAttempts != 5 {
		t.Errorf("DefaultMaxAttempts = %d, want 5", cfg.DefaultMaxAttempts)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*foreman.Config)
	}{
		{"zero concurrency", func(c *foreman.Config) { c.Concurrency = 0 }},
		{"negative concurrency", func(c *foreman.Config) { c.Concurrency = -1 }},
		{"no queues", func(c *foreman.Config) { c.Queues = nil }},
		{"zero poll interval", func(c *foreman.Config) { c.PollInterval = 0 }},
		{"zero stale timeout", func(c *foreman.Config) { c.StaleAfter = 0 }},
		{"zero max attempts", func(c *foreman.Config) { c.DefaultMaxAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := foreman.DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, foreman.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got: %v", err)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("FOREMAN_CONCURRENCY", "25")
	t.Setenv("FOREMAN_QUEUES", "high,default,bulk")
	t.Setenv("FOREMAN_POLL_INTERVAL", "250ms")
	t.Setenv("FOREMAN_STALE_AFTER", "90s")

	cfg, err := foreman.ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}

	if cfg.Concurrency != 25 {
		t.Errorf("Concurrency = %d, want 25", cfg.Concurrency)
	}
	if !slices.Equal(cfg.Queues, []string{"high", "default", "bulk"}) {
		t.Errorf("Queues = %v, want [high default bulk]", cfg.Queues)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.PollInterval)
	}
	if cfg.StaleAfter != 90*time.Second {
		t.Errorf("StaleAfter = %v, want 90s", cfg.StaleAfter)
	}

	// Unset variables keep the documented defaults.
	if cfg.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want default 10", cfg.BatchSize)
	}
	if cfg.DefaultMaxAttempts != 5 {
		t.Errorf("DefaultMaxAttempts = %d, want default 5", cfg.DefaultMaxAttempts)
	}
}

func TestConfigFromEnv_InvalidValue(t *testing.T) {
	t.Setenv("FOREMAN_CONCURRENCY", "0")

	if _, err := foreman.ConfigFromEnv(); !errors.Is(err, foreman.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got: %v", err)
	}
}

func TestConfigFromEnv_Unparseable(t *testing.T) {
	t.Setenv("FOREMAN_POLL_INTERVAL", "soon")

	if _, err := foreman.ConfigFromEnv(); err == nil {
		t.Fatal("expected parse error for bad duration")
	}
}

// ── Orchestrator surface ──

type stubStore struct {
	closed bool
}

func (s *stubStore) Migrate(_ context.Context) error { return nil }
func (s *stubStore) Ping(_ context.Context) error    { return nil }
func (s *stubStore) Close() error                    { s.closed = true; return nil }

func TestNew_AppliesOptions(t *testing.T) {
	s := &stubStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	o, err := foreman.New(
		foreman.WithStore(s),
		foreman.WithLogger(logger),
		foreman.WithConcurrency(3),
		foreman.WithQueues([]string{"high"}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if o.Store() != s {
		t.Error("Store() did not return the configured store")
	}
	if o.Logger() != logger {
		t.Error("Logger() did not return the configured logger")
	}
	cfg := o.Config()
	if cfg.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", cfg.Concurrency)
	}
	if !slices.Equal(cfg.Queues, []string{"high"}) {
		t.Errorf("Queues = %v, want [high]", cfg.Queues)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := foreman.New(foreman.WithConcurrency(0))
	if !errors.Is(err, foreman.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got: %v", err)
	}
}

func TestOrchestrator_StartWithoutStore(t *testing.T) {
	o, err := foreman.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := o.Start(context.Background()); !errors.Is(err, foreman.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got: %v", err)
	}
}

func TestOrchestrator_StartWithoutPool(t *testing.T) {
	o, err := foreman.New(foreman.WithStore(&stubStore{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Without engine.Build no pool is wired, so Start must refuse.
	if err := o.Start(context.Background()); !errors.Is(err, foreman.ErrStopped) {
		t.Fatalf("expected ErrStopped, got: %v", err)
	}
}

func TestOrchestrator_StopClosesStore(t *testing.T) {
	s := &stubStore{}
	o, err := foreman.New(foreman.WithStore(s))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !s.closed {
		t.Error("expected Stop to close the store")
	}
}
