package memory

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
	"github.com/xraph/foreman/store"
	"github.com/xraph/foreman/store/storetest"
)

func TestContract(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Copy semantics
// ──────────────────────────────────────────────────

func seedJob(t *testing.T, s *Store) *job.Job {
	t.Helper()
	j := &job.Job{
		Entity:      foreman.NewEntity(),
		ID:          id.NewJobID(),
		Type:        "memtest.noop",
		Queue:       "default",
		Status:      job.StatusPending,
		MaxAttempts: 3,
		ScheduledAt: time.Now().UTC(),
	}
	if err := s.Enqueue(context.Background(), j); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return j
}

// Callers get copies; mutating them must not corrupt stored state.
func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()
	s := New()
	j := seedJob(t, s)

	got, err := s.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Status = job.StatusFailed
	got.Queue = "hijacked"

	fresh, err := s.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fresh.Status != job.StatusPending || fresh.Queue != "default" {
		t.Errorf("stored job mutated through a returned copy: %+v", fresh)
	}
}

func TestEnqueueDetachesFromCaller(t *testing.T) {
	t.Parallel()
	s := New()
	j := seedJob(t, s)

	j.Status = job.StatusCompleted
	j.Priority = 999

	got, err := s.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != job.StatusPending || got.Priority != 0 {
		t.Errorf("stored job tracks the caller's struct: %+v", got)
	}
}

func TestFindReadyReturnsCopies(t *testing.T) {
	t.Parallel()
	s := New()
	j := seedJob(t, s)

	ready, err := s.FindReady(context.Background(), "default", 10, time.Minute)
	if err != nil {
		t.Fatalf("find ready: %v", err)
	}
	if len(ready) != 1 {
		t.Fatalf("got %d ready jobs, want 1", len(ready))
	}
	ready[0].Status = job.StatusFailed

	got, _ := s.Get(context.Background(), j.ID)
	if got.Status != job.StatusPending {
		t.Errorf("stored job mutated through FindReady result: %+v", got)
	}
}
