package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/foreman/ext"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnJobEnqueued(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobEnqueued")
	return nil
}

func (e *allHooksExt) OnJobClaimed(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobClaimed")
	return nil
}

func (e *allHooksExt) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobCompleted")
	return nil
}

func (e *allHooksExt) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	e.calls = append(e.calls, "OnJobFailed")
	return nil
}

func (e *allHooksExt) OnJobRetried(_ context.Context, _ *job.Job, _ int, _ time.Time) error {
	e.calls = append(e.calls, "OnJobRetried")
	return nil
}

func (e *allHooksExt) OnCronFired(_ context.Context, _ string, _ id.JobID) error {
	e.calls = append(e.calls, "OnCronFired")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// terminalOnlyExt only implements terminal-outcome hooks.
type terminalOnlyExt struct {
	calls []string
}

func (e *terminalOnlyExt) Name() string { return "terminal-only" }

func (e *terminalOnlyExt) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobCompleted")
	return nil
}

func (e *terminalOnlyExt) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	e.calls = append(e.calls, "OnJobFailed")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnJobEnqueued(_ context.Context, _ *job.Job) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	term := &terminalOnlyExt{}
	r.Register(all)
	r.Register(term)

	ctx := context.Background()
	j := &job.Job{Type: "send-email"}

	// Both implement OnJobCompleted → both called.
	r.EmitJobCompleted(ctx, j, time.Second)
	if len(all.calls) != 1 || all.calls[0] != "OnJobCompleted" {
		t.Fatalf("all: expected [OnJobCompleted], got %v", all.calls)
	}
	if len(term.calls) != 1 || term.calls[0] != "OnJobCompleted" {
		t.Fatalf("term: expected [OnJobCompleted], got %v", term.calls)
	}

	// Only all implements OnJobClaimed → term not called.
	r.EmitJobClaimed(ctx, j)
	if len(all.calls) != 2 || all.calls[1] != "OnJobClaimed" {
		t.Fatalf("all: expected OnJobClaimed as 2nd, got %v", all.calls)
	}
	if len(term.calls) != 1 {
		t.Fatalf("term: should still have 1 call, got %v", term.calls)
	}
}

func TestRegistry_AllJobHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{Type: "send-email"}

	r.EmitJobEnqueued(ctx, j)
	r.EmitJobClaimed(ctx, j)
	r.EmitJobCompleted(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, errors.New("fail"))
	r.EmitJobRetried(ctx, j, 1, time.Now())

	expected := []string{
		"OnJobEnqueued", "OnJobClaimed", "OnJobCompleted",
		"OnJobFailed", "OnJobRetried",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_CronAndShutdownHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	r.EmitCronFired(ctx, "nightly-digest", id.NewJobID())
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d: %v", len(all.calls), all.calls)
	}
	if all.calls[0] != "OnCronFired" {
		t.Errorf("call[0] = %q, want OnCronFired", all.calls[0])
	}
	if all.calls[1] != "OnShutdown" {
		t.Errorf("call[1] = %q, want OnShutdown", all.calls[1])
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	failing := &failingExt{}
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(failing)
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{Type: "send-email"}

	// No panic, no error propagation. allHooksExt should still fire.
	r.EmitJobEnqueued(ctx, j)

	if len(all.calls) != 1 || all.calls[0] != "OnJobEnqueued" {
		t.Fatalf("all: expected [OnJobEnqueued] despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ctx := context.Background()

	// None of these should panic or error.
	r.EmitJobEnqueued(ctx, &job.Job{})
	r.EmitJobClaimed(ctx, &job.Job{})
	r.EmitJobCompleted(ctx, &job.Job{}, time.Second)
	r.EmitJobFailed(ctx, &job.Job{}, errors.New("x"))
	r.EmitJobRetried(ctx, &job.Job{}, 1, time.Now())
	r.EmitCronFired(ctx, "test", id.NewJobID())
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsAllNotified(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ext1 := &allHooksExt{}
	ext2 := &allHooksExt{}
	r.Register(ext1)
	r.Register(ext2)

	ctx := context.Background()
	r.EmitJobEnqueued(ctx, &job.Job{})

	// Both should be called.
	if len(ext1.calls) != 1 {
		t.Errorf("ext1: expected 1 call, got %d", len(ext1.calls))
	}
	if len(ext2.calls) != 1 {
		t.Errorf("ext2: expected 1 call, got %d", len(ext2.calls))
	}
}

func TestRegistry_NilLoggerDefaults(t *testing.T) {
	r := ext.NewRegistry(nil)
	r.Register(&failingExt{})

	// Hook error path must not panic with the fallback logger.
	r.EmitJobEnqueued(context.Background(), &job.Job{})
	r.EmitShutdown(context.Background())

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
}
