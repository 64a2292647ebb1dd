// Package ext defines the extension system for Foreman.
// Extensions are notified of lifecycle events (job enqueued, claimed,
// completed, failed, retried) and can react to them — metrics, audit
// trails, alerting.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after a job is successfully enqueued.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobClaimed is called when a worker wins the lease for a job.
type JobClaimed interface {
	OnJobClaimed(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a job finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job fails terminally (no more retries).
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobRetried is called when a job fails but is rescheduled for retry.
type JobRetried interface {
	OnJobRetried(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// CronFired is called when a recurring entry fires and enqueues a job.
type CronFired interface {
	OnCronFired(ctx context.Context, entryName string, jobID id.JobID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
