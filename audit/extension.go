package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/foreman/ext"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*Extension)(nil)
	_ ext.JobEnqueued  = (*Extension)(nil)
	_ ext.JobClaimed   = (*Extension)(nil)
	_ ext.JobCompleted = (*Extension)(nil)
	_ ext.JobFailed    = (*Extension)(nil)
	_ ext.JobRetried   = (*Extension)(nil)
	_ ext.CronFired    = (*Extension)(nil)
)

// Extension bridges Foreman lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the
// [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided
// Recorder. A nil Recorder falls back to a [LogRecorder] on the
// extension's logger.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.recorder == nil {
		e.recorder = NewLogRecorder(e.logger)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements ext.JobEnqueued.
func (e *Extension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobEnqueued, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"job_type", string(j.Type),
		"queue", j.Queue,
	)
}

// OnJobClaimed implements ext.JobClaimed.
func (e *Extension) OnJobClaimed(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobClaimed, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"job_type", string(j.Type),
		"queue", j.Queue,
		"worker_id", j.LeaseOwner.String(),
		"attempt", j.Attempts,
	)
}

// OnJobCompleted implements ext.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return e.record(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"job_type", string(j.Type),
		"queue", j.Queue,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements ext.JobFailed. Failure here is terminal, so
// the event carries error severity.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	return e.record(ctx, ActionJobFailed, SeverityError, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, jobErr,
		"job_type", string(j.Type),
		"queue", j.Queue,
		"attempts", j.Attempts,
		"max_attempts", j.MaxAttempts,
	)
}

// OnJobRetried implements ext.JobRetried. The job will run again, so
// the event is a warning rather than an error.
func (e *Extension) OnJobRetried(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error {
	return e.record(ctx, ActionJobRetried, SeverityWarning, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"job_type", string(j.Type),
		"queue", j.Queue,
		"attempt", attempt,
		"next_run_at", nextRunAt.Format(time.RFC3339),
	)
}

// ── Cron lifecycle hooks ────────────────────────────

// OnCronFired implements ext.CronFired.
func (e *Extension) OnCronFired(ctx context.Context, entryName string, jobID id.JobID) error {
	return e.record(ctx, ActionCronFired, SeverityInfo, OutcomeSuccess,
		ResourceCron, entryName, CategoryCron, nil,
		"job_id", jobID.String(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit: failed to record event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
