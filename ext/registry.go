package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobEnqueuedEntry struct {
	name string
	hook JobEnqueued
}

type jobClaimedEntry struct {
	name string
	hook JobClaimed
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobRetriedEntry struct {
	name string
	hook JobRetried
}

type cronFiredEntry struct {
	name string
	hook CronFired
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	jobEnqueued  []jobEnqueuedEntry
	jobClaimed   []jobClaimedEntry
	jobCompleted []jobCompletedEntry
	jobFailed    []jobFailedEntry
	jobRetried   []jobRetriedEntry
	cronFired    []cronFiredEntry
	shutdown     []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobEnqueued); ok {
		r.jobEnqueued = append(r.jobEnqueued, jobEnqueuedEntry{name, h})
	}
	if h, ok := e.(JobClaimed); ok {
		r.jobClaimed = append(r.jobClaimed, jobClaimedEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobRetried); ok {
		r.jobRetried = append(r.jobRetried, jobRetriedEntry{name, h})
	}
	if h, ok := e.(CronFired); ok {
		r.cronFired = append(r.cronFired, cronFiredEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Event emitters
// ──────────────────────────────────────────────────

// EmitJobEnqueued notifies all extensions that implement JobEnqueued.
func (r *Registry) EmitJobEnqueued(ctx context.Context, j *job.Job) {
	for _, e := range r.jobEnqueued {
		if err := e.hook.OnJobEnqueued(ctx, j); err != nil {
			r.logHookError("OnJobEnqueued", e.name, err)
		}
	}
}

// EmitJobClaimed notifies all extensions that implement JobClaimed.
func (r *Registry) EmitJobClaimed(ctx context.Context, j *job.Job) {
	for _, e := range r.jobClaimed {
		if err := e.hook.OnJobClaimed(ctx, j); err != nil {
			r.logHookError("OnJobClaimed", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobRetried notifies all extensions that implement JobRetried.
func (r *Registry) EmitJobRetried(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) {
	for _, e := range r.jobRetried {
		if err := e.hook.OnJobRetried(ctx, j, attempt, nextRunAt); err != nil {
			r.logHookError("OnJobRetried", e.name, err)
		}
	}
}

// EmitCronFired notifies all extensions that implement CronFired.
func (r *Registry) EmitCronFired(ctx context.Context, entryName string, jobID id.JobID) {
	for _, e := range r.cronFired {
		if err := e.hook.OnCronFired(ctx, entryName, jobID); err != nil {
			r.logHookError("OnCronFired", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
