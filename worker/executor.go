// Package worker provides the execution side of the system — an Executor
// that runs one claimed job through middleware and its handler and writes
// the outcome back, and a Pool of per-queue-family pollers that claim
// ready jobs and feed it.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/backoff"
	"github.com/xraph/foreman/ext"
	"github.com/xraph/foreman/job"
	"github.com/xraph/foreman/middleware"
	"github.com/xraph/foreman/retry"
)

// Executor runs a single claimed job through middleware and the registered
// handler, then routes the outcome back to the store: completed, pending
// again with a backoff delay, or failed.
type Executor struct {
	registry   *job.Registry
	extensions *ext.Registry
	store      job.Store
	backoff    backoff.Strategy
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *job.Registry,
	extensions *ext.Registry,
	store job.Store,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry:   registry,
		extensions: extensions,
		store:      store,
		backoff:    bo,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs a claimed job and writes the outcome.
// On success: marks completed, emits JobCompleted.
// On a retryable failure with budget left: reschedules with backoff, emits JobRetried.
// On a permanent failure or exhausted budget: marks failed, emits JobFailed.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	start := time.Now()

	var err error
	handler, ok := e.registry.Get(j.Type)
	if !ok {
		// Retrying cannot conjure up a missing handler.
		err = job.Permanent(fmt.Errorf("%w: %s", foreman.ErrHandlerNotFound, j.Type))
	} else {
		terminal := func(ctx context.Context) error {
			return handler(ctx, j.Payload)
		}
		err = e.mw(ctx, j, terminal)
	}
	elapsed := time.Since(start)

	if err != nil {
		return e.handleFailure(ctx, j, err)
	}

	return e.handleSuccess(ctx, j, elapsed)
}

// handleSuccess marks the job as completed and emits the lifecycle event.
func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	if updateErr := e.store.MarkCompleted(ctx, j.ID); updateErr != nil {
		e.logger.Error("failed to mark job completed",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", string(j.Type)),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.extensions.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

// handleFailure routes the error through the retry decision: back to
// pending with a delay, or terminally failed.
func (e *Executor) handleFailure(ctx context.Context, j *job.Job, handlerErr error) error {
	d := retry.Decide(j.Attempts, j.MaxAttempts, handlerErr, e.backoff)
	if d.Retry {
		return e.scheduleRetry(ctx, j, handlerErr, d.Delay)
	}
	return e.fail(ctx, j, handlerErr)
}

// scheduleRetry returns the job to pending at now+delay. Attempts stay
// untouched; the counter already advanced when the job was claimed.
func (e *Executor) scheduleRetry(ctx context.Context, j *job.Job, handlerErr error, delay time.Duration) error {
	nextRunAt := time.Now().UTC().Add(delay)

	if updateErr := e.store.Reschedule(ctx, j.ID, nextRunAt, handlerErr.Error()); updateErr != nil {
		e.logger.Error("failed to reschedule job",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", string(j.Type)),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.extensions.EmitJobRetried(ctx, j, j.Attempts, nextRunAt)

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", string(j.Type)),
		slog.Int("attempt", j.Attempts),
		slog.Int("max_attempts", j.MaxAttempts),
		slog.Duration("delay", delay),
	)

	return fmt.Errorf("job %s attempt %d/%d: %w", j.Type, j.Attempts, j.MaxAttempts, handlerErr)
}

// fail marks the job failed and emits events. Failed jobs stay in the
// store; the dlq package lists and replays them.
func (e *Executor) fail(ctx context.Context, j *job.Job, handlerErr error) error {
	if updateErr := e.store.MarkFailed(ctx, j.ID, handlerErr.Error()); updateErr != nil {
		e.logger.Error("failed to mark job failed",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", string(j.Type)),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.extensions.EmitJobFailed(ctx, j, handlerErr)

	e.logger.Warn("job failed terminally",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", string(j.Type)),
		slog.Int("attempts", j.Attempts),
		slog.String("error", handlerErr.Error()),
	)

	return handlerErr
}
