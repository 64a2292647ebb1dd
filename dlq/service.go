package dlq

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/foreman/job"
)

// Service exposes list, replay, and purge operations over the failed
// jobs in a store.
type Service struct {
	store  job.Store
	logger *slog.Logger
}

// NewService creates a Service over the given store. A nil logger falls
// back to slog.Default().
func NewService(store job.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger.With("component", "dlq")}
}

// List returns failed jobs, newest first.
func (s *Service) List(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	return s.store.ListByStatus(ctx, job.StatusFailed, opts)
}

// Count returns the number of failed jobs. An empty queue counts across
// all queues.
func (s *Service) Count(ctx context.Context, queue string) (int64, error) {
	return s.store.Count(ctx, job.CountOpts{Queue: queue, Status: job.StatusFailed})
}

// Purge deletes failed jobs whose terminal failure happened before the
// given time. Returns the number of jobs removed.
func (s *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	failed, err := s.store.ListByStatus(ctx, job.StatusFailed, job.ListOpts{})
	if err != nil {
		return 0, err
	}

	var purged int64
	for _, j := range failed {
		if j.FailedAt == nil || !j.FailedAt.Before(before) {
			continue
		}
		if err := s.store.Delete(ctx, j.ID); err != nil {
			s.logger.Warn("purge failed job", "job_id", j.ID, "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}
