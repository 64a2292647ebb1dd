package dlq

import (
	"context"
	"time"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

// Replay re-enqueues a failed job as a fresh pending job and deletes the
// failed row. The new job keeps the type, queue, payload, priority, and
// attempt budget; it gets a new ID, a zeroed attempt counter, and runs
// immediately. The dedupe key is not carried over: a replay is an
// operator decision to deliver again, not a duplicate to suppress.
//
// Returns foreman.ErrNotFailed when the job exists but is not in failed
// state. If deleting the original fails the fresh job is already
// enqueued; the error is returned alongside it and the failed row is
// left for a later purge.
func (s *Service) Replay(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	orig, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if orig.Status != job.StatusFailed {
		return nil, foreman.ErrNotFailed
	}

	fresh := &job.Job{
		Entity:      foreman.NewEntity(),
		ID:          id.NewJobID(),
		Type:        orig.Type,
		Queue:       orig.Queue,
		Payload:     orig.Payload,
		Status:      job.StatusPending,
		Priority:    orig.Priority,
		MaxAttempts: orig.MaxAttempts,
		ScheduledAt: time.Now().UTC(),
		Timeout:     orig.Timeout,
	}

	if err := s.store.Enqueue(ctx, fresh); err != nil {
		return nil, err
	}
	s.logger.Info("replayed failed job",
		"job_id", jobID, "new_job_id", fresh.ID, "type", fresh.Type)

	if err := s.store.Delete(ctx, jobID); err != nil {
		return fresh, err
	}
	return fresh, nil
}

// ReplayAll replays every failed job, scoped to a queue when one is
// given. Jobs that cannot be replayed are logged and skipped. Returns
// the number of jobs successfully re-enqueued.
func (s *Service) ReplayAll(ctx context.Context, queue string) (int, error) {
	failed, err := s.store.ListByStatus(ctx, job.StatusFailed, job.ListOpts{Queue: queue})
	if err != nil {
		return 0, err
	}

	var replayed int
	for _, j := range failed {
		if _, err := s.Replay(ctx, j.ID); err != nil {
			s.logger.Warn("replay failed job", "job_id", j.ID, "error", err)
			continue
		}
		replayed++
	}
	return replayed, nil
}
