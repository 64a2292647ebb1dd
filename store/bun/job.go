package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

// Enqueue persists a new job in pending state.
func (s *Store) Enqueue(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			if isDedupeViolation(err) {
				return foreman.ErrDuplicateJob
			}
			return foreman.ErrJobAlreadyExists
		}
		return fmt.Errorf("foreman/bun: enqueue: %w", err)
	}
	return nil
}

// FindReady returns up to limit claimable jobs from the queue in claim
// order. Candidates only; Claim arbitrates.
func (s *Store) FindReady(ctx context.Context, queue string, limit int, staleAfter time.Duration) ([]*job.Job, error) {
	var models []jobModel
	err := s.db.NewSelect().Model(&models).
		Where("queue = ?", queue).
		Where("scheduled_at <= NOW()").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("status = 'pending'").
				WhereOr("status = 'processing' AND leased_at <= NOW() - make_interval(secs => ?)", staleAfter.Seconds())
		}).
		Order("priority DESC", "scheduled_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("foreman/bun: find ready: %w", err)
	}
	return convertJobs(models)
}

// Claim leases the job for owner with a single conditional UPDATE; the
// readiness predicate is re-checked at write time so exactly one
// concurrent claimer wins.
func (s *Store) Claim(ctx context.Context, jobID id.JobID, owner id.WorkerID, staleAfter time.Duration) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewRaw(`
		UPDATE foreman_jobs
		SET status = 'processing',
		    lease_owner = ?1,
		    leased_at = NOW(),
		    attempts = attempts + 1,
		    updated_at = NOW()
		WHERE id = ?0
		  AND scheduled_at <= NOW()
		  AND (status = 'pending'
		       OR (status = 'processing' AND leased_at <= NOW() - make_interval(secs => ?2)))
		RETURNING *`,
		jobID.String(), owner.String(), staleAfter.Seconds(),
	).Scan(ctx, m)
	if err != nil {
		if isNoRows(err) {
			return nil, foreman.ErrNotClaimable
		}
		return nil, fmt.Errorf("foreman/bun: claim: %w", err)
	}
	return fromJobModel(m)
}

// MarkCompleted finishes the job successfully and clears the lease.
func (s *Store) MarkCompleted(ctx context.Context, jobID id.JobID) error {
	res, err := s.db.NewUpdate().
		TableExpr("foreman_jobs").
		Set("status = 'completed'").
		Set("completed_at = NOW()").
		Set("lease_owner = ''").
		Set("leased_at = NULL").
		Set("updated_at = NOW()").
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("foreman/bun: mark completed: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return foreman.ErrJobNotFound
	}
	return nil
}

// MarkFailed finishes the job unsuccessfully and clears the lease.
func (s *Store) MarkFailed(ctx context.Context, jobID id.JobID, lastError string) error {
	res, err := s.db.NewUpdate().
		TableExpr("foreman_jobs").
		Set("status = 'failed'").
		Set("failed_at = NOW()").
		Set("last_error = ?", lastError).
		Set("lease_owner = ''").
		Set("leased_at = NULL").
		Set("updated_at = NOW()").
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("foreman/bun: mark failed: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return foreman.ErrJobNotFound
	}
	return nil
}

// Reschedule returns the job to pending for a retry at runAt.
func (s *Store) Reschedule(ctx context.Context, jobID id.JobID, runAt time.Time, lastError string) error {
	res, err := s.db.NewUpdate().
		TableExpr("foreman_jobs").
		Set("status = 'pending'").
		Set("scheduled_at = ?", runAt).
		Set("last_error = ?", lastError).
		Set("lease_owner = ''").
		Set("leased_at = NULL").
		Set("updated_at = NOW()").
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("foreman/bun: reschedule: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return foreman.ErrJobNotFound
	}
	return nil
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", jobID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, foreman.ErrJobNotFound
		}
		return nil, fmt.Errorf("foreman/bun: get: %w", err)
	}
	return fromJobModel(m)
}

// ListByStatus returns jobs in the given status, newest first.
func (s *Store) ListByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	var models []jobModel
	q := s.db.NewSelect().Model(&models).
		Where("status = ?", string(status))

	if opts.Queue != "" {
		q = q.Where("queue = ?", opts.Queue)
	}

	q = q.Order("created_at DESC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("foreman/bun: list by status: %w", err)
	}
	return convertJobs(models)
}

// Count returns the number of jobs matching opts.
func (s *Store) Count(ctx context.Context, opts job.CountOpts) (int64, error) {
	q := s.db.NewSelect().TableExpr("foreman_jobs")

	if opts.Queue != "" {
		q = q.Where("queue = ?", opts.Queue)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}

	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("foreman/bun: count: %w", err)
	}
	return int64(count), nil
}

// CountProcessing returns the number of live leases in the queue.
func (s *Store) CountProcessing(ctx context.Context, queue string, staleAfter time.Duration) (int, error) {
	count, err := s.db.NewSelect().
		TableExpr("foreman_jobs").
		Where("queue = ?", queue).
		Where("status = 'processing'").
		Where("leased_at > NOW() - make_interval(secs => ?)", staleAfter.Seconds()).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("foreman/bun: count processing: %w", err)
	}
	return count, nil
}

// Delete removes a job by ID.
func (s *Store) Delete(ctx context.Context, jobID id.JobID) error {
	res, err := s.db.NewDelete().
		TableExpr("foreman_jobs").
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("foreman/bun: delete: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return foreman.ErrJobNotFound
	}
	return nil
}

func convertJobs(models []jobModel) ([]*job.Job, error) {
	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
