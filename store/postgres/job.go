package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

// jobColumns is the scan order shared by every query returning job rows.
const jobColumns = `id, type, queue, payload, status, priority, attempts, max_attempts,
	scheduled_at, lease_owner, leased_at, completed_at, failed_at,
	last_error, dedupe_key, timeout, created_at, updated_at`

// Enqueue persists a new job in pending state.
func (s *Store) Enqueue(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO foreman_jobs (
			id, type, queue, payload, status, priority, attempts, max_attempts,
			scheduled_at, lease_owner, leased_at, completed_at, failed_at,
			last_error, dedupe_key, timeout, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18
		)`,
		j.ID.String(), string(j.Type), j.Queue, j.Payload, string(j.Status),
		j.Priority, j.Attempts, j.MaxAttempts,
		j.ScheduledAt, j.LeaseOwner.String(), j.LeasedAt, j.CompletedAt, j.FailedAt,
		j.LastError, textOrNil(j.DedupeKey), j.Timeout.Nanoseconds(),
		j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			if isDedupeViolation(err) {
				return foreman.ErrDuplicateJob
			}
			return foreman.ErrJobAlreadyExists
		}
		return fmt.Errorf("foreman/postgres: enqueue: %w", err)
	}
	return nil
}

// FindReady returns up to limit claimable jobs from the queue in claim
// order. A plain read: the per-row conditional update in Claim is the
// arbiter, so no row locks are taken here.
func (s *Store) FindReady(ctx context.Context, queue string, limit int, staleAfter time.Duration) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM foreman_jobs
		WHERE queue = $1
		  AND scheduled_at <= NOW()
		  AND (status = 'pending'
		       OR (status = 'processing' AND leased_at <= NOW() - make_interval(secs => $3)))
		ORDER BY priority DESC, scheduled_at ASC
		LIMIT $2`,
		queue, limit, staleAfter.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("foreman/postgres: find ready: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// Claim leases the job for owner. The WHERE clause repeats the full
// readiness predicate so the update succeeds only if the row is still
// claimable at write time; of N contending workers exactly one sees a row
// returned, the rest get ErrNotClaimable.
func (s *Store) Claim(ctx context.Context, jobID id.JobID, owner id.WorkerID, staleAfter time.Duration) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE foreman_jobs
		SET status = 'processing',
		    lease_owner = $2,
		    leased_at = NOW(),
		    attempts = attempts + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND scheduled_at <= NOW()
		  AND (status = 'pending'
		       OR (status = 'processing' AND leased_at <= NOW() - make_interval(secs => $3)))
		RETURNING `+jobColumns,
		jobID.String(), owner.String(), staleAfter.Seconds(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, foreman.ErrNotClaimable
		}
		return nil, fmt.Errorf("foreman/postgres: claim: %w", err)
	}
	return j, nil
}

// MarkCompleted finishes the job successfully.
func (s *Store) MarkCompleted(ctx context.Context, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE foreman_jobs
		SET status = 'completed', completed_at = NOW(),
		    lease_owner = '', leased_at = NULL, updated_at = NOW()
		WHERE id = $1`,
		jobID.String(),
	)
	if err != nil {
		return fmt.Errorf("foreman/postgres: mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return foreman.ErrJobNotFound
	}
	return nil
}

// MarkFailed finishes the job unsuccessfully.
func (s *Store) MarkFailed(ctx context.Context, jobID id.JobID, lastError string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE foreman_jobs
		SET status = 'failed', failed_at = NOW(), last_error = $2,
		    lease_owner = '', leased_at = NULL, updated_at = NOW()
		WHERE id = $1`,
		jobID.String(), lastError,
	)
	if err != nil {
		return fmt.Errorf("foreman/postgres: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return foreman.ErrJobNotFound
	}
	return nil
}

// Reschedule returns the job to pending for a retry at runAt.
func (s *Store) Reschedule(ctx context.Context, jobID id.JobID, runAt time.Time, lastError string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE foreman_jobs
		SET status = 'pending', scheduled_at = $2, last_error = $3,
		    lease_owner = '', leased_at = NULL, updated_at = NOW()
		WHERE id = $1`,
		jobID.String(), runAt, lastError,
	)
	if err != nil {
		return fmt.Errorf("foreman/postgres: reschedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return foreman.ErrJobNotFound
	}
	return nil
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM foreman_jobs
		WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, foreman.ErrJobNotFound
		}
		return nil, fmt.Errorf("foreman/postgres: get: %w", err)
	}
	return j, nil
}

// ListByStatus returns jobs in the given status, newest first.
func (s *Store) ListByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM foreman_jobs
		WHERE status = $1`
	args := []any{string(status)}
	argIdx := 2

	if opts.Queue != "" {
		query += fmt.Sprintf(" AND queue = $%d", argIdx)
		args = append(args, opts.Queue)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("foreman/postgres: list by status: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// Count returns the number of jobs matching opts.
func (s *Store) Count(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM foreman_jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Queue != "" {
		query += fmt.Sprintf(" AND queue = $%d", argIdx)
		args = append(args, opts.Queue)
		argIdx++
	}
	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(opts.Status))
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("foreman/postgres: count: %w", err)
	}
	return count, nil
}

// CountProcessing returns the number of jobs in the queue holding a live
// lease. Expired leases are excluded; they no longer hold a slot.
func (s *Store) CountProcessing(ctx context.Context, queue string, staleAfter time.Duration) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM foreman_jobs
		WHERE queue = $1
		  AND status = 'processing'
		  AND leased_at > NOW() - make_interval(secs => $2)`,
		queue, staleAfter.Seconds(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("foreman/postgres: count processing: %w", err)
	}
	return count, nil
}

// Delete removes a job by ID.
func (s *Store) Delete(ctx context.Context, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM foreman_jobs WHERE id = $1`, jobID.String())
	if err != nil {
		return fmt.Errorf("foreman/postgres: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return foreman.ErrJobNotFound
	}
	return nil
}

// scanJob scans a single job row in jobColumns order.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j         job.Job
		idStr     string
		typeStr   string
		statusStr string
		ownerStr  string
		dedupe    *string
		timeoutNs int64
	)
	err := row.Scan(
		&idStr, &typeStr, &j.Queue, &j.Payload, &statusStr,
		&j.Priority, &j.Attempts, &j.MaxAttempts,
		&j.ScheduledAt, &ownerStr, &j.LeasedAt, &j.CompletedAt, &j.FailedAt,
		&j.LastError, &dedupe, &timeoutNs,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Type = job.Type(typeStr)
	j.Status = job.Status(statusStr)
	j.Timeout = time.Duration(timeoutNs)
	if dedupe != nil {
		j.DedupeKey = *dedupe
	}

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("foreman/postgres: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	if ownerStr != "" {
		parsedOwner, ownerErr := id.ParseWorkerID(ownerStr)
		if ownerErr == nil {
			j.LeaseOwner = parsedOwner
		}
	}

	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("foreman/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("foreman/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}
