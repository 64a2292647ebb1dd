package job

import (
	"context"
	"time"

	"github.com/xraph/foreman/id"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
	// Queue filters by queue family. Empty means all queues.
	Queue string
}

// CountOpts filters job counts.
type CountOpts struct {
	// Queue filters by queue family. Empty means all queues.
	Queue string
	// Status filters by job status. Empty means all statuses.
	Status Status
}

// Store defines the persistence contract for jobs. It is the single
// source of truth: every coordination decision between workers happens
// through the conditional updates below, never through shared memory.
type Store interface {
	// Enqueue persists a new job in pending state. Returns
	// foreman.ErrJobAlreadyExists on an ID collision and
	// foreman.ErrDuplicateJob when a dedupe key is already taken.
	Enqueue(ctx context.Context, j *Job) error

	// FindReady returns up to limit jobs from the queue that satisfy the
	// readiness predicate — due, and either pending or holding a lease
	// at least staleAfter old — ordered by priority descending, then
	// scheduled time ascending. Candidates only: claiming is a separate
	// conditional step and may still lose.
	FindReady(ctx context.Context, queue string, limit int, staleAfter time.Duration) ([]*Job, error)

	// Claim atomically leases the job for owner: the update succeeds
	// only if the row still satisfies the readiness predicate at write
	// time. On success the job is processing, leased by owner as of now,
	// with attempts incremented, and the updated row is returned. A lost
	// race returns foreman.ErrNotClaimable; so does a job that no longer
	// exists, since backends cannot tell the two apart in one round trip.
	// This is the one correctness-critical operation in the system.
	Claim(ctx context.Context, jobID id.JobID, owner id.WorkerID, staleAfter time.Duration) (*Job, error)

	// MarkCompleted finishes the job successfully: status completed,
	// completion time recorded, lease cleared.
	MarkCompleted(ctx context.Context, jobID id.JobID) error

	// MarkFailed finishes the job unsuccessfully: status failed, failure
	// time and last error recorded, lease cleared. Terminal; requires
	// external intervention (see the dlq package) to run again.
	MarkFailed(ctx context.Context, jobID id.JobID, lastError string) error

	// Reschedule returns the job to pending for a retry at runAt,
	// recording the error that caused it and clearing the lease.
	// Attempts are not touched; they already advanced at claim time.
	Reschedule(ctx context.Context, jobID id.JobID, runAt time.Time, lastError string) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, jobID id.JobID) (*Job, error)

	// ListByStatus returns jobs in the given status, newest first.
	// Read-only; serves the admin surface off the claim path.
	ListByStatus(ctx context.Context, status Status, opts ListOpts) ([]*Job, error)

	// Count returns the number of jobs matching opts.
	Count(ctx context.Context, opts CountOpts) (int64, error)

	// CountProcessing returns the number of jobs holding a live lease in
	// the queue: processing, leased less than staleAfter ago. Pollers
	// re-check concurrency caps against it at claim time. Expired leases
	// do not count; a crashed worker must not pin the cap until its jobs
	// are reclaimed.
	CountProcessing(ctx context.Context, queue string, staleAfter time.Duration) (int, error)

	// Delete removes a job by ID.
	Delete(ctx context.Context, jobID id.JobID) error
}
