package job

import (
	"time"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	// StatusPending means the job is waiting to be claimed by a worker.
	StatusPending Status = "pending"
	// StatusProcessing means a worker holds the lease and is executing the job.
	StatusProcessing Status = "processing"
	// StatusCompleted means the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the job failed and will not be retried.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job represents a unit of work to be processed by a worker.
//
// Queue and Priority are fixed at enqueue time; afterwards only
// ScheduledAt, the lease fields, Status, and the terminal bookkeeping
// fields mutate, and only through store transition operations.
type Job struct {
	foreman.Entity

	ID          id.JobID      `json:"id"`
	Type        Type          `json:"type"`
	Queue       string        `json:"queue"`
	Payload     []byte        `json:"payload"`
	Status      Status        `json:"status"`
	Priority    int           `json:"priority"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	LeaseOwner  id.WorkerID   `json:"lease_owner,omitempty"`
	LeasedAt    *time.Time    `json:"leased_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	FailedAt    *time.Time    `json:"failed_at,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	DedupeKey   string        `json:"dedupe_key,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// Ready reports whether the job satisfies the readiness predicate at
// instant now: due, and either pending or holding a lease at least
// staleAfter old. This is the Go-side expression of the predicate the
// SQL and document stores evaluate server-side; the in-memory store and
// the claim condition both use it.
func (j *Job) Ready(now time.Time, staleAfter time.Duration) bool {
	if j.ScheduledAt.After(now) {
		return false
	}
	switch j.Status {
	case StatusPending:
		return true
	case StatusProcessing:
		return j.LeasedAt != nil && now.Sub(*j.LeasedAt) >= staleAfter
	default:
		return false
	}
}

// ClearLease resets the lease fields. Transition operations call it when
// a job leaves processing.
func (j *Job) ClearLease() {
	j.LeaseOwner = id.Nil
	j.LeasedAt = nil
}
