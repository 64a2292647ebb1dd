package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

type jobModel struct {
	bun.BaseModel `bun:"table:foreman_jobs"`

	ID          string     `bun:"id,pk"`
	Type        string     `bun:"type,notnull"`
	Queue       string     `bun:"queue,notnull,default:'default'"`
	Payload     []byte     `bun:"payload,notnull,type:bytea"`
	Status      string     `bun:"status,notnull,default:'pending'"`
	Priority    int        `bun:"priority,notnull,default:0"`
	Attempts    int        `bun:"attempts,notnull,default:0"`
	MaxAttempts int        `bun:"max_attempts,notnull,default:5"`
	ScheduledAt time.Time  `bun:"scheduled_at,notnull,default:current_timestamp"`
	LeaseOwner  string     `bun:"lease_owner,notnull,default:''"`
	LeasedAt    *time.Time `bun:"leased_at"`
	CompletedAt *time.Time `bun:"completed_at"`
	FailedAt    *time.Time `bun:"failed_at"`
	LastError   string     `bun:"last_error,notnull,default:''"`
	DedupeKey   *string    `bun:"dedupe_key"`
	Timeout     int64      `bun:"timeout,notnull,default:0"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toJobModel(j *job.Job) *jobModel {
	m := &jobModel{
		ID:          j.ID.String(),
		Type:        string(j.Type),
		Queue:       j.Queue,
		Payload:     j.Payload,
		Status:      string(j.Status),
		Priority:    j.Priority,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		ScheduledAt: j.ScheduledAt,
		LeaseOwner:  j.LeaseOwner.String(),
		LeasedAt:    j.LeasedAt,
		CompletedAt: j.CompletedAt,
		FailedAt:    j.FailedAt,
		LastError:   j.LastError,
		Timeout:     j.Timeout.Nanoseconds(),
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	// NULL keeps keyless rows out of the partial unique index.
	if j.DedupeKey != "" {
		m.DedupeKey = &j.DedupeKey
	}
	return m
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("foreman/bun: parse job id %q: %w", m.ID, err)
	}

	j := &job.Job{
		Entity: foreman.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          parsedID,
		Type:        job.Type(m.Type),
		Queue:       m.Queue,
		Payload:     m.Payload,
		Status:      job.Status(m.Status),
		Priority:    m.Priority,
		Attempts:    m.Attempts,
		MaxAttempts: m.MaxAttempts,
		ScheduledAt: m.ScheduledAt,
		LeasedAt:    m.LeasedAt,
		CompletedAt: m.CompletedAt,
		FailedAt:    m.FailedAt,
		LastError:   m.LastError,
		Timeout:     time.Duration(m.Timeout),
	}

	if m.DedupeKey != nil {
		j.DedupeKey = *m.DedupeKey
	}
	if m.LeaseOwner != "" {
		owner, ownerErr := id.ParseWorkerID(m.LeaseOwner)
		if ownerErr == nil {
			j.LeaseOwner = owner
		}
	}

	return j, nil
}
