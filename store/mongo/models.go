package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

// jobModel is the BSON document shape for a job. DedupeKey carries
// omitempty so keyless jobs have no dedupe_key field at all and the
// sparse unique index never sees them.
type jobModel struct {
	ID          string     `bson:"_id"`
	Type        string     `bson:"type"`
	Queue       string     `bson:"queue"`
	Payload     []byte     `bson:"payload"`
	Status      string     `bson:"status"`
	Priority    int        `bson:"priority"`
	Attempts    int        `bson:"attempts"`
	MaxAttempts int        `bson:"max_attempts"`
	ScheduledAt time.Time  `bson:"scheduled_at"`
	LeaseOwner  string     `bson:"lease_owner"`
	LeasedAt    *time.Time `bson:"leased_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	FailedAt    *time.Time `bson:"failed_at,omitempty"`
	LastError   string     `bson:"last_error"`
	DedupeKey   string     `bson:"dedupe_key,omitempty"`
	Timeout     int64      `bson:"timeout"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
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
		DedupeKey:   j.DedupeKey,
		Timeout:     j.Timeout.Nanoseconds(),
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("foreman/mongo: parse job id %q: %w", m.ID, err)
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
		DedupeKey:   m.DedupeKey,
		Timeout:     time.Duration(m.Timeout),
	}

	if m.LeaseOwner != "" {
		parsedOwner, ownerErr := id.ParseWorkerID(m.LeaseOwner)
		if ownerErr == nil {
			j.LeaseOwner = parsedOwner
		}
	}

	return j, nil
}
