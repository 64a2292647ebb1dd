package cron

import (
	"github.com/xraph/foreman/job"
)

// Definition is a typed cron definition. T is the payload type; it is
// encoded with the job definition's codec when the entry is built.
type Definition[T any] struct {
	// Name is the unique identifier for this cron entry.
	Name string

	// Schedule is a cron expression (e.g. "*/5 * * * *" or "@every 30s").
	Schedule string

	// Job is the typed job definition to enqueue on each fire.
	Job *job.Definition[T]

	// Payload is the static payload to enqueue with each fired job.
	Payload T

	// Opts carries extra enqueue options for fired jobs.
	Opts []job.Option
}

// Entry materializes the typed definition into a schedulable Entry,
// encoding the payload with the job definition's codec.
func (d Definition[T]) Entry() (Entry, error) {
	data, err := d.Job.Encode(d.Payload)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Name:     d.Name,
		Schedule: d.Schedule,
		JobType:  d.Job.Type,
		Payload:  data,
		Opts:     d.Opts,
	}, nil
}
