package cron

import (
	"github.com/xraph/foreman/job"
)

// Entry is a code-registered recurring job. Entries are configuration,
// not rows: every process registers the same set at startup and the jobs
// table's dedupe-key uniqueness decides which process's fire wins each
// slot.
type Entry struct {
	// Name identifies the entry. Must be unique within a scheduler and
	// stable across processes, since it is part of the dedupe key.
	Name string

	// Schedule is a 5-field cron expression ("*/5 * * * *"), a descriptor
	// ("@hourly"), or an interval ("@every 30s").
	Schedule string

	// JobType is the registered job type to enqueue on each fire.
	JobType job.Type

	// Payload is the static payload passed to every fired job.
	Payload []byte

	// Opts carries extra enqueue options (priority, max attempts). The
	// scheduler appends the per-slot dedupe key after these, so a dedupe
	// key set here is overridden.
	Opts []job.Option
}
