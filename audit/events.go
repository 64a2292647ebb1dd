package audit

// Audit event actions. Each constant corresponds to one ext lifecycle
// hook and becomes the Action field of the emitted event.
const (
	ActionJobEnqueued  = "job.enqueued"
	ActionJobClaimed   = "job.claimed"
	ActionJobCompleted = "job.completed"
	ActionJobFailed    = "job.failed"
	ActionJobRetried   = "job.retried"
	ActionCronFired    = "cron.fired"
)

// Audit event categories group related actions.
const (
	CategoryJob  = "foreman.job"
	CategoryCron = "foreman.cron"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob  = "job"
	ResourceCron = "cron_entry"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobEnqueued,
		ActionJobClaimed,
		ActionJobCompleted,
		ActionJobFailed,
		ActionJobRetried,
		ActionCronFired,
	}
}
