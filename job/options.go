package job

import "time"

// Options configures per-job behavior at enqueue time. Zero values defer
// to the orchestrator configuration (MaxAttempts) or the queue family
// (Priority).
type Options struct {
	// MaxAttempts is the attempts ceiling for this job. Zero means the
	// orchestrator default.
	MaxAttempts int

	// Priority overrides the queue family's base priority when non-nil.
	// Higher values are offered first.
	Priority *int

	// ScheduledAt delays the job until the given instant. Zero means
	// eligible immediately.
	ScheduledAt time.Time

	// Timeout is a handler-side execution deadline enforced by the
	// timeout middleware. Zero means none. It does not preempt across
	// processes; lease expiry remains the only reclaim mechanism.
	Timeout time.Duration

	// DedupeKey makes the enqueue conditional: a second job with the
	// same key is rejected with foreman.ErrDuplicateJob.
	DedupeKey string
}

// DefaultOptions returns the zero Options; all defaults are resolved by
// the engine against the orchestrator config and queue family.
func DefaultOptions() Options {
	return Options{}
}

// Option is a functional option applied at enqueue or definition time.
type Option func(*Options)

// WithMaxAttempts sets the attempts ceiling for the job.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		o.MaxAttempts = n
	}
}

// WithPriority overrides the queue family's base priority.
func WithPriority(p int) Option {
	return func(o *Options) {
		o.Priority = &p
	}
}

// WithScheduledAt schedules the job for execution at a specific time.
func WithScheduledAt(t time.Time) Option {
	return func(o *Options) {
		o.ScheduledAt = t
	}
}

// WithDelay schedules the job for execution after the given duration.
func WithDelay(d time.Duration) Option {
	return func(o *Options) {
		o.ScheduledAt = time.Now().UTC().Add(d)
	}
}

// WithTimeout sets the handler-side execution deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithDedupeKey makes the enqueue conditional on key uniqueness.
func WithDedupeKey(key string) Option {
	return func(o *Options) {
		o.DedupeKey = key
	}
}
