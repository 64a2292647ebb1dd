// Package job defines the job record, state machine, typed definitions,
// and store contract.
//
// # Job Record
//
// A [Job] is one row per scheduled unit of work. It embeds
// [foreman.Entity] for audit timestamps, carries an opaque payload, and
// progresses through a four-state machine:
//
//	pending → processing → completed
//	pending → processing → pending (retry, rescheduled with backoff)
//	pending → processing → failed
//
// Fields of note:
//   - Queue: the queue family, fixed at enqueue from the job type
//   - Priority: higher values are offered first within a queue
//   - Attempts / MaxAttempts: retry budget; attempts increments at claim
//   - ScheduledAt: earliest instant the job may be claimed
//   - LeaseOwner / LeasedAt: which worker holds the job and since when
//
// There is no cancelled state and no reaper: a processing row whose
// lease has outlived its queue's stale timeout simply satisfies the
// readiness predicate again and gets claimed by the next poller.
//
// # Defining a Job
//
// Use [Definition] with a typed handler. The payload is encoded by the
// definition's codec at enqueue time and decoded before the handler runs:
//
//	var SendEmail = job.NewDefinition(job.TypeSendEmail,
//	    func(ctx context.Context, input EmailInput) error {
//	        return mailer.Send(input.To, input.Subject, input.Body)
//	    },
//	)
//
// # Outcomes
//
// Handlers signal outcome through their return value only: nil means
// success, a plain error means a retryable failure, and an error wrapped
// by [Permanent] means the job must fail immediately with no further
// attempts. Handlers never touch the row.
//
// # Registry
//
// [Registry] maps job types to type-erased [HandlerFunc] values.
// Register definitions at startup via [RegisterDefinition]:
//
//	job.RegisterDefinition(registry, SendEmail)
//	job.RegisterDefinition(registry, RefreshFeed)
//
// The engine package provides higher-level engine.Register and
// engine.Enqueue wrappers.
package job
