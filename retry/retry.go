// Package retry decides, for one handler failure, whether a job goes
// back to pending with a delay or fails terminally. The decision is a
// pure function of the attempt counters and the error class; it never
// touches storage.
package retry

import (
	"time"

	"github.com/xraph/foreman/backoff"
	"github.com/xraph/foreman/job"
)

// Decision is the retry controller's verdict for one failure.
type Decision struct {
	// Retry is true when the job should return to pending for another
	// attempt.
	Retry bool

	// Delay is how long from now the job becomes eligible again.
	// Meaningful only when Retry is true.
	Delay time.Duration
}

// Decide maps a handler failure to a Decision.
//
// Errors wrapped by job.Permanent fail immediately, regardless of the
// remaining budget. Transient errors retry with strategy.Delay(attempts)
// while attempts < maxAttempts; the job fails exactly when the attempt
// that just ran was the last one allowed (attempts == maxAttempts).
// attempts is the post-claim counter: it already includes the attempt
// whose failure is being decided.
func Decide(attempts, maxAttempts int, err error, strategy backoff.Strategy) Decision {
	if job.IsPermanent(err) {
		return Decision{}
	}
	if attempts >= maxAttempts {
		return Decision{}
	}
	return Decision{Retry: true, Delay: strategy.Delay(attempts)}
}
