// Package backoff provides retry delay strategies for rescheduled jobs.
// All strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
// Useful in tests and for queues where the downstream recovers on a
// fixed cadence (rate-limit windows).
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * 2^(attempt-1), Max)].
// Jitter spreads out the retry times of jobs that all failed against
// the same dead dependency at the same instant.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// Default returns the backoff used by the engine when none is
// configured: ExponentialWithJitter with 1s initial and 5m max.
func Default() Strategy {
	return NewExponentialWithJitter(1*time.Second, 5*time.Minute)
}
