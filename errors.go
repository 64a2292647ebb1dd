package foreman

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("foreman: no store configured")
	ErrStoreClosed     = errors.New("foreman: store closed")
	ErrMigrationFailed = errors.New("foreman: migration failed")

	// Not found errors.
	ErrJobNotFound     = errors.New("foreman: job not found")
	ErrHandlerNotFound = errors.New("foreman: no handler registered for job type")

	// Conflict errors.
	ErrJobAlreadyExists         = errors.New("foreman: job already exists")
	ErrDuplicateJob             = errors.New("foreman: job with same dedupe key already exists")
	ErrHandlerAlreadyRegistered = errors.New("foreman: handler already registered for job type")

	// Claim errors. ErrNotClaimable is the expected outcome of losing a
	// lease race; pollers skip to the next candidate without logging it.
	ErrNotClaimable = errors.New("foreman: job not claimable")

	// State errors.
	ErrInvalidState        = errors.New("foreman: invalid state transition")
	ErrMaxAttemptsExceeded = errors.New("foreman: max attempts exceeded")
	ErrNotFailed           = errors.New("foreman: job is not in failed state")

	// Configuration errors.
	ErrInvalidConfig = errors.New("foreman: invalid configuration")
	ErrUnmappedType  = errors.New("foreman: job type has no queue mapping")
	ErrUnknownQueue  = errors.New("foreman: queue family not configured")

	// Lifecycle errors.
	ErrStopped = errors.New("foreman: orchestrator stopped")
)
