// Package foreman provides a durable, database-backed job queue for Go.
// It schedules, leases, executes, retries, and retires background work
// across any number of worker processes with no coordinator: every
// coordination decision is a conditional update against the job store.
//
// Foreman is designed as a library, not a service. Import it, configure
// a store, and register handlers as ordinary Go functions.
//
// # Quick Start
//
//	f, err := foreman.New(
//	    foreman.WithStore(pgStore),
//	    foreman.WithConcurrency(20),
//	)
//
// Then wire the engine and register handlers:
//
//	eng, err := engine.Build(f)
//	eng.RegisterHandler("send_email", sendEmail)
//
// # Architecture
//
// Workers claim jobs through an optimistic conditional update: the claim
// succeeds only if the row still matched the readiness predicate at write
// time, so two workers racing on the same row produce exactly one winner.
// A crashed worker's lease expires by the passage of time and the job
// becomes claimable again; there is no reaper process. Delivery is
// at-least-once and handlers must tolerate re-execution.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package foreman
