package store

import (
	"context"

	"github.com/xraph/foreman/job"
)

// Store is the full persistence interface: the job contract plus backend
// lifecycle. A single backend (postgres, bun, redis, mongo, memory)
// implements all of it. The jobs table is the only durable state in the
// system; workers coordinate exclusively through its conditional updates.
type Store interface {
	job.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
