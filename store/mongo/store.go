package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/foreman/store"
)

const colJobs = "foreman_jobs"

var _ store.Store = (*Store)(nil)

// Store implements store.Store using the MongoDB driver. The caller owns
// the *mongo.Database lifecycle; Store never disconnects the client.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new MongoDB store. The caller owns the database
// lifecycle; the Store will not disconnect it on Close().
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *mongo.Database for advanced usage.
func (s *Store) DB() *mongod.Database {
	return s.db
}

func (s *Store) jobs() *mongod.Collection {
	return s.db.Collection(colJobs)
}

// Migrate creates the indexes for the jobs collection. Safe to run
// repeatedly; CreateMany skips indexes that already exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.jobs().Indexes().CreateMany(ctx, migrationIndexes())
	if err != nil {
		return fmt.Errorf("foreman/mongo: migrate %s indexes: %w", colJobs, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error {
	return nil
}

// ── helpers ──────────────────────────────────────────────────────

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isDuplicateKey checks if a MongoDB error is a duplicate key violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "E11000")
}

const idxDedupe = "idx_foreman_jobs_dedupe"

// isDedupeViolation tells a dedupe-key collision apart from a
// primary-key collision by the violated index's name, which MongoDB
// embeds in the error message.
func isDedupeViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), idxDedupe)
}

// migrationIndexes returns the index definitions for the jobs collection.
func migrationIndexes() []mongod.IndexModel {
	return []mongod.IndexModel{
		// Claim-path index: queue + status + priority + scheduled_at.
		{Keys: bson.D{
			{Key: "queue", Value: 1},
			{Key: "status", Value: 1},
			{Key: "priority", Value: -1},
			{Key: "scheduled_at", Value: 1},
		}},
		// Admin listings.
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "created_at", Value: -1},
		}},
		// Lease index for stale-lease scans and live-lease counts.
		{Keys: bson.D{
			{Key: "queue", Value: 1},
			{Key: "status", Value: 1},
			{Key: "leased_at", Value: 1},
		}},
		// Dedupe registry: sparse so jobs without a key stay out of it.
		{
			Keys: bson.D{{Key: "dedupe_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetSparse(true).
				SetName(idxDedupe),
		},
	}
}
