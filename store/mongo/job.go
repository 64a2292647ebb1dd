package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

// readyOr is the $or clause of the readiness predicate: pending, or
// processing under a lease at least staleAfter old.
func readyOr(staleCutoff time.Time) []bson.M {
	return []bson.M{
		{"status": string(job.StatusPending)},
		{"status": string(job.StatusProcessing), "leased_at": bson.M{"$lte": staleCutoff}},
	}
}

// Enqueue persists a new job in pending state.
func (s *Store) Enqueue(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	_, err := s.jobs().InsertOne(ctx, m)
	if err != nil {
		if isDuplicateKey(err) {
			if isDedupeViolation(err) {
				return foreman.ErrDuplicateJob
			}
			return foreman.ErrJobAlreadyExists
		}
		return fmt.Errorf("foreman/mongo: enqueue: %w", err)
	}
	return nil
}

// FindReady returns up to limit claimable jobs in the queue, highest
// priority first, oldest due time breaking ties. Candidates only; Claim
// arbitrates.
func (s *Store) FindReady(ctx context.Context, queue string, limit int, staleAfter time.Duration) ([]*job.Job, error) {
	t := now()
	filter := bson.M{
		"queue":        queue,
		"scheduled_at": bson.M{"$lte": t},
		"$or":          readyOr(t.Add(-staleAfter)),
	}

	findOpts := options.Find().
		SetSort(bson.D{
			{Key: "priority", Value: -1},
			{Key: "scheduled_at", Value: 1},
		}).
		SetLimit(int64(limit))

	cursor, err := s.jobs().Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("foreman/mongo: find ready: %w", err)
	}
	defer cursor.Close(ctx)

	var models []jobModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("foreman/mongo: find ready decode: %w", err)
	}
	return convertJobs(models)
}

// Claim leases the job for owner. The readiness re-check and the lease
// write ride on a single FindOneAndUpdate, which MongoDB applies
// atomically per document, so of any number of concurrent claimers
// exactly one matches; the rest get ErrNotClaimable.
func (s *Store) Claim(ctx context.Context, jobID id.JobID, owner id.WorkerID, staleAfter time.Duration) (*job.Job, error) {
	t := now()
	filter := bson.M{
		"_id":          jobID.String(),
		"scheduled_at": bson.M{"$lte": t},
		"$or":          readyOr(t.Add(-staleAfter)),
	}

	update := bson.M{
		"$set": bson.M{
			"status":      string(job.StatusProcessing),
			"lease_owner": owner.String(),
			"leased_at":   t,
			"updated_at":  t,
		},
		"$inc": bson.M{"attempts": 1},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m jobModel
	err := s.jobs().FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, foreman.ErrNotClaimable
		}
		return nil, fmt.Errorf("foreman/mongo: claim: %w", err)
	}
	return fromJobModel(&m)
}

// MarkCompleted finishes the job successfully and clears the lease.
func (s *Store) MarkCompleted(ctx context.Context, jobID id.JobID) error {
	t := now()
	res, err := s.jobs().UpdateOne(ctx,
		bson.M{"_id": jobID.String()},
		bson.M{
			"$set": bson.M{
				"status":       string(job.StatusCompleted),
				"completed_at": t,
				"lease_owner":  "",
				"updated_at":   t,
			},
			"$unset": bson.M{"leased_at": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("foreman/mongo: mark completed: %w", err)
	}
	if res.MatchedCount == 0 {
		return foreman.ErrJobNotFound
	}
	return nil
}

// MarkFailed finishes the job unsuccessfully and clears the lease.
func (s *Store) MarkFailed(ctx context.Context, jobID id.JobID, lastError string) error {
	t := now()
	res, err := s.jobs().UpdateOne(ctx,
		bson.M{"_id": jobID.String()},
		bson.M{
			"$set": bson.M{
				"status":      string(job.StatusFailed),
				"failed_at":   t,
				"last_error":  lastError,
				"lease_owner": "",
				"updated_at":  t,
			},
			"$unset": bson.M{"leased_at": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("foreman/mongo: mark failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return foreman.ErrJobNotFound
	}
	return nil
}

// Reschedule returns the job to pending for a retry at runAt. Attempts
// stays where the claim left it.
func (s *Store) Reschedule(ctx context.Context, jobID id.JobID, runAt time.Time, lastError string) error {
	res, err := s.jobs().UpdateOne(ctx,
		bson.M{"_id": jobID.String()},
		bson.M{
			"$set": bson.M{
				"status":       string(job.StatusPending),
				"scheduled_at": runAt,
				"last_error":   lastError,
				"lease_owner":  "",
				"updated_at":   now(),
			},
			"$unset": bson.M{"leased_at": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("foreman/mongo: reschedule: %w", err)
	}
	if res.MatchedCount == 0 {
		return foreman.ErrJobNotFound
	}
	return nil
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var m jobModel
	err := s.jobs().FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, foreman.ErrJobNotFound
		}
		return nil, fmt.Errorf("foreman/mongo: get: %w", err)
	}
	return fromJobModel(&m)
}

// ListByStatus returns jobs in the given status, newest first.
func (s *Store) ListByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	filter := bson.M{"status": string(status)}
	if opts.Queue != "" {
		filter["queue"] = opts.Queue
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.jobs().Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("foreman/mongo: list by status: %w", err)
	}
	defer cursor.Close(ctx)

	var models []jobModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("foreman/mongo: list decode: %w", err)
	}
	return convertJobs(models)
}

// Count returns the number of jobs matching opts.
func (s *Store) Count(ctx context.Context, opts job.CountOpts) (int64, error) {
	filter := bson.M{}
	if opts.Queue != "" {
		filter["queue"] = opts.Queue
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	count, err := s.jobs().CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("foreman/mongo: count: %w", err)
	}
	return count, nil
}

// CountProcessing returns the number of jobs in the queue held under a
// live lease. Stale leases do not count, so a crashed worker cannot pin
// the queue's concurrency budget.
func (s *Store) CountProcessing(ctx context.Context, queue string, staleAfter time.Duration) (int, error) {
	count, err := s.jobs().CountDocuments(ctx, bson.M{
		"queue":     queue,
		"status":    string(job.StatusProcessing),
		"leased_at": bson.M{"$gt": now().Add(-staleAfter)},
	})
	if err != nil {
		return 0, fmt.Errorf("foreman/mongo: count processing: %w", err)
	}
	return int(count), nil
}

// Delete removes a job by ID. Dropping the document also releases its
// dedupe key, since the sparse unique index is the dedupe registry.
func (s *Store) Delete(ctx context.Context, jobID id.JobID) error {
	res, err := s.jobs().DeleteOne(ctx, bson.M{"_id": jobID.String()})
	if err != nil {
		return fmt.Errorf("foreman/mongo: delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return foreman.ErrJobNotFound
	}
	return nil
}

func convertJobs(models []jobModel) ([]*job.Job, error) {
	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
