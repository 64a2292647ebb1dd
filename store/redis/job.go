package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

// claimScript removes the job from whichever queue set currently holds it
// and writes the lease, atomically. Exactly one concurrent caller sees the
// removal succeed; the rest return 0. The delayed and leased branches
// re-check due time and lease age server-side so a job the winner just
// re-leased cannot be stolen by a racing claimer that saw the old lease.
//
// KEYS: 1=ready 2=delayed 3=leased 4=job hash
// ARGV: 1=job id 2=owner 3=now millis 4=stale cutoff millis 5=now RFC3339Nano
var claimScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[4]) == 0 then
	return 0
end
local removed = redis.call('ZREM', KEYS[1], ARGV[1])
if removed == 0 then
	local due = redis.call('ZSCORE', KEYS[2], ARGV[1])
	if due and tonumber(due) <= tonumber(ARGV[3]) then
		removed = redis.call('ZREM', KEYS[2], ARGV[1])
	end
end
if removed == 0 then
	local leasedAt = redis.call('ZSCORE', KEYS[3], ARGV[1])
	if leasedAt and tonumber(leasedAt) <= tonumber(ARGV[4]) then
		removed = redis.call('ZREM', KEYS[3], ARGV[1])
	end
end
if removed == 0 then
	return 0
end
redis.call('HSET', KEYS[4], 'status', 'processing', 'lease_owner', ARGV[2], 'leased_at', ARGV[5], 'updated_at', ARGV[5])
redis.call('HINCRBY', KEYS[4], 'attempts', 1)
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// promoteScript moves every due member of the delayed set into the ready
// set, rescoring from due time to claim order using the priority stored
// on the job hash. Runs atomically so a due job is never caught between
// the two sets.
//
// KEYS: 1=delayed 2=ready
// ARGV: 1=now millis 2=job hash key prefix
var promoteScript = goredis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'WITHSCORES')
local moved = 0
for i = 1, #due, 2 do
	local id = due[i]
	local sched = tonumber(due[i+1])
	redis.call('ZREM', KEYS[1], id)
	local priority = redis.call('HGET', ARGV[2] .. id, 'priority')
	if priority then
		redis.call('ZADD', KEYS[2], -tonumber(priority) + sched / 1e15, id)
		moved = moved + 1
	end
end
return moved
`)

// Enqueue stores the job as a Hash and indexes it in the queue's delayed
// or ready Sorted Set depending on due time.
func (s *Store) Enqueue(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("foreman/redis: enqueue check exists: %w", err)
	}
	if exists > 0 {
		return foreman.ErrJobAlreadyExists
	}

	// Dedupe arbitration before any other write: SETNX either takes the
	// key or loses it to the job that already holds it.
	if j.DedupeKey != "" {
		taken, nxErr := s.client.SetNX(ctx, dedupeKey(j.DedupeKey), jID, 0).Result()
		if nxErr != nil {
			return fmt.Errorf("foreman/redis: enqueue dedupe: %w", nxErr)
		}
		if !taken {
			return foreman.ErrDuplicateJob
		}
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobToMap(j))
	pipe.SAdd(ctx, jobIDsKey, jID)
	if j.ScheduledAt.After(time.Now().UTC()) {
		pipe.ZAdd(ctx, delayedKey(j.Queue), goredis.Z{
			Score:  float64(j.ScheduledAt.UnixMilli()),
			Member: jID,
		})
	} else {
		pipe.ZAdd(ctx, readyKey(j.Queue), goredis.Z{
			Score:  jobScore(j.Priority, j.ScheduledAt),
			Member: jID,
		})
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("foreman/redis: enqueue: %w", err)
	}
	return nil
}

// FindReady promotes due delayed jobs, then returns up to limit
// candidates: the head of the ready set plus any leases older than
// staleAfter. Candidates only; Claim arbitrates.
func (s *Store) FindReady(ctx context.Context, queue string, limit int, staleAfter time.Duration) ([]*job.Job, error) {
	now := time.Now().UTC()

	err := promoteScript.Run(ctx, s.client,
		[]string{delayedKey(queue), readyKey(queue)},
		now.UnixMilli(), keyPrefix+"job:",
	).Err()
	if err != nil {
		return nil, fmt.Errorf("foreman/redis: promote due: %w", err)
	}

	readyIDs, err := s.client.ZRange(ctx, readyKey(queue), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("foreman/redis: find ready: %w", err)
	}

	staleCutoff := strconv.FormatInt(now.Add(-staleAfter).UnixMilli(), 10)
	staleIDs, err := s.client.ZRangeByScore(ctx, leasedKey(queue), &goredis.ZRangeBy{
		Min: "-inf",
		Max: staleCutoff,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("foreman/redis: find stale leases: %w", err)
	}

	jobs := make([]*job.Job, 0, len(readyIDs)+len(staleIDs))
	for _, jID := range append(readyIDs, staleIDs...) {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // dangling index entry
		}
		jobs = append(jobs, j)
	}

	// Zset scores pre-rank candidates; the authoritative claim order
	// comes from the hash fields.
	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].Priority != jobs[b].Priority {
			return jobs[a].Priority > jobs[b].Priority
		}
		return jobs[a].ScheduledAt.Before(jobs[b].ScheduledAt)
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Claim leases the job for owner. The readiness re-check and the
// queue-set move run in a single server-side script, so of any number of
// concurrent claimers exactly one wins; the rest get ErrNotClaimable.
func (s *Store) Claim(ctx context.Context, jobID id.JobID, owner id.WorkerID, staleAfter time.Duration) (*job.Job, error) {
	j, err := s.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, foreman.ErrJobNotFound) {
			return nil, foreman.ErrNotClaimable
		}
		return nil, err
	}

	now := time.Now().UTC()
	if !j.Ready(now, staleAfter) {
		return nil, foreman.ErrNotClaimable
	}

	won, err := claimScript.Run(ctx, s.client,
		[]string{
			readyKey(j.Queue),
			delayedKey(j.Queue),
			leasedKey(j.Queue),
			jobKey(jobID.String()),
		},
		jobID.String(),
		owner.String(),
		now.UnixMilli(),
		now.Add(-staleAfter).UnixMilli(),
		now.Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("foreman/redis: claim: %w", err)
	}
	if won == 0 {
		return nil, foreman.ErrNotClaimable
	}

	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// MarkCompleted finishes the job successfully and clears the lease.
func (s *Store) MarkCompleted(ctx context.Context, jobID id.JobID) error {
	j, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobKey(jobID.String()),
		"status", string(job.StatusCompleted),
		"completed_at", now,
		"lease_owner", "",
		"leased_at", "",
		"updated_at", now,
	)
	removeFromQueues(ctx, pipe, j.Queue, jobID.String())
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("foreman/redis: mark completed: %w", err)
	}
	return nil
}

// MarkFailed finishes the job unsuccessfully and clears the lease.
func (s *Store) MarkFailed(ctx context.Context, jobID id.JobID, lastError string) error {
	j, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobKey(jobID.String()),
		"status", string(job.StatusFailed),
		"failed_at", now,
		"last_error", lastError,
		"lease_owner", "",
		"leased_at", "",
		"updated_at", now,
	)
	removeFromQueues(ctx, pipe, j.Queue, jobID.String())
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("foreman/redis: mark failed: %w", err)
	}
	return nil
}

// Reschedule returns the job to pending for a retry at runAt.
func (s *Store) Reschedule(ctx context.Context, jobID id.JobID, runAt time.Time, lastError string) error {
	j, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	jID := jobID.String()
	now := time.Now().UTC()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobKey(jID),
		"status", string(job.StatusPending),
		"scheduled_at", runAt.Format(time.RFC3339Nano),
		"last_error", lastError,
		"lease_owner", "",
		"leased_at", "",
		"updated_at", now.Format(time.RFC3339Nano),
	)
	removeFromQueues(ctx, pipe, j.Queue, jID)
	if runAt.After(now) {
		pipe.ZAdd(ctx, delayedKey(j.Queue), goredis.Z{
			Score:  float64(runAt.UnixMilli()),
			Member: jID,
		})
	} else {
		pipe.ZAdd(ctx, readyKey(j.Queue), goredis.Z{
			Score:  jobScore(j.Priority, runAt),
			Member: jID,
		})
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("foreman/redis: reschedule: %w", err)
	}
	return nil
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// ListByStatus returns jobs in the given status, newest first.
func (s *Store) ListByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("foreman/redis: list smembers: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // skip missing
		}
		if j.Status != status {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})

	if opts.Offset > 0 && opts.Offset < len(jobs) {
		jobs = jobs[opts.Offset:]
	} else if opts.Offset >= len(jobs) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(jobs) {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// Count returns the number of jobs matching opts.
func (s *Store) Count(ctx context.Context, opts job.CountOpts) (int64, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("foreman/redis: count smembers: %w", err)
	}

	var count int64
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue
		}
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		count++
	}
	return count, nil
}

// CountProcessing returns the number of live leases in the queue,
// straight off the leased set's scores.
func (s *Store) CountProcessing(ctx context.Context, queue string, staleAfter time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-staleAfter).UnixMilli()
	n, err := s.client.ZCount(ctx, leasedKey(queue),
		"("+strconv.FormatInt(cutoff, 10), "+inf",
	).Result()
	if err != nil {
		return 0, fmt.Errorf("foreman/redis: count processing: %w", err)
	}
	return int(n), nil
}

// Delete removes a job and all its index entries, releasing its dedupe
// key if it held one.
func (s *Store) Delete(ctx context.Context, jobID id.JobID) error {
	j, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	jID := jobID.String()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, jobKey(jID))
	pipe.SRem(ctx, jobIDsKey, jID)
	removeFromQueues(ctx, pipe, j.Queue, jID)
	if j.DedupeKey != "" {
		pipe.Del(ctx, dedupeKey(j.DedupeKey))
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("foreman/redis: delete: %w", err)
	}
	return nil
}

// ── helpers ──

func removeFromQueues(ctx context.Context, pipe goredis.Pipeliner, queue, jID string) {
	pipe.ZRem(ctx, readyKey(queue), jID)
	pipe.ZRem(ctx, delayedKey(queue), jID)
	pipe.ZRem(ctx, leasedKey(queue), jID)
}

// jobScore computes a ready-set score from priority and due time.
// Lower score = claimed first: priority is negated so higher priority
// sorts first, with a fractional time component for FIFO within the
// same priority.
func jobScore(priority int, scheduledAt time.Time) float64 {
	return float64(-priority) + float64(scheduledAt.UnixMilli())/1e15
}

func jobToMap(j *job.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":           j.ID.String(),
		"type":         string(j.Type),
		"queue":        j.Queue,
		"payload":      string(j.Payload),
		"status":       string(j.Status),
		"priority":     strconv.Itoa(j.Priority),
		"attempts":     strconv.Itoa(j.Attempts),
		"max_attempts": strconv.Itoa(j.MaxAttempts),
		"scheduled_at": j.ScheduledAt.Format(time.RFC3339Nano),
		"lease_owner":  j.LeaseOwner.String(),
		"last_error":   j.LastError,
		"dedupe_key":   j.DedupeKey,
		"timeout":      strconv.FormatInt(int64(j.Timeout), 10),
		"created_at":   j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   j.UpdatedAt.Format(time.RFC3339Nano),
	}
	if j.LeasedAt != nil {
		m["leased_at"] = j.LeasedAt.Format(time.RFC3339Nano)
	}
	if j.CompletedAt != nil {
		m["completed_at"] = j.CompletedAt.Format(time.RFC3339Nano)
	}
	if j.FailedAt != nil {
		m["failed_at"] = j.FailedAt.Format(time.RFC3339Nano)
	}
	return m
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("foreman/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, foreman.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("foreman/redis: parse job id: %w", err)
	}

	priority, _ := strconv.Atoi(m["priority"])           //nolint:errcheck // best-effort parse from trusted Redis data
	attempts, _ := strconv.Atoi(m["attempts"])           //nolint:errcheck // best-effort parse from trusted Redis data
	maxAttempts, _ := strconv.Atoi(m["max_attempts"])    //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data

	scheduledAt, _ := time.Parse(time.RFC3339Nano, m["scheduled_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])     //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])     //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		Entity: foreman.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:          jID,
		Type:        job.Type(m["type"]),
		Queue:       m["queue"],
		Payload:     []byte(m["payload"]),
		Status:      job.Status(m["status"]),
		Priority:    priority,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		ScheduledAt: scheduledAt,
		LastError:   m["last_error"],
		DedupeKey:   m["dedupe_key"],
		Timeout:     time.Duration(timeout),
	}

	if owner := m["lease_owner"]; owner != "" {
		j.LeaseOwner, _ = id.ParseWorkerID(owner) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["leased_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.LeasedAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.CompletedAt = &t
	}
	if v := m["failed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.FailedAt = &t
	}

	return j, nil
}
