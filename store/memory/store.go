package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
	"github.com/xraph/foreman/store"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development;
// all jobs are lost on process exit.
type Store struct {
	mu sync.RWMutex

	jobs   map[string]*job.Job
	dedupe map[string]string // dedupe key → job ID
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:   make(map[string]*job.Job),
		dedupe: make(map[string]string),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// Enqueue persists a new job in pending state.
func (m *Store) Enqueue(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return foreman.ErrJobAlreadyExists
	}
	if j.DedupeKey != "" {
		if _, taken := m.dedupe[j.DedupeKey]; taken {
			return foreman.ErrDuplicateJob
		}
		m.dedupe[j.DedupeKey] = key
	}

	cp := *j
	m.jobs[key] = &cp
	return nil
}

// FindReady returns up to limit claimable jobs from the queue, ordered by
// priority descending, then scheduled time ascending.
func (m *Store) FindReady(_ context.Context, queue string, limit int, staleAfter time.Duration) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now().UTC()

	candidates := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.Queue != queue {
			continue
		}
		if !j.Ready(now, staleAfter) {
			continue
		}
		candidates = append(candidates, j)
	}

	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].Priority != candidates[k].Priority {
			return candidates[i].Priority > candidates[k].Priority
		}
		return candidates[i].ScheduledAt.Before(candidates[k].ScheduledAt)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	// Return copies so callers can mutate without racing with the store.
	result := make([]*job.Job, len(candidates))
	for i, j := range candidates {
		cp := *j
		result[i] = &cp
	}
	return result, nil
}

// Claim leases the job for owner if it is still claimable. Both the
// readiness check and the mutation happen under the store lock, which is
// what makes the claim atomic here; SQL backends get the same guarantee
// from a conditional UPDATE.
func (m *Store) Claim(_ context.Context, jobID id.JobID, owner id.WorkerID, staleAfter time.Duration) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, foreman.ErrNotClaimable
	}

	now := time.Now().UTC()
	if !j.Ready(now, staleAfter) {
		return nil, foreman.ErrNotClaimable
	}

	j.Status = job.StatusProcessing
	j.LeaseOwner = owner
	leasedAt := now
	j.LeasedAt = &leasedAt
	j.Attempts++
	j.UpdatedAt = now

	cp := *j
	return &cp, nil
}

// MarkCompleted finishes the job successfully.
func (m *Store) MarkCompleted(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return foreman.ErrJobNotFound
	}

	now := time.Now().UTC()
	j.Status = job.StatusCompleted
	j.CompletedAt = &now
	j.ClearLease()
	j.UpdatedAt = now
	return nil
}

// MarkFailed finishes the job unsuccessfully.
func (m *Store) MarkFailed(_ context.Context, jobID id.JobID, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return foreman.ErrJobNotFound
	}

	now := time.Now().UTC()
	j.Status = job.StatusFailed
	j.FailedAt = &now
	j.LastError = lastError
	j.ClearLease()
	j.UpdatedAt = now
	return nil
}

// Reschedule returns the job to pending for a retry at runAt.
func (m *Store) Reschedule(_ context.Context, jobID id.JobID, runAt time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return foreman.ErrJobNotFound
	}

	j.Status = job.StatusPending
	j.ScheduledAt = runAt.UTC()
	j.LastError = lastError
	j.ClearLease()
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Get retrieves a job by ID.
func (m *Store) Get(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, foreman.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// ListByStatus returns jobs in the given status, newest first.
func (m *Store) ListByStatus(_ context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.Status != status {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// Count returns the number of jobs matching opts.
func (m *Store) Count(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}
		count++
	}
	return count, nil
}

// CountProcessing returns the number of jobs in the queue holding a live
// lease. Leases older than staleAfter are reclaimable and no longer hold
// a concurrency slot.
func (m *Store) CountProcessing(_ context.Context, queue string, staleAfter time.Duration) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now().UTC()
	count := 0
	for _, j := range m.jobs {
		if j.Queue != queue || j.Status != job.StatusProcessing {
			continue
		}
		if j.LeasedAt != nil && now.Sub(*j.LeasedAt) >= staleAfter {
			continue
		}
		count++
	}
	return count, nil
}

// Delete removes a job by ID.
func (m *Store) Delete(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	j, ok := m.jobs[key]
	if !ok {
		return foreman.ErrJobNotFound
	}
	if j.DedupeKey != "" {
		delete(m.dedupe, j.DedupeKey)
	}
	delete(m.jobs, key)
	return nil
}
