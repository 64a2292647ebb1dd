// Package storetest exercises the job.Store contract against a backend.
//
// Every store implementation runs the same suite:
//
//	func TestStore(t *testing.T) {
//		storetest.Run(t, func(t *testing.T) store.Store {
//			return memory.New()
//		})
//	}
//
// Backends that talk to a real database gate the call behind an
// environment variable and migrate once before running. Subtests use
// unique queue names so suites can share a database without interfering.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
	"github.com/xraph/foreman/store"
)

// Factory returns a ready-to-use store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// Run executes the full contract suite against stores built by factory.
func Run(t *testing.T, factory Factory) {
	t.Run("EnqueueAndGet", func(t *testing.T) { testEnqueueAndGet(t, factory(t)) })
	t.Run("EnqueueDuplicateID", func(t *testing.T) { testEnqueueDuplicateID(t, factory(t)) })
	t.Run("EnqueueDedupeKey", func(t *testing.T) { testEnqueueDedupeKey(t, factory(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, factory(t)) })
	t.Run("FindReadyOrdering", func(t *testing.T) { testFindReadyOrdering(t, factory(t)) })
	t.Run("FindReadyExcludesFuture", func(t *testing.T) { testFindReadyExcludesFuture(t, factory(t)) })
	t.Run("FindReadyScopedToQueue", func(t *testing.T) { testFindReadyScopedToQueue(t, factory(t)) })
	t.Run("FindReadyLimit", func(t *testing.T) { testFindReadyLimit(t, factory(t)) })
	t.Run("FindReadyLeases", func(t *testing.T) { testFindReadyLeases(t, factory(t)) })
	t.Run("Claim", func(t *testing.T) { testClaim(t, factory(t)) })
	t.Run("ClaimContention", func(t *testing.T) { testClaimContention(t, factory(t)) })
	t.Run("ClaimNotClaimable", func(t *testing.T) { testClaimNotClaimable(t, factory(t)) })
	t.Run("ClaimStaleLease", func(t *testing.T) { testClaimStaleLease(t, factory(t)) })
	t.Run("MarkCompleted", func(t *testing.T) { testMarkCompleted(t, factory(t)) })
	t.Run("MarkFailed", func(t *testing.T) { testMarkFailed(t, factory(t)) })
	t.Run("Reschedule", func(t *testing.T) { testReschedule(t, factory(t)) })
	t.Run("ListByStatus", func(t *testing.T) { testListByStatus(t, factory(t)) })
	t.Run("Count", func(t *testing.T) { testCount(t, factory(t)) })
	t.Run("CountProcessing", func(t *testing.T) { testCountProcessing(t, factory(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory(t)) })
}

var queueSeq atomic.Int64

// uniqueQueue returns a queue name no other subtest run has used, so
// suites sharing a database stay isolated.
func uniqueQueue(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), queueSeq.Add(1))
}

func newJob(queueName string, opts ...func(*job.Job)) *job.Job {
	j := &job.Job{
		Entity:      foreman.NewEntity(),
		ID:          id.NewJobID(),
		Type:        "storetest.noop",
		Queue:       queueName,
		Status:      job.StatusPending,
		MaxAttempts: 3,
		ScheduledAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func withPriority(p int) func(*job.Job) {
	return func(j *job.Job) { j.Priority = p }
}

func withScheduledAt(at time.Time) func(*job.Job) {
	return func(j *job.Job) { j.ScheduledAt = at }
}

func withCreatedAt(at time.Time) func(*job.Job) {
	return func(j *job.Job) { j.CreatedAt = at }
}

func withDedupeKey(key string) func(*job.Job) {
	return func(j *job.Job) { j.DedupeKey = key }
}

func mustEnqueue(t *testing.T, s store.Store, j *job.Job) {
	t.Helper()
	if err := s.Enqueue(context.Background(), j); err != nil {
		t.Fatalf("enqueue %s: %v", j.ID, err)
	}
}

func mustClaim(t *testing.T, s store.Store, jobID id.JobID, staleAfter time.Duration) *job.Job {
	t.Helper()
	claimed, err := s.Claim(context.Background(), jobID, id.NewWorkerID(), staleAfter)
	if err != nil {
		t.Fatalf("claim %s: %v", jobID, err)
	}
	return claimed
}

func mustGet(t *testing.T, s store.Store, jobID id.JobID) *job.Job {
	t.Helper()
	j, err := s.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("get %s: %v", jobID, err)
	}
	return j
}

// timesClose tolerates the microsecond truncation some backends apply
// to timestamps.
func timesClose(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < time.Millisecond
}

func testEnqueueAndGet(t *testing.T, s store.Store) {
	q := uniqueQueue("roundtrip")
	j := newJob(q, withPriority(7), withDedupeKey("order-123"))
	j.MaxAttempts = 9
	j.Payload = []byte(`{"order":123}`)
	j.Timeout = 90 * time.Second

	mustEnqueue(t, s, j)

	got := mustGet(t, s, j.ID)
	if got.Type != j.Type {
		t.Errorf("Type = %q, want %q", got.Type, j.Type)
	}
	if got.Queue != q {
		t.Errorf("Queue = %q, want %q", got.Queue, q)
	}
	if string(got.Payload) != string(j.Payload) {
		t.Errorf("Payload = %q, want %q", got.Payload, j.Payload)
	}
	if got.Status != job.StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, job.StatusPending)
	}
	if got.Priority != 7 {
		t.Errorf("Priority = %d, want 7", got.Priority)
	}
	if got.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", got.Attempts)
	}
	if got.MaxAttempts != 9 {
		t.Errorf("MaxAttempts = %d, want 9", got.MaxAttempts)
	}
	if got.DedupeKey != "order-123" {
		t.Errorf("DedupeKey = %q, want %q", got.DedupeKey, "order-123")
	}
	if got.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want %v", got.Timeout, 90*time.Second)
	}
	if !timesClose(got.ScheduledAt, j.ScheduledAt) {
		t.Errorf("ScheduledAt = %v, want %v", got.ScheduledAt, j.ScheduledAt)
	}
	if got.LeasedAt != nil || !got.LeaseOwner.IsNil() {
		t.Error("fresh job must not carry a lease")
	}
}

func testEnqueueDuplicateID(t *testing.T, s store.Store) {
	q := uniqueQueue("dupid")
	j := newJob(q)
	mustEnqueue(t, s, j)

	again := newJob(q)
	again.ID = j.ID
	if err := s.Enqueue(context.Background(), again); !errors.Is(err, foreman.ErrJobAlreadyExists) {
		t.Errorf("enqueue with reused ID: err = %v, want ErrJobAlreadyExists", err)
	}
}

func testEnqueueDedupeKey(t *testing.T, s store.Store) {
	q := uniqueQueue("dedupe")
	key := uniqueQueue("key")

	mustEnqueue(t, s, newJob(q, withDedupeKey(key)))

	if err := s.Enqueue(context.Background(), newJob(q, withDedupeKey(key))); !errors.Is(err, foreman.ErrDuplicateJob) {
		t.Errorf("enqueue with taken dedupe key: err = %v, want ErrDuplicateJob", err)
	}

	// Distinct keys and absent keys never collide.
	mustEnqueue(t, s, newJob(q, withDedupeKey(key+"-other")))
	mustEnqueue(t, s, newJob(q))
	mustEnqueue(t, s, newJob(q))
}

func testGetMissing(t *testing.T, s store.Store) {
	if _, err := s.Get(context.Background(), id.NewJobID()); !errors.Is(err, foreman.ErrJobNotFound) {
		t.Errorf("get missing job: err = %v, want ErrJobNotFound", err)
	}
}

func testFindReadyOrdering(t *testing.T, s store.Store) {
	q := uniqueQueue("ordering")
	now := time.Now().UTC()

	low := newJob(q, withPriority(0), withScheduledAt(now.Add(-3*time.Second)))
	urgentLate := newJob(q, withPriority(10), withScheduledAt(now.Add(-time.Second)))
	urgentEarly := newJob(q, withPriority(10), withScheduledAt(now.Add(-2*time.Second)))
	mid := newJob(q, withPriority(5), withScheduledAt(now.Add(-3*time.Second)))

	for _, j := range []*job.Job{low, urgentLate, urgentEarly, mid} {
		mustEnqueue(t, s, j)
	}

	// Terminal jobs never surface, whatever their priority.
	done := newJob(q, withPriority(100), withScheduledAt(now.Add(-time.Minute)))
	mustEnqueue(t, s, done)
	mustClaim(t, s, done.ID, time.Minute)
	if err := s.MarkCompleted(context.Background(), done.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	ready, err := s.FindReady(context.Background(), q, 10, time.Minute)
	if err != nil {
		t.Fatalf("find ready: %v", err)
	}

	want := []id.JobID{urgentEarly.ID, urgentLate.ID, mid.ID, low.ID}
	if len(ready) != len(want) {
		t.Fatalf("got %d ready jobs, want %d", len(ready), len(want))
	}
	for i, j := range ready {
		if j.ID != want[i] {
			t.Errorf("ready[%d] = %s, want %s", i, j.ID, want[i])
		}
	}
}

func testFindReadyExcludesFuture(t *testing.T, s store.Store) {
	q := uniqueQueue("future")
	due := newJob(q)
	later := newJob(q, withScheduledAt(time.Now().UTC().Add(time.Hour)))
	mustEnqueue(t, s, due)
	mustEnqueue(t, s, later)

	ready, err := s.FindReady(context.Background(), q, 10, time.Minute)
	if err != nil {
		t.Fatalf("find ready: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != due.ID {
		t.Errorf("ready = %v, want only the due job %s", ready, due.ID)
	}
}

func testFindReadyScopedToQueue(t *testing.T, s store.Store) {
	mine := uniqueQueue("mine")
	other := uniqueQueue("other")
	j := newJob(mine)
	mustEnqueue(t, s, j)
	mustEnqueue(t, s, newJob(other))

	ready, err := s.FindReady(context.Background(), mine, 10, time.Minute)
	if err != nil {
		t.Fatalf("find ready: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != j.ID {
		t.Errorf("ready = %v, want only %s", ready, j.ID)
	}
}

func testFindReadyLimit(t *testing.T, s store.Store) {
	q := uniqueQueue("limit")
	for range 5 {
		mustEnqueue(t, s, newJob(q))
	}

	ready, err := s.FindReady(context.Background(), q, 2, time.Minute)
	if err != nil {
		t.Fatalf("find ready: %v", err)
	}
	if len(ready) != 2 {
		t.Errorf("got %d ready jobs, want limit 2", len(ready))
	}
}

func testFindReadyLeases(t *testing.T, s store.Store) {
	q := uniqueQueue("leases")
	j := newJob(q)
	mustEnqueue(t, s, j)
	mustClaim(t, s, j.ID, time.Minute)

	// A live lease hides the job.
	ready, err := s.FindReady(context.Background(), q, 10, time.Minute)
	if err != nil {
		t.Fatalf("find ready: %v", err)
	}
	if len(ready) != 0 {
		t.Fatalf("got %d ready jobs, want 0 while the lease is live", len(ready))
	}

	// Once the lease is older than staleAfter the job surfaces again.
	time.Sleep(120 * time.Millisecond)
	ready, err = s.FindReady(context.Background(), q, 10, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("find ready: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != j.ID {
		t.Errorf("ready = %v, want the stale-leased job %s", ready, j.ID)
	}
}

func testClaim(t *testing.T, s store.Store) {
	q := uniqueQueue("claim")
	j := newJob(q)
	mustEnqueue(t, s, j)

	owner := id.NewWorkerID()
	claimed, err := s.Claim(context.Background(), j.ID, owner, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != job.StatusProcessing {
		t.Errorf("Status = %q, want %q", claimed.Status, job.StatusProcessing)
	}
	if claimed.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", claimed.Attempts)
	}
	if claimed.LeaseOwner != owner {
		t.Errorf("LeaseOwner = %s, want %s", claimed.LeaseOwner, owner)
	}
	if claimed.LeasedAt == nil {
		t.Error("LeasedAt must be set on a claimed job")
	}

	// The persisted row agrees with the returned copy.
	got := mustGet(t, s, j.ID)
	if got.Status != job.StatusProcessing || got.Attempts != 1 || got.LeaseOwner != owner {
		t.Errorf("persisted job = %+v, disagrees with claim result", got)
	}
}

func testClaimContention(t *testing.T, s store.Store) {
	q := uniqueQueue("contention")
	j := newJob(q)
	mustEnqueue(t, s, j)

	var winners atomic.Int32
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			_, err := s.Claim(context.Background(), j.ID, id.NewWorkerID(), time.Minute)
			if err == nil {
				winners.Add(1)
				return nil
			}
			if errors.Is(err, foreman.ErrNotClaimable) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("claim race: %v", err)
	}

	if n := winners.Load(); n != 1 {
		t.Errorf("winners = %d, want exactly 1", n)
	}
	if got := mustGet(t, s, j.ID); got.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1: only the winner may advance the count", got.Attempts)
	}
}

func testClaimNotClaimable(t *testing.T, s store.Store) {
	q := uniqueQueue("unclaimable")
	owner := id.NewWorkerID()

	if _, err := s.Claim(context.Background(), id.NewJobID(), owner, time.Minute); !errors.Is(err, foreman.ErrNotClaimable) {
		t.Errorf("claim missing job: err = %v, want ErrNotClaimable", err)
	}

	future := newJob(q, withScheduledAt(time.Now().UTC().Add(time.Hour)))
	mustEnqueue(t, s, future)
	if _, err := s.Claim(context.Background(), future.ID, owner, time.Minute); !errors.Is(err, foreman.ErrNotClaimable) {
		t.Errorf("claim undue job: err = %v, want ErrNotClaimable", err)
	}

	done := newJob(q)
	mustEnqueue(t, s, done)
	mustClaim(t, s, done.ID, time.Minute)
	if err := s.MarkCompleted(context.Background(), done.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if _, err := s.Claim(context.Background(), done.ID, owner, time.Minute); !errors.Is(err, foreman.ErrNotClaimable) {
		t.Errorf("claim completed job: err = %v, want ErrNotClaimable", err)
	}
}

func testClaimStaleLease(t *testing.T, s store.Store) {
	q := uniqueQueue("stale")
	j := newJob(q)
	mustEnqueue(t, s, j)

	first := mustClaim(t, s, j.ID, time.Minute)

	// While the lease is live a second claim loses.
	if _, err := s.Claim(context.Background(), j.ID, id.NewWorkerID(), time.Minute); !errors.Is(err, foreman.ErrNotClaimable) {
		t.Fatalf("claim live-leased job: err = %v, want ErrNotClaimable", err)
	}

	time.Sleep(120 * time.Millisecond)

	reclaimer := id.NewWorkerID()
	second, err := s.Claim(context.Background(), j.ID, reclaimer, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("reclaim stale lease: %v", err)
	}
	if second.LeaseOwner != reclaimer {
		t.Errorf("LeaseOwner = %s, want the reclaimer %s", second.LeaseOwner, reclaimer)
	}
	if second.LeaseOwner == first.LeaseOwner {
		t.Error("reclaim must transfer ownership")
	}
	if second.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2: reclaiming is a fresh delivery", second.Attempts)
	}
}

func testMarkCompleted(t *testing.T, s store.Store) {
	q := uniqueQueue("complete")
	j := newJob(q)
	mustEnqueue(t, s, j)
	mustClaim(t, s, j.ID, time.Minute)

	if err := s.MarkCompleted(context.Background(), j.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	got := mustGet(t, s, j.ID)
	if got.Status != job.StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, job.StatusCompleted)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt must be set")
	}
	if got.LeasedAt != nil || !got.LeaseOwner.IsNil() {
		t.Error("lease must be cleared on completion")
	}

	if err := s.MarkCompleted(context.Background(), id.NewJobID()); !errors.Is(err, foreman.ErrJobNotFound) {
		t.Errorf("mark missing job: err = %v, want ErrJobNotFound", err)
	}
}

func testMarkFailed(t *testing.T, s store.Store) {
	q := uniqueQueue("fail")
	j := newJob(q)
	mustEnqueue(t, s, j)
	mustClaim(t, s, j.ID, time.Minute)

	if err := s.MarkFailed(context.Background(), j.ID, "downstream rejected the payload"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	got := mustGet(t, s, j.ID)
	if got.Status != job.StatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, job.StatusFailed)
	}
	if got.FailedAt == nil {
		t.Error("FailedAt must be set")
	}
	if got.LastError != "downstream rejected the payload" {
		t.Errorf("LastError = %q, want the handler error", got.LastError)
	}
	if got.LeasedAt != nil || !got.LeaseOwner.IsNil() {
		t.Error("lease must be cleared on failure")
	}

	if err := s.MarkFailed(context.Background(), id.NewJobID(), "x"); !errors.Is(err, foreman.ErrJobNotFound) {
		t.Errorf("mark missing job: err = %v, want ErrJobNotFound", err)
	}
}

func testReschedule(t *testing.T, s store.Store) {
	q := uniqueQueue("reschedule")
	j := newJob(q)
	mustEnqueue(t, s, j)
	mustClaim(t, s, j.ID, time.Minute)

	runAt := time.Now().UTC().Add(30 * time.Second)
	if err := s.Reschedule(context.Background(), j.ID, runAt, "transient timeout"); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	got := mustGet(t, s, j.ID)
	if got.Status != job.StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, job.StatusPending)
	}
	if !timesClose(got.ScheduledAt, runAt) {
		t.Errorf("ScheduledAt = %v, want %v", got.ScheduledAt, runAt)
	}
	if got.LastError != "transient timeout" {
		t.Errorf("LastError = %q, want %q", got.LastError, "transient timeout")
	}
	if got.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1: reschedule must not touch attempts", got.Attempts)
	}
	if got.LeasedAt != nil || !got.LeaseOwner.IsNil() {
		t.Error("lease must be cleared on reschedule")
	}

	if err := s.Reschedule(context.Background(), id.NewJobID(), runAt, "x"); !errors.Is(err, foreman.ErrJobNotFound) {
		t.Errorf("reschedule missing job: err = %v, want ErrJobNotFound", err)
	}
}

func testListByStatus(t *testing.T, s store.Store) {
	q := uniqueQueue("list")
	base := time.Now().UTC().Add(-time.Hour)

	ids := make([]id.JobID, 5)
	for i := range ids {
		j := newJob(q, withCreatedAt(base.Add(time.Duration(i)*time.Minute)))
		mustEnqueue(t, s, j)
		ids[i] = j.ID
	}

	all, err := s.ListByStatus(context.Background(), job.StatusPending, job.ListOpts{Queue: q})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d jobs, want 5", len(all))
	}
	for i, j := range all {
		if want := ids[len(ids)-1-i]; j.ID != want {
			t.Errorf("all[%d] = %s, want %s (newest first)", i, j.ID, want)
		}
	}

	page, err := s.ListByStatus(context.Background(), job.StatusPending, job.ListOpts{Queue: q, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[2] || page[1].ID != ids[1] {
		t.Errorf("page = %v, want [%s %s]", page, ids[2], ids[1])
	}

	empty, err := s.ListByStatus(context.Background(), job.StatusPending, job.ListOpts{Queue: q, Offset: 10})
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d jobs past the end, want 0", len(empty))
	}

	none, err := s.ListByStatus(context.Background(), job.StatusFailed, job.ListOpts{Queue: q})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d failed jobs, want 0", len(none))
	}
}

func testCount(t *testing.T, s store.Store) {
	q := uniqueQueue("count")

	for range 2 {
		mustEnqueue(t, s, newJob(q))
	}
	working := newJob(q)
	mustEnqueue(t, s, working)
	mustClaim(t, s, working.ID, time.Minute)

	broken := newJob(q)
	mustEnqueue(t, s, broken)
	mustClaim(t, s, broken.ID, time.Minute)
	if err := s.MarkFailed(context.Background(), broken.ID, "x"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	cases := []struct {
		opts job.CountOpts
		want int64
	}{
		{job.CountOpts{Queue: q}, 4},
		{job.CountOpts{Queue: q, Status: job.StatusPending}, 2},
		{job.CountOpts{Queue: q, Status: job.StatusProcessing}, 1},
		{job.CountOpts{Queue: q, Status: job.StatusFailed}, 1},
		{job.CountOpts{Queue: q, Status: job.StatusCompleted}, 0},
	}
	for _, tc := range cases {
		got, err := s.Count(context.Background(), tc.opts)
		if err != nil {
			t.Fatalf("count %+v: %v", tc.opts, err)
		}
		if got != tc.want {
			t.Errorf("count %+v = %d, want %d", tc.opts, got, tc.want)
		}
	}
}

func testCountProcessing(t *testing.T, s store.Store) {
	q := uniqueQueue("processing")

	jobs := make([]*job.Job, 3)
	for i := range jobs {
		jobs[i] = newJob(q)
		mustEnqueue(t, s, jobs[i])
		mustClaim(t, s, jobs[i].ID, time.Minute)
	}
	// A pending job never counts.
	mustEnqueue(t, s, newJob(q))

	n, err := s.CountProcessing(context.Background(), q, time.Minute)
	if err != nil {
		t.Fatalf("count processing: %v", err)
	}
	if n != 3 {
		t.Errorf("live leases = %d, want 3", n)
	}

	// Leases older than staleAfter stop counting; an abandoned job must
	// not pin the concurrency cap.
	time.Sleep(120 * time.Millisecond)
	n, err = s.CountProcessing(context.Background(), q, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("count processing: %v", err)
	}
	if n != 0 {
		t.Errorf("live leases = %d, want 0 once all leases are stale", n)
	}

	if err := s.MarkCompleted(context.Background(), jobs[0].ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	n, err = s.CountProcessing(context.Background(), q, time.Minute)
	if err != nil {
		t.Fatalf("count processing: %v", err)
	}
	if n != 2 {
		t.Errorf("live leases = %d, want 2 after one completion", n)
	}
}

func testDelete(t *testing.T, s store.Store) {
	q := uniqueQueue("delete")
	key := uniqueQueue("delkey")
	j := newJob(q, withDedupeKey(key))
	mustEnqueue(t, s, j)

	if err := s.Delete(context.Background(), j.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(context.Background(), j.ID); !errors.Is(err, foreman.ErrJobNotFound) {
		t.Errorf("get deleted job: err = %v, want ErrJobNotFound", err)
	}
	if err := s.Delete(context.Background(), j.ID); !errors.Is(err, foreman.ErrJobNotFound) {
		t.Errorf("delete twice: err = %v, want ErrJobNotFound", err)
	}

	// Deletion releases the dedupe key.
	mustEnqueue(t, s, newJob(q, withDedupeKey(key)))
}
