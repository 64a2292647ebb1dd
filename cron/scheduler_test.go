package cron_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/cron"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
	"github.com/xraph/foreman/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// storeEnqueuer adapts a memory store into the scheduler's EnqueueFunc,
// the way the engine does.
func storeEnqueuer(s *memory.Store) cron.EnqueueFunc {
	return func(ctx context.Context, jobType job.Type, payload []byte, opts ...job.Option) (id.JobID, error) {
		o := job.DefaultOptions()
		for _, opt := range opts {
			opt(&o)
		}

		j := &job.Job{
			Entity:      foreman.NewEntity(),
			ID:          id.NewJobID(),
			Type:        jobType,
			Queue:       "default",
			Payload:     payload,
			Status:      job.StatusPending,
			MaxAttempts: 3,
			ScheduledAt: time.Now().UTC(),
			DedupeKey:   o.DedupeKey,
		}
		if o.MaxAttempts > 0 {
			j.MaxAttempts = o.MaxAttempts
		}
		if o.Priority != nil {
			j.Priority = *o.Priority
		}
		if !o.ScheduledAt.IsZero() {
			j.ScheduledAt = o.ScheduledAt
		}

		if err := s.Enqueue(ctx, j); err != nil {
			return id.JobID{}, err
		}
		return j.ID, nil
	}
}

func pendingJobs(t *testing.T, s *memory.Store) []*job.Job {
	t.Helper()
	jobs, err := s.ListByStatus(context.Background(), job.StatusPending, job.ListOpts{})
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	return jobs
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	valid := []string{
		"*/5 * * * *",
		"0 9 * * 1-5",
		"@hourly",
		"@daily",
		"@every 30s",
		"@every 1h30m",
	}
	for _, expr := range valid {
		if _, err := cron.ParseSchedule(expr); err != nil {
			t.Errorf("ParseSchedule(%q) = %v, want nil", expr, err)
		}
	}

	invalid := []string{
		"",
		"not a schedule",
		"* * * *",
		"@every",
		"@every cheese",
		"@every -5s",
		"@every 0s",
	}
	for _, expr := range invalid {
		if _, err := cron.ParseSchedule(expr); err == nil {
			t.Errorf("ParseSchedule(%q) = nil error, want failure", expr)
		}
	}
}

// Interval schedules must produce the same fire time no matter when in
// the slot a process asks, or the dedupe keys would disagree across
// processes.
func TestParseSchedule_IntervalGridIsShared(t *testing.T) {
	t.Parallel()

	sched, err := cron.ParseSchedule("@every 1h")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}

	base := time.Date(2026, 3, 14, 9, 2, 0, 0, time.UTC)
	first := sched.Next(base)
	second := sched.Next(base.Add(41 * time.Minute))

	if !first.Equal(second) {
		t.Errorf("processes disagree on the slot: %v vs %v", first, second)
	}
	if !first.After(base) {
		t.Errorf("Next(%v) = %v, not in the future", base, first)
	}
	if !first.Truncate(time.Hour).Equal(first) {
		t.Errorf("fire time %v is off the hourly grid", first)
	}
}

func TestScheduler_AddValidation(t *testing.T) {
	t.Parallel()
	s := memory.New()
	sched := cron.NewScheduler(storeEnqueuer(s), discardLogger())

	good := cron.Entry{Name: "heartbeat", Schedule: "@every 1m", JobType: "ping"}
	if err := sched.Add(good); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := sched.Add(good); err == nil {
		t.Error("Add accepted a duplicate entry name")
	}
	if err := sched.Add(cron.Entry{Name: "", Schedule: "@every 1m", JobType: "ping"}); err == nil {
		t.Error("Add accepted an empty name")
	}
	if err := sched.Add(cron.Entry{Name: "broken", Schedule: "whenever", JobType: "ping"}); err == nil {
		t.Error("Add accepted an unparsable schedule")
	}
	if err := sched.Add(cron.Entry{Name: "untyped", Schedule: "@every 1m"}); err == nil {
		t.Error("Add accepted an entry without a job type")
	}

	if got := len(sched.Entries()); got != 1 {
		t.Errorf("Entries() = %d, want 1", got)
	}
}

func TestScheduler_FiresDueEntry(t *testing.T) {
	t.Parallel()
	s := memory.New()
	sched := cron.NewScheduler(storeEnqueuer(s), discardLogger(),
		cron.WithTickInterval(10*time.Millisecond))

	err := sched.Add(cron.Entry{
		Name:     "heartbeat",
		Schedule: "@every 50ms",
		JobType:  "ping",
		Payload:  []byte(`{"source":"cron"}`),
		Opts:     []job.Option{job.WithPriority(7)},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sched.Stop(ctx) //nolint:errcheck

	waitFor(t, 2*time.Second, func() bool {
		return len(pendingJobs(t, s)) >= 1
	}, "cron entry never fired")

	fired := pendingJobs(t, s)[0]
	if fired.Type != "ping" {
		t.Errorf("Type = %q, want %q", fired.Type, "ping")
	}
	if string(fired.Payload) != `{"source":"cron"}` {
		t.Errorf("Payload = %q", fired.Payload)
	}
	if fired.Priority != 7 {
		t.Errorf("Priority = %d, want 7: entry opts must reach the job", fired.Priority)
	}
	if !strings.HasPrefix(fired.DedupeKey, "cron:heartbeat:") {
		t.Errorf("DedupeKey = %q, want cron:heartbeat:<fire-time>", fired.DedupeKey)
	}
}

// Two schedulers over one store model two processes. Every fired slot
// must produce exactly one job row.
func TestScheduler_DoubleFireSuppressed(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	entry := cron.Entry{
		Name:     "sync-inventory",
		Schedule: "@every 50ms",
		JobType:  "sync",
	}

	var scheds []*cron.Scheduler
	for range 2 {
		sched := cron.NewScheduler(storeEnqueuer(s), discardLogger(),
			cron.WithTickInterval(10*time.Millisecond))
		if err := sched.Add(entry); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if err := sched.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		scheds = append(scheds, sched)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(pendingJobs(t, s)) >= 3
	}, "schedulers never fired three slots")

	for _, sched := range scheds {
		if err := sched.Stop(ctx); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}

	seen := make(map[string]int)
	for _, j := range pendingJobs(t, s) {
		seen[j.DedupeKey]++
	}
	for key, n := range seen {
		if n != 1 {
			t.Errorf("slot %q fired %d times, want exactly 1", key, n)
		}
	}
}

type recordingEmitter struct {
	mu    sync.Mutex
	fires []string
}

func (r *recordingEmitter) EmitCronFired(_ context.Context, entryName string, jobID id.JobID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fires = append(r.fires, entryName+"/"+jobID.String())
}

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fires)
}

func TestScheduler_EmitsCronFired(t *testing.T) {
	t.Parallel()
	s := memory.New()
	emitter := &recordingEmitter{}
	sched := cron.NewScheduler(storeEnqueuer(s), discardLogger(),
		cron.WithTickInterval(10*time.Millisecond),
		cron.WithEmitter(emitter))

	err := sched.Add(cron.Entry{Name: "heartbeat", Schedule: "@every 50ms", JobType: "ping"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sched.Stop(ctx) //nolint:errcheck

	waitFor(t, 2*time.Second, func() bool {
		return emitter.count() >= 1
	}, "CronFired hook never ran")

	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	if !strings.HasPrefix(emitter.fires[0], "heartbeat/job_") {
		t.Errorf("hook saw %q, want entry name and job id", emitter.fires[0])
	}
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	t.Parallel()
	s := memory.New()
	sched := cron.NewScheduler(storeEnqueuer(s), discardLogger())
	ctx := context.Background()

	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
