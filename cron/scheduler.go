package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

// EnqueueFunc is the callback the scheduler uses to enqueue fired jobs.
// This breaks the import cycle: the engine provides the implementation.
type EnqueueFunc func(ctx context.Context, jobType job.Type, payload []byte, opts ...job.Option) (id.JobID, error)

// Emitter emits cron lifecycle events. ext.Registry satisfies this
// interface via EmitCronFired.
type Emitter interface {
	EmitCronFired(ctx context.Context, entryName string, jobID id.JobID)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithEmitter sets the lifecycle event emitter.
func WithEmitter(e Emitter) SchedulerOption {
	return func(s *Scheduler) { s.emitter = e }
}

// cronParser supports standard 5-field cron and descriptors like "@hourly".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a schedule expression.
//
// "@every <duration>" intervals get an interval-aligned schedule instead
// of the library's, which anchors fire times at whatever instant the
// process parsed the expression. Alignment makes every process compute
// identical fire times for the same entry, and identical fire times are
// what lets the dedupe key suppress double-firing across processes.
// 5-field expressions and the remaining descriptors are wall-clock
// derived and therefore already deterministic.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	if interval, ok := strings.CutPrefix(expr, "@every "); ok {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("foreman/cron: parse schedule %q: %w", expr, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("foreman/cron: parse schedule %q: interval must be positive", expr)
		}
		return everySchedule{interval: d}, nil
	}

	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("foreman/cron: parse schedule %q: %w", expr, err)
	}
	return sched, nil
}

// everySchedule fires on multiples of the interval from a fixed origin,
// so all processes agree on the slot grid.
type everySchedule struct {
	interval time.Duration
}

// Next returns the first grid instant strictly after t.
func (s everySchedule) Next(t time.Time) time.Time {
	return t.Truncate(s.interval).Add(s.interval)
}

// scheduledEntry pairs an entry with its parsed schedule and the next
// fire time the scheduler owes it.
type scheduledEntry struct {
	entry Entry
	sched cronlib.Schedule
	next  time.Time
}

// Scheduler fires registered entries on a tick loop. Every process runs
// one; there is no leader. For each due slot all processes enqueue the
// same job with the same dedupe key and the store lets exactly one
// insert win. Losers see foreman.ErrDuplicateJob and skip silently.
type Scheduler struct {
	enqueue EnqueueFunc
	emitter Emitter
	logger  *slog.Logger

	tickInterval time.Duration

	mu      sync.Mutex
	entries map[string]*scheduledEntry
	running bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler. A nil logger falls back to
// slog.Default().
func NewScheduler(enqueue EnqueueFunc, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		enqueue:      enqueue,
		logger:       logger.With("component", "cron"),
		tickInterval: time.Second,
		entries:      make(map[string]*scheduledEntry),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers an entry. The schedule is parsed eagerly so a bad
// expression fails at startup, not at fire time. The first fire is the
// next slot after registration; slots that passed before a process came
// up are not back-filled.
func (s *Scheduler) Add(e Entry) error {
	if e.Name == "" {
		return errors.New("foreman/cron: entry name is empty")
	}
	if e.JobType == "" {
		return fmt.Errorf("foreman/cron: entry %q has no job type", e.Name)
	}

	sched, err := ParseSchedule(e.Schedule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.Name]; exists {
		return fmt.Errorf("foreman/cron: entry %q already registered", e.Name)
	}
	s.entries[e.Name] = &scheduledEntry{
		entry: e,
		sched: sched,
		next:  sched.Next(time.Now().UTC()),
	}
	return nil
}

// Entries returns the registered entries.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, se := range s.entries {
		out = append(out, se.entry)
	}
	return out
}

// Start launches the tick loop. It returns immediately.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true

	s.wg.Add(1)
	go s.tickLoop()

	s.logger.Info("cron scheduler started",
		slog.Int("entries", len(s.entries)),
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the scheduler to stop and waits for the tick loop to
// finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(context.Background())
		}
	}
}

// tick fires every entry whose slot has arrived. An entry fires at most
// once per tick: when several slots passed (process slept through them),
// the oldest due slot fires and the rest are skipped.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()

	type firing struct {
		entry Entry
		at    time.Time
	}
	var due []firing

	s.mu.Lock()
	for _, se := range s.entries {
		if se.next.After(now) {
			continue
		}
		due = append(due, firing{entry: se.entry, at: se.next})
		for !se.next.After(now) {
			se.next = se.sched.Next(se.next)
		}
	}
	s.mu.Unlock()

	for _, f := range due {
		s.fire(ctx, f.entry, f.at)
	}
}

// fire enqueues one slot of one entry. The dedupe key carries the slot's
// scheduled fire time, not the local clock, so every process submits the
// same key for the same slot no matter when its tick lands.
func (s *Scheduler) fire(ctx context.Context, e Entry, at time.Time) {
	opts := make([]job.Option, 0, len(e.Opts)+1)
	opts = append(opts, e.Opts...)
	opts = append(opts, job.WithDedupeKey(fireKey(e.Name, at)))

	jobID, err := s.enqueue(ctx, e.JobType, e.Payload, opts...)
	if err != nil {
		if errors.Is(err, foreman.ErrDuplicateJob) {
			// Another process won this slot.
			s.logger.Debug("cron slot already fired",
				slog.String("cron", e.Name),
				slog.Time("fire_time", at),
			)
			return
		}
		s.logger.Error("cron enqueue failed",
			slog.String("cron", e.Name),
			slog.String("job_type", string(e.JobType)),
			slog.String("error", err.Error()),
		)
		return
	}

	if s.emitter != nil {
		s.emitter.EmitCronFired(ctx, e.Name, jobID)
	}

	s.logger.Info("cron fired",
		slog.String("cron", e.Name),
		slog.String("job_type", string(e.JobType)),
		slog.String("job_id", jobID.String()),
		slog.Time("fire_time", at),
	)
}

// fireKey is the dedupe key for one slot of one entry. Nanosecond
// resolution keeps slots distinct even for sub-second intervals.
func fireKey(name string, at time.Time) string {
	return fmt.Sprintf("cron:%s:%d", name, at.UnixNano())
}
