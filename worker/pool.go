package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/ext"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
	"github.com/xraph/foreman/queue"
)

// Family defaults applied when the engine has not normalized them.
const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 10
	defaultStaleAfter   = 5 * time.Minute
)

// QueueManager bounds claim admission per family: concurrency caps and
// token-bucket rates. The pool calls Acquire before claiming a candidate
// and Release when execution finishes.
type QueueManager interface {
	// Acquire reports whether a claim from the queue may proceed, and
	// reserves a slot when it may.
	Acquire(queue string) bool
	// Release frees the slot taken by Acquire.
	Release(queue string)
}

// Pool runs one poll loop per queue family. Each tick finds ready jobs,
// claims them through the store's conditional update, and dispatches every
// won claim on its own goroutine through the Executor. Pools in separate
// processes coordinate only through the store: a lost claim is skipped,
// never retried or reported.
type Pool struct {
	store      job.Store
	executor   *Executor
	extensions *ext.Registry
	families   []queue.Family
	manager    QueueManager
	maxActive  int
	workerID   id.WorkerID
	logger     *slog.Logger

	sem      chan struct{} // process-wide execution slots
	stopCh   chan struct{}
	pollers  sync.WaitGroup
	inflight sync.WaitGroup

	mu         sync.Mutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency caps how many jobs this process executes at once,
// across all families.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.maxActive = n }
}

// WithPoolFamilies sets the queue families the pool polls. Zero-valued
// cadence fields are filled with package defaults.
func WithPoolFamilies(families []queue.Family) PoolOption {
	return func(p *Pool) { p.families = families }
}

// WithQueueManager sets the manager enforcing per-family caps and rates.
func WithQueueManager(m QueueManager) PoolOption {
	return func(p *Pool) { p.manager = m }
}

// NewPool creates a worker pool. With no options it polls the built-in
// families at default cadence.
func NewPool(
	store job.Store,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		store:      store,
		executor:   executor,
		extensions: extensions,
		families:   queue.BuiltinFamilies(),
		maxActive:  10,
		workerID:   id.NewWorkerID(),
		logger:     logger,
		stopCh:     make(chan struct{}),
		activeJobs: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}

	families := make([]queue.Family, len(p.families))
	for i, f := range p.families {
		families[i] = f.Normalize(defaultPollInterval, defaultBatchSize, defaultStaleAfter)
	}
	p.families = families
	p.sem = make(chan struct{}, p.maxActive)

	return p
}

// WorkerID returns the pool's lease owner identity.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches one poller per family. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	names := make([]string, len(p.families))
	for i, f := range p.families {
		names[i] = f.Name
	}

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("max_active", p.maxActive),
		slog.Any("queues", names),
	)

	for _, f := range p.families {
		p.pollers.Add(1)
		go p.pollLoop(f)
	}

	return nil
}

// Stop halts the pollers, then waits for in-flight jobs. If the context
// expires first, their contexts are cancelled and the wait resumes.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)
	p.pollers.Wait()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		<-done
	}

	return nil
}

// pollLoop drives one family. After a tick that claimed nothing it sleeps
// for the family's poll interval; after a productive tick it polls again
// immediately to drain bursts.
func (p *Pool) pollLoop(f queue.Family) {
	defer p.pollers.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if p.tick(f) == 0 {
			p.sleep(f.PollInterval)
		}
	}
}

// tick runs one poll cycle for the family and returns how many jobs were
// claimed. Store errors are logged and surface as an idle tick; the loop
// degrades to no-ops until storage recovers.
func (p *Pool) tick(f queue.Family) int {
	ctx := context.Background()

	slots := f.BatchSize
	if f.MaxConcurrency > 0 {
		// The store count is the cross-process authority on the cap;
		// the local manager alone cannot see other processes' leases.
		processing, err := p.store.CountProcessing(ctx, f.Name, f.StaleAfter)
		if err != nil {
			p.logger.Error("count processing failed",
				slog.String("queue", f.Name),
				slog.String("error", err.Error()),
			)
			return 0
		}
		slots = f.MaxConcurrency - processing
		if slots > f.BatchSize {
			slots = f.BatchSize
		}
		if slots <= 0 {
			return 0
		}
	}

	candidates, err := p.store.FindReady(ctx, f.Name, slots, f.StaleAfter)
	if err != nil {
		p.logger.Error("find ready failed",
			slog.String("queue", f.Name),
			slog.String("error", err.Error()),
		)
		return 0
	}

	claimed := 0
	for _, candidate := range candidates {
		select {
		case <-p.stopCh:
			return claimed
		default:
		}

		// Take a process execution slot before claiming; a job this
		// process cannot run yet should stay claimable by others.
		select {
		case p.sem <- struct{}{}:
		default:
			return claimed
		}

		if p.manager != nil && !p.manager.Acquire(f.Name) {
			<-p.sem
			return claimed
		}

		j, claimErr := p.store.Claim(ctx, candidate.ID, p.workerID, f.StaleAfter)
		if claimErr != nil {
			p.releaseSlot(f.Name)
			if errors.Is(claimErr, foreman.ErrNotClaimable) {
				// Lost the race to another worker; normal under contention.
				continue
			}
			p.logger.Error("claim failed",
				slog.String("queue", f.Name),
				slog.String("job_id", candidate.ID.String()),
				slog.String("error", claimErr.Error()),
			)
			continue
		}

		p.extensions.EmitJobClaimed(ctx, j)
		claimed++

		p.inflight.Add(1)
		go p.runJob(j, f.Name)
	}

	return claimed
}

// runJob executes one claimed job and frees its slots when done.
func (p *Pool) runJob(j *job.Job, queueName string) {
	defer p.inflight.Done()
	defer p.releaseSlot(queueName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.trackJob(j.ID.String(), cancel)
	defer p.untrackJob(j.ID.String())

	if err := p.executor.Execute(ctx, j); err != nil {
		p.logger.Debug("job execution failed",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", string(j.Type)),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pool) releaseSlot(queueName string) {
	if p.manager != nil {
		p.manager.Release(queueName)
	}
	<-p.sem
}

func (p *Pool) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-p.stopCh:
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel()
	}
}
