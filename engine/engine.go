package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/backoff"
	"github.com/xraph/foreman/cron"
	"github.com/xraph/foreman/dlq"
	"github.com/xraph/foreman/ext"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
	mw "github.com/xraph/foreman/middleware"
	"github.com/xraph/foreman/observability"
	"github.com/xraph/foreman/queue"
	"github.com/xraph/foreman/worker"
)

const instrumentationName = "github.com/xraph/foreman"

// Engine wraps an Orchestrator with the fully wired subsystem graph.
// Use Build() to create one.
type Engine struct {
	o          *foreman.Orchestrator
	config     foreman.Config
	extensions *ext.Registry
	registry   *job.Registry
	store      job.Store
	classifier *queue.Classifier
	families   *queue.Set
	dlqService *dlq.Service
	scheduler  *cron.Scheduler
	manager    *queue.Manager
	pool       *worker.Pool
	bo         backoff.Strategy
	mws        []mw.Middleware
	logger     *slog.Logger

	// Build-time inputs collected from options.
	familyList []queue.Family
	mapping    queue.Mapping
	cronTick   time.Duration

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware appends middleware to the engine's chain, after the
// default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the retry backoff strategy for the engine.
// If not set, backoff.Default() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithFamilies replaces the queue family set. If not set, the engine
// uses queue.BuiltinFamilies(). The orchestrator config's Queues list
// selects which of these this process polls; enqueue may target any of
// them.
func WithFamilies(families ...queue.Family) Option {
	return func(eng *Engine) {
		eng.familyList = families
	}
}

// WithMapping overlays entries onto the default type→family mapping.
// Listed types replace their default assignment; types not listed keep
// it. Every target must name a configured family or Build fails.
func WithMapping(m queue.Mapping) Option {
	return func(eng *Engine) {
		eng.mapping = m
	}
}

// WithCronTickInterval sets how often the cron scheduler checks for due
// entries. The default is one second.
func WithCronTickInterval(d time.Duration) Option {
	return func(eng *Engine) {
		eng.cronTick = d
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the
// global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an Orchestrator. The orchestrator's store
// must implement job.Store, and every queue the config names must be a
// configured family.
func Build(o *foreman.Orchestrator, opts ...Option) (*Engine, error) {
	logger := o.Logger()
	store := o.Store()

	if store == nil {
		return nil, foreman.ErrNoStore
	}
	js, ok := store.(job.Store)
	if !ok {
		return nil, fmt.Errorf("foreman/engine: store %T does not implement job.Store", store)
	}

	eng := &Engine{
		o:          o,
		config:     o.Config(),
		extensions: ext.NewRegistry(logger),
		registry:   job.NewRegistry(),
		store:      js,
		familyList: queue.BuiltinFamilies(),
		logger:     logger,
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.bo == nil {
		eng.bo = backoff.Default()
	}

	// Normalize the family set against the process defaults and resolve
	// which families this process polls.
	families := make([]queue.Family, len(eng.familyList))
	for i, f := range eng.familyList {
		families[i] = f.Normalize(eng.config.PollInterval, eng.config.BatchSize, eng.config.StaleAfter)
	}
	set, err := queue.NewSet(families...)
	if err != nil {
		return nil, err
	}
	eng.families = set

	polled := make([]queue.Family, 0, len(eng.config.Queues))
	for _, name := range eng.config.Queues {
		f, found := set.Get(name)
		if !found {
			return nil, fmt.Errorf("%w: %q", foreman.ErrUnknownQueue, name)
		}
		polled = append(polled, f)
	}

	// Build the classifier: defaults overlaid with caller entries, every
	// target validated against the family set.
	mapping := queue.DefaultMapping()
	maps.Copy(mapping, eng.mapping)
	eng.classifier, err = queue.NewClassifier(set, mapping)
	if err != nil {
		return nil, err
	}

	eng.dlqService = dlq.NewService(js, logger)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Default middleware stack: recover → tracing → metrics → logging →
	// timeout, with caller middleware after.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(eng.registry, eng.extensions, js, eng.bo, logger, allMws...)

	eng.manager = queue.NewManager(polled...)
	eng.pool = worker.NewPool(
		js,
		executor,
		eng.extensions,
		logger,
		worker.WithPoolConcurrency(eng.config.Concurrency),
		worker.WithPoolFamilies(polled),
		worker.WithQueueManager(eng.manager),
	)

	// Wire back into the Orchestrator.
	o.SetPool(eng.pool)
	o.SetExtensions(eng.extensions)

	// Create the cron scheduler; the engine's own enqueue path is its
	// enqueue function, so fires classify and dedupe like any producer.
	schedOpts := []cron.SchedulerOption{cron.WithEmitter(eng.extensions)}
	if eng.cronTick > 0 {
		schedOpts = append(schedOpts, cron.WithTickInterval(eng.cronTick))
	}
	eng.scheduler = cron.NewScheduler(eng.EnqueueRaw, logger, schedOpts...)

	return eng, nil
}

// Register registers a typed job definition with the engine. The type
// must be covered by the classifier mapping; handlers for unmappable
// types would produce jobs no queue accepts.
func Register[T any](eng *Engine, def *job.Definition[T]) error {
	if !eng.classifier.Covers(def.Type) {
		return fmt.Errorf("%w: %s", foreman.ErrUnmappedType, def.Type)
	}
	return job.RegisterDefinition(eng.registry, def)
}

// RegisterHandler registers a raw []byte handler for a job type. Most
// callers want the typed Register instead.
func (eng *Engine) RegisterHandler(jobType job.Type, h job.HandlerFunc) error {
	if !eng.classifier.Covers(jobType) {
		return fmt.Errorf("%w: %s", foreman.ErrUnmappedType, jobType)
	}
	return eng.registry.Register(jobType, h)
}

// AddCron adds a recurring entry to the engine's scheduler. The entry's
// job type must be covered by the classifier so fires cannot start
// failing at runtime.
func (eng *Engine) AddCron(e cron.Entry) error {
	if !eng.classifier.Covers(e.JobType) {
		return fmt.Errorf("%w: %s", foreman.ErrUnmappedType, e.JobType)
	}
	return eng.scheduler.Add(e)
}

// RegisterCron adds a typed cron definition to the engine's scheduler.
func RegisterCron[T any](eng *Engine, def *cron.Definition[T]) error {
	entry, err := def.Entry()
	if err != nil {
		return err
	}
	return eng.AddCron(entry)
}

// Enqueue encodes a payload with the definition's codec and enqueues the
// job. Options apply on top of the definition's defaults.
func Enqueue[T any](ctx context.Context, eng *Engine, def *job.Definition[T], v T, opts ...job.Option) (id.JobID, error) {
	payload, err := def.Encode(v)
	if err != nil {
		return id.JobID{}, err
	}
	jobOpts := def.Opts
	for _, opt := range opts {
		opt(&jobOpts)
	}
	return eng.enqueue(ctx, def.Type, payload, jobOpts)
}

// EnqueueRaw enqueues a job with a pre-serialized payload. The cron
// scheduler uses it as its cron.EnqueueFunc.
func (eng *Engine) EnqueueRaw(ctx context.Context, jobType job.Type, payload []byte, opts ...job.Option) (id.JobID, error) {
	jobOpts := job.DefaultOptions()
	for _, opt := range opts {
		opt(&jobOpts)
	}
	return eng.enqueue(ctx, jobType, payload, jobOpts)
}

// enqueue classifies the type, resolves option defaults against the
// family and orchestrator config, and persists the pending job.
func (eng *Engine) enqueue(ctx context.Context, jobType job.Type, payload []byte, jobOpts job.Options) (id.JobID, error) {
	queueName, basePriority, err := eng.classifier.Classify(jobType)
	if err != nil {
		return id.JobID{}, err
	}

	priority := basePriority
	if jobOpts.Priority != nil {
		priority = *jobOpts.Priority
	}
	maxAttempts := jobOpts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = eng.config.DefaultMaxAttempts
	}
	scheduledAt := jobOpts.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = time.Now().UTC()
	}

	j := &job.Job{
		Entity:      foreman.NewEntity(),
		ID:          id.NewJobID(),
		Type:        jobType,
		Queue:       queueName,
		Payload:     payload,
		Status:      job.StatusPending,
		Priority:    priority,
		MaxAttempts: maxAttempts,
		ScheduledAt: scheduledAt,
		Timeout:     jobOpts.Timeout,
		DedupeKey:   jobOpts.DedupeKey,
	}

	if err := eng.store.Enqueue(ctx, j); err != nil {
		return id.JobID{}, err
	}

	eng.extensions.EmitJobEnqueued(ctx, j)
	return j.ID, nil
}

// Start begins job processing: the worker pool first, then the cron
// scheduler, so the first fire lands on a polling process.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.o.Start(ctx); err != nil {
		return err
	}
	return eng.scheduler.Start(ctx)
}

// Stop gracefully shuts down the engine: the scheduler stops producing,
// then the orchestrator drains the pool, notifies extensions, and closes
// the store.
func (eng *Engine) Stop(ctx context.Context) error {
	if err := eng.scheduler.Stop(ctx); err != nil {
		eng.logger.Error("cron scheduler stop error", slog.String("error", err.Error()))
	}
	return eng.o.Stop(ctx)
}

// ── Operational surface ─────────────────────────────

// QueueStats reports depth counters for one queue family.
type QueueStats struct {
	Queue      string
	Pending    int64
	Processing int
}

// Jobs lists jobs in the given status, newest first.
func (eng *Engine) Jobs(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	return eng.store.ListByStatus(ctx, status, opts)
}

// Failed lists terminally failed jobs, newest first. Use the DLQ service
// to replay or purge them.
func (eng *Engine) Failed(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	return eng.dlqService.List(ctx, opts)
}

// Stats returns pending and live-processing counts for every configured
// family, sorted by name.
func (eng *Engine) Stats(ctx context.Context) ([]QueueStats, error) {
	names := eng.families.Names()
	stats := make([]QueueStats, 0, len(names))
	for _, name := range names {
		f, _ := eng.families.Get(name)
		pending, err := eng.store.Count(ctx, job.CountOpts{Queue: name, Status: job.StatusPending})
		if err != nil {
			return nil, err
		}
		processing, err := eng.store.CountProcessing(ctx, name, f.StaleAfter)
		if err != nil {
			return nil, err
		}
		stats = append(stats, QueueStats{Queue: name, Pending: pending, Processing: processing})
	}
	return stats, nil
}

// ── Accessors ───────────────────────────────────────

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Orchestrator returns the underlying Orchestrator.
func (eng *Engine) Orchestrator() *foreman.Orchestrator { return eng.o }

// DLQ returns the engine's failed-job service for replay and inspection.
func (eng *Engine) DLQ() *dlq.Service { return eng.dlqService }

// Scheduler returns the cron scheduler.
func (eng *Engine) Scheduler() *cron.Scheduler { return eng.scheduler }

// QueueManager returns the per-family admission manager.
func (eng *Engine) QueueManager() *queue.Manager { return eng.manager }
