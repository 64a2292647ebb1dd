package foreman

import (
	"context"
	"log/slog"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// Storer is the minimal store interface held by the Orchestrator.
// It covers lifecycle operations only. The full contract (store.Store)
// is consumed by the engine and worker layers, which sit above this
// package and therefore cannot be imported here.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// poolRunner is an internal interface for worker pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Orchestrator is the central coordinator for job processing. Create one
// with New() and functional options, then hand it to engine.Build to wire
// the store, registry, pollers, and extensions together. The Orchestrator
// holds subsystem references via internal interfaces to avoid import
// cycles.
type Orchestrator struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	pool       poolRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Orchestrator with the given options.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Logger returns the orchestrator's logger.
func (o *Orchestrator) Logger() *slog.Logger { return o.logger }

// Store returns the orchestrator's store.
func (o *Orchestrator) Store() Storer { return o.store }

// Config returns a copy of the orchestrator's configuration.
func (o *Orchestrator) Config() Config { return o.config }

// SetPool sets the worker pool (called by the engine during Build).
func (o *Orchestrator) SetPool(p poolRunner) { o.pool = p }

// SetExtensions sets the extension emitter (called by the engine).
func (o *Orchestrator) SetExtensions(e extensionEmitter) { o.extensions = e }

// Start begins polling and job processing.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.store == nil {
		return ErrNoStore
	}
	if o.pool == nil {
		return ErrStopped
	}
	if err := o.pool.Start(ctx); err != nil {
		return err
	}
	o.started = true
	return nil
}

// Stop gracefully shuts down the orchestrator: pollers stop first, then
// in-flight jobs get until ctx's deadline to finish, then extensions are
// notified and the store is closed.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if o.pool != nil && o.started {
		if err := o.pool.Stop(ctx); err != nil {
			o.logger.Error("pool stop error", "error", err)
		}
	}
	if o.extensions != nil {
		o.extensions.EmitShutdown(ctx)
	}
	if o.store != nil {
		return o.store.Close()
	}
	return nil
}

// WithConcurrency sets the maximum number of concurrently executing jobs.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) error {
		o.config.Concurrency = n
		return nil
	}
}

// WithQueues sets the queue families this orchestrator will poll.
func WithQueues(queues []string) Option {
	return func(o *Orchestrator) error {
		o.config.Queues = queues
		return nil
	}
}

// WithConfig replaces the entire configuration, typically one built by
// ConfigFromEnv. Later options still override individual fields.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) error {
		o.config = cfg
		return nil
	}
}

// WithLogger sets the structured logger for the orchestrator.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) error {
		o.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the orchestrator.
// The store must implement Storer at minimum; typically it is a
// store.Store implementation carrying the full job contract.
func WithStore(s Storer) Option {
	return func(o *Orchestrator) error {
		o.store = s
		return nil
	}
}
