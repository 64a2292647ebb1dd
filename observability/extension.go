package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/foreman/ext"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

// meterName is the instrumentation scope name for foreman metrics.
const meterName = "github.com/xraph/foreman"

// Compile-time interface checks.
var (
	_ ext.Extension    = (*MetricsExtension)(nil)
	_ ext.JobEnqueued  = (*MetricsExtension)(nil)
	_ ext.JobClaimed   = (*MetricsExtension)(nil)
	_ ext.JobCompleted = (*MetricsExtension)(nil)
	_ ext.JobFailed    = (*MetricsExtension)(nil)
	_ ext.JobRetried   = (*MetricsExtension)(nil)
	_ ext.CronFired    = (*MetricsExtension)(nil)
)

// MetricsExtension counts job lifecycle events through OTel. Register it
// to track enqueue, claim, completion, terminal-failure, retry, and cron
// fire rates, each attributed by queue and job type.
//
// It complements middleware.Metrics: the middleware times executions
// from inside the dispatch path, while this extension counts transitions
// that happen outside any handler (enqueues, claims, cron fires).
type MetricsExtension struct {
	enqueued  metric.Int64Counter
	claimed   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	retried   metric.Int64Counter
	cronFired metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global OTel
// MeterProvider. With no provider configured the instruments are noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific MeterProvider
// for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name,
			metric.WithDescription(desc),
			metric.WithUnit("{job}"),
		)
		_ = err // noop fallback guaranteed by OTel API contract
		return c
	}
	return &MetricsExtension{
		enqueued:  counter("foreman.jobs.enqueued", "Jobs accepted into a queue"),
		claimed:   counter("foreman.jobs.claimed", "Job leases won by workers"),
		completed: counter("foreman.jobs.completed", "Jobs finished successfully"),
		failed:    counter("foreman.jobs.failed", "Jobs failed terminally"),
		retried:   counter("foreman.jobs.retried", "Jobs rescheduled for another attempt"),
		cronFired: counter("foreman.jobs.cron_fired", "Jobs enqueued by cron fires"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func jobAttrs(j *job.Job) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("job_type", j.Type.String()),
		attribute.String("queue", j.Queue),
	)
}

// OnJobEnqueued implements ext.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	m.enqueued.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobClaimed implements ext.JobClaimed.
func (m *MetricsExtension) OnJobClaimed(ctx context.Context, j *job.Job) error {
	m.claimed.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.completed.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.failed.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobRetried implements ext.JobRetried.
func (m *MetricsExtension) OnJobRetried(ctx context.Context, j *job.Job, _ int, _ time.Time) error {
	m.retried.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnCronFired implements ext.CronFired.
func (m *MetricsExtension) OnCronFired(ctx context.Context, entryName string, _ id.JobID) error {
	m.cronFired.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cron", entryName),
	))
	return nil
}
