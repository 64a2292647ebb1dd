package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
	"github.com/xraph/foreman/observability"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %s not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s: expected Sum[int64] data type", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func newTestJob() *job.Job {
	return &job.Job{
		Entity:      foreman.NewEntity(),
		ID:          id.NewJobID(),
		Type:        "send-email",
		Queue:       "emails",
		Status:      job.StatusPending,
		MaxAttempts: 3,
		ScheduledAt: time.Now().UTC(),
	}
}

func TestMetricsExtension_CountsLifecycleEvents(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))
	ctx := context.Background()
	j := newTestJob()

	for range 3 {
		if err := m.OnJobEnqueued(ctx, j); err != nil {
			t.Fatalf("OnJobEnqueued: %v", err)
		}
	}
	_ = m.OnJobClaimed(ctx, j)
	_ = m.OnJobClaimed(ctx, j)
	_ = m.OnJobCompleted(ctx, j, 120*time.Millisecond)
	_ = m.OnJobFailed(ctx, j, errors.New("smtp refused"))
	_ = m.OnJobRetried(ctx, j, 1, time.Now().Add(time.Minute))

	rm := collectMetrics(t, reader)

	checks := []struct {
		name string
		want int64
	}{
		{"foreman.jobs.enqueued", 3},
		{"foreman.jobs.claimed", 2},
		{"foreman.jobs.completed", 1},
		{"foreman.jobs.failed", 1},
		{"foreman.jobs.retried", 1},
	}
	for _, c := range checks {
		if got := counterValue(t, rm, c.name); got != c.want {
			t.Errorf("%s = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestMetricsExtension_AttributesJobEvents(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))

	if err := m.OnJobEnqueued(context.Background(), newTestJob()); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "foreman.jobs.enqueued")
	if metric == nil {
		t.Fatal("foreman.jobs.enqueued metric not found")
	}

	sum := metric.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(sum.DataPoints))
	}

	dp := sum.DataPoints[0]
	if v, ok := dp.Attributes.Value(attribute.Key("queue")); !ok || v.AsString() != "emails" {
		t.Errorf("queue attribute = %v, want %q", v, "emails")
	}
	if v, ok := dp.Attributes.Value(attribute.Key("job_type")); !ok || v.AsString() != "send-email" {
		t.Errorf("job_type attribute = %v, want %q", v, "send-email")
	}
}

func TestMetricsExtension_CountsCronFires(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))

	if err := m.OnCronFired(context.Background(), "daily-report", id.NewJobID()); err != nil {
		t.Fatalf("OnCronFired: %v", err)
	}

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "foreman.jobs.cron_fired")
	if metric == nil {
		t.Fatal("foreman.jobs.cron_fired metric not found")
	}

	sum := metric.Data.(metricdata.Sum[int64])
	dp := sum.DataPoints[0]
	if v, ok := dp.Attributes.Value(attribute.Key("cron")); !ok || v.AsString() != "daily-report" {
		t.Errorf("cron attribute = %v, want %q", v, "daily-report")
	}
}
