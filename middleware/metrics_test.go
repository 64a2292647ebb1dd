package middleware_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	mw "github.com/xraph/foreman/middleware"
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

func TestMetrics_RecordsDuration(t *testing.T) {
	reader, mp := setupTestMeter()
	m := mw.MetricsWithMeter(mp.Meter("test"))

	_ = m(context.Background(), newTestJob(), func(_ context.Context) error {
		return nil
	})

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "foreman.job.duration")
	if metric == nil {
		t.Fatal("foreman.job.duration metric not found")
	}

	hist, ok := metric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("expected Histogram[float64] data type")
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(hist.DataPoints))
	}
	if hist.DataPoints[0].Count != 1 {
		t.Errorf("histogram count = %d, want 1", hist.DataPoints[0].Count)
	}
}

func TestMetrics_CountsExecutionsByStatus(t *testing.T) {
	reader, mp := setupTestMeter()
	m := mw.MetricsWithMeter(mp.Meter("test"))

	_ = m(context.Background(), newTestJob(), func(_ context.Context) error {
		return nil
	})
	_ = m(context.Background(), newTestJob(), func(_ context.Context) error {
		return errors.New("transient")
	})

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "foreman.job.executions")
	if metric == nil {
		t.Fatal("foreman.job.executions metric not found")
	}

	sum, ok := metric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("expected Sum[int64] data type")
	}

	statuses := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		if v, found := dp.Attributes.Value(attribute.Key("status")); found {
			statuses[v.AsString()] += dp.Value
		}
	}
	if statuses["ok"] != 1 {
		t.Errorf("ok executions = %d, want 1", statuses["ok"])
	}
	if statuses["error"] != 1 {
		t.Errorf("error executions = %d, want 1", statuses["error"])
	}
}
