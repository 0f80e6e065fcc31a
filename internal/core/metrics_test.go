package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"tripcore/internal/core"
)

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := core.NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "load_trip", true, 20*time.Millisecond)
	rec.Observe(ctx, "load_trip", true, 30*time.Millisecond)
	rec.Observe(ctx, "load_trip", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond) // ignored

	snap := rec.Snapshot()
	if got := snap.Results["load_trip"]["success"]; got != 2 {
		t.Fatalf("success count %d", got)
	}
	if got := snap.Results["load_trip"]["error"]; got != 1 {
		t.Fatalf("error count %d", got)
	}
	if got := snap.DurationsMS["load_trip"]; got != 55 {
		t.Fatalf("duration total %v", got)
	}
	if rec.Name() == "" {
		t.Fatalf("expected generated expvar name")
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "save_trip", true, 10*time.Millisecond)
	rec.Observe(ctx, "save_trip", true, 10*time.Millisecond)
	rec.Observe(ctx, "save_trip", false, 10*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	if !names["tripcore_operations_total"] || !names["tripcore_operation_duration_seconds"] {
		t.Fatalf("collectors missing: %v", names)
	}
	if got := testutil.CollectAndCount(rec, "tripcore_operations_total"); got != 2 {
		t.Fatalf("expected 2 operation series, got %d", got)
	}
}

func TestPrometheusMetricsRecorderDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := core.NewPrometheusMetricsRecorder(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := core.NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
