package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.NodeStarted()
	if got := testutil.ToFloat64(m.toolsInFlight); got != 1 {
		t.Errorf("expected 1 tool in flight, got %v", got)
	}

	m.NodeFinished("openroad", "tool", "SUCCESS", true, 2*time.Second)
	m.NodeFinished("minimum", "minimum", "SUCCESS", false, 0)
	m.RunFinished("asicflow", "SUCCEEDED")

	if got := testutil.ToFloat64(m.toolsInFlight); got != 0 {
		t.Errorf("expected no tools in flight, got %v", got)
	}
	if got := testutil.ToFloat64(m.nodesFinished.WithLabelValues("minimum", "minimum", "SUCCESS")); got != 1 {
		t.Errorf("expected 1 finished minimum node, got %v", got)
	}
	if got := testutil.ToFloat64(m.runsFinished.WithLabelValues("asicflow", "SUCCEEDED")); got != 1 {
		t.Errorf("expected 1 finished run, got %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.NodeStarted()
	m.NodeFinished("t", "tool", "ERROR", true, time.Second)
	m.RunFinished("f", "FAILED")
}
