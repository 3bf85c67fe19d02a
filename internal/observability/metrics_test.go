package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/signalsfoundry/antenna-tracker/core"
)

var _ core.MetricsRecorder = (*TrackerCollector)(nil)

func TestTrackerCollectorRecordsLoopMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTrackerCollector(reg)
	if err != nil {
		t.Fatalf("NewTrackerCollector: %v", err)
	}

	collector.ObserveCycle(250 * time.Millisecond)
	collector.ObserveCycle(40 * time.Second)
	collector.IncOverruns()
	collector.ObservePointingError(0.02)
	collector.IncHorizonViolations()
	collector.IncRestarts()
	collector.IncRestarts()
	collector.SetBudgetRemaining(42 * time.Second)
	collector.IncSessions("completed")

	if got := testutil.ToFloat64(collector.Cycles); got != 2 {
		t.Fatalf("tracker_cycles_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Overruns); got != 1 {
		t.Fatalf("tracker_cadence_overruns_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Restarts); got != 2 {
		t.Fatalf("tracker_restarts_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.BudgetRemaining); got != 42 {
		t.Fatalf("tracker_budget_remaining_seconds = %v, want 42", got)
	}
	if got := testutil.ToFloat64(collector.Sessions.WithLabelValues("completed")); got != 1 {
		t.Fatalf("tracker_sessions_total{status=completed} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "tracker_cycle_duration_seconds", nil); count != 2 {
		t.Fatalf("tracker_cycle_duration_seconds sample_count = %d, want 2", count)
	}
	if count := histogramSampleCount(t, reg, "tracker_pointing_error_degrees", nil); count != 1 {
		t.Fatalf("tracker_pointing_error_degrees sample_count = %d, want 1", count)
	}
}

func TestTrackerCollectorClampsBudget(t *testing.T) {
	collector, err := NewTrackerCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewTrackerCollector: %v", err)
	}
	collector.SetBudgetRemaining(-time.Second)
	if got := testutil.ToFloat64(collector.BudgetRemaining); got != 0 {
		t.Fatalf("negative budget should clamp to 0, got %v", got)
	}
}

func TestTrackerCollectorReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewTrackerCollector(reg)
	if err != nil {
		t.Fatalf("first NewTrackerCollector: %v", err)
	}
	second, err := NewTrackerCollector(reg)
	if err != nil {
		t.Fatalf("second NewTrackerCollector: %v", err)
	}
	first.IncRestarts()
	if got := testutil.ToFloat64(second.Restarts); got != 1 {
		t.Fatalf("collectors should share registered metrics, got %v", got)
	}
}

func TestNilTrackerCollectorIsSafe(t *testing.T) {
	var c *TrackerCollector
	c.ObserveCycle(time.Second)
	c.IncOverruns()
	c.ObservePointingError(1)
	c.IncHorizonViolations()
	c.IncRestarts()
	c.SetBudgetRemaining(time.Second)
	c.IncSessions("completed")
}

func TestMetricsHandlerExposesTrackerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTrackerCollector(reg)
	if err != nil {
		t.Fatalf("NewTrackerCollector: %v", err)
	}
	collector.ObserveCycle(time.Second)
	collector.IncSessions("budget_exhausted")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"tracker_cycles_total",
		"tracker_cycle_duration_seconds",
		"tracker_cadence_overruns_total",
		"tracker_restarts_total",
		"tracker_horizon_violations_total",
		"tracker_budget_remaining_seconds",
		"tracker_pointing_error_degrees",
		`tracker_sessions_total{status="budget_exhausted"} 1`,
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
