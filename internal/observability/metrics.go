package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TrackerCollector bundles Prometheus metrics for the tracking loop and
// implements core.MetricsRecorder.
type TrackerCollector struct {
	gatherer prometheus.Gatherer

	Cycles         prometheus.Counter
	CycleDurations prometheus.Histogram
	Overruns       prometheus.Counter

	PointingError     prometheus.Histogram
	HorizonViolations prometheus.Counter

	Restarts        prometheus.Counter
	BudgetRemaining prometheus.Gauge
	Sessions        *prometheus.CounterVec
}

// NewTrackerCollector registers tracker metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewTrackerCollector(reg prometheus.Registerer) (*TrackerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cycles, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_cycles_total",
		Help: "Completed control cycles.",
	}), "tracker_cycles_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_cycle_duration_seconds",
		Help:    "Work time of a control cycle, excluding cadence padding.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}), "tracker_cycle_duration_seconds")
	if err != nil {
		return nil, err
	}

	overruns, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_cadence_overruns_total",
		Help: "Cycles that took longer than the minimum cycle period.",
	}), "tracker_cadence_overruns_total")
	if err != nil {
		return nil, err
	}

	pointing, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_pointing_error_degrees",
		Help:    "Angular distance between commanded and reported mount pointing.",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}), "tracker_pointing_error_degrees")
	if err != nil {
		return nil, err
	}

	violations, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_horizon_violations_total",
		Help: "Sessions stopped because the target fell below the safe altitude.",
	}), "tracker_horizon_violations_total")
	if err != nil {
		return nil, err
	}

	restarts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_restarts_total",
		Help: "Session restarts after transient failures.",
	}), "tracker_restarts_total")
	if err != nil {
		return nil, err
	}

	remaining, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_budget_remaining_seconds",
		Help: "Unspent tracking time of the current run.",
	}), "tracker_budget_remaining_seconds")
	if err != nil {
		return nil, err
	}

	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_sessions_total",
		Help: "Supervised tracking runs, labeled by final status.",
	}, []string{"status"})
	sessions, err = registerCounterVec(reg, sessions, "tracker_sessions_total")
	if err != nil {
		return nil, err
	}

	return &TrackerCollector{
		gatherer:          gatherer,
		Cycles:            cycles,
		CycleDurations:    durations,
		Overruns:          overruns,
		PointingError:     pointing,
		HorizonViolations: violations,
		Restarts:          restarts,
		BudgetRemaining:   remaining,
		Sessions:          sessions,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *TrackerCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveCycle counts a completed cycle and records its work time.
func (c *TrackerCollector) ObserveCycle(d time.Duration) {
	if c == nil {
		return
	}
	if c.Cycles != nil {
		c.Cycles.Inc()
	}
	if c.CycleDurations != nil {
		c.CycleDurations.Observe(d.Seconds())
	}
}

func (c *TrackerCollector) IncOverruns() {
	if c == nil || c.Overruns == nil {
		return
	}
	c.Overruns.Inc()
}

func (c *TrackerCollector) ObservePointingError(degrees float64) {
	if c == nil || c.PointingError == nil {
		return
	}
	c.PointingError.Observe(degrees)
}

func (c *TrackerCollector) IncHorizonViolations() {
	if c == nil || c.HorizonViolations == nil {
		return
	}
	c.HorizonViolations.Inc()
}

func (c *TrackerCollector) IncRestarts() {
	if c == nil || c.Restarts == nil {
		return
	}
	c.Restarts.Inc()
}

// SetBudgetRemaining publishes the unspent budget; negative values clamp
// to zero.
func (c *TrackerCollector) SetBudgetRemaining(d time.Duration) {
	if c == nil || c.BudgetRemaining == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	c.BudgetRemaining.Set(d.Seconds())
}

func (c *TrackerCollector) IncSessions(status string) {
	if c == nil || c.Sessions == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	c.Sessions.WithLabelValues(status).Inc()
}
