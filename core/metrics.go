package core

import "time"

// MetricsRecorder receives tracking measurements. It is satisfied by
// observability.TrackerCollector; nil recorders are replaced with a no-op.
type MetricsRecorder interface {
	ObserveCycle(d time.Duration)
	IncOverruns()
	ObservePointingError(degrees float64)
	IncHorizonViolations()
	IncRestarts()
	SetBudgetRemaining(d time.Duration)
	IncSessions(status string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCycle(time.Duration)       {}
func (noopMetrics) IncOverruns()                     {}
func (noopMetrics) ObservePointingError(float64)     {}
func (noopMetrics) IncHorizonViolations()            {}
func (noopMetrics) IncRestarts()                     {}
func (noopMetrics) SetBudgetRemaining(time.Duration) {}
func (noopMetrics) IncSessions(string)               {}

func metricsOrNoop(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
