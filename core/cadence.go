package core

import (
	"context"
	"time"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
	"github.com/signalsfoundry/antenna-tracker/timectrl"
)

// CycleStats describes one paced cycle.
type CycleStats struct {
	Start    time.Time
	Duration time.Duration
	Slept    time.Duration
	Overrun  bool
}

// CycleScheduler enforces a floor on cycle cadence. A cycle that finishes
// early is padded with a sleep; a cycle that overruns is followed
// immediately by the next one with no catch-up.
type CycleScheduler struct {
	MinPeriod time.Duration
	Clock     timectrl.Clock
	Log       logging.Logger
	Metrics   MetricsRecorder
}

// NewCycleScheduler constructs a scheduler. A nil clock means wall time.
func NewCycleScheduler(minPeriod time.Duration, clock timectrl.Clock, log logging.Logger, metrics MetricsRecorder) *CycleScheduler {
	if clock == nil {
		clock = timectrl.WallClock{}
	}
	if log == nil {
		log = logging.Noop()
	}
	return &CycleScheduler{
		MinPeriod: minPeriod,
		Clock:     clock,
		Log:       log,
		Metrics:   metricsOrNoop(metrics),
	}
}

// Run executes fn as one cycle. If fn fails, its error is returned at once
// without padding. Otherwise the remainder of MinPeriod is slept; the only
// error from that path is ctx cancellation during the sleep.
func (s *CycleScheduler) Run(ctx context.Context, fn func(ctx context.Context) error) (CycleStats, error) {
	stats := CycleStats{Start: s.Clock.Now()}

	err := fn(ctx)
	stats.Duration = timectrl.Since(s.Clock, stats.Start)
	if err != nil {
		return stats, err
	}
	s.Metrics.ObserveCycle(stats.Duration)

	if stats.Duration < s.MinPeriod {
		stats.Slept = s.MinPeriod - stats.Duration
		s.Log.Debug(ctx, "cycle finished early; sleeping",
			logging.Duration("cycle", stats.Duration),
			logging.Duration("sleep", stats.Slept),
		)
		return stats, s.Clock.Sleep(ctx, stats.Slept)
	}

	if stats.Duration > s.MinPeriod {
		stats.Overrun = true
		s.Metrics.IncOverruns()
		s.Log.Warn(ctx, "cycle overran minimum period",
			logging.Duration("cycle", stats.Duration),
			logging.Duration("min_period", s.MinPeriod),
		)
	}
	return stats, nil
}
