package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/antenna-tracker/timectrl"
)

func TestCycleSchedulerPadsShortCycle(t *testing.T) {
	clock := timectrl.NewManualClock(testEpoch)
	metrics := &countingMetrics{}
	s := NewCycleScheduler(10*time.Second, clock, nil, metrics)

	stats, err := s.Run(context.Background(), func(context.Context) error {
		clock.Advance(3 * time.Second)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Duration != 3*time.Second || stats.Slept != 7*time.Second || stats.Overrun {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := clock.Now().Sub(testEpoch); got != 10*time.Second {
		t.Fatalf("expected cycle to occupy 10s, got %s", got)
	}
	if metrics.cycles != 1 || metrics.overruns != 0 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func TestCycleSchedulerOverrunStartsNextImmediately(t *testing.T) {
	clock := timectrl.NewManualClock(testEpoch)
	metrics := &countingMetrics{}
	s := NewCycleScheduler(10*time.Second, clock, nil, metrics)

	stats, err := s.Run(context.Background(), func(context.Context) error {
		clock.Advance(12 * time.Second)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !stats.Overrun || stats.Slept != 0 {
		t.Fatalf("expected overrun without sleep, got %+v", stats)
	}
	if got := clock.Now().Sub(testEpoch); got != 12*time.Second {
		t.Fatalf("expected no catch-up sleep, clock moved %s", got)
	}
	if metrics.overruns != 1 {
		t.Fatalf("expected one overrun, got %d", metrics.overruns)
	}
}

func TestCycleSchedulerExactPeriodNeitherSleepsNorOverruns(t *testing.T) {
	clock := timectrl.NewManualClock(testEpoch)
	s := NewCycleScheduler(10*time.Second, clock, nil, nil)

	stats, err := s.Run(context.Background(), func(context.Context) error {
		clock.Advance(10 * time.Second)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Overrun || stats.Slept != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCycleSchedulerFailureSkipsSleep(t *testing.T) {
	clock := timectrl.NewManualClock(testEpoch)
	metrics := &countingMetrics{}
	s := NewCycleScheduler(10*time.Second, clock, nil, metrics)

	_, err := s.Run(context.Background(), func(context.Context) error {
		return errMountTimeout
	})
	if !errors.Is(err, errMountTimeout) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if !clock.Now().Equal(testEpoch) {
		t.Fatalf("failed cycle should not sleep")
	}
	if metrics.cycles != 0 {
		t.Fatalf("failed cycle should not be observed")
	}
}

func TestCycleSchedulerCancelledSleep(t *testing.T) {
	clock := timectrl.NewManualClock(testEpoch)
	s := NewCycleScheduler(10*time.Second, clock, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := s.Run(ctx, func(context.Context) error {
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
