package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManualClockSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	newNow := start.Add(42 * time.Second)
	c.SetTime(newNow)

	if got := c.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestManualClockSleepAdvances(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	var ticks []time.Time
	c.AddListener(func(now time.Time) { ticks = append(ticks, now) })

	for i := 0; i < 3; i++ {
		if err := c.Sleep(context.Background(), 5*time.Second); err != nil {
			t.Fatalf("Sleep: %v", err)
		}
	}
	c.Advance(0)

	expected := start.Add(15 * time.Second)
	if got := c.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if len(ticks) != 3 {
		t.Fatalf("listener called %d times, want 3", len(ticks))
	}
	if got := Since(c, start); got != 15*time.Second {
		t.Fatalf("Since() = %v, want 15s", got)
	}
}

func TestManualClockSleepCancelled(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() error = %v, want context.Canceled", err)
	}
	if !c.Now().Equal(start) {
		t.Fatalf("cancelled sleep advanced time to %v", c.Now())
	}
}

func TestWallClockSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	begin := time.Now()
	if err := (WallClock{}).Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() error = %v, want context.Canceled", err)
	}
	if time.Since(begin) > time.Second {
		t.Fatalf("cancelled sleep blocked for %v", time.Since(begin))
	}
}

func TestNewSelectsClock(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	if _, ok := New(Accelerated, start).(*ManualClock); !ok {
		t.Fatalf("Accelerated mode should return a ManualClock")
	}
	if _, ok := New(RealTime, start).(WallClock); !ok {
		t.Fatalf("RealTime mode should return a WallClock")
	}
}
