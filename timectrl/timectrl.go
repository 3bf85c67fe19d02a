package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source for cadence enforcement and budget accounting.
// Tracking code depends on this abstraction rather than the time package so
// that tests and dry runs can substitute virtual time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case. Non-positive durations return immediately.
	Sleep(ctx context.Context, d time.Duration) error
}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Mode describes how a clock advances.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances virtual time instantly on every Sleep.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case Accelerated:
		return "accelerated"
	default:
		return "realtime"
	}
}

// New returns a clock for the given mode. Accelerated clocks start at start.
func New(mode Mode, start time.Time) Clock {
	if mode == Accelerated {
		return NewManualClock(start)
	}
	return WallClock{}
}

// WallClock is the real-time Clock.
type WallClock struct{}

// Now returns time.Now().
func (WallClock) Now() time.Time { return time.Now() }

// Sleep waits on a timer, aborting early if ctx is cancelled.
func (WallClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ManualClock holds virtual time. Sleep advances it instantly and Advance
// moves it explicitly, which lets callers simulate work that takes time.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time

	listeners []func(time.Time)
}

// NewManualClock constructs a clock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current virtual time.
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Sleep advances virtual time by d.
func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

// Advance moves virtual time forward by d and notifies listeners.
func (c *ManualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	listeners := append([]func(time.Time){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(now)
	}
}

// SetTime jumps virtual time to t.
func (c *ManualClock) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// AddListener registers a callback invoked whenever virtual time advances.
func (c *ManualClock) AddListener(fn func(time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}
