package model

import "time"

// TrackingRecord is written once per successful control cycle and never
// modified afterwards.
type TrackingRecord struct {
	Timestamp time.Time
	Intended  HorizontalPosition
	Actual    HorizontalPosition
}

// SessionBudget is the wall-clock time available for tracking. It is
// consumed only by elapsed real time and is carried across restarts.
type SessionBudget struct {
	Requested time.Duration
	Elapsed   time.Duration
}

// NewSessionBudget returns a fresh budget for the requested duration.
func NewSessionBudget(requested time.Duration) SessionBudget {
	return SessionBudget{Requested: requested}
}

// Remaining returns the unspent part of the budget, never negative.
func (b SessionBudget) Remaining() time.Duration {
	if r := b.Requested - b.Elapsed; r > 0 {
		return r
	}
	return 0
}

// Exhausted reports whether no time is left.
func (b SessionBudget) Exhausted() bool {
	return b.Remaining() <= 0
}

// Consume returns a budget with d more elapsed. Negative durations (a clock
// stepping backwards) are ignored.
func (b SessionBudget) Consume(d time.Duration) SessionBudget {
	if d > 0 {
		b.Elapsed += d
	}
	return b
}
