// Package recorder persists finished tracking runs: a SQLite history and a
// human-readable tag file alongside the run's provenance.
package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/signalsfoundry/antenna-tracker/core"
	"github.com/signalsfoundry/antenna-tracker/model"
)

// ErrSessionExists is returned when a session ID has already been saved.
var ErrSessionExists = errors.New("recorder: session already recorded")

// ErrSessionNotFound is returned by lookups for unknown session IDs.
var ErrSessionNotFound = errors.New("recorder: session not found")

// Session is the persisted form of one supervised run.
type Session struct {
	ID         string
	Target     string
	Status     string
	Start      time.Time
	Finish     time.Time
	Requested  time.Duration
	Attempts   int
	Observer   model.ObserverLocation
	Limits     model.MountLimits
	Records    []model.TrackingRecord
	Errors     []string
	Provenance Provenance
	Notes      string
}

// Duration is the wall-clock length of the run.
func (s Session) Duration() time.Duration {
	return s.Finish.Sub(s.Start)
}

// FromReport builds a Session from a supervisor report.
func FromReport(r core.Report, observer model.ObserverLocation, limits model.MountLimits, prov Provenance) Session {
	s := Session{
		ID:         r.SessionID,
		Status:     string(r.Status),
		Start:      r.Start,
		Finish:     r.End,
		Requested:  r.Budget.Requested,
		Attempts:   r.Attempts,
		Observer:   observer,
		Limits:     limits,
		Records:    r.Records,
		Provenance: prov,
	}
	if r.Target != nil {
		s.Target = r.Target.String()
	}
	for _, ce := range r.Errors {
		s.Errors = append(s.Errors, ce.Error())
	}
	if r.Violation != nil {
		s.Errors = append(s.Errors, r.Violation.Error())
	}
	return s
}

// Recorder stores a finished session.
type Recorder interface {
	Save(ctx context.Context, s Session) error
}

// Multi saves to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Save(ctx context.Context, s Session) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Save(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
