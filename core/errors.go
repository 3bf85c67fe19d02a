package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/antenna-tracker/model"
)

var (
	// ErrResolution marks failures to turn a target descriptor into
	// coordinates. Fatal at startup, never retried.
	ErrResolution = errors.New("target resolution failed")
	// ErrHorizonViolation marks a target that is below the safe pointing
	// altitude after limit correction. Terminal for the session.
	ErrHorizonViolation = errors.New("target below safe altitude")
	// ErrTransient marks recoverable cycle failures.
	ErrTransient = errors.New("transient tracking failure")
)

// Kind classifies a capture failure.
type Kind int

const (
	KindTransient Kind = iota
	KindHorizonViolation
	KindResolution
)

func (k Kind) String() string {
	switch k {
	case KindHorizonViolation:
		return "horizon_violation"
	case KindResolution:
		return "resolution"
	default:
		return "transient"
	}
}

// ResolutionError reports that a target could not be resolved.
type ResolutionError struct {
	Target model.Target
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve target %v: %v", e.Target, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

// HorizonViolationError reports a corrected position the mount must not be
// commanded to.
type HorizonViolationError struct {
	Position model.HorizontalPosition
	Limits   model.MountLimits
	At       time.Time
}

func (e *HorizonViolationError) Error() string {
	return fmt.Sprintf("corrected position %v below minimum safe altitude %.2f",
		e.Position, e.Limits.MinSafeAltitude)
}

func (e *HorizonViolationError) Is(target error) bool { return target == ErrHorizonViolation }

// CaptureError records a failure that ended a tracking attempt.
type CaptureError struct {
	Kind       Kind
	OccurredAt time.Time
	Err        error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s failure at %s: %v", e.Kind, e.OccurredAt.UTC().Format(time.RFC3339), e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

func (e *CaptureError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Kind == KindTransient
	case ErrHorizonViolation:
		return e.Kind == KindHorizonViolation
	case ErrResolution:
		return e.Kind == KindResolution
	}
	return false
}

// Classify maps an error onto the failure taxonomy. Anything that is not a
// resolution or horizon failure is transient.
func Classify(err error) Kind {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	switch {
	case errors.Is(err, ErrResolution):
		return KindResolution
	case errors.Is(err, ErrHorizonViolation):
		return KindHorizonViolation
	default:
		return KindTransient
	}
}

// newCaptureError wraps err with its classification.
func newCaptureError(err error, at time.Time) *CaptureError {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce
	}
	return &CaptureError{Kind: Classify(err), OccurredAt: at, Err: err}
}
