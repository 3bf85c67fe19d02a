package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
	"github.com/signalsfoundry/antenna-tracker/model"
	"github.com/signalsfoundry/antenna-tracker/timectrl"
)

const tracerName = "github.com/signalsfoundry/antenna-tracker/core"

// PointingCommander drives the mount. Both calls block until the mount
// responds; no timeout is imposed here.
type PointingCommander interface {
	Point(ctx context.Context, altitude, azimuth float64) error
	CurrentPointing(ctx context.Context) (model.HorizontalPosition, error)
}

// Outcome is the terminal state of a single tracking session.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeHorizonViolation
	OutcomeTransientFailure
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeHorizonViolation:
		return "horizon_violation"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// SessionResult is what one session hands back to its caller.
type SessionResult struct {
	Outcome   Outcome
	Records   []model.TrackingRecord
	Start     time.Time
	End       time.Time
	Violation *HorizonViolationError
}

// Session runs the control loop for one bounded attempt.
type Session struct {
	Target      BoundTarget
	Transformer *Transformer
	Commander   PointingCommander
	Scheduler   *CycleScheduler
	Clock       timectrl.Clock
	Log         logging.Logger
	Metrics     MetricsRecorder
}

// Run loops until duration has elapsed on the clock, the target becomes
// unreachable, or a cycle fails. Elapsed time is only checked between
// cycles, so completion may overshoot duration by up to one cycle.
//
// A transient cycle failure is returned as a *CaptureError together with
// the records gathered before it. Horizon violations and cancellation are
// reported through the outcome, not the error.
func (s *Session) Run(ctx context.Context, duration time.Duration) (SessionResult, error) {
	log := s.Log
	if log == nil {
		log = logging.Noop()
	}
	metrics := metricsOrNoop(s.Metrics)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "tracker.session", trace.WithAttributes(
		attribute.String("target", s.Target.Target().String()),
		attribute.Float64("duration_seconds", duration.Seconds()),
	))
	defer span.End()

	start := s.Clock.Now()
	res := SessionResult{Start: start, Outcome: OutcomeCompleted}
	defer func() {
		span.SetAttributes(
			attribute.String("outcome", res.Outcome.String()),
			attribute.Int("cycles", len(res.Records)),
		)
	}()

	for timectrl.Since(s.Clock, start) < duration {
		if ctx.Err() != nil {
			res.Outcome = OutcomeInterrupted
			break
		}

		_, err := s.Scheduler.Run(ctx, func(ctx context.Context) error {
			rec, err := s.cycle(ctx, metrics)
			if err != nil {
				return err
			}
			res.Records = append(res.Records, rec)
			return nil
		})
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			res.Outcome = OutcomeInterrupted
			break
		}

		var hv *HorizonViolationError
		if errors.As(err, &hv) {
			res.Outcome = OutcomeHorizonViolation
			res.Violation = hv
			metrics.IncHorizonViolations()
			log.Warn(ctx, "target below telescope horizon; stopping session",
				logging.Float("altitude", hv.Position.Altitude),
				logging.Float("azimuth", hv.Position.Azimuth),
				logging.Float("min_safe_altitude", hv.Limits.MinSafeAltitude),
			)
			break
		}

		res.Outcome = OutcomeTransientFailure
		res.End = s.Clock.Now()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, newCaptureError(err, res.End)
	}

	res.End = s.Clock.Now()
	log.Info(ctx, "tracking session ended",
		logging.String("outcome", res.Outcome.String()),
		logging.Int("cycles", len(res.Records)),
		logging.Duration("elapsed", res.End.Sub(start)),
	)
	return res, nil
}

// cycle performs resolve, transform, command and read-back once. The
// commander is not called when the target is unreachable.
func (s *Session) cycle(ctx context.Context, metrics MetricsRecorder) (model.TrackingRecord, error) {
	now := s.Clock.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "tracker.cycle")
	defer span.End()

	eq, err := s.Target.At(ctx, now)
	if err != nil {
		span.RecordError(err)
		return model.TrackingRecord{}, fmt.Errorf("resolve target: %w", err)
	}

	intended, err := s.Transformer.Transform(eq, now)
	if err != nil {
		span.RecordError(err)
		return model.TrackingRecord{}, err
	}
	span.SetAttributes(
		attribute.Float64("ra", eq.RA),
		attribute.Float64("dec", eq.Dec),
		attribute.Float64("altitude", intended.Altitude),
		attribute.Float64("azimuth", intended.Azimuth),
	)

	if err := s.Commander.Point(ctx, intended.Altitude, intended.Azimuth); err != nil {
		span.RecordError(err)
		return model.TrackingRecord{}, fmt.Errorf("point mount: %w", err)
	}
	actual, err := s.Commander.CurrentPointing(ctx)
	if err != nil {
		span.RecordError(err)
		return model.TrackingRecord{}, fmt.Errorf("read mount pointing: %w", err)
	}

	metrics.ObservePointingError(AngularSeparation(intended, actual))
	if s.Log != nil {
		s.Log.Debug(ctx, "cycle pointed mount",
			logging.String("intended", intended.String()),
			logging.String("actual", actual.String()),
		)
	}
	return model.TrackingRecord{Timestamp: now, Intended: intended, Actual: actual}, nil
}
