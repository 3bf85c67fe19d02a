package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
	"github.com/signalsfoundry/antenna-tracker/model"
	"github.com/signalsfoundry/antenna-tracker/timectrl"
)

// Status is the final result of a supervised tracking run.
type Status string

const (
	StatusCompleted        Status = "completed"
	StatusHorizonViolation Status = "horizon_violation"
	StatusBudgetExhausted  Status = "budget_exhausted"
	StatusInterrupted      Status = "interrupted"
	StatusResolutionFailed Status = "resolution_failed"
)

// Decision is the supervisor's response to one finished attempt.
type Decision struct {
	Restart bool
	Status  Status
}

// Decide chooses between restarting and stopping after an attempt that
// ended with outcome. restarts counts restarts already performed; a
// maxRestarts of zero means only the budget limits restarts.
func Decide(budget model.SessionBudget, outcome Outcome, restarts, maxRestarts int) Decision {
	switch outcome {
	case OutcomeCompleted:
		return Decision{Status: StatusCompleted}
	case OutcomeHorizonViolation:
		return Decision{Status: StatusHorizonViolation}
	case OutcomeInterrupted:
		return Decision{Status: StatusInterrupted}
	}
	if budget.Exhausted() {
		return Decision{Status: StatusBudgetExhausted}
	}
	if maxRestarts > 0 && restarts >= maxRestarts {
		return Decision{Status: StatusBudgetExhausted}
	}
	return Decision{Restart: true}
}

// Report summarises a supervised run.
type Report struct {
	SessionID string
	Target    model.Target
	Status    Status
	Records   []model.TrackingRecord
	Attempts  int
	Errors    []CaptureError
	Budget    model.SessionBudget
	Violation *HorizonViolationError
	Start     time.Time
	End       time.Time
	States    []string
}

// Err returns the error that ended the run, if any.
func (r Report) Err() error {
	switch r.Status {
	case StatusHorizonViolation:
		if r.Violation != nil {
			return r.Violation
		}
		return ErrHorizonViolation
	case StatusBudgetExhausted:
		if n := len(r.Errors); n > 0 {
			last := r.Errors[n-1]
			return fmt.Errorf("tracking budget exhausted after %d attempts: %w", r.Attempts, &last)
		}
		return fmt.Errorf("tracking budget exhausted after %d attempts", r.Attempts)
	case StatusInterrupted:
		return context.Canceled
	}
	return nil
}

// Supervisor runs tracking sessions for one target and restarts them after
// transient failures until the requested duration has been spent.
type Supervisor struct {
	Resolver    *Resolver
	Transformer *Transformer
	Commander   PointingCommander
	Scheduler   *CycleScheduler
	Clock       timectrl.Clock
	Log         logging.Logger
	Metrics     MetricsRecorder
	MaxRestarts int
}

// SupervisorOption customises a Supervisor.
type SupervisorOption func(*Supervisor)

// WithLogger sets the supervisor logger.
func WithLogger(log logging.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if log != nil {
			s.Log = log
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) SupervisorOption {
	return func(s *Supervisor) {
		s.Metrics = metricsOrNoop(m)
	}
}

// WithClock overrides the wall clock.
func WithClock(c timectrl.Clock) SupervisorOption {
	return func(s *Supervisor) {
		if c != nil {
			s.Clock = c
		}
	}
}

// WithMaxRestarts caps restarts in addition to the time budget.
func WithMaxRestarts(n int) SupervisorOption {
	return func(s *Supervisor) {
		s.MaxRestarts = n
	}
}

// NewSupervisor wires a supervisor. The scheduler is built from minPeriod
// using the supervisor's clock, logger and metrics.
func NewSupervisor(resolver *Resolver, transformer *Transformer, commander PointingCommander, minPeriod time.Duration, opts ...SupervisorOption) (*Supervisor, error) {
	if resolver == nil || transformer == nil || commander == nil {
		return nil, errors.New("core: resolver, transformer and commander are required")
	}
	if minPeriod <= 0 {
		return nil, fmt.Errorf("core: minimum cycle period must be positive, got %s", minPeriod)
	}
	s := &Supervisor{
		Resolver:    resolver,
		Transformer: transformer,
		Commander:   commander,
		Clock:       timectrl.WallClock{},
		Log:         logging.Noop(),
		Metrics:     noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Scheduler = NewCycleScheduler(minPeriod, s.Clock, s.Log, s.Metrics)
	return s, nil
}

// Run binds target and tracks it for requested. A *ResolutionError is
// returned before any tracking starts. Every other ending is described by
// the report's Status.
//
// Each attempt consumes the time it actually took, so the total time spent
// never exceeds requested by more than one cycle.
func (s *Supervisor) Run(ctx context.Context, target model.Target, requested time.Duration) (report Report, err error) {
	ctx, log := logging.WithSessionLogger(ctx, s.Log)
	metrics := metricsOrNoop(s.Metrics)

	report = Report{
		SessionID: logging.SessionIDFromContext(ctx),
		Target:    target,
		Budget:    model.NewSessionBudget(requested),
		Start:     s.Clock.Now(),
	}
	lc := newLifecycle(log)
	defer func() {
		report.End = s.Clock.Now()
		report.States = lc.History()
		metrics.IncSessions(string(report.Status))
	}()

	bound, err := s.Resolver.Bind(ctx, target, report.Start)
	if err != nil {
		report.Status = StatusResolutionFailed
		log.Error(ctx, "target resolution failed", logging.Err(err))
		return report, err
	}
	log.Info(ctx, "tracking started",
		logging.String("target", target.String()),
		logging.Duration("requested", requested),
	)
	if err := lc.fire(ctx, EventStart); err != nil {
		return report, err
	}

	for {
		report.Attempts++
		attemptStart := s.Clock.Now()
		sess := &Session{
			Target:      bound,
			Transformer: s.Transformer,
			Commander:   s.Commander,
			Scheduler:   s.Scheduler,
			Clock:       s.Clock,
			Log:         log.With(logging.Int("attempt", report.Attempts)),
			Metrics:     metrics,
		}
		res, runErr := sess.Run(ctx, report.Budget.Remaining())
		report.Records = append(report.Records, res.Records...)
		report.Budget = report.Budget.Consume(timectrl.Since(s.Clock, attemptStart))
		metrics.SetBudgetRemaining(report.Budget.Remaining())

		if runErr != nil {
			var ce *CaptureError
			if !errors.As(runErr, &ce) {
				ce = newCaptureError(runErr, s.Clock.Now())
			}
			report.Errors = append(report.Errors, *ce)
			log.Warn(ctx, "tracking attempt failed",
				logging.Int("attempt", report.Attempts),
				logging.Duration("remaining", report.Budget.Remaining()),
				logging.Err(ce.Err),
			)
		}
		if res.Violation != nil {
			report.Violation = res.Violation
		}

		d := Decide(report.Budget, res.Outcome, report.Attempts-1, s.MaxRestarts)
		if d.Restart {
			if err := lc.fire(ctx, EventFail); err != nil {
				return report, err
			}
			if err := lc.fire(ctx, EventRestart); err != nil {
				return report, err
			}
			metrics.IncRestarts()
			continue
		}

		report.Status = d.Status
		if err := lc.fire(ctx, terminalEvents[d.Status]...); err != nil {
			return report, err
		}
		break
	}

	log.Info(ctx, "tracking finished",
		logging.String("status", string(report.Status)),
		logging.Int("attempts", report.Attempts),
		logging.Int("records", len(report.Records)),
		logging.Duration("elapsed", report.Budget.Elapsed),
	)
	return report, nil
}
