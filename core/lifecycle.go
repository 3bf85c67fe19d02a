package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
)

// Supervisor lifecycle states.
const (
	StateIdle        = "idle"
	StateTracking    = "tracking"
	StateRecovering  = "recovering"
	StateCompleted   = "completed"
	StateUnreachable = "unreachable"
	StateExhausted   = "exhausted"
	StateInterrupted = "interrupted"
)

// Supervisor lifecycle events.
const (
	EventStart     = "start"
	EventFail      = "fail"
	EventRestart   = "restart"
	EventComplete  = "complete"
	EventViolate   = "violate"
	EventExhaust   = "exhaust"
	EventInterrupt = "interrupt"
)

// lifecycle mirrors the supervisor's decisions in a state machine so that
// an illegal sequence (say, restarting after completion) is rejected.
type lifecycle struct {
	*fsm.FSM
	log     logging.Logger
	history []string
}

func newLifecycle(log logging.Logger) *lifecycle {
	l := &lifecycle{log: log, history: []string{StateIdle}}

	events := fsm.Events{
		{Name: EventStart, Src: []string{StateIdle}, Dst: StateTracking},
		{Name: EventComplete, Src: []string{StateTracking}, Dst: StateCompleted},
		{Name: EventViolate, Src: []string{StateTracking}, Dst: StateUnreachable},
		{Name: EventFail, Src: []string{StateTracking}, Dst: StateRecovering},
		{Name: EventInterrupt, Src: []string{StateTracking, StateRecovering}, Dst: StateInterrupted},

		// Recovery either resumes or gives up.
		{Name: EventRestart, Src: []string{StateRecovering}, Dst: StateTracking},
		{Name: EventExhaust, Src: []string{StateRecovering}, Dst: StateExhausted},
	}

	callbacks := fsm.Callbacks{
		"enter_state": wrapEvent(l.onEnterState),
	}

	l.FSM = fsm.NewFSM(StateIdle, events, callbacks)
	return l
}

func (l *lifecycle) onEnterState(ctx context.Context, e *fsm.Event) error {
	l.history = append(l.history, e.Dst)
	l.log.Debug(ctx, "supervisor state changed",
		logging.String("event", e.Event),
		logging.String("from", e.Src),
		logging.String("to", e.Dst),
	)
	return nil
}

// fire triggers events in order, ignoring the no-op errors fsm reports
// when the machine is already in the destination state. Transitions are
// recorded even if ctx has been cancelled.
func (l *lifecycle) fire(ctx context.Context, events ...string) error {
	ctx = context.WithoutCancel(ctx)
	for _, event := range events {
		err := l.Event(ctx, event)
		if err == nil {
			continue
		}
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			continue
		}
		return fmt.Errorf("supervisor lifecycle %q from %q: %w", event, l.Current(), err)
	}
	return nil
}

// terminalEvents maps a final status to the events that reach it from
// the tracking state.
var terminalEvents = map[Status][]string{
	StatusCompleted:        {EventComplete},
	StatusHorizonViolation: {EventViolate},
	StatusBudgetExhausted:  {EventFail, EventExhaust},
	StatusInterrupted:      {EventInterrupt},
}

// History returns the states visited, starting with idle.
func (l *lifecycle) History() []string {
	return append([]string(nil), l.history...)
}

func wrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}
