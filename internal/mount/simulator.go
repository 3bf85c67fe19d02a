// Package mount provides PointingCommander implementations: an in-process
// simulator for dry runs and tests, and an MQTT client for a networked
// mount controller.
package mount

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
	"github.com/signalsfoundry/antenna-tracker/model"
	"github.com/signalsfoundry/antenna-tracker/timectrl"
)

// ErrInjectedFault is returned by the simulator for scheduled failures.
var ErrInjectedFault = errors.New("mount: injected fault")

// ErrOutOfRange is returned when a command falls outside the mechanical
// range of the mount.
var ErrOutOfRange = errors.New("mount: command outside mechanical range")

// Command is one accepted pointing command.
type Command struct {
	At       time.Time
	Position model.HorizontalPosition
	Slew     time.Duration
}

// Simulator is an in-memory mount. Slewing takes time on the supplied
// clock; with a manual clock that time is virtual.
type Simulator struct {
	mu sync.Mutex

	clock     timectrl.Clock
	limits    model.MountLimits
	slewRate  float64 // degrees per second; zero slews instantly
	failEvery int
	log       logging.Logger

	calls    int
	pending  []error
	position model.HorizontalPosition
	commands []Command
}

// SimulatorOption customises a Simulator.
type SimulatorOption func(*Simulator)

// WithSlewRate sets the slew rate in degrees per second.
func WithSlewRate(degPerSec float64) SimulatorOption {
	return func(s *Simulator) {
		if degPerSec > 0 {
			s.slewRate = degPerSec
		}
	}
}

// WithFailEvery makes every nth Point call fail with ErrInjectedFault.
func WithFailEvery(n int) SimulatorOption {
	return func(s *Simulator) {
		if n > 0 {
			s.failEvery = n
		}
	}
}

// WithSimulatorLogger attaches a logger.
func WithSimulatorLogger(log logging.Logger) SimulatorOption {
	return func(s *Simulator) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSimulator returns a simulated mount parked at the zenith.
func NewSimulator(clock timectrl.Clock, limits model.MountLimits, opts ...SimulatorOption) *Simulator {
	if clock == nil {
		clock = timectrl.WallClock{}
	}
	s := &Simulator{
		clock:    clock,
		limits:   limits,
		log:      logging.Noop(),
		position: model.HorizontalPosition{Altitude: 90, Azimuth: (limits.AzMin + limits.AzMax) / 2},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InjectFault queues err to be returned by the next Point call.
func (s *Simulator) InjectFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, err)
}

// Point slews to the requested position.
func (s *Simulator) Point(ctx context.Context, altitude, azimuth float64) error {
	s.mu.Lock()
	s.calls++
	if len(s.pending) > 0 {
		err := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		return err
	}
	if s.failEvery > 0 && s.calls%s.failEvery == 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w (call %d)", ErrInjectedFault, s.calls)
	}
	target := model.HorizontalPosition{Altitude: altitude, Azimuth: azimuth}
	if err := s.checkRange(target); err != nil {
		s.mu.Unlock()
		return err
	}
	slew := s.slewTime(target)
	s.mu.Unlock()

	if err := s.clock.Sleep(ctx, slew); err != nil {
		return err
	}

	s.mu.Lock()
	s.position = target
	s.commands = append(s.commands, Command{At: s.clock.Now(), Position: target, Slew: slew})
	s.mu.Unlock()

	s.log.Debug(ctx, "simulated mount slewed",
		logging.String("position", target.String()),
		logging.Duration("slew", slew),
	)
	return nil
}

// CurrentPointing returns the last position reached.
func (s *Simulator) CurrentPointing(ctx context.Context) (model.HorizontalPosition, error) {
	if err := ctx.Err(); err != nil {
		return model.HorizontalPosition{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, nil
}

// Commands returns a copy of the accepted commands.
func (s *Simulator) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.commands...)
}

func (s *Simulator) checkRange(p model.HorizontalPosition) error {
	if p.Azimuth < s.limits.AzMin || p.Azimuth > s.limits.AzMax {
		return fmt.Errorf("%w: azimuth %.3f outside [%.2f, %.2f]", ErrOutOfRange, p.Azimuth, s.limits.AzMin, s.limits.AzMax)
	}
	if p.Altitude < s.limits.MinSafeAltitude {
		return fmt.Errorf("%w: altitude %.3f below %.2f", ErrOutOfRange, p.Altitude, s.limits.MinSafeAltitude)
	}
	return nil
}

func (s *Simulator) slewTime(target model.HorizontalPosition) time.Duration {
	if s.slewRate <= 0 {
		return 0
	}
	// Axes move independently; the slower axis sets the slew time.
	delta := math.Max(math.Abs(target.Altitude-s.position.Altitude), math.Abs(target.Azimuth-s.position.Azimuth))
	return time.Duration(delta / s.slewRate * float64(time.Second))
}
