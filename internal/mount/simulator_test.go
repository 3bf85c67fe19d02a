package mount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/antenna-tracker/model"
	"github.com/signalsfoundry/antenna-tracker/timectrl"
)

var (
	start  = time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC)
	limits = model.MountLimits{AzMin: 5, AzMax: 350, MinSafeAltitude: 5}
)

func TestSimulatorSlewsOnClock(t *testing.T) {
	clock := timectrl.NewManualClock(start)
	sim := NewSimulator(clock, limits, WithSlewRate(2))

	// Parked at alt 90, az 177.5; the altitude axis moves 50 degrees.
	if err := sim.Point(context.Background(), 40, 180); err != nil {
		t.Fatalf("Point: %v", err)
	}
	if got := clock.Now().Sub(start); got != 25*time.Second {
		t.Fatalf("expected 25s slew, got %s", got)
	}
	pos, err := sim.CurrentPointing(context.Background())
	if err != nil {
		t.Fatalf("CurrentPointing: %v", err)
	}
	if pos.Altitude != 40 || pos.Azimuth != 180 {
		t.Fatalf("unexpected position %v", pos)
	}
	cmds := sim.Commands()
	if len(cmds) != 1 || cmds[0].Slew != 25*time.Second || !cmds[0].At.Equal(clock.Now()) {
		t.Fatalf("unexpected command log %+v", cmds)
	}
}

func TestSimulatorRejectsOutOfRange(t *testing.T) {
	sim := NewSimulator(timectrl.NewManualClock(start), limits)

	cases := []struct {
		name    string
		alt, az float64
	}{
		{"azimuth below rail", 40, 2},
		{"azimuth above rail", 40, 355},
		{"too low", 3, 180},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := sim.Point(context.Background(), tc.alt, tc.az); !errors.Is(err, ErrOutOfRange) {
				t.Fatalf("expected ErrOutOfRange, got %v", err)
			}
		})
	}
	if len(sim.Commands()) != 0 {
		t.Fatalf("rejected commands must not be logged")
	}
}

func TestSimulatorAcceptsFlippedPastZenith(t *testing.T) {
	sim := NewSimulator(timectrl.NewManualClock(start), limits)
	if err := sim.Point(context.Background(), 177, 10); err != nil {
		t.Fatalf("flipped pointing rejected: %v", err)
	}
	pos, err := sim.CurrentPointing(context.Background())
	if err != nil {
		t.Fatalf("CurrentPointing: %v", err)
	}
	if pos.Altitude != 177 || pos.Azimuth != 10 {
		t.Fatalf("unexpected position %v", pos)
	}
}

func TestSimulatorFaultInjection(t *testing.T) {
	sim := NewSimulator(timectrl.NewManualClock(start), limits, WithFailEvery(3))
	boom := errors.New("encoder glitch")
	sim.InjectFault(boom)

	if err := sim.Point(context.Background(), 40, 180); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if err := sim.Point(context.Background(), 40, 180); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if err := sim.Point(context.Background(), 40, 180); !errors.Is(err, ErrInjectedFault) {
		t.Fatalf("expected fail-every fault on third call, got %v", err)
	}
}

func TestSimulatorCancelledSlew(t *testing.T) {
	sim := NewSimulator(timectrl.NewManualClock(start), limits, WithSlewRate(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sim.Point(ctx, 40, 180); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	pos, _ := sim.CurrentPointing(context.Background())
	if pos.Altitude != 90 {
		t.Fatalf("cancelled slew should leave mount parked, got %v", pos)
	}
}
