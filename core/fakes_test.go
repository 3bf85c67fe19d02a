package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/antenna-tracker/model"
	"github.com/signalsfoundry/antenna-tracker/timectrl"
)

var (
	testEpoch    = time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC)
	testObserver = model.ObserverLocation{Latitude: 37.8732, Longitude: -122.2573, Elevation: 123.1}
	testLimits   = model.MountLimits{AzMin: 5, AzMax: 350, MinSafeAltitude: 5}
)

var errMountTimeout = errors.New("mount did not acknowledge")

// fakeCommander echoes commanded positions back as the actual pointing.
// Point optionally advances a manual clock to simulate slew time and fails
// once at each configured offset from start.
type fakeCommander struct {
	mu     sync.Mutex
	clock  *timectrl.ManualClock
	start  time.Time
	work   time.Duration
	failAt map[time.Duration]bool
	always bool
	onCall func(n int)

	calls []model.HorizontalPosition
	last  model.HorizontalPosition
}

func (f *fakeCommander) Point(_ context.Context, alt, az float64) error {
	f.mu.Lock()
	offset := f.clock.Now().Sub(f.start)
	f.calls = append(f.calls, model.HorizontalPosition{Altitude: alt, Azimuth: az})
	n := len(f.calls)
	fail := f.always || f.failAt[offset]
	delete(f.failAt, offset)
	f.mu.Unlock()

	if f.work > 0 {
		f.clock.Advance(f.work)
	}
	if f.onCall != nil {
		f.onCall(n)
	}
	if fail {
		return errMountTimeout
	}
	f.mu.Lock()
	f.last = model.HorizontalPosition{Altitude: alt, Azimuth: az}
	f.mu.Unlock()
	return nil
}

func (f *fakeCommander) CurrentPointing(context.Context) (model.HorizontalPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, nil
}

func (f *fakeCommander) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// countingMetrics records what the tracking loop reports.
type countingMetrics struct {
	mu         sync.Mutex
	cycles     int
	overruns   int
	violations int
	restarts   int
	remaining  time.Duration
	sessions   map[string]int
	errors     []float64
}

func (m *countingMetrics) ObserveCycle(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles++
}

func (m *countingMetrics) IncOverruns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overruns++
}

func (m *countingMetrics) ObservePointingError(deg float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, deg)
}

func (m *countingMetrics) IncHorizonViolations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations++
}

func (m *countingMetrics) IncRestarts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restarts++
}

func (m *countingMetrics) SetBudgetRemaining(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining = d
}

func (m *countingMetrics) IncSessions(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = map[string]int{}
	}
	m.sessions[status]++
}

// fakeEphemeris returns canned answers and counts calls.
type fakeEphemeris struct {
	positions   map[model.Body]model.EquatorialPosition
	positionErr error
	precessBy   float64
	catalog     map[string]model.EquatorialPosition

	positionCalls int
	precessCalls  int
}

func (f *fakeEphemeris) PositionOf(_ context.Context, body model.Body, _ time.Time) (model.EquatorialPosition, error) {
	f.positionCalls++
	if f.positionErr != nil {
		return model.EquatorialPosition{}, f.positionErr
	}
	pos, ok := f.positions[body]
	if !ok {
		return model.EquatorialPosition{}, errors.New("unknown body")
	}
	return pos, nil
}

func (f *fakeEphemeris) Precess(_ context.Context, pos model.EquatorialPosition, _ time.Time) (model.EquatorialPosition, error) {
	f.precessCalls++
	pos.RA += f.precessBy
	return pos, nil
}

func (f *fakeEphemeris) ResolveCatalogName(_ context.Context, name string) (model.EquatorialPosition, error) {
	pos, ok := f.catalog[model.NormalizeName(name)]
	if !ok {
		return model.EquatorialPosition{}, errors.New("not in catalog")
	}
	return pos, nil
}

// scriptedTarget yields a position computed from the cycle instant, one
// function per cycle; the last function repeats.
type scriptedTarget struct {
	steps []func(t time.Time) model.EquatorialPosition
	n     int
}

func (s *scriptedTarget) Target() model.Target {
	return model.FixedEquatorial{}
}

func (s *scriptedTarget) At(_ context.Context, t time.Time) (model.EquatorialPosition, error) {
	i := s.n
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.n++
	return s.steps[i](t), nil
}

// meridianAt returns a position on the observer's meridian at t with the
// given transit altitude, south of the zenith.
func meridianAt(altitude float64) func(t time.Time) model.EquatorialPosition {
	return func(t time.Time) model.EquatorialPosition {
		return model.EquatorialPosition{
			RA:  LocalSiderealTime(t, testObserver.Longitude),
			Dec: testObserver.Latitude - (90 - altitude),
		}
	}
}

func mustTransformer(t *testing.T) *Transformer {
	t.Helper()
	tr, err := NewTransformer(testObserver, testLimits)
	if err != nil {
		t.Fatalf("NewTransformer: %v", err)
	}
	return tr
}
