package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/precess"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"

	"github.com/signalsfoundry/antenna-tracker/model"
)

// EphemerisProvider supplies equatorial coordinates for targets.
type EphemerisProvider interface {
	// PositionOf returns the apparent position of a moving body at t.
	PositionOf(ctx context.Context, body model.Body, t time.Time) (model.EquatorialPosition, error)
	// Precess converts mean J2000 coordinates to the epoch of t.
	Precess(ctx context.Context, pos model.EquatorialPosition, t time.Time) (model.EquatorialPosition, error)
	// ResolveCatalogName looks up a named source and returns its J2000
	// coordinates.
	ResolveCatalogName(ctx context.Context, name string) (model.EquatorialPosition, error)
}

// CatalogLookup is the subset of kb.Catalog the ephemeris needs.
type CatalogLookup interface {
	Lookup(name string) (model.CatalogEntry, error)
}

// MeeusEphemeris computes sun and moon positions with Meeus' algorithms.
// Positions are geocentric; lunar parallax (up to ~1 degree) is not applied.
type MeeusEphemeris struct {
	Catalog CatalogLookup
}

// NewMeeusEphemeris constructs an ephemeris backed by the given catalog. A
// nil catalog makes every catalog lookup fail.
func NewMeeusEphemeris(catalog CatalogLookup) *MeeusEphemeris {
	return &MeeusEphemeris{Catalog: catalog}
}

// PositionOf implements EphemerisProvider.
func (m *MeeusEphemeris) PositionOf(ctx context.Context, body model.Body, t time.Time) (model.EquatorialPosition, error) {
	if err := ctx.Err(); err != nil {
		return model.EquatorialPosition{}, err
	}
	jd := julian.TimeToJD(t.UTC())

	switch body {
	case model.BodySun:
		ra, dec := solar.ApparentEquatorial(jd)
		return fromMeeus(ra, dec), nil
	case model.BodyMoon:
		lon, lat, _ := moonposition.Position(jd)
		sinEps, cosEps := math.Sincos(nutation.MeanObliquity(jd).Rad())
		ra, dec := coord.EclToEq(lon, lat, sinEps, cosEps)
		return fromMeeus(ra, dec), nil
	default:
		return model.EquatorialPosition{}, fmt.Errorf("no ephemeris for body %v", body)
	}
}

// Precess implements EphemerisProvider.
func (m *MeeusEphemeris) Precess(ctx context.Context, pos model.EquatorialPosition, t time.Time) (model.EquatorialPosition, error) {
	if err := ctx.Err(); err != nil {
		return model.EquatorialPosition{}, err
	}
	from := &coord.Equatorial{
		RA:  unit.RAFromDeg(pos.RA),
		Dec: unit.AngleFromDeg(pos.Dec),
	}
	epoch := base.JDEToJulianYear(julian.TimeToJD(t.UTC()))
	to := precess.Position(from, &coord.Equatorial{}, 2000, epoch, 0, 0)
	return fromMeeus(to.RA, to.Dec), nil
}

// ResolveCatalogName implements EphemerisProvider.
func (m *MeeusEphemeris) ResolveCatalogName(ctx context.Context, name string) (model.EquatorialPosition, error) {
	if err := ctx.Err(); err != nil {
		return model.EquatorialPosition{}, err
	}
	if m.Catalog == nil {
		return model.EquatorialPosition{}, fmt.Errorf("no catalog configured for %q", name)
	}
	e, err := m.Catalog.Lookup(name)
	if err != nil {
		return model.EquatorialPosition{}, err
	}
	return e.Position(), nil
}

func fromMeeus(ra unit.RA, dec unit.Angle) model.EquatorialPosition {
	return model.EquatorialPosition{
		RA:  normalizeDegrees(unit.Angle(ra).Deg()),
		Dec: dec.Deg(),
	}
}

// normalizeDegrees folds an angle into [0, 360).
func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 || deg == 0 {
		return 0
	}
	return deg
}
