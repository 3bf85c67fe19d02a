package core

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/antenna-tracker/model"
)

// BoundTarget is a target whose one-time lookups have been performed. At
// returns the equatorial position for a cycle at instant t.
type BoundTarget interface {
	Target() model.Target
	At(ctx context.Context, t time.Time) (model.EquatorialPosition, error)
}

// Resolver turns target descriptors into BoundTargets.
type Resolver struct {
	Ephemeris EphemerisProvider
}

// NewResolver constructs a resolver over the given ephemeris provider.
func NewResolver(ephem EphemerisProvider) *Resolver {
	return &Resolver{Ephemeris: ephem}
}

// Bind performs the per-session work for target at session start t0:
// catalog lookup for CatalogBody, precession for J2000 FixedEquatorial.
// Any failure is a *ResolutionError.
func (r *Resolver) Bind(ctx context.Context, target model.Target, t0 time.Time) (BoundTarget, error) {
	if r == nil || r.Ephemeris == nil {
		return nil, &ResolutionError{Target: target, Err: fmt.Errorf("no ephemeris provider")}
	}

	switch t := target.(type) {
	case model.FixedEquatorial:
		pos := model.EquatorialPosition{RA: t.RA, Dec: t.Dec}
		if err := pos.Validate(); err != nil {
			return nil, &ResolutionError{Target: target, Err: err}
		}
		if t.J2000 {
			p, err := r.Ephemeris.Precess(ctx, pos, t0)
			if err != nil {
				return nil, &ResolutionError{Target: target, Err: fmt.Errorf("precess: %w", err)}
			}
			pos = p
		}
		return fixedTarget{target: target, pos: pos}, nil

	case model.CatalogBody:
		pos, err := r.Ephemeris.ResolveCatalogName(ctx, t.Name)
		if err != nil {
			return nil, &ResolutionError{Target: target, Err: err}
		}
		p, err := r.Ephemeris.Precess(ctx, pos, t0)
		if err != nil {
			return nil, &ResolutionError{Target: target, Err: fmt.Errorf("precess: %w", err)}
		}
		return fixedTarget{target: target, pos: p}, nil

	case model.NamedBody:
		// Probe once so an unusable provider fails startup instead of
		// burning the budget on restarts.
		if _, err := r.Ephemeris.PositionOf(ctx, t.Body, t0); err != nil {
			return nil, &ResolutionError{Target: target, Err: err}
		}
		return bodyTarget{target: t, ephem: r.Ephemeris}, nil

	case nil:
		return nil, &ResolutionError{Target: target, Err: model.ErrNoTarget}

	default:
		return nil, &ResolutionError{Target: target, Err: fmt.Errorf("unsupported target type %T", target)}
	}
}

// fixedTarget has a constant position for the whole session.
type fixedTarget struct {
	target model.Target
	pos    model.EquatorialPosition
}

func (f fixedTarget) Target() model.Target { return f.target }

func (f fixedTarget) At(context.Context, time.Time) (model.EquatorialPosition, error) {
	return f.pos, nil
}

// bodyTarget queries the ephemeris every cycle.
type bodyTarget struct {
	target model.NamedBody
	ephem  EphemerisProvider
}

func (b bodyTarget) Target() model.Target { return b.target }

func (b bodyTarget) At(ctx context.Context, t time.Time) (model.EquatorialPosition, error) {
	pos, err := b.ephem.PositionOf(ctx, b.target.Body, t)
	if err != nil {
		return model.EquatorialPosition{}, fmt.Errorf("ephemeris position of %v: %w", b.target.Body, err)
	}
	return pos, nil
}
