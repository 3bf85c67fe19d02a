package model

import (
	"errors"
	"fmt"
	"strings"
)

// Body identifies a solar-system body whose position changes cycle to cycle.
type Body int

const (
	BodyUnknown Body = iota
	BodySun
	BodyMoon
)

func (b Body) String() string {
	switch b {
	case BodySun:
		return "sun"
	case BodyMoon:
		return "moon"
	default:
		return "unknown"
	}
}

// ParseBody maps a case-insensitive body name to a Body.
func ParseBody(name string) (Body, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sun":
		return BodySun, nil
	case "moon":
		return BodyMoon, nil
	default:
		return BodyUnknown, fmt.Errorf("unknown body %q (want sun or moon)", name)
	}
}

// Target is a celestial pointing target. The set of implementations is
// closed: FixedEquatorial, NamedBody and CatalogBody.
type Target interface {
	fmt.Stringer
	isTarget()
}

// FixedEquatorial is a target at constant right ascension and declination
// (degrees). When J2000 is set the coordinates are mean J2000 and are
// precessed once to the observation epoch.
type FixedEquatorial struct {
	RA    float64
	Dec   float64
	J2000 bool
}

// NamedBody is a moving solar-system body.
type NamedBody struct {
	Body Body
}

// CatalogBody is a source looked up by name in the source catalog.
type CatalogBody struct {
	Name string
}

func (FixedEquatorial) isTarget() {}
func (NamedBody) isTarget()       {}
func (CatalogBody) isTarget()     {}

func (t FixedEquatorial) String() string {
	epoch := "date"
	if t.J2000 {
		epoch = "J2000"
	}
	return fmt.Sprintf("ra=%.4f dec=%.4f (%s)", t.RA, t.Dec, epoch)
}

func (t NamedBody) String() string   { return t.Body.String() }
func (t CatalogBody) String() string { return "catalog:" + t.Name }

// ErrNoTarget is returned by ParseTarget when no target form was supplied.
var ErrNoTarget = errors.New("no target specified")

// ParseTarget builds a Target from user input. Exactly one of body, catalog
// or the ra/dec pair must be set.
func ParseTarget(body, catalog string, ra, dec *float64, j2000 bool) (Target, error) {
	forms := 0
	if body != "" {
		forms++
	}
	if catalog != "" {
		forms++
	}
	if ra != nil || dec != nil {
		if ra == nil || dec == nil {
			return nil, errors.New("ra and dec must be given together")
		}
		forms++
	}

	switch {
	case forms == 0:
		return nil, ErrNoTarget
	case forms > 1:
		return nil, errors.New("specify exactly one of body, catalog name, or ra/dec")
	}

	switch {
	case body != "":
		b, err := ParseBody(body)
		if err != nil {
			return nil, err
		}
		return NamedBody{Body: b}, nil
	case catalog != "":
		return CatalogBody{Name: catalog}, nil
	}

	eq := EquatorialPosition{RA: *ra, Dec: *dec}
	if err := eq.Validate(); err != nil {
		return nil, err
	}
	return FixedEquatorial{RA: eq.RA, Dec: eq.Dec, J2000: j2000}, nil
}

// NormalizeName folds a source name for catalog matching: lower case with
// spaces, dashes and underscores removed.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch r {
		case ' ', '-', '_', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
