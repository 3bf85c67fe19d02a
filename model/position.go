package model

import (
	"errors"
	"fmt"
	"math"
)

// EquatorialPosition is a right ascension / declination pair in degrees.
type EquatorialPosition struct {
	RA  float64
	Dec float64
}

// Validate checks that RA lies in [0, 360) and Dec in [-90, 90].
func (p EquatorialPosition) Validate() error {
	if math.IsNaN(p.RA) || p.RA < 0 || p.RA >= 360 {
		return fmt.Errorf("right ascension %.4f out of range [0, 360)", p.RA)
	}
	if math.IsNaN(p.Dec) || p.Dec < -90 || p.Dec > 90 {
		return fmt.Errorf("declination %.4f out of range [-90, 90]", p.Dec)
	}
	return nil
}

// HorizontalPosition is an altitude / azimuth pair in degrees. After limit
// correction the altitude may exceed 90 (pointing past the zenith).
type HorizontalPosition struct {
	Altitude float64
	Azimuth  float64
}

func (p HorizontalPosition) String() string {
	return fmt.Sprintf("alt=%.3f az=%.3f", p.Altitude, p.Azimuth)
}

// ObserverLocation is the geodetic position of the antenna: latitude and
// longitude in degrees (east positive), elevation in metres.
type ObserverLocation struct {
	Latitude  float64
	Longitude float64
	Elevation float64
}

// Validate checks latitude and longitude ranges.
func (o ObserverLocation) Validate() error {
	var errs []error
	if math.IsNaN(o.Latitude) || o.Latitude < -90 || o.Latitude > 90 {
		errs = append(errs, fmt.Errorf("latitude %.4f out of range [-90, 90]", o.Latitude))
	}
	if math.IsNaN(o.Longitude) || o.Longitude < -180 || o.Longitude > 180 {
		errs = append(errs, fmt.Errorf("longitude %.4f out of range [-180, 180]", o.Longitude))
	}
	return errors.Join(errs...)
}

// MountLimits describes the azimuth rail of the mount and the lowest
// altitude it may safely point at. Constant for the mount's lifetime.
type MountLimits struct {
	AzMin           float64
	AzMax           float64
	MinSafeAltitude float64
}

// Validate rejects limits for which the zenith flip cannot land back on the
// rail, i.e. an azimuth span narrower than 180 degrees.
func (l MountLimits) Validate() error {
	var errs []error
	if l.AzMin < 0 || l.AzMax > 360 {
		errs = append(errs, fmt.Errorf("azimuth limits [%.2f, %.2f] must lie within [0, 360]", l.AzMin, l.AzMax))
	}
	if l.AzMin >= l.AzMax {
		errs = append(errs, fmt.Errorf("az_min %.2f must be below az_max %.2f", l.AzMin, l.AzMax))
	} else if l.AzMax-l.AzMin < 180 {
		errs = append(errs, fmt.Errorf("azimuth span %.2f is narrower than 180 degrees", l.AzMax-l.AzMin))
	}
	if l.MinSafeAltitude < 0 || l.MinSafeAltitude >= 90 {
		errs = append(errs, fmt.Errorf("min_safe_altitude %.2f out of range [0, 90)", l.MinSafeAltitude))
	}
	return errors.Join(errs...)
}

// CatalogEntry is a named source in the source catalog. Coordinates are
// mean J2000 degrees.
type CatalogEntry struct {
	Name        string
	Aliases     []string
	RA          float64
	Dec         float64
	Description string
}

// Position returns the entry's equatorial coordinates.
func (e CatalogEntry) Position() EquatorialPosition {
	return EquatorialPosition{RA: e.RA, Dec: e.Dec}
}
