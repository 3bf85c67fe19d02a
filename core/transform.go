package core

import (
	"errors"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/antenna-tracker/model"
)

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// Transformer converts equatorial coordinates to mount pointing for a fixed
// observer and set of mount limits.
type Transformer struct {
	Observer model.ObserverLocation
	Limits   model.MountLimits
}

// NewTransformer validates the observer and limits.
func NewTransformer(obs model.ObserverLocation, limits model.MountLimits) (*Transformer, error) {
	if err := errors.Join(obs.Validate(), limits.Validate()); err != nil {
		return nil, err
	}
	return &Transformer{Observer: obs, Limits: limits}, nil
}

// Transform returns the limit-corrected pointing for eq at t, or a
// *HorizonViolationError if the corrected altitude is unreachable.
func (tr *Transformer) Transform(eq model.EquatorialPosition, t time.Time) (model.HorizontalPosition, error) {
	corrected, err := Correct(tr.Horizontal(eq, t), tr.Limits)
	if err != nil {
		var hv *HorizonViolationError
		if errors.As(err, &hv) {
			hv.At = t
		}
		return corrected, err
	}
	return corrected, nil
}

// Horizontal computes the uncorrected altitude and azimuth (degrees, azimuth
// measured from north through east) of eq as seen by the observer at t.
// Targets are treated as infinitely distant, so observer elevation has no
// effect.
func (tr *Transformer) Horizontal(eq model.EquatorialPosition, t time.Time) model.HorizontalPosition {
	lat := tr.Observer.Latitude * deg2rad
	dec := eq.Dec * deg2rad
	ha := (LocalSiderealTime(t, tr.Observer.Longitude) - eq.RA) * deg2rad

	sinLat, cosLat := math.Sincos(lat)
	sinDec, cosDec := math.Sincos(dec)
	sinHA, cosHA := math.Sincos(ha)

	sinAlt := sinDec*sinLat + cosDec*cosLat*cosHA
	alt := math.Asin(math.Max(-1, math.Min(1, sinAlt)))
	az := math.Atan2(-cosDec*sinHA, sinDec*cosLat-cosDec*sinLat*cosHA)

	return model.HorizontalPosition{
		Altitude: alt * rad2deg,
		Azimuth:  normalizeDegrees(az * rad2deg),
	}
}

// LocalSiderealTime returns the local mean sidereal time in degrees at the
// given east longitude.
func LocalSiderealTime(t time.Time, longitude float64) float64 {
	u := t.UTC()
	year, month, day := u.Date()
	hour, minute, sec := u.Clock()
	jd := satellite.JDay(year, int(month), day, hour, minute, sec) + float64(u.Nanosecond())/86400e9
	gmst := satellite.ThetaG_JD(jd) * rad2deg
	return normalizeDegrees(gmst + longitude)
}

// FlipAltitude mirrors an altitude through the zenith. It is its own
// inverse.
func FlipAltitude(alt float64) float64 {
	return 180 - alt
}

// Correct applies the mount limit flip: an azimuth below AzMin or above
// AzMax is reached from the opposite side of the rail by tipping past the
// zenith. A corrected altitude below MinSafeAltitude returns a
// *HorizonViolationError along with the corrected position.
func Correct(h model.HorizontalPosition, limits model.MountLimits) (model.HorizontalPosition, error) {
	switch {
	case h.Azimuth < limits.AzMin:
		h.Azimuth += 180
		h.Altitude = FlipAltitude(h.Altitude)
	case h.Azimuth > limits.AzMax:
		h.Azimuth -= 180
		h.Altitude = FlipAltitude(h.Altitude)
	}

	if h.Altitude < limits.MinSafeAltitude {
		return h, &HorizonViolationError{Position: h, Limits: limits}
	}
	return h, nil
}
