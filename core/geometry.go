package core

import (
	"math"

	"github.com/signalsfoundry/antenna-tracker/model"
)

// Vec3 is a vector in the observer's local horizon frame: X north, Y east,
// Z up.
type Vec3 struct {
	X, Y, Z float64
}

// DirectionOf returns the unit vector for a pointing. Altitudes above 90
// (tipped past the zenith) give the same vector as their unflipped
// equivalent.
func DirectionOf(p model.HorizontalPosition) Vec3 {
	sinAlt, cosAlt := math.Sincos(p.Altitude * deg2rad)
	sinAz, cosAz := math.Sincos(p.Azimuth * deg2rad)
	return Vec3{X: cosAlt * cosAz, Y: cosAlt * sinAz, Z: sinAlt}
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns v × other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// AngleTo returns the angle between two vectors in degrees.
func (v Vec3) AngleTo(other Vec3) float64 {
	return math.Atan2(v.Cross(other).Norm(), v.Dot(other)) * rad2deg
}

// AngularSeparation returns the angle in degrees between two pointing
// directions.
func AngularSeparation(a, b model.HorizontalPosition) float64 {
	return DirectionOf(a).AngleTo(DirectionOf(b))
}
