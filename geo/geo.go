package geo

// This package defines the point model shared by every telemetry parser and
// the spherical math used to align captures against a parsed track: haversine
// distances, initial bearings, circular interpolation of compass headings.

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Point is a single GPS sample. Alt and Angle are optional; a nil Angle means
// the source did not report a heading. Points are immutable once produced by
// a parser.
type Point struct {
	Time  time.Time
	Lat   float64
	Lon   float64
	Alt   *float64
	Angle *float64
}

// Float returns a pointer to v. Convenience for the optional Point fields.
func Float(v float64) *float64 {
	return &v
}

// Distance returns the haversine distance between two points, in meters.
func Distance(p1 Point, p2 Point) float64 {
	return orbgeo.DistanceHaversine(orb.Point{p1.Lon, p1.Lat}, orb.Point{p2.Lon, p2.Lat})
}

// Bearing returns the initial great-circle bearing from p1 to p2 in degrees,
// normalized to [0, 360).
func Bearing(p1 Point, p2 Point) float64 {
	b := orbgeo.Bearing(orb.Point{p1.Lon, p1.Lat}, orb.Point{p2.Lon, p2.Lat})
	return NormalizeBearing(b)
}

// NormalizeBearing maps an angle in degrees on to [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360.0)

	if deg < 0 {
		deg += 360.0
	}

	return deg
}

// DiffBearing returns the absolute angular difference between two bearings,
// in [0, 180].
func DiffBearing(b1 float64, b2 float64) float64 {
	d := math.Abs(b2 - b1)

	if d > 180.0 {
		d = 360.0 - d
	}

	return d
}

// shortestAngularDelta returns the signed delta from b1 to b2 along the
// shortest arc, in (-180, 180].
func shortestAngularDelta(b1 float64, b2 float64) float64 {
	d := math.Mod(b2-b1, 360.0)

	if d > 180.0 {
		d -= 360.0
	} else if d <= -180.0 {
		d += 360.0
	}

	return d
}

// InterpolateBearing interpolates between two compass bearings along the
// shortest arc. A naive linear interpolation is wrong across the 0/360
// boundary: halfway between 350 and 10 is 0, not 180.
func InterpolateBearing(b1 float64, b2 float64, f float64) float64 {
	delta := shortestAngularDelta(b1, b2)
	return NormalizeBearing(b1 + f*delta)
}
