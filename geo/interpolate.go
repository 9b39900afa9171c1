package geo

import (
	"fmt"
	"sort"
	"time"
)

// OutsideTrackError is returned when a capture timestamp falls outside the
// track bounds by more than the configured tolerance.
type OutsideTrackError struct {
	Time       time.Time
	TrackStart time.Time
	TrackEnd   time.Time
}

func (e *OutsideTrackError) Error() string {

	if e.Time.Before(e.TrackStart) {
		delta := e.TrackStart.Sub(e.Time).Seconds()
		return fmt.Sprintf("Capture time %s is behind the track start time %s by %.3f seconds", e.Time.Format(time.RFC3339), e.TrackStart.Format(time.RFC3339), delta)
	}

	delta := e.Time.Sub(e.TrackEnd).Seconds()
	return fmt.Sprintf("Capture time %s is beyond the track end time %s by %.3f seconds", e.Time.Format(time.RFC3339), e.TrackEnd.Format(time.RFC3339), delta)
}

// AlignmentError is returned when a track is too degenerate to bracket a
// capture timestamp.
type AlignmentError struct {
	Reason string
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("Failed to align capture against track, %s", e.Reason)
}

// Interpolator locates a timestamp on a time-sorted list of points. The
// points are read-only; the zero tolerance permits no extrapolation beyond
// the track bounds.
type Interpolator struct {
	points    []Point
	tolerance time.Duration
}

// NewInterpolator returns an Interpolator over points, which must be sorted
// by time. tolerance is the slack allowed when a timestamp falls slightly
// before the first point or after the last.
func NewInterpolator(points []Point, tolerance time.Duration) (*Interpolator, error) {

	if len(points) == 0 {
		return nil, &AlignmentError{Reason: "empty track"}
	}

	if tolerance < 0 {
		return nil, fmt.Errorf("Invalid tolerance %v, must be non-negative", tolerance)
	}

	for i := 1; i < len(points); i++ {

		if points[i].Time.Before(points[i-1].Time) {
			return nil, &AlignmentError{Reason: fmt.Sprintf("track is not sorted at index %d", i)}
		}
	}

	ip := &Interpolator{
		points:    points,
		tolerance: tolerance,
	}

	return ip, nil
}

// Interpolate returns the position and heading on the track at time t.
// Latitude, longitude and altitude are interpolated linearly between the
// bracketing pair of samples; the heading is interpolated circularly when
// both samples carry one, and derived from the segment bearing otherwise.
func (ip *Interpolator) Interpolate(t time.Time) (Point, error) {

	points := ip.points

	start := points[0].Time
	end := points[len(points)-1].Time

	if t.Before(start) {

		if start.Sub(t) > ip.tolerance {
			return Point{}, &OutsideTrackError{Time: t, TrackStart: start, TrackEnd: end}
		}

		return ip.between(points[0], pointAfter(points, 0), t), nil
	}

	if t.After(end) {

		if t.Sub(end) > ip.tolerance {
			return Point{}, &OutsideTrackError{Time: t, TrackStart: start, TrackEnd: end}
		}

		last := len(points) - 1
		return ip.between(pointBefore(points, last), points[last], t), nil
	}

	// First index whose timestamp is >= t
	idx := sort.Search(len(points), func(i int) bool {
		return !points[i].Time.Before(t)
	})

	if points[idx].Time.Equal(t) {
		return points[idx], nil
	}

	// idx > 0 here since t >= start and points[idx].Time != t
	return ip.between(points[idx-1], points[idx], t), nil
}

func (ip *Interpolator) between(p0 Point, p1 Point, t time.Time) Point {

	var f float64

	span := p1.Time.Sub(p0.Time)

	if span > 0 {
		f = float64(t.Sub(p0.Time)) / float64(span)
	}

	p := Point{
		Time: t,
		Lat:  p0.Lat + f*(p1.Lat-p0.Lat),
		Lon:  p0.Lon + f*(p1.Lon-p0.Lon),
	}

	if p0.Alt != nil && p1.Alt != nil {
		p.Alt = Float(*p0.Alt + f*(*p1.Alt-*p0.Alt))
	}

	switch {
	case p0.Angle != nil && p1.Angle != nil:
		p.Angle = Float(InterpolateBearing(*p0.Angle, *p1.Angle, f))
	case p0.Lat != p1.Lat || p0.Lon != p1.Lon:
		p.Angle = Float(Bearing(p0, p1))
	default:
		// pass
	}

	return p
}

func pointAfter(points []Point, i int) Point {

	if i+1 < len(points) {
		return points[i+1]
	}

	return points[i]
}

func pointBefore(points []Point, i int) Point {

	if i > 0 {
		return points[i-1]
	}

	return points[i]
}
