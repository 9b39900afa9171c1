package telemetry

// This package defines the normalized track model that every telemetry parser
// produces, and the parse error type the source selector uses to decide
// whether to fall through to the next candidate source.

import (
	"fmt"
	"sort"
	"time"

	"github.com/sfomuseum/go-media-geotag/geo"
)

// ParseError signals malformed or absent telemetry in one candidate source.
// It is recoverable: the source selector advances to the next candidate.
type ParseError struct {
	Source  string
	Message string
	Err     error
}

func (e *ParseError) Error() string {

	if e.Err != nil {
		return fmt.Sprintf("Failed to parse %s telemetry, %s, %v", e.Source, e.Message, e.Err)
	}

	return fmt.Sprintf("Failed to parse %s telemetry, %s", e.Source, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Track is an ordered sequence of GPS points, strictly increasing by
// timestamp. Tracks are owned by the parser that produced them and read-only
// afterward.
type Track struct {
	Source string
	Points []geo.Point
	// Device vendor metadata recovered from the container, when present.
	Make  string
	Model string
}

// Normalize sorts points by time and resolves timestamp ties by synthesizing
// sub-second offsets, so that the resulting track is strictly increasing. An
// empty point set is a ParseError.
func Normalize(source string, points []geo.Point) (*Track, error) {

	if len(points) == 0 {
		return nil, &ParseError{Source: source, Message: "no GPS points found"}
	}

	sorted := make([]geo.Point, len(points))
	copy(sorted, points)

	sort.SliceStable(sorted, func(i int, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	spreadTimestampTies(sorted)

	tr := &Track{
		Source: source,
		Points: sorted,
	}

	return tr, nil
}

// spreadTimestampTies nudges runs of identical timestamps apart by even
// sub-second offsets, bounded by the next distinct timestamp so the sort
// order is preserved.
func spreadTimestampTies(points []geo.Point) {

	i := 0

	for i < len(points) {

		j := i + 1

		for j < len(points) && points[j].Time.Equal(points[i].Time) {
			j++
		}

		run := j - i

		if run > 1 {

			limit := points[i].Time.Add(time.Second)

			if j < len(points) && points[j].Time.Before(limit) {
				limit = points[j].Time
			}

			interval := limit.Sub(points[i].Time) / time.Duration(run)

			for k := 1; k < run; k++ {
				points[i+k].Time = points[i].Time.Add(time.Duration(k) * interval)
			}
		}

		i = j
	}
}

// StartTime returns the timestamp of the first point.
func (tr *Track) StartTime() time.Time {
	return tr.Points[0].Time
}

// EndTime returns the timestamp of the last point.
func (tr *Track) EndTime() time.Time {
	return tr.Points[len(tr.Points)-1].Time
}
