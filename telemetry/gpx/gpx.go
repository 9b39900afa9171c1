package gpx

import (
	"fmt"
	"io"
	"time"

	"github.com/sfomuseum/go-media-geotag/geo"
	"github.com/sfomuseum/go-media-geotag/telemetry"
	gpxgo "github.com/tkrajina/gpxgo/gpx"
)

const SOURCE = "gpx"

// Parse reads a GPX document from r and returns a normalized Track. Points
// are gathered across every track and segment in the document.
func Parse(r io.Reader) (*telemetry.Track, error) {

	body, err := io.ReadAll(r)

	if err != nil {
		return nil, &telemetry.ParseError{Source: SOURCE, Message: "failed to read document", Err: err}
	}

	doc, err := gpxgo.ParseBytes(body)

	if err != nil {
		return nil, &telemetry.ParseError{Source: SOURCE, Message: "invalid GPX document", Err: err}
	}

	var points []geo.Point

	for _, trk := range doc.Tracks {

		for _, seg := range trk.Segments {

			for _, p := range seg.Points {

				pt := geo.Point{
					Time: p.Timestamp.UTC(),
					Lat:  p.Latitude,
					Lon:  p.Longitude,
				}

				if !p.Elevation.Null() {
					pt.Alt = geo.Float(p.Elevation.Value())
				}

				points = append(points, pt)
			}
		}
	}

	return telemetry.Normalize(SOURCE, points)
}

// Export serializes a track back to a GPX document, for inspection of what a
// telemetry parser recovered from its container.
func Export(track *telemetry.Track) ([]byte, error) {

	doc := &gpxgo.GPX{
		Creator: "go-media-geotag",
	}

	seg := gpxgo.GPXTrackSegment{}

	for _, p := range track.Points {

		gpx_pt := gpxgo.GPXPoint{
			Point: gpxgo.Point{
				Latitude:  p.Lat,
				Longitude: p.Lon,
			},
			Timestamp: p.Time,
		}

		if p.Alt != nil {
			gpx_pt.Elevation = *gpxgo.NewNullableFloat64(*p.Alt)
		}

		seg.Points = append(seg.Points, gpx_pt)
	}

	trk := gpxgo.GPXTrack{
		Name:     track.Source,
		Segments: []gpxgo.GPXTrackSegment{seg},
	}

	doc.Tracks = append(doc.Tracks, trk)

	body, err := doc.ToXml(gpxgo.ToXmlParams{
		Version: "1.1",
		Indent:  true,
	})

	if err != nil {
		return nil, fmt.Errorf("Failed to serialize GPX document, %w", err)
	}

	return body, nil
}

// StartOffset returns the delta to add to every point so the track begins at
// start, used to align GPX clocks with camera clocks.
func StartOffset(track *telemetry.Track, start time.Time) time.Duration {
	return start.Sub(track.StartTime())
}
