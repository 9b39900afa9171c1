package nmea

// Package nmea parses standalone NMEA log files. GGA sentences carry the
// positions; RMC sentences carry the calendar date the GGA time-of-day clocks
// are resolved against.

import (
	"bufio"
	"io"
	"strings"
	"time"

	gonmea "github.com/adrianmo/go-nmea"
	"github.com/sfomuseum/go-media-geotag/geo"
	"github.com/sfomuseum/go-media-geotag/telemetry"
)

const SOURCE = "nmea"

// Parse reads NMEA sentences from r and returns a normalized Track.
func Parse(r io.Reader) (*telemetry.Track, error) {

	scanner := bufio.NewScanner(r)

	var points []geo.Point
	var date *gonmea.Date

	for scanner.Scan() {

		line := strings.TrimSpace(scanner.Text())

		if !strings.HasPrefix(line, "$") {
			continue
		}

		s, err := gonmea.Parse(line)

		if err != nil {
			continue
		}

		switch v := s.(type) {

		case gonmea.RMC:

			if v.Date.Valid {
				d := v.Date
				date = &d
			}

		case gonmea.GGA:

			if v.FixQuality == gonmea.Invalid {
				continue
			}

			if date == nil || !v.Time.Valid {
				continue
			}

			t := time.Date(2000+date.YY, time.Month(date.MM), date.DD,
				v.Time.Hour, v.Time.Minute, v.Time.Second,
				v.Time.Millisecond*int(time.Millisecond), time.UTC)

			points = append(points, geo.Point{
				Time: t,
				Lat:  v.Latitude,
				Lon:  v.Longitude,
				Alt:  geo.Float(v.Altitude),
			})

		default:
			// pass
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &telemetry.ParseError{Source: SOURCE, Message: "failed to read log", Err: err}
	}

	return telemetry.Normalize(SOURCE, points)
}
