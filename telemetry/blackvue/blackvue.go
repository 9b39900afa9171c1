package blackvue

// Package blackvue extracts GPS tracks from BlackVue dashcam videos, which
// record NMEA sentences in a top-level free/gps atom. Each line carries a
// bracketed epoch-millisecond wall clock followed by the sentence itself:
//
//	[1623057076211]$GPRMC,201116.00,A,...
//
// The bracket clock drifts against GPS time so it is corrected by the offset
// between the first valid RMC sentence and its bracket value. The camera
// model is recorded in a free/cprt atom.

import (
	"encoding/binary"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/sfomuseum/go-media-geotag/geo"
	"github.com/sfomuseum/go-media-geotag/telemetry"
)

const SOURCE = "blackvue"

var line_re = regexp.MustCompile(`^\[(\d+)\]\s*(\$.+)$`)

// Extract parses the free/gps atom of the BlackVue recording addressed by rs
// and returns a normalized Track.
func Extract(rs io.ReadSeeker) (*telemetry.Track, error) {

	gps_data, cprt_data, err := readFreeAtom(rs)

	if err != nil {
		return nil, err
	}

	if gps_data == nil {
		return nil, &telemetry.ParseError{Source: SOURCE, Message: "no gps atom found"}
	}

	points := parseGPSData(gps_data)

	track, err := telemetry.Normalize(SOURCE, points)

	if err != nil {
		return nil, err
	}

	track.Make = "Blackvue"
	track.Model = parseModel(cprt_data)

	return track, nil
}

// readFreeAtom scans the top-level boxes of rs for a free atom and returns
// the payloads of its gps and cprt children.
func readFreeAtom(rs io.ReadSeeker) ([]byte, []byte, error) {

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, nil, &telemetry.ParseError{Source: SOURCE, Message: "failed to seek", Err: err}
	}

	var gps_data []byte
	var cprt_data []byte

	header := make([]byte, 8)

	for {

		if _, err := io.ReadFull(rs, header); err != nil {

			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}

			return nil, nil, &telemetry.ParseError{Source: SOURCE, Message: "failed to read box header", Err: err}
		}

		box_size := uint64(binary.BigEndian.Uint32(header[0:4]))
		fourcc := string(header[4:8])
		header_size := uint64(8)

		if box_size == 1 {

			large := make([]byte, 8)

			if _, err := io.ReadFull(rs, large); err != nil {
				return nil, nil, &telemetry.ParseError{Source: SOURCE, Message: "failed to read box header", Err: err}
			}

			box_size = binary.BigEndian.Uint64(large)
			header_size = 16
		}

		if box_size < header_size {
			return nil, nil, &telemetry.ParseError{Source: SOURCE, Message: "invalid box size"}
		}

		payload_size := box_size - header_size

		if fourcc == "free" {

			payload := make([]byte, payload_size)

			if _, err := io.ReadFull(rs, payload); err != nil {
				return nil, nil, &telemetry.ParseError{Source: SOURCE, Message: "failed to read free atom", Err: err}
			}

			gps_data, cprt_data = parseFreeChildren(payload)
			break
		}

		if _, err := rs.Seek(int64(payload_size), io.SeekCurrent); err != nil {
			return nil, nil, &telemetry.ParseError{Source: SOURCE, Message: "failed to seek past box", Err: err}
		}
	}

	return gps_data, cprt_data, nil
}

func parseFreeChildren(payload []byte) ([]byte, []byte) {

	var gps_data []byte
	var cprt_data []byte

	offset := 0

	for offset+8 <= len(payload) {

		size := int(binary.BigEndian.Uint32(payload[offset : offset+4]))
		fourcc := string(payload[offset+4 : offset+8])

		if size < 8 || offset+size > len(payload) {
			break
		}

		switch fourcc {
		case "gps ":
			gps_data = payload[offset+8 : offset+size]
		case "cprt":
			cprt_data = payload[offset+8 : offset+size]
		default:
			// pass
		}

		offset += size
	}

	return gps_data, cprt_data
}

type timed struct {
	epoch_ms int64
	lat      float64
	lon      float64
}

// parseGPSData parses the NMEA lines of a gps atom. RMC points are preferred,
// then GGA, then GLL. Bracket clocks are corrected by the offset between the
// first valid RMC sentence and its own bracket value.
func parseGPSData(data []byte) []geo.Point {

	var rmc_points []timed
	var gga_points []timed
	var gll_points []timed

	var clock_offset time.Duration
	have_offset := false

	for _, line := range strings.Split(string(data), "\n") {

		line = strings.TrimSpace(line)
		m := line_re.FindStringSubmatch(line)

		if m == nil {
			continue
		}

		epoch_ms, err := strconv.ParseInt(m[1], 10, 64)

		if err != nil {
			continue
		}

		s, err := nmea.Parse(m[2])

		if err != nil {
			continue
		}

		switch v := s.(type) {

		case nmea.RMC:

			if v.Validity != nmea.ValidRMC {
				continue
			}

			if !have_offset && v.Date.Valid && v.Time.Valid {

				rmc_t := time.Date(2000+v.Date.YY, time.Month(v.Date.MM), v.Date.DD,
					v.Time.Hour, v.Time.Minute, v.Time.Second,
					v.Time.Millisecond*int(time.Millisecond), time.UTC)

				clock_offset = rmc_t.Sub(time.UnixMilli(epoch_ms).UTC())
				have_offset = true
			}

			rmc_points = append(rmc_points, timed{epoch_ms, v.Latitude, v.Longitude})

		case nmea.GGA:

			if v.FixQuality == nmea.Invalid {
				continue
			}

			gga_points = append(gga_points, timed{epoch_ms, v.Latitude, v.Longitude})

		case nmea.GLL:

			if v.Validity != nmea.ValidGLL {
				continue
			}

			gll_points = append(gll_points, timed{epoch_ms, v.Latitude, v.Longitude})

		default:
			// pass
		}
	}

	chosen := rmc_points

	if len(chosen) == 0 {
		chosen = gga_points
	}

	if len(chosen) == 0 {
		chosen = gll_points
	}

	points := make([]geo.Point, 0, len(chosen))

	for _, p := range chosen {

		points = append(points, geo.Point{
			Time: time.UnixMilli(p.epoch_ms).UTC().Add(clock_offset),
			Lat:  p.lat,
			Lon:  p.lon,
		})
	}

	return points
}

// parseModel extracts the camera model from a cprt payload, formatted as
// "Pittasoft Co., Ltd.;DR900S-1CH;".
func parseModel(cprt []byte) string {

	if cprt == nil {
		return ""
	}

	str := strings.Trim(string(cprt), "\x00 ")
	parts := strings.Split(str, ";")

	if len(parts) < 2 {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
