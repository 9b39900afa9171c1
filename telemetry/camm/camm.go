package camm

// Package camm extracts GPS tracks from Camera Motion Metadata tracks, per
// https://developers.google.com/streetview/publish/camm-spec
//
// Only GPS-bearing sample types are decoded (MinGPS, GPS and the GoPro GPS
// extension); gyro, accelerometer, magnetometer and angle-axis samples are
// ignored. Sample timestamps are relative to track start, adjusted through
// the track's edit list, and anchored at the container creation time.

import (
	"encoding/binary"
	"io"
	"math"
	"sort"
	"time"

	"github.com/sfomuseum/go-media-geotag/geo"
	"github.com/sfomuseum/go-media-geotag/telemetry"
	"github.com/sfomuseum/go-media-geotag/telemetry/mp4meta"
)

const SOURCE = "camm"

// CAMM sample types. The GoPro GPS type is a vendor extension offset by
// 1024 because GoPro GPS payloads are not compatible with type 6.
const (
	typeMinGPS   = 5
	typeGPS      = 6
	typeGoProGPS = 1024 + 6
)

type sample struct {
	rel float64
	lat float64
	lon float64
	alt *float64
}

// Extract parses the camm track of the container addressed by rs and returns
// a normalized Track.
func Extract(rs io.ReadSeeker) (*telemetry.Track, error) {

	movie, err := mp4meta.Parse(rs)

	if err != nil {
		return nil, &telemetry.ParseError{Source: SOURCE, Message: "invalid container", Err: err}
	}

	for _, tr := range movie.Tracks {

		if !tr.HasFormat("camm") {
			continue
		}

		samples, err := decodeTrack(rs, tr)

		if err != nil {
			return nil, err
		}

		samples = applyEdits(samples, tr.Edits)

		anchor := movie.CreationTime

		points := make([]geo.Point, 0, len(samples))

		for _, s := range samples {

			points = append(points, geo.Point{
				Time: anchor.Add(time.Duration(s.rel * float64(time.Second))),
				Lat:  s.lat,
				Lon:  s.lon,
				Alt:  s.alt,
			})
		}

		track, err := telemetry.Normalize(SOURCE, points)

		if err != nil {
			return nil, err
		}

		track.Make = movie.Make
		track.Model = movie.Model

		return track, nil
	}

	return nil, &telemetry.ParseError{Source: SOURCE, Message: "no camm track found"}
}

func decodeTrack(rs io.ReadSeeker, tr *mp4meta.Track) ([]sample, error) {

	var samples []sample

	for _, raw := range tr.Samples {

		data := make([]byte, raw.Size)

		if _, err := rs.Seek(int64(raw.Offset), io.SeekStart); err != nil {
			return nil, &telemetry.ParseError{Source: SOURCE, Message: "failed to seek to sample", Err: err}
		}

		if _, err := io.ReadFull(rs, data); err != nil {
			return nil, &telemetry.ParseError{Source: SOURCE, Message: "failed to read sample", Err: err}
		}

		s, ok, err := decodeSample(data)

		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		s.rel = raw.Time
		samples = append(samples, s)
	}

	return samples, nil
}

// decodeSample decodes one camm sample: 2 bytes of padding, a little-endian
// uint16 type, then the type-specific payload. Non-GPS types return ok=false.
func decodeSample(data []byte) (sample, bool, error) {

	if len(data) < 4 {
		return sample{}, false, &telemetry.ParseError{Source: SOURCE, Message: "sample too short"}
	}

	camm_type := binary.LittleEndian.Uint16(data[2:4])
	payload := data[4:]

	switch camm_type {

	case typeMinGPS:

		// latitude, longitude, altitude as three doubles
		if len(payload) < 24 {
			return sample{}, false, &telemetry.ParseError{Source: SOURCE, Message: "truncated MinGPS sample"}
		}

		return sample{
			lat: f64(payload[0:]),
			lon: f64(payload[8:]),
			alt: geo.Float(f64(payload[16:])),
		}, true, nil

	case typeGPS:

		// time_gps_epoch, gps_fix_type, latitude, longitude, altitude,
		// horizontal/vertical accuracy, velocity east/north/up, speed accuracy
		if len(payload) < 56 {
			return sample{}, false, &telemetry.ParseError{Source: SOURCE, Message: "truncated GPS sample"}
		}

		return sample{
			lat: f64(payload[12:]),
			lon: f64(payload[20:]),
			alt: geo.Float(float64(f32(payload[28:]))),
		}, true, nil

	case typeGoProGPS:

		// latitude, longitude, altitude, epoch_time, fix, precision, ground_speed
		if len(payload) < 40 {
			return sample{}, false, &telemetry.ParseError{Source: SOURCE, Message: "truncated GoPro GPS sample"}
		}

		return sample{
			lat: f64(payload[0:]),
			lon: f64(payload[8:]),
			alt: geo.Float(float64(f32(payload[16:]))),
		}, true, nil

	default:
		// gyro, accelerometer, magnetometer, exposure, angle-axis, position
		return sample{}, false, nil
	}
}

// applyEdits maps sample times through the track's edit list. Empty edits
// (presentation delays) shift every retained sample; non-empty edits select
// which media-time ranges are presented at all.
func applyEdits(samples []sample, edits []mp4meta.Edit) []sample {

	if len(edits) == 0 {
		return samples
	}

	offset := 0.0
	var segments []mp4meta.Edit

	for _, e := range edits {

		if e.MediaTime == -1 {
			offset = e.Duration
		} else {
			segments = append(segments, e)
		}
	}

	if len(segments) == 0 {

		for i := range samples {
			samples[i].rel += offset
		}

		return samples
	}

	sort.Slice(segments, func(i int, j int) bool {
		return segments[i].MediaTime < segments[j].MediaTime
	})

	var kept []sample
	seg_idx := 0

	for _, s := range samples {

		for seg_idx < len(segments) && s.rel > segments[seg_idx].MediaTime+segments[seg_idx].Duration {
			seg_idx++
		}

		if seg_idx >= len(segments) {
			break
		}

		if s.rel >= segments[seg_idx].MediaTime {
			s.rel += offset
			kept = append(kept, s)
		}
	}

	return kept
}

func f64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func f32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
