package gpmf

// Package gpmf extracts GPS tracks from the GPMF telemetry streams that
// GoPro cameras embed in their MP4 containers. See the GPMF spec at
// https://github.com/gopro/gpmf-parser
//
// A GPS GPMF sample nests as DEVC > STRM > (GPS5|GPS9) with per-stream SCAL
// scale divisors. GPS5 carries lat/lon/alt/2D speed/3D speed and relies on
// the stream's GPSU clock; GPS9 samples are self-timestamped as days since
// 2000 plus seconds since midnight. Unknown FourCCs are skipped, not fatal.

import (
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/sfomuseum/go-media-geotag/geo"
	"github.com/sfomuseum/go-media-geotag/telemetry"
	"github.com/sfomuseum/go-media-geotag/telemetry/mp4meta"
)

const SOURCE = "gpmf"

// Samples with no GPS lock, or with a dilution of precision above this
// (GPSP is DOP x100), are dropped.
const maxDOP100 = 500

var epoch2000 = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

type point struct {
	rel   float64 // seconds relative to track start
	lat   float64
	lon   float64
	alt   float64
	epoch *time.Time // absolute GPS clock, when the stream declares one
	fix   int
	dop   int
}

// Extract parses the gpmd telemetry track of the container addressed by rs
// and returns a normalized Track.
func Extract(rs io.ReadSeeker) (*telemetry.Track, error) {

	movie, err := mp4meta.Parse(rs)

	if err != nil {
		return nil, &telemetry.ParseError{Source: SOURCE, Message: "invalid container", Err: err}
	}

	var points []point

	for _, tr := range movie.Tracks {

		if !tr.HasFormat("gpmd") {
			continue
		}

		for _, sample := range tr.Samples {

			data := make([]byte, sample.Size)

			if _, err := rs.Seek(int64(sample.Offset), io.SeekStart); err != nil {
				return nil, &telemetry.ParseError{Source: SOURCE, Message: "failed to seek to sample", Err: err}
			}

			if _, err := io.ReadFull(rs, data); err != nil {
				return nil, &telemetry.ParseError{Source: SOURCE, Message: "failed to read sample", Err: err}
			}

			sample_points, err := pointsFromSample(data)

			if err != nil {
				return nil, err
			}

			if len(sample_points) > 0 {
				spreadBurst(sample_points, sample.Time, sample.Duration)
				points = append(points, sample_points...)
			}
		}

		if len(points) > 0 {
			break
		}
	}

	if len(points) == 0 {
		return nil, &telemetry.ParseError{Source: SOURCE, Message: "no GPS points found"}
	}

	geo_points := toAbsolute(points, movie.CreationTime)

	track, err := telemetry.Normalize(SOURCE, geo_points)

	if err != nil {
		return nil, err
	}

	track.Make = "GoPro"
	track.Model = movie.Model

	return track, nil
}

// spreadBurst assigns relative times to a burst of points, spacing them
// evenly across the owning MP4 sample's duration, anchored at the sample's
// presentation time.
func spreadBurst(points []point, start float64, duration float64) {

	avg := duration / float64(len(points))

	for idx := range points {
		points[idx].rel = start + avg*float64(idx)
	}
}

// toAbsolute anchors relative sample times to the GPS clock of the first
// point that declared one, falling back to the container creation time.
func toAbsolute(points []point, creation time.Time) []geo.Point {

	anchor := creation

	for _, p := range points {

		if p.epoch != nil {
			anchor = p.epoch.Add(-time.Duration(p.rel * float64(time.Second)))
			break
		}
	}

	geo_points := make([]geo.Point, 0, len(points))

	for _, p := range points {

		geo_points = append(geo_points, geo.Point{
			Time: anchor.Add(time.Duration(p.rel * float64(time.Second))),
			Lat:  p.lat,
			Lon:  p.lon,
			Alt:  geo.Float(p.alt),
		})
	}

	return geo_points
}

// pointsFromSample parses one gpmd sample payload: every DEVC device in it,
// preferring a GPS9 stream over a GPS5 stream wherever a device carries both.
func pointsFromSample(data []byte) ([]point, error) {

	boxes, err := parseKLV(data)

	if err != nil {
		return nil, &telemetry.ParseError{Source: SOURCE, Message: "malformed KLV structure", Err: err}
	}

	var points []point

	for _, device := range boxes {

		if device.key != "DEVC" {
			continue
		}

		var device_points []point

		for _, klv := range device.children {

			if klv.key != "STRM" {
				continue
			}

			stream_points := gps9FromStream(klv.children)

			if len(stream_points) > 0 {
				device_points = stream_points
				break
			}

			if len(device_points) == 0 {
				device_points = gps5FromStream(klv.children)
			}
		}

		points = append(points, device_points...)
	}

	return points, nil
}

func indexStream(stream []klv) map[string]*klv {

	indexed := make(map[string]*klv)

	for i := range stream {
		if _, ok := indexed[stream[i].key]; !ok {
			indexed[stream[i].key] = &stream[i]
		}
	}

	return indexed
}

// gps5FromStream decodes a GPS5 stream: five scaled int32 values per sample
// (lat, lon, alt, 2D speed, 3D speed), clocked by the stream's GPSU time.
func gps5FromStream(stream []klv) []point {

	indexed := indexStream(stream)

	gps5, ok := indexed["GPS5"]

	if !ok {
		return nil
	}

	scales := scaleValues(indexed["SCAL"])

	if scales == nil {
		return nil
	}

	fix := -1

	if gpsf, ok := indexed["GPSF"]; ok {

		values := decodeScalars(gpsf)

		if len(values) > 0 {
			fix = int(values[0])
		}
	}

	dop := -1

	if gpsp, ok := indexed["GPSP"]; ok {

		values := decodeScalars(gpsp)

		if len(values) > 0 {
			dop = int(values[0])
		}
	}

	var epoch *time.Time

	if gpsu, ok := indexed["GPSU"]; ok {
		epoch = parseGPSU(gpsu.data)
	}

	if fix == 0 {
		return nil
	}

	if dop > maxDOP100 {
		return nil
	}

	var points []point

	for _, raw := range samplesOf(gps5) {

		values := decodeTyped(gps5.typ, raw)

		if len(values) < 5 {
			continue
		}

		points = append(points, point{
			lat:   scale(values[0], scales, 0),
			lon:   scale(values[1], scales, 1),
			alt:   scale(values[2], scales, 2),
			epoch: epoch,
			fix:   fix,
			dop:   dop,
		})
	}

	return points
}

// gps9FromStream decodes a GPS9 stream: complex samples whose field layout
// is declared by the stream's TYPE entry. Fields are lat, lon, alt, 2D
// speed, 3D speed, days since 2000, seconds since midnight, DOP, fix.
func gps9FromStream(stream []klv) []point {

	indexed := indexStream(stream)

	gps9, ok := indexed["GPS9"]

	if !ok {
		return nil
	}

	scales := scaleValues(indexed["SCAL"])

	if scales == nil {
		return nil
	}

	type_klv, ok := indexed["TYPE"]

	if !ok {
		return nil
	}

	field_types := type_klv.data

	if len(field_types) < 9 {
		return nil
	}

	var points []point

	for _, raw := range samplesOf(gps9) {

		values, ok := decodeComplex(field_types[:9], raw)

		if !ok {
			continue
		}

		lat := scale(values[0], scales, 0)
		lon := scale(values[1], scales, 1)
		alt := scale(values[2], scales, 2)
		days := scale(values[5], scales, 5)
		secs := scale(values[6], scales, 6)
		dop := scale(values[7], scales, 7)
		fix := int(scale(values[8], scales, 8))

		if fix == 0 {
			continue
		}

		if int(dop*100) > maxDOP100 {
			continue
		}

		epoch := epoch2000.Add(time.Duration(days) * 24 * time.Hour)
		epoch = epoch.Add(time.Duration(secs * float64(time.Second)))

		points = append(points, point{
			lat:   lat,
			lon:   lon,
			alt:   alt,
			epoch: &epoch,
			fix:   fix,
			dop:   int(dop * 100),
		})
	}

	return points
}

// scaleValues returns the SCAL divisors, or nil if any is zero.
func scaleValues(scal *klv) []float64 {

	if scal == nil {
		return nil
	}

	values := decodeScalars(scal)

	if len(values) == 0 {
		return nil
	}

	for _, v := range values {

		if v == 0 {
			return nil
		}
	}

	return values
}

func scale(v float64, scales []float64, idx int) float64 {

	if idx < len(scales) {
		return v / scales[idx]
	}

	return v / scales[len(scales)-1]
}

// parseGPSU decodes the 16-byte GPSU clock: yymmddhhmmss.sss, years 20xx.
func parseGPSU(data []byte) *time.Time {

	if len(data) < 16 {
		return nil
	}

	t, err := time.ParseInLocation("060102150405.000", string(data[:16]), time.UTC)

	if err != nil {
		return nil
	}

	return &t
}

// samplesOf splits a KLV payload into its per-sample byte slices.
func samplesOf(k *klv) [][]byte {

	if k.size <= 0 {
		return nil
	}

	var samples [][]byte

	for i := 0; i+k.size <= len(k.data); i += k.size {
		samples = append(samples, k.data[i:i+k.size])
	}

	return samples
}

// decodeScalars decodes every value in a KLV as float64, for entries like
// SCAL, GPSF and GPSP that hold simple numeric arrays.
func decodeScalars(k *klv) []float64 {

	var values []float64

	for _, raw := range samplesOf(k) {
		values = append(values, decodeTyped(k.typ, raw)...)
	}

	return values
}

// decodeTyped decodes a homogeneous sample of the given GPMF type char into
// float64 values.
func decodeTyped(typ byte, raw []byte) []float64 {

	width := typeWidth(typ)

	if width == 0 {
		return nil
	}

	var values []float64

	for i := 0; i+width <= len(raw); i += width {

		v, ok := decodeOne(typ, raw[i:i+width])

		if !ok {
			return nil
		}

		values = append(values, v)
	}

	return values
}

// decodeComplex decodes one sample whose fields are described by a GPS9-style
// TYPE string.
func decodeComplex(field_types []byte, raw []byte) ([]float64, bool) {

	values := make([]float64, 0, len(field_types))
	offset := 0

	for _, t := range field_types {

		width := typeWidth(t)

		if width == 0 || offset+width > len(raw) {
			return nil, false
		}

		v, ok := decodeOne(t, raw[offset:offset+width])

		if !ok {
			return nil, false
		}

		values = append(values, v)
		offset += width
	}

	return values, true
}

func typeWidth(typ byte) int {

	switch typ {
	case 'b', 'B':
		return 1
	case 's', 'S':
		return 2
	case 'l', 'L', 'f', 'q':
		return 4
	case 'd', 'j', 'J', 'Q':
		return 8
	default:
		return 0
	}
}

func decodeOne(typ byte, raw []byte) (float64, bool) {

	switch typ {
	case 'b':
		return float64(int8(raw[0])), true
	case 'B':
		return float64(raw[0]), true
	case 's':
		return float64(int16(binary.BigEndian.Uint16(raw))), true
	case 'S':
		return float64(binary.BigEndian.Uint16(raw)), true
	case 'l':
		return float64(int32(binary.BigEndian.Uint32(raw))), true
	case 'L':
		return float64(binary.BigEndian.Uint32(raw)), true
	case 'f':
		return float64(math.Float32frombits(binary.BigEndian.Uint32(raw))), true
	case 'd':
		return math.Float64frombits(binary.BigEndian.Uint64(raw)), true
	case 'j':
		return float64(int64(binary.BigEndian.Uint64(raw))), true
	case 'J':
		return float64(binary.BigEndian.Uint64(raw)), true
	default:
		return 0, false
	}
}
