package exiftool

// Package exiftool reads GPS tracks out of exiftool RDF/XML output, either
// pre-generated documents or documents produced by running the exiftool
// binary over media files. With -ee each embedded telemetry sample appears
// under its own namespace (Track1:, Doc2:, ...) so samples are grouped by the
// namespace of their tags.

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sfomuseum/go-media-geotag/geo"
	"github.com/sfomuseum/go-media-geotag/telemetry"
)

const SOURCE = "exiftool_xml"

var datetime_layouts = []string{
	"2006:01:02 15:04:05.999999999Z07:00",
	"2006:01:02 15:04:05.999999999Z",
	"2006:01:02 15:04:05.999999999",
	"2006:01:02 15:04:05Z07:00",
	"2006:01:02 15:04:05",
}

type sample struct {
	datetime *time.Time
	lat      *float64
	lon      *float64
	alt      *float64
	track    *float64
}

// Parse reads an exiftool RDF/XML document from r and returns one normalized
// Track per described file, keyed by the rdf:about path.
func Parse(r io.Reader) (map[string]*telemetry.Track, error) {

	decoder := xml.NewDecoder(r)

	tracks := make(map[string]*telemetry.Track)

	for {

		tok, err := decoder.Token()

		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, &telemetry.ParseError{Source: SOURCE, Message: "invalid XML document", Err: err}
		}

		start, ok := tok.(xml.StartElement)

		if !ok || start.Name.Local != "Description" {
			continue
		}

		about := ""

		for _, attr := range start.Attr {
			if attr.Name.Local == "about" {
				about = attr.Value
			}
		}

		track, err := parseDescription(decoder, &start)

		if err != nil {
			return nil, err
		}

		if track != nil {
			tracks[about] = track
		}
	}

	if len(tracks) == 0 {
		return nil, &telemetry.ParseError{Source: SOURCE, Message: "no GPS points found"}
	}

	return tracks, nil
}

// ParseOne reads an exiftool RDF/XML document describing a single file.
func ParseOne(r io.Reader) (*telemetry.Track, error) {

	tracks, err := Parse(r)

	if err != nil {
		return nil, err
	}

	for _, track := range tracks {
		return track, nil
	}

	return nil, &telemetry.ParseError{Source: SOURCE, Message: "no GPS points found"}
}

func parseDescription(decoder *xml.Decoder, start *xml.StartElement) (*telemetry.Track, error) {

	samples := make(map[string]*sample)
	var order []string

	var device_make string
	var device_model string

	depth := 1

	for depth > 0 {

		tok, err := decoder.Token()

		if err != nil {
			return nil, &telemetry.ParseError{Source: SOURCE, Message: "invalid XML document", Err: err}
		}

		switch el := tok.(type) {

		case xml.StartElement:

			depth++

			if depth != 2 {
				continue
			}

			ns := el.Name.Space
			local := el.Name.Local

			switch local {
			case "GPSDateTime", "GPSLatitude", "GPSLongitude", "GPSAltitude", "GPSTrack", "Make", "Model":
				// pass
			default:
				decoder.Skip()
				depth--
				continue
			}

			value, err := readText(decoder)

			if err != nil {
				return nil, err
			}

			depth--

			if local == "Make" {
				device_make = value
				continue
			}

			if local == "Model" {
				device_model = value
				continue
			}

			s, ok := samples[ns]

			if !ok {
				s = &sample{}
				samples[ns] = s
				order = append(order, ns)
			}

			switch local {
			case "GPSDateTime":
				s.datetime = parseDateTime(value)
			case "GPSLatitude":
				s.lat = parseFloat(value)
			case "GPSLongitude":
				s.lon = parseFloat(value)
			case "GPSAltitude":
				s.alt = parseFloat(value)
			case "GPSTrack":
				s.track = parseFloat(value)
			}

		case xml.EndElement:
			depth--
		}
	}

	var points []geo.Point

	for _, ns := range order {

		s := samples[ns]

		if s.datetime == nil || s.lat == nil || s.lon == nil {
			continue
		}

		points = append(points, geo.Point{
			Time:  *s.datetime,
			Lat:   *s.lat,
			Lon:   *s.lon,
			Alt:   s.alt,
			Angle: s.track,
		})
	}

	if len(points) == 0 {
		return nil, nil
	}

	track, err := telemetry.Normalize(SOURCE, points)

	if err != nil {
		return nil, err
	}

	track.Make = device_make
	track.Model = device_model

	return track, nil
}

func readText(decoder *xml.Decoder) (string, error) {

	var text strings.Builder
	depth := 1

	for depth > 0 {

		tok, err := decoder.Token()

		if err != nil {
			return "", &telemetry.ParseError{Source: SOURCE, Message: "invalid XML document", Err: err}
		}

		switch el := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			text.Write(el)
		}
	}

	return strings.TrimSpace(text.String()), nil
}

func parseDateTime(value string) *time.Time {

	for _, layout := range datetime_layouts {

		t, err := time.Parse(layout, value)

		if err == nil {
			t = t.UTC()
			return &t
		}
	}

	return nil
}

func parseFloat(value string) *float64 {

	f, err := strconv.ParseFloat(value, 64)

	if err != nil {
		return nil
	}

	return &f
}
