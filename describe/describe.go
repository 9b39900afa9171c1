// Package describe freezes annotated captures into the JSON documents the
// upload stage consumes: one description per successful capture and one
// error record per failed one, the whole set validated against
// ImageDescriptionSchema.
package describe

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sfomuseum/go-media-geotag/geo"
	"github.com/sfomuseum/go-media-geotag/operations/geotag"
	"github.com/sfomuseum/go-media-geotag/source"
	"github.com/sfomuseum/go-media-geotag/telemetry"
	"github.com/tidwall/sjson"
	"github.com/xeipuuv/gojsonschema"
)

// CaptureTimeLayout is the MAPCaptureTime layout up to whole seconds. The
// millisecond suffix is appended by FormatCaptureTime because time.Format
// only recognizes fractional seconds after a decimal point.
const CaptureTimeLayout = "2006_01_02_15_04_05"

// FormatCaptureTime renders t as a MAPCaptureTime string, to millisecond
// precision.
func FormatCaptureTime(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s_%03d", t.Format(CaptureTimeLayout), t.Nanosecond()/int(time.Millisecond))
}

// FromCapture builds one description document. Captures with a non-nil Err
// produce an error record instead.
func FromCapture(c *geotag.Capture) ([]byte, error) {

	if c.Err != nil {
		return ErrorRecord(c.Key, c.Err)
	}

	var body []byte
	var err error

	body, err = sjson.SetBytes(body, "MAPLatitude", c.Lat)

	if err != nil {
		return nil, fmt.Errorf("Failed to assign MAPLatitude, %w", err)
	}

	body, err = sjson.SetBytes(body, "MAPLongitude", c.Lon)

	if err != nil {
		return nil, fmt.Errorf("Failed to assign MAPLongitude, %w", err)
	}

	body, err = sjson.SetBytes(body, "MAPCaptureTime", FormatCaptureTime(c.CorrectedTime))

	if err != nil {
		return nil, fmt.Errorf("Failed to assign MAPCaptureTime, %w", err)
	}

	body, err = sjson.SetBytes(body, "filename", c.Key)

	if err != nil {
		return nil, fmt.Errorf("Failed to assign filename, %w", err)
	}

	if c.Alt != nil {

		body, err = sjson.SetBytes(body, "MAPAltitude", *c.Alt)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign MAPAltitude, %w", err)
		}
	}

	if c.Angle != nil {

		heading := geo.NormalizeBearing(*c.Angle)

		body, err = sjson.SetBytes(body, "MAPCompassHeading.TrueHeading", heading)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign TrueHeading, %w", err)
		}

		body, err = sjson.SetBytes(body, "MAPCompassHeading.MagneticHeading", heading)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign MagneticHeading, %w", err)
		}
	}

	if c.SequenceID != "" {

		body, err = sjson.SetBytes(body, "MAPSequenceUUID", c.SequenceID)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign MAPSequenceUUID, %w", err)
		}
	}

	if c.Orientation != 0 {

		body, err = sjson.SetBytes(body, "MAPOrientation", c.Orientation)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign MAPOrientation, %w", err)
		}
	}

	if c.Make != "" {

		body, err = sjson.SetBytes(body, "MAPDeviceMake", c.Make)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign MAPDeviceMake, %w", err)
		}
	}

	if c.Model != "" {

		body, err = sjson.SetBytes(body, "MAPDeviceModel", c.Model)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign MAPDeviceModel, %w", err)
		}
	}

	if c.Fingerprint != "" {

		body, err = sjson.SetBytes(body, "MAPMetaTags.fingerprint", c.Fingerprint)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign fingerprint, %w", err)
		}
	}

	if c.IsDuplicate {

		body, err = sjson.SetBytes(body, "MAPMetaTags.is_duplicate", true)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign is_duplicate, %w", err)
		}
	}

	return body, nil
}

// ErrorRecord builds the stand-in document for a failed file.
func ErrorRecord(key string, capture_err error) ([]byte, error) {

	var body []byte
	var err error

	body, err = sjson.SetBytes(body, "error.type", errorType(capture_err))

	if err != nil {
		return nil, fmt.Errorf("Failed to assign error type, %w", err)
	}

	body, err = sjson.SetBytes(body, "error.message", capture_err.Error())

	if err != nil {
		return nil, fmt.Errorf("Failed to assign error message, %w", err)
	}

	body, err = sjson.SetBytes(body, "filename", key)

	if err != nil {
		return nil, fmt.Errorf("Failed to assign filename, %w", err)
	}

	return body, nil
}

func errorType(err error) string {

	var parse_err *telemetry.ParseError
	var geotag_err *source.GeotaggingError
	var outside_err *geo.OutsideTrackError
	var align_err *geo.AlignmentError

	switch {
	case errors.As(err, &outside_err):
		return "OutsideTrackError"
	case errors.As(err, &align_err):
		return "AlignmentError"
	case errors.As(err, &geotag_err):
		return "GeotaggingError"
	case errors.As(err, &parse_err):
		return "ParseError"
	default:
		return "Error"
	}
}

// Assemble builds the output array for the whole capture set, one entry per
// capture, and validates it against ImageDescriptionSchema.
func Assemble(captures []*geotag.Capture) ([]byte, error) {

	entries := make([]string, 0, len(captures))

	for _, c := range captures {

		body, err := FromCapture(c)

		if err != nil {
			return nil, fmt.Errorf("Failed to describe %s, %w", c.Key, err)
		}

		entries = append(entries, string(body))
	}

	doc := []byte(fmt.Sprintf("[%s]", strings.Join(entries, ",")))

	err := Validate(doc)

	if err != nil {
		return nil, err
	}

	return doc, nil
}

// Validate checks every entry of a description array against
// ImageDescriptionSchema.
func Validate(doc []byte) error {

	schema_loader := gojsonschema.NewStringLoader(fmt.Sprintf(`{"type": "array", "items": %s}`, ImageDescriptionSchema))
	doc_loader := gojsonschema.NewBytesLoader(doc)

	result, err := gojsonschema.Validate(schema_loader, doc_loader)

	if err != nil {
		return fmt.Errorf("Failed to validate descriptions, %w", err)
	}

	if !result.Valid() {

		problems := make([]string, 0, len(result.Errors()))

		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("Invalid descriptions: %s", strings.Join(problems, "; "))
	}

	return nil
}
