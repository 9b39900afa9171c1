package source

// Package source implements the ordered-fallback protocol for locating the
// telemetry that geotags a media file: an ordered list of Spec candidates is
// tried in turn and the first one yielding a usable track wins.

import (
	"fmt"
	"path"
	"strings"
)

// Kind enumerates the telemetry sources a Spec can name.
type Kind string

const (
	// Video tries each embedded telemetry format in turn (CAMM, then
	// GoPro GPMF, then BlackVue).
	Video Kind = "video"
	// Camm reads CAMM telemetry embedded in the media file.
	Camm Kind = "camm"
	// Gopro reads GoPro GPMF telemetry embedded in the media file.
	Gopro Kind = "gopro"
	// Blackvue reads BlackVue NMEA telemetry embedded in the media file.
	Blackvue Kind = "blackvue"
	// Gpx reads a companion GPX file.
	Gpx Kind = "gpx"
	// Nmea reads a companion NMEA log file.
	Nmea Kind = "nmea"
	// ExiftoolXml reads a companion exiftool RDF/XML document.
	ExiftoolXml Kind = "exiftool_xml"
	// ExiftoolRuntime runs the exiftool binary over the media file.
	ExiftoolRuntime Kind = "exiftool_runtime"
)

// ParseKind returns the Kind named by str.
func ParseKind(str string) (Kind, error) {

	k := Kind(strings.ToLower(strings.TrimSpace(str)))

	switch k {
	case Video, Camm, Gopro, Blackvue, Gpx, Nmea, ExiftoolXml, ExiftoolRuntime:
		return k, nil
	default:
		return "", fmt.Errorf("Invalid source kind '%s'", str)
	}
}

// Spec names one candidate telemetry source. Pattern locates the companion
// file carrying the telemetry, relative to the media file; when empty the
// kind's default pattern applies.
type Spec struct {
	Kind    Kind   `json:"source"`
	Pattern string `json:"pattern,omitempty"`
}

// DefaultPattern returns the companion-file pattern a kind falls back to.
// Embedded sources read the media file itself.
func DefaultPattern(k Kind) string {

	switch k {
	case Gpx:
		return "%g.gpx"
	case Nmea:
		return "%g.nmea"
	case ExiftoolXml:
		return "%g.xml"
	default:
		return "%f"
	}
}

// ResolvePattern expands the tokens of pattern against media_key: %f is the
// full filename, %g the filename without its extension and %e the extension
// including its leading dot. Relative results are resolved against the media
// file's directory.
func ResolvePattern(pattern string, media_key string) string {

	fname := path.Base(media_key)
	ext := path.Ext(fname)
	stem := strings.TrimSuffix(fname, ext)

	resolved := pattern
	resolved = strings.ReplaceAll(resolved, "%f", fname)
	resolved = strings.ReplaceAll(resolved, "%g", stem)
	resolved = strings.ReplaceAll(resolved, "%e", ext)

	if path.IsAbs(resolved) {
		return resolved
	}

	dir := path.Dir(media_key)

	if dir == "." {
		return resolved
	}

	return path.Join(dir, resolved)
}
