package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/sfomuseum/go-media-geotag/telemetry"
	"github.com/sfomuseum/go-media-geotag/telemetry/blackvue"
	"github.com/sfomuseum/go-media-geotag/telemetry/camm"
	"github.com/sfomuseum/go-media-geotag/telemetry/exiftool"
	"github.com/sfomuseum/go-media-geotag/telemetry/gpmf"
	"github.com/sfomuseum/go-media-geotag/telemetry/gpx"
	"github.com/sfomuseum/go-media-geotag/telemetry/nmea"
	"github.com/whosonfirst/go-ioutil"
	"gocloud.dev/blob"
)

// Selector tries an ordered list of telemetry sources against media files in
// a bucket and returns the first usable track. Selectors hold no per-file
// state and are safe for concurrent use.
type Selector struct {
	specs  []Spec
	runner *exiftool.Runner
	// local filesystem root the bucket is mounted at, when there is one;
	// required by the exiftool_runtime source which hands OS paths to the
	// exiftool binary
	local_root string
}

type SelectorOptions struct {
	Specs []Spec
	// LocalRoot is the filesystem directory bucket keys resolve under, for
	// sources that invoke external tools on OS paths.
	LocalRoot string
	// Exiftool configures the exiftool_runtime source.
	Exiftool *exiftool.RunnerOptions
}

// NewSelector validates an ordered source configuration. A missing exiftool
// binary is fatal only when exiftool_runtime is the sole configured source;
// otherwise that source is skipped at extraction time.
func NewSelector(opts *SelectorOptions) (*Selector, error) {

	if len(opts.Specs) == 0 {
		return nil, fmt.Errorf("No telemetry sources configured")
	}

	s := &Selector{
		specs:      opts.Specs,
		local_root: opts.LocalRoot,
	}

	needs_runner := false

	for _, spec := range opts.Specs {
		if spec.Kind == ExiftoolRuntime {
			needs_runner = true
		}
	}

	if needs_runner {

		runner, err := exiftool.NewRunner(opts.Exiftool)

		if err != nil {

			if len(opts.Specs) == 1 {
				return nil, &FatalError{Message: "The only configured telemetry source requires exiftool", Err: err}
			}

			slog.Warn("Exiftool is not available, skipping exiftool_runtime source", "error", err)

		} else {
			s.runner = runner
		}
	}

	return s, nil
}

// Extract tries each configured source in order against the media file at
// media_key and returns the first track with at least one point. When every
// source fails the error is a GeotaggingError carrying each attempt's reason.
func (s *Selector) Extract(ctx context.Context, bucket *blob.Bucket, media_key string) (*telemetry.Track, error) {

	var attempts []error

	for _, spec := range s.specs {

		pattern := spec.Pattern

		if pattern == "" {
			pattern = DefaultPattern(spec.Kind)
		}

		key := ResolvePattern(pattern, media_key)

		track, err := s.extractFrom(ctx, bucket, spec.Kind, key)

		if err != nil {
			slog.Debug("Telemetry source failed", "source", spec.Kind, "key", key, "error", err)
			attempts = append(attempts, fmt.Errorf("%s: %w", spec.Kind, err))
			continue
		}

		slog.Debug("Telemetry source succeeded", "source", spec.Kind, "key", key, "points", len(track.Points))
		return track, nil
	}

	return nil, &GeotaggingError{Key: media_key, Attempts: attempts}
}

func (s *Selector) extractFrom(ctx context.Context, bucket *blob.Bucket, kind Kind, key string) (*telemetry.Track, error) {

	if kind == ExiftoolRuntime {
		return s.extractWithExiftool(ctx, key)
	}

	exists, err := bucket.Exists(ctx, key)

	if err != nil {
		return nil, fmt.Errorf("Failed to test whether %s exists, %w", key, err)
	}

	if !exists {
		return nil, &telemetry.ParseError{Source: string(kind), Message: fmt.Sprintf("%s not found", key)}
	}

	r, err := bucket.NewReader(ctx, key, nil)

	if err != nil {
		return nil, fmt.Errorf("Failed to open %s, %w", key, err)
	}

	defer r.Close()

	switch kind {

	case Gpx:
		return gpx.Parse(r)

	case Nmea:
		return nmea.Parse(r)

	case ExiftoolXml:
		return exiftool.ParseOne(r)

	default:

		rsc, err := ioutil.NewReadSeekCloser(r)

		if err != nil {
			return nil, fmt.Errorf("Failed to create ReadSeekCloser for %s, %w", key, err)
		}

		defer rsc.Close()

		return extractEmbedded(kind, rsc)
	}
}

// extractEmbedded dispatches the container-embedded formats. The generic
// video kind tries each format in turn.
func extractEmbedded(kind Kind, rs io.ReadSeeker) (*telemetry.Track, error) {

	switch kind {

	case Camm:
		return camm.Extract(rs)

	case Gopro:
		return gpmf.Extract(rs)

	case Blackvue:
		return blackvue.Extract(rs)

	case Video:

		var attempts []error

		for _, k := range []Kind{Camm, Gopro, Blackvue} {

			track, err := extractEmbedded(k, rs)

			if err == nil {
				return track, nil
			}

			attempts = append(attempts, err)
		}

		return nil, &telemetry.ParseError{Source: string(Video), Message: fmt.Sprintf("no embedded telemetry found, %v", errors.Join(attempts...))}

	default:
		return nil, fmt.Errorf("Invalid source kind '%s'", kind)
	}
}

func (s *Selector) extractWithExiftool(ctx context.Context, key string) (*telemetry.Track, error) {

	if s.runner == nil {
		return nil, &telemetry.ParseError{Source: string(ExiftoolRuntime), Message: "exiftool is not available"}
	}

	if s.local_root == "" {
		return nil, &telemetry.ParseError{Source: string(ExiftoolRuntime), Message: "no local filesystem root configured"}
	}

	path := filepath.Join(s.local_root, filepath.FromSlash(key))

	tracks, err := s.runner.Extract(ctx, path)

	if err != nil {
		return nil, err
	}

	for _, track := range tracks {
		return track, nil
	}

	return nil, &telemetry.ParseError{Source: string(ExiftoolRuntime), Message: "no GPS points found"}
}
