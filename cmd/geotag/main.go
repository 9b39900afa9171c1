package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/sfomuseum/go-media-geotag/common"
	"github.com/sfomuseum/go-media-geotag/history"
	"github.com/sfomuseum/go-media-geotag/operations/geotag"
	"github.com/sfomuseum/go-media-geotag/operations/process"
	"github.com/sfomuseum/go-media-geotag/operations/sequence"
	"github.com/sfomuseum/go-media-geotag/source"
	"github.com/sfomuseum/go-media-geotag/telemetry"
	"github.com/sfomuseum/go-media-geotag/telemetry/exiftool"
	"github.com/sfomuseum/go-media-geotag/telemetry/gpx"
	"github.com/sfomuseum/go-media-geotag/telemetry/nmea"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

type multiString []string

func (m *multiString) String() string {
	return strings.Join(*m, ",")
}

func (m *multiString) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {

	var video_sources multiString

	geotag_source := flag.String("geotag-source", "gpx", "The telemetry format of -geotag-source-path. Valid options are: gpx, nmea, exiftool_xml.")
	geotag_source_path := flag.String("geotag-source-path", "", "An optional local track file image capture times are aligned against.")

	flag.Var(&video_sources, "video-geotag-source", "Zero or more telemetry sources for video files, in fallback order. Each entry is a source name or a JSON '{\"source\":..., \"pattern\":...}' object.")

	offset_time := flag.Float64("interpolation-offset-time", 0.0, "A signed number of seconds added to every capture time before alignment.")
	use_gpx_start_time := flag.Bool("interpolation-use-gpx-start-time", false, "Shift the whole capture set so the earliest capture aligns with the track's first point.")
	tolerance := flag.Duration("interpolation-tolerance", geotag.DefaultTolerance, "How far outside the track's time range a capture may be extrapolated.")

	cutoff_distance := flag.Float64("cutoff-distance", 600.0, "The distance in meters between consecutive captures that forces a new sequence.")
	cutoff_time := flag.Float64("cutoff-time", 60.0, "The gap in seconds between consecutive captures that forces a new sequence.")
	duplicate_distance := flag.Float64("duplicate-distance", 0.1, "The distance in meters below which consecutive captures are flagged as duplicates.")
	duplicate_angle := flag.Float64("duplicate-angle", 5.0, "The heading delta in degrees below which consecutive captures are flagged as duplicates. 360 disables the angle check.")

	offset_angle := flag.Float64("offset-angle", 0.0, "A number of degrees added to every derived heading.")
	interpolate_directions := flag.Bool("interpolate-directions", false, "Replace recorded headings with headings derived from track geometry.")

	local_root := flag.String("local-root", "", "An optional local directory bucket keys resolve under, required by the exiftool_runtime source.")
	writer_uri := flag.String("writer-uri", "", "An optional whosonfirst/go-writer URI the description document is published to.")
	history_uri := flag.String("history-uri", "", "An optional gocloud.dev/blob bucket URI of previously published description documents. Captures already present there are marked as duplicates.")

	flag.Parse()

	ctx := context.Background()

	var track *telemetry.Track

	if *geotag_source_path != "" {

		t, err := parseTrack(ctx, *geotag_source, *geotag_source_path)

		if err != nil {
			log.Fatalf("Failed to parse %s, %v", *geotag_source_path, err)
		}

		track = t
	}

	specs, err := parseVideoSources(video_sources)

	if err != nil {
		log.Fatal(err)
	}

	selector, err := source.NewSelector(&source.SelectorOptions{
		Specs:     specs,
		LocalRoot: *local_root,
	})

	if err != nil {
		log.Fatal(err)
	}

	var hist *history.History

	if *history_uri != "" {

		lu, err := history.NewBlobLookerUpper(ctx, *history_uri)

		if err != nil {
			log.Fatalf("Failed to open %s, %v", *history_uri, err)
		}

		hist, err = history.NewHistory(ctx, lu)

		if err != nil {
			log.Fatalf("Failed to load history from %s, %v", *history_uri, err)
		}
	}

	opts := &process.ProcessorOptions{
		Geotag: &geotag.Options{
			Track:                 track,
			VideoSources:          selector,
			OffsetTime:            *offset_time,
			UseTrackStartTime:     *use_gpx_start_time,
			Tolerance:             *tolerance,
			OffsetAngle:           *offset_angle,
			InterpolateDirections: *interpolate_directions,
		},
		Build: &sequence.BuildOptions{
			CutoffTime:     *cutoff_time,
			CutoffDistance: *cutoff_distance,
		},
		Duplicates: &sequence.DuplicateOptions{
			Distance: *duplicate_distance,
			Angle:    *duplicate_angle,
		},
		WriterURI: *writer_uri,
		History:   hist,
	}

	for _, uri := range flag.Args() {

		bucket, err := blob.OpenBucket(ctx, uri)

		if err != nil {
			log.Fatalf("Failed to open %s, %v", uri, err)
		}

		p, err := process.NewProcessor(ctx, bucket, opts)

		if err != nil {
			bucket.Close()
			log.Fatal(err)
		}

		doc, err := p.Process(ctx)

		bucket.Close()

		if err != nil {
			log.Fatal(err)
		}

		fmt.Println(string(doc))
	}
}

func parseTrack(ctx context.Context, kind string, path string) (*telemetry.Track, error) {

	abs, err := filepath.Abs(path)

	if err != nil {
		return nil, err
	}

	r, err := common.NewReader(ctx, fmt.Sprintf("fs://%s", filepath.Dir(abs)))

	if err != nil {
		return nil, err
	}

	fh, err := r.Read(ctx, filepath.Base(abs))

	if err != nil {
		return nil, err
	}

	defer fh.Close()

	k, err := source.ParseKind(kind)

	if err != nil {
		return nil, err
	}

	switch k {

	case source.Gpx:
		return gpx.Parse(fh)

	case source.Nmea:
		return nmea.Parse(fh)

	case source.ExiftoolXml:
		return exiftool.ParseOne(fh)

	case source.ExiftoolRuntime:

		runner, err := exiftool.NewRunner(nil)

		if err != nil {
			return nil, err
		}

		tracks, err := runner.Extract(ctx, path)

		if err != nil {
			return nil, err
		}

		for _, t := range tracks {
			return t, nil
		}

		return nil, fmt.Errorf("No GPS points found in %s", path)

	default:
		return nil, fmt.Errorf("Invalid -geotag-source '%s'", kind)
	}
}

func parseVideoSources(raw []string) ([]source.Spec, error) {

	if len(raw) == 0 {

		return []source.Spec{
			{Kind: source.Video},
		}, nil
	}

	specs := make([]source.Spec, 0, len(raw))

	for _, str := range raw {

		if strings.HasPrefix(strings.TrimSpace(str), "{") {

			var spec source.Spec

			err := json.Unmarshal([]byte(str), &spec)

			if err != nil {
				return nil, fmt.Errorf("Failed to parse video source '%s', %w", str, err)
			}

			k, err := source.ParseKind(string(spec.Kind))

			if err != nil {
				return nil, err
			}

			spec.Kind = k
			specs = append(specs, spec)
			continue
		}

		k, err := source.ParseKind(str)

		if err != nil {
			return nil, err
		}

		specs = append(specs, source.Spec{Kind: k})
	}

	return specs, nil
}
