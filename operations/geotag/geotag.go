package geotag

// Package geotag runs the per-file half of the pipeline: discover media in a
// bucket, extract capture times and telemetry, align timestamps against a
// track and resolve every capture's position and heading. Files are
// processed concurrently; each capture's failure lands in its Err field and
// never aborts its siblings.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sfomuseum/go-media-geotag/common"
	"github.com/sfomuseum/go-media-geotag/geo"
	"github.com/sfomuseum/go-media-geotag/source"
	"github.com/sfomuseum/go-media-geotag/telemetry"
	"gocloud.dev/blob"
)

// DefaultTolerance bounds how far outside a track's time range a capture may
// be extrapolated.
const DefaultTolerance = 10 * time.Second

func init() {
	// not part of Go's builtin table
	mime.AddExtensionType(".mp4", "video/mp4")
	mime.AddExtensionType(".mov", "video/quicktime")
	mime.AddExtensionType(".avi", "video/x-msvideo")
}

type Options struct {
	// Track aligns image captures. When nil, images fall back to the GPS
	// tags of their own EXIF block.
	Track *telemetry.Track
	// VideoSources locates telemetry for video files. When nil, a selector
	// trying each embedded format is used.
	VideoSources *source.Selector
	// OffsetTime is added to every raw capture timestamp, in seconds.
	OffsetTime float64
	// UseTrackStartTime additionally shifts the whole capture set so the
	// earliest capture aligns with the track's first point.
	UseTrackStartTime bool
	// Tolerance bounds extrapolation outside the track's time range.
	// Negative disables extrapolation entirely; zero means DefaultTolerance.
	Tolerance time.Duration
	// OffsetAngle is added to every derived heading, in degrees.
	OffsetAngle float64
	// InterpolateDirections replaces recorded headings with headings derived
	// from track geometry, instead of only filling missing ones.
	InterpolateDirections bool
	// MaxWorkers caps concurrent per-file processing. Zero or negative means
	// no cap beyond one goroutine per file.
	MaxWorkers int
}

// Geotag discovers every media file in bucket and returns one annotated
// Capture per file, resolved and direction-derived, ready for sequence
// construction. The returned set is sorted by key.
func Geotag(ctx context.Context, bucket *blob.Bucket, opts *Options) ([]*Capture, error) {

	if opts == nil {
		opts = &Options{}
	}

	video_sources := opts.VideoSources

	if video_sources == nil {

		s, err := source.NewSelector(&source.SelectorOptions{
			Specs: []source.Spec{
				{Kind: source.Video},
			},
		})

		if err != nil {
			return nil, fmt.Errorf("Failed to create default video source selector, %w", err)
		}

		video_sources = s
	}

	captures, err := gatherCaptures(ctx, bucket, video_sources, opts)

	if err != nil {
		return nil, err
	}

	resolveCaptures(captures, opts)

	sort.Slice(captures, func(i int, j int) bool {
		return captures[i].Key < captures[j].Key
	})

	return captures, nil
}

// gatherCaptures is the parallel stage: crawl the bucket and produce one
// Capture per media file, fanning each file out to its own goroutine.
func gatherCaptures(ctx context.Context, bucket *blob.Bucket, video_sources *source.Selector, opts *Options) ([]*Capture, error) {

	key_ch := make(chan string)
	done_ch := make(chan bool)
	err_ch := make(chan error)

	go func() {

		err := crawlMedia(ctx, bucket, key_ch)

		if err != nil {
			err_ch <- err
		}

		done_ch <- true
	}()

	var captures []*Capture

	mu := new(sync.Mutex)
	wg := new(sync.WaitGroup)

	var throttle chan bool

	if opts.MaxWorkers > 0 {
		throttle = make(chan bool, opts.MaxWorkers)
	}

	gathering := true

	for {
		select {

		case <-done_ch:
			gathering = false

		case err := <-err_ch:
			return nil, err

		case key := <-key_ch:

			wg.Add(1)

			if throttle != nil {
				throttle <- true
			}

			go func(key string) {

				defer wg.Done()

				if throttle != nil {

					defer func() {
						<-throttle
					}()
				}

				c := gatherCapture(ctx, bucket, video_sources, key)

				mu.Lock()
				captures = append(captures, c)
				mu.Unlock()

			}(key)
		}

		if !gathering {
			break
		}
	}

	wg.Wait()

	return captures, nil
}

// gatherCapture processes a single file. Panics are recovered into the
// capture's Err field so one corrupt container never takes down the batch.
func gatherCapture(ctx context.Context, bucket *blob.Bucket, video_sources *source.Selector, key string) (c *Capture) {

	c = &Capture{
		Key: key,
	}

	defer func() {

		if r := recover(); r != nil {
			slog.Error("Recovered from panic processing media", "key", key, "panic", r)
			c.Err = fmt.Errorf("Panic processing %s, %v", key, r)
		}
	}()

	fp, err := common.FingerprintFile(ctx, bucket, key)

	if err != nil {
		c.Err = fmt.Errorf("Failed to fingerprint %s, %w", key, err)
		return c
	}

	c.Fingerprint = fp

	if isVideo(key) {

		track, err := video_sources.Extract(ctx, bucket, key)

		if err != nil {
			c.Err = err
			return c
		}

		first := track.Points[0]

		c.RawTime = first.Time
		c.Lat = first.Lat
		c.Lon = first.Lon
		c.Alt = first.Alt
		c.Angle = first.Angle

		if c.Angle == nil && len(track.Points) > 1 {
			c.Angle = geo.Float(geo.Bearing(track.Points[0], track.Points[1]))
		}

		c.Make = track.Make
		c.Model = track.Model

		return c
	}

	info, err := readImageEXIF(ctx, bucket, key)

	if err != nil {
		c.Err = err
		return c
	}

	c.RawTime = info.taken
	c.Orientation = info.orientation
	c.Make = info.camera_make
	c.Model = info.model
	c.Alt = info.alt
	c.Angle = info.angle

	if info.has_gps {
		c.Lat = info.lat
		c.Lon = info.lon
	} else {
		c.Err = errNoPosition
	}

	return c
}

// errNoPosition is provisional: it marks an image without EXIF GPS, and is
// cleared when an external track resolves the position instead.
var errNoPosition = fmt.Errorf("No position recorded in EXIF block")

// resolveCaptures is the sequential stage: apply time offsets, interpolate
// against the configured track, reject Null Island fixes and derive
// headings per directory group.
func resolveCaptures(captures []*Capture, opts *Options) {

	offset := time.Duration(opts.OffsetTime * float64(time.Second))

	shift := time.Duration(0)

	if opts.UseTrackStartTime && opts.Track != nil {

		earliest := earliestImageTime(captures)

		if earliest != nil {
			shift = opts.Track.StartTime().Sub(*earliest)
		}
	}

	var ip *geo.Interpolator

	if opts.Track != nil {

		tolerance := opts.Tolerance

		if tolerance == 0 {
			tolerance = DefaultTolerance
		}

		if tolerance < 0 {
			tolerance = 0
		}

		track_ip, err := geo.NewInterpolator(opts.Track.Points, tolerance)

		if err != nil {
			// degenerate track: every image capture depending on it fails
			for _, c := range captures {

				if c.Err == nil && !isVideo(c.Key) {
					c.Err = err
				}
			}

		} else {
			ip = track_ip
		}
	}

	for _, c := range captures {

		if isVideo(c.Key) {
			c.CorrectedTime = c.RawTime.Add(offset)
			continue
		}

		c.CorrectedTime = c.RawTime.Add(shift).Add(offset)

		if ip == nil {
			continue
		}

		p, err := ip.Interpolate(c.CorrectedTime)

		if err != nil {
			c.Err = err
			continue
		}

		c.Lat = p.Lat
		c.Lon = p.Lon

		if p.Alt != nil {
			c.Alt = p.Alt
		}

		if p.Angle != nil {
			c.Angle = p.Angle
		}

		if c.Err == errNoPosition {
			c.Err = nil
		}

		if opts.Track.Make != "" && c.Make == "" {
			c.Make = opts.Track.Make
			c.Model = opts.Track.Model
		}
	}

	for _, c := range captures {

		if c.Err == errNoPosition {
			c.Err = &source.GeotaggingError{Key: c.Key, Attempts: []error{errNoPosition}}
			continue
		}

		if c.Err == nil && c.Lat == 0.0 && c.Lon == 0.0 {
			c.Err = fmt.Errorf("Position resolved to null island")
		}
	}

	deriveDirections(captures, opts)
}

func earliestImageTime(captures []*Capture) *time.Time {

	var earliest *time.Time

	for _, c := range captures {

		if c.Err != nil && c.Err != errNoPosition {
			continue
		}

		if isVideo(c.Key) {
			continue
		}

		if earliest == nil || c.RawTime.Before(*earliest) {
			t := c.RawTime
			earliest = &t
		}
	}

	return earliest
}

// deriveDirections fills (or, when interpolation is requested, replaces)
// capture headings from track geometry, one directory group at a time.
func deriveDirections(captures []*Capture, opts *Options) {

	groups := make(map[string][]*Capture)

	for _, c := range captures {

		if c.Err != nil {
			continue
		}

		dir := c.Dir()
		groups[dir] = append(groups[dir], c)
	}

	for _, group := range groups {

		sort.SliceStable(group, func(i int, j int) bool {
			return group[i].CorrectedTime.Before(group[j].CorrectedTime)
		})

		points := make([]geo.Point, len(group))

		for i, c := range group {

			points[i] = geo.Point{
				Time:  c.CorrectedTime,
				Lat:   c.Lat,
				Lon:   c.Lon,
				Angle: c.Angle,
			}
		}

		geo.DeriveDirections(points, &geo.DeriveDirectionsOptions{
			Overwrite:   opts.InterpolateDirections,
			OffsetAngle: opts.OffsetAngle,
		})

		for i, c := range group {
			c.Angle = points[i].Angle
		}
	}
}

// crawlMedia walks every object in the bucket and dispatches the keys that
// look like media files.
func crawlMedia(ctx context.Context, bucket *blob.Bucket, key_ch chan string) error {

	var list func(context.Context, *blob.Bucket, string) error

	list = func(ctx context.Context, b *blob.Bucket, prefix string) error {

		iter := b.List(&blob.ListOptions{
			Delimiter: "/",
			Prefix:    prefix,
		})

		for {

			select {
			case <-ctx.Done():
				return nil
			default:
				// pass
			}

			obj, err := iter.Next(ctx)

			if err == io.EOF {
				break
			}

			if err != nil {
				return err
			}

			if obj.IsDir {

				err := list(ctx, b, obj.Key)

				if err != nil {
					return err
				}

				continue
			}

			if !isImage(obj.Key) && !isVideo(obj.Key) {
				continue
			}

			key_ch <- obj.Key
		}

		return nil
	}

	return list(ctx, bucket, "")
}

func isImage(key string) bool {

	t := mime.TypeByExtension(path.Ext(key))
	return strings.HasPrefix(t, "image/")
}

func isVideo(key string) bool {

	t := mime.TypeByExtension(path.Ext(key))
	return strings.HasPrefix(t, "video/")
}
