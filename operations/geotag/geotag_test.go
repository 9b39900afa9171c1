package geotag

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sfomuseum/go-media-geotag/geo"
	"github.com/sfomuseum/go-media-geotag/source"
	"github.com/sfomuseum/go-media-geotag/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
)

func testTrack(start time.Time) *telemetry.Track {

	return &telemetry.Track{
		Source: "gpx",
		Points: []geo.Point{
			{Time: start, Lat: 1.0, Lon: 1.0, Alt: geo.Float(10.0)},
			{Time: start.Add(10 * time.Second), Lat: 2.0, Lon: 2.0, Alt: geo.Float(20.0)},
		},
	}
}

func TestResolveCaptures(t *testing.T) {

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	captures := []*Capture{
		{Key: "rides/IMG_0001.jpg", RawTime: start, Err: errNoPosition},
		{Key: "rides/IMG_0002.jpg", RawTime: start.Add(5 * time.Second), Err: errNoPosition},
	}

	resolveCaptures(captures, &Options{
		Track: testTrack(start),
	})

	require.NoError(t, captures[0].Err)
	require.NoError(t, captures[1].Err)

	assert.InDelta(t, 1.0, captures[0].Lat, 1e-9)
	assert.InDelta(t, 1.5, captures[1].Lat, 1e-9)
	assert.InDelta(t, 1.5, captures[1].Lon, 1e-9)

	require.NotNil(t, captures[1].Alt)
	assert.InDelta(t, 15.0, *captures[1].Alt, 1e-9)

	// headings are filled from track geometry
	require.NotNil(t, captures[0].Angle)
}

func TestResolveCapturesOffsetTime(t *testing.T) {

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	captures := []*Capture{
		{Key: "IMG_0001.jpg", RawTime: start, Err: errNoPosition},
	}

	resolveCaptures(captures, &Options{
		Track:      testTrack(start),
		OffsetTime: 5.0,
	})

	require.NoError(t, captures[0].Err)
	assert.True(t, captures[0].CorrectedTime.Equal(start.Add(5*time.Second)))
	assert.InDelta(t, 1.5, captures[0].Lat, 1e-9)
}

func TestResolveCapturesUseTrackStartTime(t *testing.T) {

	track_start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	// camera clock two hours ahead of the GPS logger
	camera_start := track_start.Add(2 * time.Hour)

	captures := []*Capture{
		{Key: "IMG_0001.jpg", RawTime: camera_start, Err: errNoPosition},
		{Key: "IMG_0002.jpg", RawTime: camera_start.Add(5 * time.Second), Err: errNoPosition},
	}

	resolveCaptures(captures, &Options{
		Track:             testTrack(track_start),
		UseTrackStartTime: true,
	})

	require.NoError(t, captures[0].Err)
	require.NoError(t, captures[1].Err)

	assert.InDelta(t, 1.0, captures[0].Lat, 1e-9)
	assert.InDelta(t, 1.5, captures[1].Lat, 1e-9)
}

func TestResolveCapturesOutsideTrack(t *testing.T) {

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	captures := []*Capture{
		{Key: "IMG_0001.jpg", RawTime: start.Add(-time.Hour), Err: errNoPosition},
		{Key: "IMG_0002.jpg", RawTime: start.Add(5 * time.Second), Err: errNoPosition},
	}

	resolveCaptures(captures, &Options{
		Track: testTrack(start),
	})

	// the capture an hour before the track fails; its sibling still resolves
	var outside_err *geo.OutsideTrackError
	require.Error(t, captures[0].Err)
	assert.True(t, errors.As(captures[0].Err, &outside_err))

	require.NoError(t, captures[1].Err)
	assert.InDelta(t, 1.5, captures[1].Lat, 1e-9)
}

func TestResolveCapturesNullIsland(t *testing.T) {

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	captures := []*Capture{
		{Key: "IMG_0001.jpg", RawTime: start, Lat: 0.0, Lon: 0.0},
	}

	resolveCaptures(captures, &Options{})

	assert.Error(t, captures[0].Err)
}

func TestResolveCapturesNoPosition(t *testing.T) {

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	captures := []*Capture{
		{Key: "IMG_0001.jpg", RawTime: start, Err: errNoPosition},
	}

	resolveCaptures(captures, &Options{})

	var geotag_err *source.GeotaggingError
	require.Error(t, captures[0].Err)
	assert.True(t, errors.As(captures[0].Err, &geotag_err))
}

func TestGeotagIsolatesFailures(t *testing.T) {

	ctx := context.Background()
	root := t.TempDir()

	bucket, err := blob.OpenBucket(ctx, fmt.Sprintf("file://%s?metadata=skip", root))
	require.NoError(t, err)

	defer bucket.Close()

	// neither file is parseable; both must come back as error records
	require.NoError(t, bucket.WriteAll(ctx, "broken.jpg", []byte("not a jpeg"), nil))
	require.NoError(t, bucket.WriteAll(ctx, "broken.mp4", []byte("not a video"), nil))
	require.NoError(t, bucket.WriteAll(ctx, "notes.txt", []byte("not media at all"), nil))

	captures, err := Geotag(ctx, bucket, nil)
	require.NoError(t, err)

	require.Len(t, captures, 2)

	for _, c := range captures {
		assert.Error(t, c.Err, c.Key)
		assert.NotEmpty(t, c.Fingerprint, c.Key)
	}
}

func TestMediaClassification(t *testing.T) {

	assert.True(t, isImage("rides/IMG_0001.jpg"))
	assert.True(t, isImage("rides/IMG_0001.jpeg"))
	assert.True(t, isVideo("rides/clip.mp4"))
	assert.True(t, isVideo("rides/clip.mov"))
	assert.False(t, isImage("rides/track.gpx"))
	assert.False(t, isVideo("rides/notes.txt"))
}
