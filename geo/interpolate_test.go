package geo

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func track(t *testing.T, points ...Point) *Interpolator {

	t.Helper()

	ip, err := NewInterpolator(points, 0)
	require.NoError(t, err)

	return ip
}

func TestInterpolateAtSampleIsIdentity(t *testing.T) {

	t0 := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)

	points := []Point{
		{Time: t0, Lat: 1, Lon: 2, Alt: Float(10), Angle: Float(90)},
		{Time: t0.Add(5 * time.Second), Lat: 3, Lon: 4, Alt: Float(20), Angle: Float(180)},
		{Time: t0.Add(9 * time.Second), Lat: 5, Lon: 6, Alt: Float(30), Angle: Float(270)},
	}

	ip := track(t, points...)

	for _, p := range points {

		got, err := ip.Interpolate(p.Time)
		require.NoError(t, err)

		assert.Equal(t, p, got)
	}
}

func TestInterpolateMidpoint(t *testing.T) {

	t0 := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)

	ip := track(t,
		Point{Time: t0, Lat: 1, Lon: 1, Alt: Float(1)},
		Point{Time: t0.Add(2 * time.Second), Lat: 2, Lon: 2, Alt: Float(2)},
	)

	got, err := ip.Interpolate(t0.Add(1 * time.Second))
	require.NoError(t, err)

	assert.InDelta(t, 1.5, got.Lat, 0.000001)
	assert.InDelta(t, 1.5, got.Lon, 0.000001)

	require.NotNil(t, got.Alt)
	assert.InDelta(t, 1.5, *got.Alt, 0.000001)

	// Heading derived from track geometry, roughly north-east
	require.NotNil(t, got.Angle)
	assert.InDelta(t, 44.978, *got.Angle, 0.01)
}

func TestInterpolateHeadingAcrossNorth(t *testing.T) {

	t0 := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)

	ip := track(t,
		Point{Time: t0, Lat: 0, Lon: 0, Angle: Float(350)},
		Point{Time: t0.Add(2 * time.Second), Lat: 0, Lon: 0, Angle: Float(10)},
	)

	got, err := ip.Interpolate(t0.Add(1 * time.Second))
	require.NoError(t, err)

	require.NotNil(t, got.Angle)
	assert.InDelta(t, 0.0, *got.Angle, 0.000001)
}

func TestInterpolateOutsideTrack(t *testing.T) {

	t0 := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)

	points := []Point{
		{Time: t0, Lat: 1, Lon: 1},
		{Time: t0.Add(10 * time.Second), Lat: 2, Lon: 2},
	}

	t.Run("before start", func(t *testing.T) {

		ip := track(t, points...)

		_, err := ip.Interpolate(t0.Add(-1 * time.Second))
		require.Error(t, err)

		var outside *OutsideTrackError
		assert.True(t, errors.As(err, &outside))
	})

	t.Run("after end", func(t *testing.T) {

		ip := track(t, points...)

		_, err := ip.Interpolate(t0.Add(11 * time.Second))
		require.Error(t, err)

		var outside *OutsideTrackError
		assert.True(t, errors.As(err, &outside))
	})

	t.Run("within tolerance", func(t *testing.T) {

		ip, err := NewInterpolator(points, 5*time.Second)
		require.NoError(t, err)

		got, err := ip.Interpolate(t0.Add(12 * time.Second))
		require.NoError(t, err)

		// Extrapolated along the last segment
		assert.InDelta(t, 2.2, got.Lat, 0.000001)
		assert.InDelta(t, 2.2, got.Lon, 0.000001)
	})
}

func TestInterpolateSinglePoint(t *testing.T) {

	t0 := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)

	ip, err := NewInterpolator([]Point{{Time: t0, Lat: 3, Lon: 4}}, time.Minute)
	require.NoError(t, err)

	got, err := ip.Interpolate(t0.Add(30 * time.Second))
	require.NoError(t, err)

	assert.Equal(t, 3.0, got.Lat)
	assert.Equal(t, 4.0, got.Lon)
}

func TestNewInterpolatorRejectsUnsorted(t *testing.T) {

	t0 := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)

	_, err := NewInterpolator([]Point{
		{Time: t0.Add(time.Second)},
		{Time: t0},
	}, 0)

	var alignment *AlignmentError
	require.True(t, errors.As(err, &alignment))
}

func TestNewInterpolatorRejectsEmpty(t *testing.T) {

	_, err := NewInterpolator(nil, 0)
	require.Error(t, err)
}

func TestDeriveDirections(t *testing.T) {

	t0 := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)

	t.Run("fills missing headings", func(t *testing.T) {

		points := []Point{
			{Time: t0, Lat: 0, Lon: 0},
			{Time: t0.Add(time.Second), Lat: 1, Lon: 0},
			{Time: t0.Add(2 * time.Second), Lat: 1, Lon: 1},
		}

		DeriveDirections(points, nil)

		require.NotNil(t, points[0].Angle)
		assert.InDelta(t, 0.0, *points[0].Angle, 0.1)

		require.NotNil(t, points[1].Angle)
		assert.InDelta(t, 90.0, *points[1].Angle, 0.1)

		// Final point reuses the previous bearing
		require.NotNil(t, points[2].Angle)
		assert.InDelta(t, *points[1].Angle, *points[2].Angle, 0.000001)
	})

	t.Run("keeps existing headings by default", func(t *testing.T) {

		points := []Point{
			{Time: t0, Lat: 0, Lon: 0, Angle: Float(123)},
			{Time: t0.Add(time.Second), Lat: 1, Lon: 0},
		}

		DeriveDirections(points, nil)

		assert.InDelta(t, 123.0, *points[0].Angle, 0.000001)
	})

	t.Run("overwrites on request", func(t *testing.T) {

		points := []Point{
			{Time: t0, Lat: 0, Lon: 0, Angle: Float(123)},
			{Time: t0.Add(time.Second), Lat: 1, Lon: 0, Angle: Float(200)},
		}

		DeriveDirections(points, &DeriveDirectionsOptions{Overwrite: true})

		assert.InDelta(t, 0.0, *points[0].Angle, 0.1)
		assert.InDelta(t, 0.0, *points[1].Angle, 0.1)
	})

	t.Run("applies offset angle", func(t *testing.T) {

		points := []Point{
			{Time: t0, Lat: 0, Lon: 0, Angle: Float(350)},
			{Time: t0.Add(time.Second), Lat: 1, Lon: 0, Angle: Float(10)},
		}

		DeriveDirections(points, &DeriveDirectionsOptions{OffsetAngle: 20})

		assert.InDelta(t, 10.0, *points[0].Angle, 0.000001)
		assert.InDelta(t, 30.0, *points[1].Angle, 0.000001)
	})
}
