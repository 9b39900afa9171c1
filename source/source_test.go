package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKind(t *testing.T) {

	k, err := ParseKind("GPX")
	assert.NoError(t, err)
	assert.Equal(t, Gpx, k)

	_, err = ParseKind("carrier pigeon")
	assert.Error(t, err)
}

func TestResolvePattern(t *testing.T) {

	tests := []struct {
		pattern  string
		key      string
		expected string
	}{
		{"%f", "videos/clip.mp4", "videos/clip.mp4"},
		{"%g.gpx", "videos/clip.mp4", "videos/clip.gpx"},
		{"%g%e.xml", "videos/clip.mp4", "videos/clip.mp4.xml"},
		{"%f", "clip.mp4", "clip.mp4"},
		{"tracks/%g.gpx", "videos/clip.mp4", "videos/tracks/clip.gpx"},
		{"/tracks/%g.gpx", "videos/clip.mp4", "/tracks/clip.gpx"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, ResolvePattern(tc.pattern, tc.key), tc.pattern)
	}
}

func TestDefaultPattern(t *testing.T) {

	assert.Equal(t, "%g.gpx", DefaultPattern(Gpx))
	assert.Equal(t, "%g.nmea", DefaultPattern(Nmea))
	assert.Equal(t, "%g.xml", DefaultPattern(ExiftoolXml))
	assert.Equal(t, "%f", DefaultPattern(Video))
	assert.Equal(t, "%f", DefaultPattern(Camm))
}
