package exiftool

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const test_doc = `<?xml version='1.0' encoding='UTF-8'?>
<rdf:RDF xmlns:rdf='http://www.w3.org/1999/02/22-rdf-syntax-ns#'>
 <rdf:Description rdf:about='videos/camera.mp4'
  xmlns:IFD0='http://ns.exiftool.org/EXIF/IFD0/1.0/'
  xmlns:Track1='http://ns.exiftool.org/QuickTime/Track1/1.0/'
  xmlns:Doc2='http://ns.exiftool.org/QuickTime/Doc2/1.0/'>
  <IFD0:Make>GoPro</IFD0:Make>
  <IFD0:Model>HERO11 Black</IFD0:Model>
  <Track1:GPSDateTime>2024:01:01 12:00:00.000Z</Track1:GPSDateTime>
  <Track1:GPSLatitude>1.0</Track1:GPSLatitude>
  <Track1:GPSLongitude>1.0</Track1:GPSLongitude>
  <Track1:GPSAltitude>10.0</Track1:GPSAltitude>
  <Track1:GPSTrack>90.0</Track1:GPSTrack>
  <Doc2:GPSDateTime>2024:01:01 12:00:01.000Z</Doc2:GPSDateTime>
  <Doc2:GPSLatitude>2.0</Doc2:GPSLatitude>
  <Doc2:GPSLongitude>2.0</Doc2:GPSLongitude>
 </rdf:Description>
</rdf:RDF>`

func TestParse(t *testing.T) {

	tracks, err := Parse(strings.NewReader(test_doc))
	require.NoError(t, err)

	require.Len(t, tracks, 1)

	track, ok := tracks["videos/camera.mp4"]
	require.True(t, ok)

	require.Len(t, track.Points, 2)

	assert.Equal(t, "GoPro", track.Make)
	assert.Equal(t, "HERO11 Black", track.Model)

	p0 := track.Points[0]

	expected := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, p0.Time.Equal(expected))

	assert.InDelta(t, 1.0, p0.Lat, 1e-9)
	require.NotNil(t, p0.Alt)
	assert.InDelta(t, 10.0, *p0.Alt, 1e-9)
	require.NotNil(t, p0.Angle)
	assert.InDelta(t, 90.0, *p0.Angle, 1e-9)

	// the second sample carries no altitude or track angle
	p1 := track.Points[1]
	assert.InDelta(t, 2.0, p1.Lat, 1e-9)
	assert.Nil(t, p1.Alt)
	assert.Nil(t, p1.Angle)
}

func TestParseNoGPS(t *testing.T) {

	doc := `<?xml version='1.0'?>
<rdf:RDF xmlns:rdf='http://www.w3.org/1999/02/22-rdf-syntax-ns#'>
 <rdf:Description rdf:about='photo.jpg'
  xmlns:IFD0='http://ns.exiftool.org/EXIF/IFD0/1.0/'>
  <IFD0:Make>Nikon</IFD0:Make>
 </rdf:Description>
</rdf:RDF>`

	_, err := Parse(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestParseIncompleteSamples(t *testing.T) {

	// a sample missing its longitude is dropped; the complete one survives
	doc := `<?xml version='1.0'?>
<rdf:RDF xmlns:rdf='http://www.w3.org/1999/02/22-rdf-syntax-ns#'>
 <rdf:Description rdf:about='clip.mp4'
  xmlns:Track1='http://ns.exiftool.org/QuickTime/Track1/1.0/'
  xmlns:Doc2='http://ns.exiftool.org/QuickTime/Doc2/1.0/'>
  <Track1:GPSDateTime>2024:01:01 12:00:00Z</Track1:GPSDateTime>
  <Track1:GPSLatitude>1.0</Track1:GPSLatitude>
  <Doc2:GPSDateTime>2024:01:01 12:00:01Z</Doc2:GPSDateTime>
  <Doc2:GPSLatitude>2.0</Doc2:GPSLatitude>
  <Doc2:GPSLongitude>2.0</Doc2:GPSLongitude>
 </rdf:Description>
</rdf:RDF>`

	tracks, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	track := tracks["clip.mp4"]
	require.NotNil(t, track)
	require.Len(t, track.Points, 1)
	assert.InDelta(t, 2.0, track.Points[0].Lat, 1e-9)
}

func TestParseOne(t *testing.T) {

	track, err := ParseOne(strings.NewReader(test_doc))
	require.NoError(t, err)
	assert.Len(t, track.Points, 2)
}

func TestParseDateTime(t *testing.T) {

	for _, value := range []string{
		"2024:01:01 12:00:00",
		"2024:01:01 12:00:00Z",
		"2024:01:01 12:00:00.123Z",
		"2024:01:01 12:00:00+00:00",
	} {
		require.NotNil(t, parseDateTime(value), value)
	}

	assert.Nil(t, parseDateTime("not a datetime"))
}

func TestNewRunnerEnvOverride(t *testing.T) {

	t.Setenv(PathEnvVar, "/opt/exiftool/exiftool")

	r, err := NewRunner(nil)
	require.NoError(t, err)
	assert.Equal(t, "/opt/exiftool/exiftool", r.path)
}
