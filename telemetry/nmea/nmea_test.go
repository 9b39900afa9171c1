package nmea

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checksummed(sentence string) string {

	var sum byte

	for i := 1; i < len(sentence); i++ {
		sum ^= sentence[i]
	}

	return fmt.Sprintf("%s*%02X", sentence, sum)
}

func TestParse(t *testing.T) {

	log := strings.Join([]string{
		checksummed("$GPRMC,120000.00,A,3730.0000,N,12230.0000,W,000.0,000.0,010124,,,A"),
		checksummed("$GPGGA,120000.00,3730.0000,N,12230.0000,W,1,08,1.0,10.0,M,0.0,M,,"),
		checksummed("$GPGGA,120001.00,3730.0600,N,12230.0600,W,1,08,1.0,11.0,M,0.0,M,,"),
	}, "\r\n")

	track, err := Parse(strings.NewReader(log))
	require.NoError(t, err)

	require.Len(t, track.Points, 2)

	assert.InDelta(t, 37.5, track.Points[0].Lat, 1e-9)
	assert.InDelta(t, -122.5, track.Points[0].Lon, 1e-9)

	require.NotNil(t, track.Points[0].Alt)
	assert.InDelta(t, 10.0, *track.Points[0].Alt, 1e-9)

	expected := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, track.Points[0].Time.Equal(expected))

	assert.True(t, track.Points[1].Time.After(track.Points[0].Time))
}

func TestParseNoDate(t *testing.T) {

	// GGA sentences without a preceding RMC date cannot be clocked
	log := checksummed("$GPGGA,120000.00,3730.0000,N,12230.0000,W,1,08,1.0,10.0,M,0.0,M,,")

	_, err := Parse(strings.NewReader(log))
	assert.Error(t, err)
}

func TestParseGarbage(t *testing.T) {

	log := "this is not NMEA\nneither is this\n"

	_, err := Parse(strings.NewReader(log))
	assert.Error(t, err)
}
