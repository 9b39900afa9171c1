package blackvue

import (
	"bytes"
	"encoding/binary"
	"fmt"
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

func encodeBox(fourcc string, payload []byte) []byte {

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(len(payload)+8))
	buf.WriteString(fourcc)
	buf.Write(payload)

	return buf.Bytes()
}

func gpsAtomLines(lines ...string) []byte {
	return []byte(joinLines(lines))
}

func joinLines(lines []string) string {

	out := ""

	for _, l := range lines {
		out += l + "\r\n"
	}

	return out
}

func TestExtract(t *testing.T) {

	epoch_ms := int64(1704110400000) // 2024-01-01T12:00:00Z

	rmc := checksummed("$GPRMC,120001.00,A,3730.0000,N,12230.0000,W,000.0,000.0,010124,,,A")

	gps_data := gpsAtomLines(
		fmt.Sprintf("[%d]%s", epoch_ms, rmc),
	)

	cprt := []byte("Pittasoft Co., Ltd.;DR900S-1CH;\x00")

	free := encodeBox("free", bytes.Join([][]byte{
		encodeBox("gps ", gps_data),
		encodeBox("cprt", cprt),
	}, nil))

	container := bytes.Join([][]byte{
		encodeBox("ftyp", []byte("avc1....")),
		free,
	}, nil)

	track, err := Extract(bytes.NewReader(container))
	require.NoError(t, err)

	require.Len(t, track.Points, 1)

	assert.InDelta(t, 37.5, track.Points[0].Lat, 1e-9)
	assert.InDelta(t, -122.5, track.Points[0].Lon, 1e-9)

	// the RMC clock is one second ahead of the bracket clock, so the bracket
	// epoch is corrected forward by one second
	expected := time.Date(2024, 1, 1, 12, 0, 1, 0, time.UTC)
	assert.True(t, track.Points[0].Time.Equal(expected), "got %v", track.Points[0].Time)

	assert.Equal(t, "Blackvue", track.Make)
	assert.Equal(t, "DR900S-1CH", track.Model)
}

func TestExtractNoGPSAtom(t *testing.T) {

	container := encodeBox("ftyp", []byte("avc1...."))

	_, err := Extract(bytes.NewReader(container))
	assert.Error(t, err)
}

func TestParseGPSDataPrefersRMC(t *testing.T) {

	gga := checksummed("$GPGGA,120000.00,3730.0000,N,12230.0000,W,1,08,1.0,10.0,M,0.0,M,,")
	rmc := checksummed("$GPRMC,120000.00,A,3745.0000,N,12245.0000,W,000.0,000.0,010124,,,A")

	data := gpsAtomLines(
		"[1704110400000]"+gga,
		"[1704110401000]"+rmc,
	)

	points := parseGPSData(data)
	require.Len(t, points, 1)

	assert.InDelta(t, 37.75, points[0].Lat, 1e-9)
}

func TestParseGPSDataFallsBackToGGA(t *testing.T) {

	gga := checksummed("$GPGGA,120000.00,3730.0000,N,12230.0000,W,1,08,1.0,10.0,M,0.0,M,,")

	data := gpsAtomLines("[1704110400000]" + gga)

	points := parseGPSData(data)
	require.Len(t, points, 1)

	assert.InDelta(t, 37.5, points[0].Lat, 1e-9)
	assert.InDelta(t, -122.5, points[0].Lon, 1e-9)
}

func TestParseGPSDataSkipsInvalid(t *testing.T) {

	// void RMC fix and garbage lines are ignored
	rmc := checksummed("$GPRMC,120000.00,V,3730.0000,N,12230.0000,W,000.0,000.0,010124,,,N")

	data := gpsAtomLines(
		"[1704110400000]"+rmc,
		"not a gps line",
		"[oops]$GPRMC,,",
	)

	points := parseGPSData(data)
	assert.Empty(t, points)
}

func TestParseModel(t *testing.T) {

	assert.Equal(t, "DR900S-1CH", parseModel([]byte("Pittasoft Co., Ltd.;DR900S-1CH;")))
	assert.Equal(t, "", parseModel([]byte("no delimiter here")))
	assert.Equal(t, "", parseModel(nil))
}
