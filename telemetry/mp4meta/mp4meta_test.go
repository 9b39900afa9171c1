package mp4meta

import (
	"testing"

	mp4 "github.com/abema/go-mp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSampleTable(t *testing.T) {

	raw := &rawTrack{
		track: &Track{
			Timescale: 1000,
		},
		stts: &mp4.Stts{
			Entries: []mp4.SttsEntry{
				{SampleCount: 4, SampleDelta: 500},
			},
		},
		stsz: &mp4.Stsz{
			SampleSize:  0,
			SampleCount: 4,
			EntrySize:   []uint32{10, 20, 30, 40},
		},
		stsc: &mp4.Stsc{
			Entries: []mp4.StscEntry{
				{FirstChunk: 1, SamplesPerChunk: 2},
			},
		},
		chunkOffsets: []uint64{1000, 2000},
		movieTS:      1000,
	}

	require.NoError(t, raw.resolve())

	samples := raw.track.Samples
	require.Len(t, samples, 4)

	// two samples per chunk, contiguous within each chunk
	assert.Equal(t, uint64(1000), samples[0].Offset)
	assert.Equal(t, uint64(1010), samples[1].Offset)
	assert.Equal(t, uint64(2000), samples[2].Offset)
	assert.Equal(t, uint64(2030), samples[3].Offset)

	assert.InDelta(t, 0.0, samples[0].Time, 1e-9)
	assert.InDelta(t, 0.5, samples[1].Time, 1e-9)
	assert.InDelta(t, 1.5, samples[3].Time, 1e-9)
	assert.InDelta(t, 0.5, samples[3].Duration, 1e-9)
}

func TestResolveEdits(t *testing.T) {

	raw := &rawTrack{
		track: &Track{
			Timescale: 1000,
		},
		pendingEdits: []rawEdit{
			{mediaTime: -1, duration: 600},
			{mediaTime: 2000, duration: 1200},
		},
		movieTS: 600,
	}

	require.NoError(t, raw.resolve())

	edits := raw.track.Edits
	require.Len(t, edits, 2)

	// empty edits keep their -1 marker; durations use the movie timescale
	assert.InDelta(t, -1.0, edits[0].MediaTime, 1e-9)
	assert.InDelta(t, 1.0, edits[0].Duration, 1e-9)

	assert.InDelta(t, 2.0, edits[1].MediaTime, 1e-9)
	assert.InDelta(t, 2.0, edits[1].Duration, 1e-9)
}

func TestSamplesInChunk(t *testing.T) {

	stsc := &mp4.Stsc{
		Entries: []mp4.StscEntry{
			{FirstChunk: 1, SamplesPerChunk: 5},
			{FirstChunk: 3, SamplesPerChunk: 2},
		},
	}

	assert.Equal(t, uint32(5), samplesInChunk(stsc, 1))
	assert.Equal(t, uint32(5), samplesInChunk(stsc, 2))
	assert.Equal(t, uint32(2), samplesInChunk(stsc, 3))
	assert.Equal(t, uint32(2), samplesInChunk(stsc, 9))
}

func TestHasFormat(t *testing.T) {

	tr := &Track{
		Formats: []string{"camm", "mp4a"},
	}

	assert.True(t, tr.HasFormat("camm"))
	assert.False(t, tr.HasFormat("gpmd"))
}

func TestTrimNul(t *testing.T) {

	assert.Equal(t, []byte("GoPro"), trimNul([]byte("\x00 GoPro \x00\x00")))
	assert.Empty(t, trimNul([]byte("\x00\x00")))
}
