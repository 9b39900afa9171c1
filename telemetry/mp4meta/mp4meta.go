package mp4meta

// Package mp4meta walks MP4/MOV container structure and resolves the sample
// tables of each track: where every sample lives in the file, when it is
// presented relative to track start, and what format its description declares.
// The gpmf, camm and blackvue parsers are built on top of it.

import (
	"fmt"
	"io"
	"time"

	mp4 "github.com/abema/go-mp4"
)

// mp4 epoch is 1904-01-01T00:00:00Z
var mp4Epoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

// Sample is one media sample: a byte range in the container plus its
// presentation time relative to track start.
type Sample struct {
	Offset uint64
	Size   uint32
	// Seconds since track start.
	Time float64
	// Seconds covered by this sample.
	Duration float64
}

// Edit is one elst entry converted to seconds. MediaTime is -1 for an empty
// edit (a presentation delay).
type Edit struct {
	MediaTime float64
	Duration  float64
}

// Track is the resolved sample table of one container track.
type Track struct {
	Handler      string
	Formats      []string
	Timescale    uint32
	CreationTime time.Time
	Samples      []Sample
	Edits        []Edit
}

// HasFormat reports whether any sample description in the track declares the
// given format fourcc.
func (t *Track) HasFormat(format string) bool {

	for _, f := range t.Formats {
		if f == format {
			return true
		}
	}

	return false
}

// Movie is the container-level metadata needed for geotagging: per-track
// sample tables, the movie creation time and any vendor make/model atoms.
type Movie struct {
	Tracks       []*Track
	CreationTime time.Time
	Make         string
	Model        string
}

// raw sample table boxes collected for one trak, resolved into samples once
// the trak is complete
type rawTrack struct {
	track        *Track
	stts         *mp4.Stts
	stsz         *mp4.Stsz
	stsc         *mp4.Stsc
	chunkOffsets []uint64
	pendingEdits []rawEdit
	movieTS      uint32
}

// Parse walks the moov box of the container addressed by rs and returns the
// resolved movie metadata. Media data is not read; callers use the returned
// sample offsets against the same reader.
func Parse(rs io.ReadSeeker) (*Movie, error) {

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("Failed to seek to start of container, %w", err)
	}

	movie := &Movie{}

	var cur *rawTrack
	var raws []*rawTrack
	var movieTimescale uint32

	// vendor atoms under moov/udta whose payload is read after the walk
	vendorAtoms := make(map[string]mp4.BoxInfo)

	inUdta := false
	inStsd := false

	_, err := mp4.ReadBoxStructure(rs, func(h *mp4.ReadHandle) (interface{}, error) {

		switch h.BoxInfo.Type {

		case mp4.BoxTypeMoov(), mp4.BoxTypeMdia(), mp4.BoxTypeMinf(), mp4.BoxTypeStbl(), mp4.BoxTypeEdts():
			return h.Expand()

		case mp4.BoxTypeTrak():

			cur = &rawTrack{
				track: &Track{},
			}

			raws = append(raws, cur)
			return h.Expand()

		case mp4.BoxTypeUdta():
			inUdta = true
			defer func() { inUdta = false }()
			return h.Expand()

		case mp4.BoxTypeMvhd():

			box, _, err := h.ReadPayload()

			if err != nil {
				return nil, err
			}

			mvhd := box.(*mp4.Mvhd)
			movieTimescale = mvhd.Timescale

			if mvhd.Version == 0 {
				movie.CreationTime = mp4Epoch.Add(time.Duration(mvhd.CreationTimeV0) * time.Second)
			} else {
				movie.CreationTime = mp4Epoch.Add(time.Duration(mvhd.CreationTimeV1) * time.Second)
			}

		case mp4.BoxTypeMdhd():

			if cur == nil {
				return nil, nil
			}

			box, _, err := h.ReadPayload()

			if err != nil {
				return nil, err
			}

			mdhd := box.(*mp4.Mdhd)
			cur.track.Timescale = mdhd.Timescale

			if mdhd.Version == 0 {
				cur.track.CreationTime = mp4Epoch.Add(time.Duration(mdhd.CreationTimeV0) * time.Second)
			} else {
				cur.track.CreationTime = mp4Epoch.Add(time.Duration(mdhd.CreationTimeV1) * time.Second)
			}

		case mp4.BoxTypeHdlr():

			if cur == nil {
				return nil, nil
			}

			box, _, err := h.ReadPayload()

			if err != nil {
				return nil, err
			}

			hdlr := box.(*mp4.Hdlr)
			cur.track.Handler = string(hdlr.HandlerType[:])

		case mp4.BoxTypeElst():

			if cur == nil {
				return nil, nil
			}

			box, _, err := h.ReadPayload()

			if err != nil {
				return nil, err
			}

			elst := box.(*mp4.Elst)

			for _, entry := range elst.Entries {

				var mediaTime int64
				var duration uint64

				if elst.Version == 0 {
					mediaTime = int64(entry.MediaTimeV0)
					duration = uint64(entry.SegmentDurationV0)
				} else {
					mediaTime = entry.MediaTimeV1
					duration = entry.SegmentDurationV1
				}

				cur.pendingEdits = append(cur.pendingEdits, rawEdit{
					mediaTime: mediaTime,
					duration:  duration,
				})
			}

		case mp4.BoxTypeStsd():
			inStsd = true
			defer func() { inStsd = false }()
			return h.Expand()

		case mp4.BoxTypeStts():

			if cur == nil {
				return nil, nil
			}

			box, _, err := h.ReadPayload()

			if err != nil {
				return nil, err
			}

			cur.stts = box.(*mp4.Stts)

		case mp4.BoxTypeStsz():

			if cur == nil {
				return nil, nil
			}

			box, _, err := h.ReadPayload()

			if err != nil {
				return nil, err
			}

			cur.stsz = box.(*mp4.Stsz)

		case mp4.BoxTypeStsc():

			if cur == nil {
				return nil, nil
			}

			box, _, err := h.ReadPayload()

			if err != nil {
				return nil, err
			}

			cur.stsc = box.(*mp4.Stsc)

		case mp4.BoxTypeStco():

			if cur == nil {
				return nil, nil
			}

			box, _, err := h.ReadPayload()

			if err != nil {
				return nil, err
			}

			stco := box.(*mp4.Stco)

			for _, off := range stco.ChunkOffset {
				cur.chunkOffsets = append(cur.chunkOffsets, uint64(off))
			}

		case mp4.BoxTypeCo64():

			if cur == nil {
				return nil, nil
			}

			box, _, err := h.ReadPayload()

			if err != nil {
				return nil, err
			}

			co64 := box.(*mp4.Co64)
			cur.chunkOffsets = append(cur.chunkOffsets, co64.ChunkOffset...)

		default:

			if inStsd && cur != nil {
				cur.track.Formats = append(cur.track.Formats, typeString(h.BoxInfo.Type))
				return nil, nil
			}

			if inUdta {
				vendorAtoms[typeString(h.BoxInfo.Type)] = h.BoxInfo
				return nil, nil
			}
		}

		return nil, nil
	})

	if err != nil {
		return nil, fmt.Errorf("Failed to walk container boxes, %w", err)
	}

	for _, raw := range raws {

		raw.movieTS = movieTimescale

		err := raw.resolve()

		if err != nil {
			return nil, err
		}

		movie.Tracks = append(movie.Tracks, raw.track)
	}

	movie.Make, movie.Model = readVendorAtoms(rs, vendorAtoms)

	return movie, nil
}

type rawEdit struct {
	mediaTime int64
	duration  uint64
}

// resolve converts the collected sample table boxes into a flat sample list.
func (raw *rawTrack) resolve() error {

	tr := raw.track

	if raw.stts == nil || raw.stsz == nil || raw.stsc == nil || len(raw.chunkOffsets) == 0 {
		// Not a media track we can address (or an empty one); leave it
		// with no samples rather than failing the whole container.
		raw.resolveEdits()
		return nil
	}

	if tr.Timescale == 0 {
		return fmt.Errorf("Invalid track, timescale is zero")
	}

	sizes := sampleSizes(raw.stsz)

	deltas := make([]uint32, 0, len(sizes))

	for _, entry := range raw.stts.Entries {

		for i := uint32(0); i < entry.SampleCount; i++ {
			deltas = append(deltas, entry.SampleDelta)
		}
	}

	if len(deltas) < len(sizes) {
		return fmt.Errorf("Invalid sample table, %d sample deltas for %d samples", len(deltas), len(sizes))
	}

	timescale := float64(tr.Timescale)

	var acc uint64
	sampleIdx := 0

	for chunkIdx, chunkOffset := range raw.chunkOffsets {

		perChunk := samplesInChunk(raw.stsc, uint32(chunkIdx+1))

		offset := chunkOffset

		for i := uint32(0); i < perChunk && sampleIdx < len(sizes); i++ {

			delta := deltas[sampleIdx]

			tr.Samples = append(tr.Samples, Sample{
				Offset:   offset,
				Size:     sizes[sampleIdx],
				Time:     float64(acc) / timescale,
				Duration: float64(delta) / timescale,
			})

			offset += uint64(sizes[sampleIdx])
			acc += uint64(delta)
			sampleIdx++
		}
	}

	raw.resolveEdits()

	return nil
}

func (raw *rawTrack) resolveEdits() {

	if raw.track.Timescale == 0 || raw.movieTS == 0 {
		return
	}

	for _, e := range raw.pendingEdits {

		mediaTime := -1.0

		if e.mediaTime != -1 {
			mediaTime = float64(e.mediaTime) / float64(raw.track.Timescale)
		}

		raw.track.Edits = append(raw.track.Edits, Edit{
			MediaTime: mediaTime,
			Duration:  float64(e.duration) / float64(raw.movieTS),
		})
	}
}

func sampleSizes(stsz *mp4.Stsz) []uint32 {

	if stsz.SampleSize != 0 {

		sizes := make([]uint32, stsz.SampleCount)

		for i := range sizes {
			sizes[i] = stsz.SampleSize
		}

		return sizes
	}

	return stsz.EntrySize
}

// samplesInChunk resolves the stsc run-length table for a 1-based chunk
// number.
func samplesInChunk(stsc *mp4.Stsc, chunk uint32) uint32 {

	count := uint32(0)

	for _, entry := range stsc.Entries {

		if entry.FirstChunk > chunk {
			break
		}

		count = entry.SamplesPerChunk
	}

	return count
}

// vendor make/model atom types seen in the wild: Insta360 uses ©mak/©mod,
// RICOH THETA uses @mak/@mod or manu/modl
var makeAtoms = []string{"\xa9mak", "@mak", "manu"}
var modelAtoms = []string{"\xa9mod", "@mod", "modl"}

func readVendorAtoms(rs io.ReadSeeker, atoms map[string]mp4.BoxInfo) (string, string) {

	var make_str string
	var model_str string

	for _, t := range makeAtoms {

		if bi, ok := atoms[t]; ok {
			make_str = readVendorAtom(rs, bi, t == "\xa9mak")
			break
		}
	}

	for _, t := range modelAtoms {

		if bi, ok := atoms[t]; ok {
			model_str = readVendorAtom(rs, bi, t == "\xa9mod")
			break
		}
	}

	return make_str, model_str
}

// readVendorAtom reads the payload of a vendor atom. The ©-prefixed variants
// wrap the value in a {size uint16, pad uint16, data} record; the others are
// a bare string.
func readVendorAtom(rs io.ReadSeeker, bi mp4.BoxInfo, wrapped bool) string {

	payloadSize := bi.Size - bi.HeaderSize

	if payloadSize == 0 || payloadSize > 1024 {
		return ""
	}

	if _, err := rs.Seek(int64(bi.Offset+bi.HeaderSize), io.SeekStart); err != nil {
		return ""
	}

	buf := make([]byte, payloadSize)

	if _, err := io.ReadFull(rs, buf); err != nil {
		return ""
	}

	if wrapped {

		if len(buf) < 4 {
			return ""
		}

		size := int(buf[0])<<8 | int(buf[1])

		if 4+size > len(buf) {
			size = len(buf) - 4
		}

		buf = buf[4 : 4+size]
	}

	return string(trimNul(buf))
}

// typeString returns the raw fourcc bytes of a box type. BoxType.String
// escapes non-printable bytes, which would break matching vendor atoms like
// ©mak.
func typeString(t mp4.BoxType) string {
	return string(t[:])
}

func trimNul(b []byte) []byte {

	for len(b) > 0 && (b[len(b)-1] == 0x00 || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}

	for len(b) > 0 && (b[0] == 0x00 || b[0] == ' ') {
		b = b[1:]
	}

	return b
}
