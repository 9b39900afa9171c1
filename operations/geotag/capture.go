package geotag

import (
	"path"
	"time"
)

// Capture is the per-file record the pipeline stages annotate in place: the
// geotagging stage resolves its position, the sequence stages assign its
// sequence and duplicate flag, and the describe stage freezes it into an
// output document. A capture with a non-nil Err skips every later stage and
// becomes an error record.
type Capture struct {
	// Key addresses the media file in its bucket.
	Key string
	// RawTime is the capture timestamp as recorded by the camera.
	RawTime time.Time
	// CorrectedTime is RawTime shifted by the configured offsets. Sequence
	// ordering and track alignment both use the corrected time.
	CorrectedTime time.Time
	Lat           float64
	Lon           float64
	Alt           *float64
	Angle         *float64
	// Orientation is the EXIF orientation value, when known.
	Orientation int
	Make        string
	Model       string
	// Fingerprint is the SHA-1 digest of the file body.
	Fingerprint string
	SequenceID  string
	IsDuplicate bool
	Err         error
}

// Dir returns the bucket directory the capture was discovered in, used as
// the initial grouping hint for sequence construction.
func (c *Capture) Dir() string {
	return path.Dir(c.Key)
}
