package sequence

import (
	"sort"

	"github.com/sfomuseum/go-media-geotag/geo"
	"github.com/sfomuseum/go-media-geotag/operations/geotag"
)

// AngleCheckDisabled turns the heading comparison off when passed as
// DuplicateOptions.Angle.
const AngleCheckDisabled = 360.0

type DuplicateOptions struct {
	// Distance in meters below which consecutive captures are considered
	// redundant.
	Distance float64
	// Angle in degrees below which consecutive headings are considered
	// redundant. AngleCheckDisabled skips the heading comparison entirely.
	Angle float64
}

func DefaultDuplicateOptions() *DuplicateOptions {

	return &DuplicateOptions{
		Distance: 0.1,
		Angle:    5.0,
	}
}

// MarkDuplicates flags captures that sit on top of their immediate
// predecessor within the same sequence. A capture is a duplicate when its
// distance to the predecessor is strictly below Distance and, when the angle
// check is enabled, the heading delta is strictly below Angle. Duplicates
// stay in the capture set; excluding them from upload is the consumer's
// decision.
func MarkDuplicates(captures []*geotag.Capture, opts *DuplicateOptions) {

	if opts == nil {
		opts = DefaultDuplicateOptions()
	}

	ordered := make([]*geotag.Capture, 0, len(captures))

	for _, c := range captures {

		if c.Err == nil {
			ordered = append(ordered, c)
		}
	}

	sort.SliceStable(ordered, func(i int, j int) bool {

		if ordered[i].SequenceID != ordered[j].SequenceID {
			return ordered[i].SequenceID < ordered[j].SequenceID
		}

		return ordered[i].CorrectedTime.Before(ordered[j].CorrectedTime)
	})

	var prev *geotag.Capture

	for _, c := range ordered {

		if prev == nil || c.SequenceID != prev.SequenceID {
			prev = c
			continue
		}

		if isDuplicate(prev, c, opts) {
			c.IsDuplicate = true
		}

		prev = c
	}
}

func isDuplicate(prev *geotag.Capture, c *geotag.Capture, opts *DuplicateOptions) bool {

	dist := geo.Distance(geo.Point{Lat: prev.Lat, Lon: prev.Lon}, geo.Point{Lat: c.Lat, Lon: c.Lon})

	if dist >= opts.Distance {
		return false
	}

	if opts.Angle >= AngleCheckDisabled {
		return true
	}

	if prev.Angle == nil || c.Angle == nil {
		return true
	}

	return geo.DiffBearing(*prev.Angle, *c.Angle) < opts.Angle
}
