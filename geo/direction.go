package geo

// DeriveDirectionsOptions controls how DeriveDirections assigns headings to a
// time-ordered slice of points.
type DeriveDirectionsOptions struct {
	// Overwrite existing headings with the derived track bearing rather
	// than only filling missing ones.
	Overwrite bool
	// Added to every final heading, in degrees.
	OffsetAngle float64
}

// DeriveDirections computes the initial great-circle bearing from each point
// to its successor and assigns it to the point. The final point reuses the
// previous computed bearing, since no bearing can be derived past the last
// segment. Existing headings are kept unless opts.Overwrite is set. All final
// headings have opts.OffsetAngle applied and are normalized to [0, 360).
func DeriveDirections(points []Point, opts *DeriveDirectionsOptions) {

	if opts == nil {
		opts = &DeriveDirectionsOptions{}
	}

	var last_bearing *float64

	for i := range points {

		if opts.Overwrite {
			points[i].Angle = nil
		}

		if points[i].Angle == nil {

			if i+1 < len(points) {
				last_bearing = Float(Bearing(points[i], points[i+1]))
			}

			if last_bearing != nil {
				points[i].Angle = Float(*last_bearing)
			}
		}

		if points[i].Angle != nil {
			points[i].Angle = Float(NormalizeBearing(*points[i].Angle + opts.OffsetAngle))
		}
	}
}
