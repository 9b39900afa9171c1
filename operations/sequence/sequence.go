package sequence

// Package sequence partitions time-ordered captures into upload sequences
// and flags near-identical consecutive captures. Both stages require the
// complete capture set and run single-threaded, after the parallel per-file
// geotagging stage has finished.

import (
	"sort"

	"github.com/google/uuid"
	"github.com/sfomuseum/go-media-geotag/geo"
	"github.com/sfomuseum/go-media-geotag/operations/geotag"
)

// MaxLength is the hard cap on sequence membership. A running sequence is
// split at this length even when no time or distance cutoff was crossed.
const MaxLength = 500

type BuildOptions struct {
	// CutoffTime is the gap in seconds between consecutive captures that
	// forces a new sequence.
	CutoffTime float64
	// CutoffDistance is the gap in meters between consecutive captures that
	// forces a new sequence.
	CutoffDistance float64
}

func DefaultBuildOptions() *BuildOptions {

	return &BuildOptions{
		CutoffTime:     60.0,
		CutoffDistance: 600.0,
	}
}

// Build assigns a sequence ID to every capture without an error. Captures
// are grouped by their originating directory, ordered by corrected
// timestamp within each group, and split whenever the time gap exceeds
// CutoffTime, the distance gap exceeds CutoffDistance or the running
// sequence reaches MaxLength. No captures are dropped.
func Build(captures []*geotag.Capture, opts *BuildOptions) {

	if opts == nil {
		opts = DefaultBuildOptions()
	}

	groups := make(map[string][]*geotag.Capture)
	var order []string

	for _, c := range captures {

		if c.Err != nil {
			continue
		}

		dir := c.Dir()

		if _, ok := groups[dir]; !ok {
			order = append(order, dir)
		}

		groups[dir] = append(groups[dir], c)
	}

	for _, dir := range order {

		group := groups[dir]

		sort.SliceStable(group, func(i int, j int) bool {
			return group[i].CorrectedTime.Before(group[j].CorrectedTime)
		})

		buildGroup(group, opts)
	}
}

func buildGroup(group []*geotag.Capture, opts *BuildOptions) {

	seq_id := ""
	count := 0

	for i, c := range group {

		split := seq_id == ""

		if !split {

			prev := group[i-1]

			dt := c.CorrectedTime.Sub(prev.CorrectedTime).Seconds()
			dist := geo.Distance(geo.Point{Lat: prev.Lat, Lon: prev.Lon}, geo.Point{Lat: c.Lat, Lon: c.Lon})

			if dt > opts.CutoffTime || dist > opts.CutoffDistance {
				split = true
			}
		}

		if count >= MaxLength {
			split = true
		}

		if split {
			seq_id = uuid.New().String()
			count = 0
		}

		c.SequenceID = seq_id
		count++
	}
}
