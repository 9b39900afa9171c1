package geotag

// This package defines common methods and operations for geotagging media files
// and grouping them into ordered capture sequences ahead of upload to an imagery
// platform. Common operations include: extracting GPS telemetry from images and
// video containers, aligning capture times against tracks, partitioning captures
// into sequences and assembling description documents.
