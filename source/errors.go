package source

import (
	"fmt"
	"strings"
)

// GeotaggingError is terminal for one media file: every candidate source was
// tried and none yielded a track.
type GeotaggingError struct {
	Key      string
	Attempts []error
}

func (e *GeotaggingError) Error() string {

	if len(e.Attempts) == 0 {
		return fmt.Sprintf("No usable telemetry source for %s", e.Key)
	}

	reasons := make([]string, len(e.Attempts))

	for i, err := range e.Attempts {
		reasons[i] = err.Error()
	}

	return fmt.Sprintf("No usable telemetry source for %s: %s", e.Key, strings.Join(reasons, "; "))
}

// FatalError aborts the whole run: the only configured source depends on an
// external tool that is not available, so no file could ever succeed.
type FatalError struct {
	Message string
	Err     error
}

func (e *FatalError) Error() string {

	if e.Err != nil {
		return fmt.Sprintf("%s, %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
