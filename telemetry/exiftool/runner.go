package exiftool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sfomuseum/go-media-geotag/telemetry"
)

const RUNTIME_SOURCE = "exiftool_runtime"

// PathEnvVar overrides binary discovery on $PATH.
const PathEnvVar = "MAPILLARY_TOOLS_EXIFTOOL_PATH"

// ErrNotFound signals that no exiftool binary could be located. Whether that
// is fatal depends on whether any other telemetry source is configured.
var ErrNotFound = errors.New("exiftool binary not found")

// DefaultTimeout bounds a single exiftool invocation when RunnerOptions does
// not say otherwise. A hung binary must never stall a worker indefinitely.
const DefaultTimeout = 5 * time.Minute

var base_args = []string{
	"-q",
	"-n",
	"-X",
	"-ee",
	"-api",
	"LargeFileSupport=1",
	"-@",
	"-",
}

// Runner invokes the exiftool binary over a batch of media files and parses
// its RDF/XML output.
type Runner struct {
	path    string
	timeout time.Duration
}

type RunnerOptions struct {
	// Path is the exiftool binary to invoke. Empty consults PathEnvVar and
	// then $PATH.
	Path string
	// Timeout bounds a single invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewRunner locates the exiftool binary and returns a Runner for it, or
// ErrNotFound.
func NewRunner(opts *RunnerOptions) (*Runner, error) {

	if opts == nil {
		opts = &RunnerOptions{}
	}

	path := opts.Path

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}

	if path == "" {

		resolved, err := exec.LookPath("exiftool")

		if err != nil {
			return nil, ErrNotFound
		}

		path = resolved
	}

	timeout := opts.Timeout

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	r := &Runner{
		path:    path,
		timeout: timeout,
	}

	return r, nil
}

// Extract runs exiftool over paths and returns one normalized Track per file
// that yielded GPS samples, keyed the way exiftool reported each file.
func (r *Runner) Extract(ctx context.Context, paths ...string) (map[string]*telemetry.Track, error) {

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.path, base_args...)
	cmd.Stdin = strings.NewReader(strings.Join(paths, "\n"))

	var stdout bytes.Buffer
	var stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running exiftool", "path", r.path, "count", len(paths))

	err := cmd.Run()

	if err != nil {
		return nil, fmt.Errorf("Failed to run %s, %w (%s)", r.path, err, strings.TrimSpace(stderr.String()))
	}

	tracks, err := Parse(&stdout)

	if err != nil {
		return nil, &telemetry.ParseError{Source: RUNTIME_SOURCE, Message: "no usable exiftool output", Err: err}
	}

	return tracks, nil
}
