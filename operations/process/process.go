package process

// Package process runs the whole pipeline end to end: geotag every media
// file in a bucket, partition the captures into sequences, flag duplicates
// and publish the assembled description document.

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sfomuseum/go-media-geotag/common"
	"github.com/sfomuseum/go-media-geotag/describe"
	"github.com/sfomuseum/go-media-geotag/history"
	"github.com/sfomuseum/go-media-geotag/operations/geotag"
	"github.com/sfomuseum/go-media-geotag/operations/sequence"
	"gocloud.dev/blob"
)

type ProcessorOptions struct {
	// Geotag configures the per-file stage. Nil means defaults.
	Geotag *geotag.Options
	// Build configures sequence cutoffs. Nil means defaults.
	Build *sequence.BuildOptions
	// Duplicates configures duplicate detection. Nil means defaults.
	Duplicates *sequence.DuplicateOptions
	// WriterURI is the whosonfirst/go-writer URI the description document is
	// published to. Empty skips publishing.
	WriterURI string
	// History, when present, marks captures whose fingerprint was processed
	// in an earlier run.
	History *history.History
}

// Processor runs the pipeline over one media bucket.
type Processor struct {
	bucket *blob.Bucket
	opts   *ProcessorOptions
}

func NewProcessor(ctx context.Context, bucket *blob.Bucket, opts *ProcessorOptions) (*Processor, error) {

	if opts == nil {
		opts = &ProcessorOptions{}
	}

	p := &Processor{
		bucket: bucket,
		opts:   opts,
	}

	return p, nil
}

// Process runs every stage and returns the assembled description document.
// One entry is emitted per discovered media file, error records included.
func (p *Processor) Process(ctx context.Context) ([]byte, error) {

	t1 := time.Now()

	captures, err := geotag.Geotag(ctx, p.bucket, p.opts.Geotag)

	if err != nil {
		return nil, fmt.Errorf("Failed to geotag media, %w", err)
	}

	if p.opts.History != nil {
		markProcessed(captures, p.opts.History)
	}

	sequence.Build(captures, p.opts.Build)
	sequence.MarkDuplicates(captures, p.opts.Duplicates)

	doc, err := describe.Assemble(captures)

	if err != nil {
		return nil, fmt.Errorf("Failed to assemble descriptions, %w", err)
	}

	if p.opts.WriterURI != "" {

		err := p.publish(ctx, doc)

		if err != nil {
			return nil, err
		}
	}

	errors := 0

	for _, c := range captures {

		if c.Err != nil {
			errors += 1
		}
	}

	slog.Info("Processed media bucket", "captures", len(captures), "errors", errors, "time", time.Since(t1))

	return doc, nil
}

// markProcessed flags captures whose fingerprint already appears in the
// history as duplicates, so repeat runs over the same bucket are idempotent.
func markProcessed(captures []*geotag.Capture, h *history.History) {

	for _, c := range captures {

		if c.Err != nil {
			continue
		}

		if fname, ok := h.IsProcessed(c.Fingerprint); ok {
			slog.Info("Capture was processed in an earlier run", "key", c.Key, "previous", fname)
			c.IsDuplicate = true
		}
	}
}

func (p *Processor) publish(ctx context.Context, doc []byte) error {

	wr, err := common.NewWriter(ctx, p.opts.WriterURI)

	if err != nil {
		return fmt.Errorf("Failed to create writer for '%s', %w", p.opts.WriterURI, err)
	}

	fname := fmt.Sprintf("%s.json", uuid.New().String())

	br := bytes.NewReader(doc)

	_, err = wr.Write(ctx, fname, br)

	if err != nil {
		return fmt.Errorf("Failed to write %s, %w", fname, err)
	}

	slog.Info("Published description document", "filename", fname)

	return nil
}
