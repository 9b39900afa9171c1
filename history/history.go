package history

// Package history tracks which media files have already been processed, so
// repeat runs over the same bucket can skip them. Catalogs are built from
// previously written description documents, keyed by file fingerprint.

import (
	"context"
	"io"
	"sync"
)

// LookerUpper populates a lookup map from one store of previously written
// description documents.
type LookerUpper interface {
	Open(context.Context, string) error
	Append(context.Context, *sync.Map, ...AppendLookupFunc) error
}

// AppendLookupFunc extracts lookup entries from one description document.
type AppendLookupFunc func(context.Context, *sync.Map, io.ReadCloser) error

func NewLookupMap(ctx context.Context, looker_uppers []LookerUpper, append_funcs []AppendLookupFunc) (*sync.Map, error) {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lu := new(sync.Map)

	done_ch := make(chan bool)
	err_ch := make(chan error)

	remaining := len(looker_uppers)

	for _, l := range looker_uppers {

		go func(l LookerUpper) {

			err := l.Append(ctx, lu, append_funcs...)

			if err != nil {
				err_ch <- err
			}

			done_ch <- true

		}(l)
	}

	for remaining > 0 {
		select {
		case <-done_ch:
			remaining -= 1
		case err := <-err_ch:
			return nil, err
		}
	}

	return lu, nil
}

// History answers whether a fingerprint has been processed before.
type History struct {
	lu *sync.Map
}

func NewHistory(ctx context.Context, looker_uppers ...LookerUpper) (*History, error) {

	append_funcs := []AppendLookupFunc{
		AppendProcessedCaptures,
	}

	lu, err := NewLookupMap(ctx, looker_uppers, append_funcs)

	if err != nil {
		return nil, err
	}

	h := &History{
		lu: lu,
	}

	return h, nil
}

// IsProcessed returns the filename a fingerprint was first processed under.
func (h *History) IsProcessed(fingerprint string) (string, bool) {

	v, ok := h.lu.Load(fingerprint)

	if !ok {
		return "", false
	}

	return v.(string), true
}
