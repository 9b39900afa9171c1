package history

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/tidwall/gjson"
)

// AppendProcessedCaptures reads one description document (the JSON array the
// describe stage writes) and records every entry carrying a fingerprint.
func AppendProcessedCaptures(ctx context.Context, lu *sync.Map, fh io.ReadCloser) error {

	defer fh.Close()

	body, err := io.ReadAll(fh)

	if err != nil {
		return fmt.Errorf("Failed to read description document, %w", err)
	}

	if !gjson.ValidBytes(body) {
		return fmt.Errorf("Invalid description document")
	}

	for _, entry := range gjson.ParseBytes(body).Array() {

		fingerprint := entry.Get("MAPMetaTags.fingerprint")

		if !fingerprint.Exists() {
			continue
		}

		fname := entry.Get("filename").String()

		lu.Store(fingerprint.String(), fname)
	}

	return nil
}
