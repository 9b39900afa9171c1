package common

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"gocloud.dev/blob"
	"io"
)

// FingerprintFile returns the SHA-1 fingerprint of a media file stored in a
// blob.Bucket instance. Fingerprints identify a capture across runs in the
// processing history and in the MAPMetaTags of its description document.
func FingerprintFile(ctx context.Context, bucket *blob.Bucket, path string) (string, error) {

	fh, err := bucket.NewReader(ctx, path, nil)

	if err != nil {
		return "", err
	}

	defer fh.Close()

	h := sha1.New()

	_, err = io.Copy(h, fh)

	if err != nil {
		return "", err
	}

	hash := h.Sum(nil)
	str := hex.EncodeToString(hash[:])

	return str, nil
}
