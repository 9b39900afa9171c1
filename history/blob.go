package history

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"

	"gocloud.dev/blob"
)

// BlobLookerUpper reads description documents out of a gocloud.dev/blob
// bucket.
type BlobLookerUpper struct {
	LookerUpper
	bucket *blob.Bucket
}

func NewBlobLookerUpper(ctx context.Context, uri string) (LookerUpper, error) {

	bucket, err := blob.OpenBucket(ctx, uri)

	if err != nil {
		return nil, err
	}

	return NewBlobLookerUpperWithBucket(ctx, bucket)
}

func NewBlobLookerUpperWithBucket(ctx context.Context, bucket *blob.Bucket) (LookerUpper, error) {

	l := &BlobLookerUpper{
		bucket: bucket,
	}

	return l, nil
}

func (l *BlobLookerUpper) Open(ctx context.Context, uri string) error {
	return nil
}

func (l *BlobLookerUpper) Append(ctx context.Context, lu *sync.Map, append_funcs ...AppendLookupFunc) error {

	bucket_iter := l.bucket.List(nil)

	for {
		obj, err := bucket_iter.Next(ctx)

		if err == io.EOF {
			break
		}

		if err != nil {
			return err
		}

		if filepath.Ext(obj.Key) != ".json" {
			continue
		}

		fh, err := l.bucket.NewReader(ctx, obj.Key, nil)

		if err != nil {
			return err
		}

		body, err := io.ReadAll(fh)

		fh.Close()

		if err != nil {
			return err
		}

		for _, f := range append_funcs {

			br := bytes.NewReader(body)

			err := f(ctx, lu, io.NopCloser(br))

			if err != nil {
				return err
			}
		}
	}

	return nil
}
