package output

import (
	"context"
	"fmt"

	"gocloud.dev/blob"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobWriter stores artifacts in an object store bucket (S3, GCS, Azure,
// local directory or memory), keyed "<prefix><base>_<kind>.json".
type BlobWriter struct {
	bucket *blob.Bucket
	prefix string
}

// NewBlobWriter opens bucketURL, for example "s3://my-bucket?region=eu-west-1"
// or "file:///var/lib/multiocr".
func NewBlobWriter(ctx context.Context, bucketURL, prefix string) (*BlobWriter, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	return &BlobWriter{bucket: bucket, prefix: prefix}, nil
}

// Name returns the sink name.
func (w *BlobWriter) Name() string {
	return "blob"
}

// Key returns the object key for an artifact.
func (w *BlobWriter) Key(sourcePath string, kind Kind) string {
	return w.prefix + ArtifactName(sourcePath, kind)
}

// Write uploads doc.
func (w *BlobWriter) Write(ctx context.Context, sourcePath string, kind Kind, doc any) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	return w.bucket.WriteAll(ctx, w.Key(sourcePath, kind), data, &blob.WriterOptions{
		ContentType: "application/json",
	})
}

// Ping checks that the bucket is reachable.
func (w *BlobWriter) Ping(ctx context.Context) error {
	ok, err := w.bucket.IsAccessible(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket not accessible")
	}
	return nil
}

// Close closes the bucket.
func (w *BlobWriter) Close() error {
	return w.bucket.Close()
}
