package storage

import (
	"context"
	"fmt"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver

	"github.com/withObsrvr/digit-permuter/internal/source"
)

// BlobSink streams variants into a single object. The object only becomes
// visible when Close succeeds; Abort cancels the upload.
type BlobSink struct {
	*lineWriter
	location string
	bucket   *blob.Bucket
	owned    bool
	writer   *blob.Writer
	cancel   context.CancelFunc
}

// OpenBlobSink opens the bucket named by rawURL and starts writing its key.
func OpenBlobSink(ctx context.Context, rawURL string, comp source.Compression) (*BlobSink, error) {
	bucketURL, key, err := source.SplitBlobURL(rawURL)
	if err != nil {
		return nil, err
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}

	s, err := NewBlobSink(ctx, bucket, key, comp)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	s.location = rawURL
	s.owned = true
	return s, nil
}

// NewBlobSink writes key into an already open bucket. The caller keeps
// ownership of the bucket.
func NewBlobSink(ctx context.Context, bucket *blob.Bucket, key string, comp source.Compression) (*BlobSink, error) {
	wctx, cancel := context.WithCancel(ctx)

	contentType := "text/plain; charset=utf-8"
	if comp != source.CompressionNone {
		contentType = "application/octet-stream"
	}
	w, err := bucket.NewWriter(wctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create writer for %s: %w", key, err)
	}

	lw, err := newLineWriter(w, comp)
	if err != nil {
		cancel()
		w.Close()
		return nil, err
	}

	return &BlobSink{
		lineWriter: lw,
		location:   key,
		bucket:     bucket,
		writer:     w,
		cancel:     cancel,
	}, nil
}

// Location returns the URL or key being written.
func (s *BlobSink) Location() string {
	return s.location
}

// Close completes the upload.
func (s *BlobSink) Close() error {
	defer s.release()

	if err := s.finish(); err != nil {
		s.cancel()
		s.writer.Close()
		return fmt.Errorf("flush %s: %w", s.location, err)
	}
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", s.location, err)
	}
	return nil
}

// Abort cancels the upload so no object is created.
func (s *BlobSink) Abort() error {
	defer s.release()
	s.cancel()
	s.writer.Close() // returns the cancellation error
	return nil
}

func (s *BlobSink) release() {
	s.cancel()
	if s.owned {
		s.bucket.Close()
	}
}
