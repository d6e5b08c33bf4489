package source

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver
)

// BlobSource reads a wordlist object from a gocloud bucket.
// Works with GCS, S3-compatible stores and local directories.
type BlobSource struct {
	location string
	bucket   *blob.Bucket
	reader   *blob.Reader
	owned    bool
}

// OpenBlob opens the object named by rawURL, e.g. gs://bucket/lists/words.txt
// or s3://bucket/words.txt?region=eu-west-1.
func OpenBlob(ctx context.Context, rawURL string) (*BlobSource, error) {
	bucketURL, key, err := SplitBlobURL(rawURL)
	if err != nil {
		return nil, err
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}

	src, err := NewBlobSource(ctx, bucket, key)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	src.location = rawURL
	src.owned = true
	return src, nil
}

// NewBlobSource reads key from an already open bucket. The caller keeps
// ownership of the bucket.
func NewBlobSource(ctx context.Context, bucket *blob.Bucket, key string) (*BlobSource, error) {
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	return &BlobSource{location: key, bucket: bucket, reader: r}, nil
}

func (s *BlobSource) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

// Location returns the URL or key the source was opened from.
func (s *BlobSource) Location() string {
	return s.location
}

// Close releases the reader, and the bucket if OpenBlob opened it.
func (s *BlobSource) Close() error {
	err := s.reader.Close()
	if s.owned {
		if cerr := s.bucket.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// SplitBlobURL separates an object URL into the bucket URL understood by
// blob.OpenBucket and the object key. For file:// URLs the bucket is the
// containing directory.
func SplitBlobURL(rawURL string) (bucketURL, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	if u.Scheme == "" {
		return "", "", fmt.Errorf("%w: %s has no scheme", ErrInvalidLocation, rawURL)
	}

	if u.Scheme == "file" {
		dir, base := path.Split(u.Path)
		if base == "" {
			return "", "", fmt.Errorf("%w: %s names a directory", ErrInvalidLocation, rawURL)
		}
		b := url.URL{Scheme: "file", Path: dir, RawQuery: u.RawQuery}
		return b.String(), base, nil
	}

	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s needs a bucket and an object key", ErrInvalidLocation, rawURL)
	}
	b := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: u.RawQuery}
	return b.String(), key, nil
}
