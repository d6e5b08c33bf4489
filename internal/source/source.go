package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// WordSource is an open input wordlist. Read returns decoded text, one word
// per line.
type WordSource interface {
	io.Reader
	// Location is the path or URL the source was opened from.
	Location() string
	Close() error
}

// StdinLocation selects standard input.
const StdinLocation = "-"

var ErrInvalidLocation = errors.New("invalid source location")

// Open opens location as a wordlist. location is "-" for stdin, a blob URL
// (gs://, s3://, file://) or a local path. Inputs ending in .gz or .zst are
// decompressed.
func Open(ctx context.Context, location string) (WordSource, error) {
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidLocation)
	}

	var (
		src WordSource
		err error
	)
	switch {
	case location == StdinLocation:
		src = newStdinSource()
	case IsBlobURL(location):
		src, err = OpenBlob(ctx, location)
	default:
		src, err = NewLocalSource(location)
	}
	if err != nil {
		return nil, err
	}

	return Decompress(src)
}

// IsBlobURL reports whether location names an object store URL.
func IsBlobURL(location string) bool {
	return strings.Contains(location, "://")
}
