package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/withObsrvr/digit-permuter/internal/source"
)

// VariantSink receives variants one line at a time.
//
// Write buffers a variant; Flush pushes everything buffered so far to the
// destination and marks a batch boundary. Close finalizes the output and
// Abort discards whatever can still be discarded. Exactly one of Close or
// Abort must be called.
type VariantSink interface {
	Write(variant string) error
	Flush() error
	Close() error
	Abort() error

	// Location is the path or URL the sink writes to.
	Location() string
	// BytesWritten counts bytes handed to the destination after compression.
	BytesWritten() int64
	// Checksum is the sha256 of those bytes, prefixed with "sha256:".
	Checksum() string
}

// StdoutLocation selects standard output.
const StdoutLocation = "-"

// Options configures how a sink is opened.
type Options struct {
	// Atomic writes local outputs to a temporary file and renames it into
	// place on Close. Blob outputs are always atomic.
	Atomic bool
}

// Open creates a sink for location: "-" for stdout, a blob URL, or a local
// path. Locations ending in .gz or .zst are compressed.
func Open(ctx context.Context, location string, opts Options) (VariantSink, error) {
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("output location is empty")
	}

	comp := source.CompressionFor(location)
	switch {
	case location == StdoutLocation:
		return newStdoutSink(comp)
	case source.IsBlobURL(location):
		return OpenBlobSink(ctx, location, comp)
	default:
		return NewLocalSink(location, comp, opts.Atomic)
	}
}

// stdoutSink writes to standard output and never closes it.
type stdoutSink struct {
	*lineWriter
}

func newStdoutSink(comp source.Compression) (*stdoutSink, error) {
	lw, err := newLineWriter(os.Stdout, comp)
	if err != nil {
		return nil, err
	}
	return &stdoutSink{lineWriter: lw}, nil
}

func (s *stdoutSink) Location() string { return StdoutLocation }

func (s *stdoutSink) Close() error {
	return s.finish()
}

func (s *stdoutSink) Abort() error {
	return nil
}
