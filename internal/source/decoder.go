package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies the encoding of a wordlist by file extension.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// CompressionFor picks the compression implied by name's extension.
func CompressionFor(name string) Compression {
	// drop any URL query before looking at the extension
	if i := strings.IndexByte(name, '?'); i >= 0 && IsBlobURL(name) {
		name = name[:i]
	}
	switch {
	case strings.HasSuffix(name, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(name, ".zst"):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// decodedSource wraps a compressed source with its decompressor.
type decodedSource struct {
	WordSource
	r       io.Reader
	closeFn func()
}

func (d *decodedSource) Read(p []byte) (int, error) {
	return d.r.Read(p)
}

func (d *decodedSource) Close() error {
	d.closeFn()
	return d.WordSource.Close()
}

// Decompress wraps src with a decoder when its location ends in .gz or .zst.
// On failure src is closed.
func Decompress(src WordSource) (WordSource, error) {
	switch CompressionFor(src.Location()) {
	case CompressionGzip:
		zr, err := gzip.NewReader(src)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("gzip header %s: %w", src.Location(), err)
		}
		return &decodedSource{WordSource: src, r: zr, closeFn: func() { zr.Close() }}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("create zstd decoder %s: %w", src.Location(), err)
		}
		return &decodedSource{WordSource: src, r: zr, closeFn: zr.Close}, nil
	default:
		return src, nil
	}
}
