package storage

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/withObsrvr/digit-permuter/internal/source"
)

const writeBufferSize = 64 * 1024

// flushWriteCloser is the shape shared by the gzip and zstd writers.
type flushWriteCloser interface {
	io.WriteCloser
	Flush() error
}

// countingHash records the size and sha256 of bytes passing through.
type countingHash struct {
	w io.Writer
	h hash.Hash
	n int64
}

func (c *countingHash) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.h.Write(p[:n])
	c.n += int64(n)
	return n, err
}

// lineWriter turns variants into newline-terminated lines:
// bufio → optional compressor → countingHash → destination.
type lineWriter struct {
	counter *countingHash
	enc     flushWriteCloser
	bw      *bufio.Writer
}

func newLineWriter(dst io.Writer, comp source.Compression) (*lineWriter, error) {
	lw := &lineWriter{counter: &countingHash{w: dst, h: sha256.New()}}

	var next io.Writer = lw.counter
	switch comp {
	case source.CompressionGzip:
		lw.enc = gzip.NewWriter(lw.counter)
		next = lw.enc
	case source.CompressionZstd:
		enc, err := zstd.NewWriter(lw.counter, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		lw.enc = enc
		next = enc
	}

	lw.bw = bufio.NewWriterSize(next, writeBufferSize)
	return lw, nil
}

func (lw *lineWriter) Write(variant string) error {
	if _, err := lw.bw.WriteString(variant); err != nil {
		return err
	}
	return lw.bw.WriteByte('\n')
}

func (lw *lineWriter) Flush() error {
	if err := lw.bw.Flush(); err != nil {
		return err
	}
	if lw.enc != nil {
		return lw.enc.Flush()
	}
	return nil
}

// finish flushes buffered data and terminates the compressed stream.
func (lw *lineWriter) finish() error {
	if err := lw.bw.Flush(); err != nil {
		return err
	}
	if lw.enc != nil {
		return lw.enc.Close()
	}
	return nil
}

func (lw *lineWriter) BytesWritten() int64 {
	return lw.counter.n
}

func (lw *lineWriter) Checksum() string {
	return "sha256:" + hex.EncodeToString(lw.counter.h.Sum(nil))
}
