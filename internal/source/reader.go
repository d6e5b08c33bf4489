package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultChunkSize is the number of lines per batch when none is configured.
const DefaultChunkSize = 1000

// Batch is a run of consecutive input lines. Seq increases by one per batch
// in read order, starting at 0.
type Batch struct {
	Seq   int64
	Lines []string
}

// BatchBuilder groups lines into batches of a fixed size.
type BatchBuilder struct {
	size int
	seq  int64
	buf  []string
}

func NewBatchBuilder(size int) *BatchBuilder {
	return &BatchBuilder{size: size}
}

func (b *BatchBuilder) Add(line string) {
	if b.buf == nil {
		b.buf = make([]string, 0, b.size)
	}
	b.buf = append(b.buf, line)
}

func (b *BatchBuilder) Ready() bool {
	return b.size > 0 && len(b.buf) >= b.size
}

// Flush returns the buffered lines as the next batch. The second result is
// false when nothing was buffered.
func (b *BatchBuilder) Flush() (Batch, bool) {
	if len(b.buf) == 0 {
		return Batch{}, false
	}
	batch := Batch{Seq: b.seq, Lines: b.buf}
	b.seq++
	b.buf = nil
	return batch, true
}

// ChunkReader reads lines from r and returns them in batches of up to size
// lines. Lines have no length limit; the trailing "\n" or "\r\n" is removed
// and invalid UTF-8 bytes are dropped.
type ChunkReader struct {
	r       *bufio.Reader
	builder *BatchBuilder
	done    bool
}

// NewChunkReader returns a reader producing batches of size lines.
// size <= 0 selects DefaultChunkSize.
func NewChunkReader(r io.Reader, size int) *ChunkReader {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &ChunkReader{
		r:       bufio.NewReaderSize(r, 64*1024),
		builder: NewBatchBuilder(size),
	}
}

// Next returns the next batch, or io.EOF once the input is exhausted.
// The final batch may hold fewer lines than the chunk size.
func (c *ChunkReader) Next() (Batch, error) {
	for !c.done && !c.builder.Ready() {
		line, err := c.r.ReadString('\n')
		if len(line) > 0 {
			c.builder.Add(cleanLine(line))
		}
		if errors.Is(err, io.EOF) {
			c.done = true
			break
		}
		if err != nil {
			return Batch{}, fmt.Errorf("read line: %w", err)
		}
	}

	if batch, ok := c.builder.Flush(); ok {
		return batch, nil
	}
	return Batch{}, io.EOF
}

func cleanLine(line string) string {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return strings.ToValidUTF8(line, "")
}
