package permuter

import (
	"fmt"
	"time"

	"github.com/withObsrvr/digit-permuter/internal/source"
)

// Expander produces the variants of a single word.
// *permute.Permuter is the production implementation.
type Expander interface {
	AppendVariants(dst []string, word string) ([]string, error)
}

// BatchTask is sent to workers for processing.
type BatchTask struct {
	Batch     source.Batch
	FirstLine int64 // 1-based input line number of Batch.Lines[0]
}

// BatchResult is returned from workers to the sequencer.
type BatchResult struct {
	Seq        int64
	Variants   []string
	Stats      BatchStats
	LineErrors []LineError
}

// LineError records an input line that was skipped.
type LineError struct {
	Line int64 // 1-based
	Word string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error {
	return e.Err
}

// BatchStats describes one batch. Each batch owns its stats; they are only
// combined by the goroutine that writes output.
type BatchStats struct {
	Seq             int64
	Lines           int
	Variants        int
	ExpansionErrors int
	Duration        time.Duration
}

// RunTotals summarizes a finished run.
type RunTotals struct {
	Batches         int64
	Lines           int64
	Variants        int64
	ExpansionErrors int64
	BytesWritten    int64
	Checksum        string
	Duration        time.Duration
}

// Add folds one batch into the totals.
func (t *RunTotals) Add(s BatchStats) {
	t.Batches++
	t.Lines += int64(s.Lines)
	t.Variants += int64(s.Variants)
	t.ExpansionErrors += int64(s.ExpansionErrors)
}
