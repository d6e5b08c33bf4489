package metadata

import (
	"github.com/parquet-go/parquet-go"
)

// BatchStatsRow is a single row in the batch stats table.
type BatchStatsRow struct {
	RunID string `parquet:"run_id"`
	Seq   int64  `parquet:"seq"`

	Lines           int64 `parquet:"lines"`
	Variants        int64 `parquet:"variants"`
	ExpansionErrors int64 `parquet:"expansion_errors"`

	DurationMs int64 `parquet:"duration_ms"` // time spent expanding the batch
}

// WriteStats writes rows to a zstd-compressed parquet file at path.
func WriteStats(path string, rows []BatchStatsRow) error {
	return parquet.WriteFile(path, rows, parquet.Compression(&parquet.Zstd))
}

// ReadStats loads a file written by WriteStats.
func ReadStats(path string) ([]BatchStatsRow, error) {
	return parquet.ReadFile[BatchStatsRow](path)
}
