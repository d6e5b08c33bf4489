// Package metadata writes run reports: a JSON manifest describing the run
// and a parquet table of per-batch statistics.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Manifest describes one finished run.
type Manifest struct {
	RunID      string       `json:"run_id"`
	Producer   ProducerInfo `json:"producer"`
	Input      string       `json:"input"`
	Output     OutputInfo   `json:"output"`
	Settings   Settings     `json:"settings"`
	Totals     Totals       `json:"totals"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// ProducerInfo describes the software that produced the output.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha"`
}

// OutputInfo describes the written variants.
type OutputInfo struct {
	Location string `json:"location"`
	Checksum string `json:"checksum"`  // sha256 of the bytes written
	ByteSize int64  `json:"byte_size"` // after compression
}

// Settings are the expansion settings the run used.
type Settings struct {
	Depth         int    `json:"depth"`
	DigitAlphabet string `json:"digit_alphabet"`
	Workers       int    `json:"workers"`
	ChunkSize     int    `json:"chunk_size"`
	QueueSize     int    `json:"queue_size"`
}

type Totals struct {
	Batches         int64 `json:"batches"`
	Lines           int64 `json:"lines"`
	Variants        int64 `json:"variants"`
	ExpansionErrors int64 `json:"expansion_errors"`
}

func New(runID, input string, startedAt time.Time) *Manifest {
	return &Manifest{
		RunID:      runID,
		Input:      input,
		StartedAt:  startedAt.UTC(),
		FinishedAt: time.Now().UTC(),
	}
}

func (m *Manifest) WriteJSON(path string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// ReadJSON loads a manifest written by WriteJSON.
func ReadJSON(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}
