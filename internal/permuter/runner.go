package permuter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/withObsrvr/digit-permuter/internal/config"
	"github.com/withObsrvr/digit-permuter/internal/logging"
	"github.com/withObsrvr/digit-permuter/internal/metadata"
	"github.com/withObsrvr/digit-permuter/internal/metrics"
	"github.com/withObsrvr/digit-permuter/internal/permute"
	"github.com/withObsrvr/digit-permuter/internal/source"
	"github.com/withObsrvr/digit-permuter/internal/storage"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// Runner orchestrates one expansion run from an input to an output.
type Runner struct {
	cfg      config.Config
	input    string
	output   string
	expander Expander
	runID    string
	log      *slog.Logger

	// owned by the goroutine writing output
	totals  RunTotals
	batches []BatchStats
}

// New validates cfg and returns a Runner reading input and writing output.
// Configuration errors wrap ErrConfig.
func New(cfg config.Config, input, output string) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	alphabet, err := cfg.Alphabet()
	if err != nil {
		return nil, err
	}

	runID := logging.GenerateRunID()
	return &Runner{
		cfg:      cfg,
		input:    input,
		output:   output,
		expander: permute.New(cfg.Permute.Depth, alphabet),
		runID:    runID,
		log:      logging.RunLogger(runID, input, output),
	}, nil
}

// WithExpander replaces the word expander.
func (r *Runner) WithExpander(e Expander) *Runner {
	r.expander = e
	return r
}

// RunID returns the identifier attached to logs and the manifest.
func (r *Runner) RunID() string {
	return r.runID
}

// Run opens the input, then the output, and expands one into the other.
// The input is opened first so an unreadable input never creates output.
func (r *Runner) Run(ctx context.Context) (RunTotals, error) {
	ctx = logging.WithRunID(ctx, r.runID)
	startedAt := time.Now().UTC()

	src, err := source.Open(ctx, r.input)
	if err != nil {
		return RunTotals{}, r.inputError(err)
	}
	defer src.Close()

	sink, err := storage.Open(ctx, r.output, storage.Options{Atomic: r.cfg.Output.Atomic})
	if err != nil {
		return RunTotals{}, r.outputError(err)
	}

	totals, err := r.Process(ctx, src, sink)
	if err != nil {
		return totals, err
	}

	if err := r.writeReports(startedAt, totals); err != nil {
		r.log.Warn("failed to write run report", "error", err)
	}
	return totals, nil
}

// Process expands every line of src into sink, then closes sink. On
// failure sink is aborted instead.
func (r *Runner) Process(ctx context.Context, src io.Reader, sink storage.VariantSink) (RunTotals, error) {
	r.totals = RunTotals{}
	r.batches = nil
	start := time.Now()

	reader := source.NewChunkReader(src, r.cfg.Pipeline.ChunkSize)

	var err error
	if r.cfg.Pipeline.Workers > 1 {
		err = r.runParallel(ctx, reader, sink)
	} else {
		err = r.runSequential(ctx, reader, sink)
	}

	if err != nil {
		if abortErr := sink.Abort(); abortErr != nil {
			r.log.Warn("failed to abort output", "error", abortErr)
		}
		return r.totals, err
	}

	if err := sink.Close(); err != nil {
		return r.totals, r.outputError(err)
	}

	r.totals.BytesWritten = sink.BytesWritten()
	r.totals.Checksum = sink.Checksum()
	r.totals.Duration = time.Since(start)
	if m := metrics.Get(); m != nil {
		m.SetBytesWritten(r.totals.BytesWritten)
	}

	rate := float64(r.totals.Lines) / r.totals.Duration.Seconds()
	r.log.Info("run complete",
		"lines", r.totals.Lines,
		"variants", r.totals.Variants,
		"expansion_errors", r.totals.ExpansionErrors,
		"batches", r.totals.Batches,
		"bytes", r.totals.BytesWritten,
		"lines_per_sec", fmt.Sprintf("%.2f", rate),
		"duration", r.totals.Duration.String(),
	)
	return r.totals, nil
}

// runSequential expands one batch at a time on the calling goroutine. Each
// line is expanded in full before any of it is written, so a failing line
// leaves nothing behind.
func (r *Runner) runSequential(ctx context.Context, reader *source.ChunkReader, sink storage.VariantSink) error {
	r.log.Info("starting sequential mode",
		"depth", r.cfg.Permute.Depth,
		"chunk_size", r.cfg.Pipeline.ChunkSize,
	)

	var (
		nextLine int64 = 1
		buf      []string // one line's variants, reused
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return r.inputError(err)
		}

		start := time.Now()
		stats := BatchStats{Seq: batch.Seq, Lines: len(batch.Lines)}
		for i, word := range batch.Lines {
			out, err := expandLine(r.expander, buf[:0], word)
			if err != nil {
				stats.ExpansionErrors++
				r.logLineError(LineError{Line: nextLine + int64(i), Word: word, Err: err})
				continue
			}
			buf = out
			for _, v := range buf {
				if err := sink.Write(v); err != nil {
					return r.outputError(err)
				}
			}
			stats.Variants += len(buf)
		}
		nextLine += int64(len(batch.Lines))
		stats.Duration = time.Since(start)

		if err := sink.Flush(); err != nil {
			return r.outputError(err)
		}
		r.record(sink, stats)
	}
}

// runParallel runs the dispatcher → workers → sequencer pipeline.
func (r *Runner) runParallel(ctx context.Context, reader *source.ChunkReader, sink storage.VariantSink) error {
	r.log.Info("starting pipeline mode",
		"workers", r.cfg.Pipeline.Workers,
		"queue_size", r.cfg.EffectiveQueueSize(),
		"depth", r.cfg.Permute.Depth,
		"chunk_size", r.cfg.Pipeline.ChunkSize,
	)

	pipeline := NewPipeline(r, r.cfg.Pipeline.Workers, r.cfg.EffectiveQueueSize())
	return pipeline.Run(ctx, reader, sink)
}

// writeBatch writes an expanded batch and flushes it. Called by the
// sequencer only.
func (r *Runner) writeBatch(sink storage.VariantSink, result BatchResult) error {
	for _, le := range result.LineErrors {
		r.logLineError(le)
	}
	for _, v := range result.Variants {
		if err := sink.Write(v); err != nil {
			return r.outputError(err)
		}
	}
	if err := sink.Flush(); err != nil {
		return r.outputError(err)
	}
	r.record(sink, result.Stats)
	return nil
}

// record folds a written batch into the run totals.
func (r *Runner) record(sink storage.VariantSink, stats BatchStats) {
	r.totals.Add(stats)
	if r.cfg.Report.Stats != "" {
		r.batches = append(r.batches, stats)
	}

	if m := metrics.Get(); m != nil {
		m.ObserveBatch(stats.Lines, stats.Variants, stats.ExpansionErrors, stats.Duration.Seconds())
		m.SetBytesWritten(sink.BytesWritten())
	}

	r.log.Debug("batch written",
		"seq", stats.Seq,
		"lines", stats.Lines,
		"variants", stats.Variants,
		"lines_total", r.totals.Lines,
	)
}

func (r *Runner) logLineError(le LineError) {
	r.log.Warn("skipping line", "line", le.Line, "word", le.Word, "error", le.Err)
}

func (r *Runner) inputError(err error) error {
	if m := metrics.Get(); m != nil {
		m.IncIOErrors("input")
	}
	return fmt.Errorf("%w: %s: %w", ErrInputIO, r.input, err)
}

func (r *Runner) outputError(err error) error {
	if m := metrics.Get(); m != nil {
		m.IncIOErrors("output")
	}
	return fmt.Errorf("%w: %s: %w", ErrOutputIO, r.output, err)
}

// writeReports writes the optional manifest and batch stats files.
func (r *Runner) writeReports(startedAt time.Time, totals RunTotals) error {
	if path := r.cfg.Report.Stats; path != "" {
		rows := make([]metadata.BatchStatsRow, len(r.batches))
		for i, b := range r.batches {
			rows[i] = metadata.BatchStatsRow{
				RunID:           r.runID,
				Seq:             b.Seq,
				Lines:           int64(b.Lines),
				Variants:        int64(b.Variants),
				ExpansionErrors: int64(b.ExpansionErrors),
				DurationMs:      b.Duration.Milliseconds(),
			}
		}
		if err := metadata.WriteStats(path, rows); err != nil {
			return fmt.Errorf("write stats %s: %w", path, err)
		}
	}

	if path := r.cfg.Report.Manifest; path != "" {
		m := metadata.New(r.runID, r.input, startedAt)
		m.Producer = metadata.ProducerInfo{
			Name:    "permute-digit",
			Version: Version,
			GitSHA:  GitSHA,
		}
		m.Output = metadata.OutputInfo{
			Location: r.output,
			Checksum: totals.Checksum,
			ByteSize: totals.BytesWritten,
		}
		m.Settings = metadata.Settings{
			Depth:         r.cfg.Permute.Depth,
			DigitAlphabet: r.cfg.Permute.DigitAlphabet,
			Workers:       r.cfg.Pipeline.Workers,
			ChunkSize:     r.cfg.Pipeline.ChunkSize,
			QueueSize:     r.cfg.EffectiveQueueSize(),
		}
		m.Totals = metadata.Totals{
			Batches:         totals.Batches,
			Lines:           totals.Lines,
			Variants:        totals.Variants,
			ExpansionErrors: totals.ExpansionErrors,
		}
		if err := m.WriteJSON(path); err != nil {
			return fmt.Errorf("write manifest %s: %w", path, err)
		}
	}
	return nil
}
