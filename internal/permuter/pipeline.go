package permuter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/withObsrvr/digit-permuter/internal/logging"
	"github.com/withObsrvr/digit-permuter/internal/metrics"
	"github.com/withObsrvr/digit-permuter/internal/source"
	"github.com/withObsrvr/digit-permuter/internal/storage"
)

// Pipeline implements the dispatcher → workers → sequencer flow.
// Workers expand batches in parallel, but the sequencer writes them in
// input order.
type Pipeline struct {
	runner    *Runner
	workers   int
	queueSize int
	log       *slog.Logger
}

// NewPipeline creates a new worker pipeline. queueSize bounds the batches
// in flight: read but not yet written.
func NewPipeline(r *Runner, workers, queueSize int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers * 2
	}

	return &Pipeline{
		runner:    r,
		workers:   workers,
		queueSize: queueSize,
		log:       logging.Component("pipeline"),
	}
}

// Run expands every batch from reader into sink. The first fatal error
// cancels the remaining stages and is returned.
func (p *Pipeline) Run(ctx context.Context, reader *source.ChunkReader, sink storage.VariantSink) error {
	g, gctx := errgroup.WithContext(ctx)

	workQueue := make(chan BatchTask, p.queueSize)
	resultChan := make(chan BatchResult, p.queueSize)
	slots := make(chan struct{}, p.queueSize)

	p.log.Debug("starting pipeline", "workers", p.workers, "queue_size", p.queueSize)

	g.Go(func() error {
		return p.dispatcherLoop(gctx, reader, workQueue, slots)
	})

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			p.workerLoop(gctx, i, workQueue, resultChan)
			return nil
		})
	}

	// Close results when workers finish
	g.Go(func() error {
		wg.Wait()
		close(resultChan)
		return nil
	})

	g.Go(func() error {
		return p.sequencerLoop(gctx, sink, resultChan, slots)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	// stages may all finish cleanly after a cancellation
	return ctx.Err()
}

// dispatcherLoop reads batches and sends them to workers. A slot is taken
// before each read and given back by the sequencer once the batch is
// written.
func (p *Pipeline) dispatcherLoop(ctx context.Context, reader *source.ChunkReader, workQueue chan<- BatchTask, slots chan<- struct{}) error {
	defer close(workQueue)

	var nextLine int64 = 1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case slots <- struct{}{}:
		}

		batch, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return p.runner.inputError(err)
		}

		task := BatchTask{Batch: batch, FirstLine: nextLine}
		nextLine += int64(len(batch.Lines))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case workQueue <- task:
		}

		if m := metrics.Get(); m != nil {
			m.SetWorkerQueueDepth(len(workQueue))
			m.SetInFlightBatches(len(slots))
		}
	}
}

// workerLoop expands batch tasks.
func (p *Pipeline) workerLoop(ctx context.Context, workerID int, workQueue <-chan BatchTask, resultChan chan<- BatchResult) {
	log := logging.WorkerLogger(ctx, workerID)

	for task := range workQueue {
		if ctx.Err() != nil {
			return
		}

		result := expandBatch(p.runner.expander, task)
		log.Debug("batch expanded",
			"seq", task.Batch.Seq,
			"lines", result.Stats.Lines,
			"variants", result.Stats.Variants,
			"duration_ms", result.Stats.Duration.Milliseconds(),
		)

		select {
		case <-ctx.Done():
			return
		case resultChan <- result:
		}
	}
}

// sequencerLoop writes batches in sequence order.
func (p *Pipeline) sequencerLoop(ctx context.Context, sink storage.VariantSink, resultChan <-chan BatchResult, slots <-chan struct{}) error {
	var nextSeq int64

	// Buffer for out-of-order results
	pending := make(map[int64]BatchResult)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case result, ok := <-resultChan:
			if !ok {
				if len(pending) > 0 {
					return fmt.Errorf("results closed with %d batches pending, next seq=%d", len(pending), nextSeq)
				}
				return nil
			}

			pending[result.Seq] = result

			// Flush in-order as far as possible
			for {
				r, ok := pending[nextSeq]
				if !ok {
					break
				}
				delete(pending, nextSeq)

				if err := p.runner.writeBatch(sink, r); err != nil {
					return err
				}
				nextSeq++
				<-slots
			}

			if m := metrics.Get(); m != nil {
				m.SetSequencerPending(len(pending))
				m.SetInFlightBatches(len(slots))
			}
		}
	}
}

// expandBatch expands every line of a task. Failing lines become
// LineErrors and the rest of the batch still completes.
func expandBatch(e Expander, task BatchTask) BatchResult {
	start := time.Now()
	result := BatchResult{
		Seq:   task.Batch.Seq,
		Stats: BatchStats{Seq: task.Batch.Seq, Lines: len(task.Batch.Lines)},
	}

	for i, word := range task.Batch.Lines {
		out, err := expandLine(e, result.Variants, word)
		if err != nil {
			result.LineErrors = append(result.LineErrors, LineError{
				Line: task.FirstLine + int64(i),
				Word: word,
				Err:  err,
			})
			continue
		}
		result.Variants = out
	}

	result.Stats.Variants = len(result.Variants)
	result.Stats.ExpansionErrors = len(result.LineErrors)
	result.Stats.Duration = time.Since(start)
	return result
}

// expandLine appends the variants of word to dst. On failure dst is
// returned with its original length.
func expandLine(e Expander, dst []string, word string) (out []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = dst, fmt.Errorf("%w: panic: %v", ErrExpansion, rec)
		}
	}()

	out, err = e.AppendVariants(dst, word)
	if err != nil {
		return dst, fmt.Errorf("%w: %w", ErrExpansion, err)
	}
	return out, nil
}
