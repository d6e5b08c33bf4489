package permuter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"go.uber.org/goleak"

	"github.com/withObsrvr/digit-permuter/internal/config"
	"github.com/withObsrvr/digit-permuter/internal/metadata"
	"github.com/withObsrvr/digit-permuter/internal/permute"
)

// memorySink keeps flushed variants in memory. Writes fail once failAfter
// variants have been accepted, when failAfter > 0.
type memorySink struct {
	flushed   []string
	buffered  []string
	writes    int
	failAfter int
	closed    bool
	aborted   bool
}

func (s *memorySink) Write(v string) error {
	if s.failAfter > 0 && s.writes >= s.failAfter {
		return errors.New("disk full")
	}
	s.writes++
	s.buffered = append(s.buffered, v)
	return nil
}

func (s *memorySink) Flush() error {
	s.flushed = append(s.flushed, s.buffered...)
	s.buffered = nil
	return nil
}

func (s *memorySink) Close() error {
	s.closed = true
	return s.Flush()
}

func (s *memorySink) Abort() error {
	s.aborted = true
	s.buffered = nil
	return nil
}

func (s *memorySink) Location() string    { return "memory" }
func (s *memorySink) BytesWritten() int64 { return 0 }
func (s *memorySink) Checksum() string    { return "" }

func newTestRunner(t *testing.T, workers, chunkSize int) *Runner {
	t.Helper()
	cfg := config.Default()
	cfg.Pipeline.Workers = workers
	cfg.Pipeline.ChunkSize = chunkSize
	r, err := New(cfg, "words", "variants")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

// expected expands lines one by one with the default settings.
func expected(t *testing.T, lines []string) []string {
	t.Helper()
	p := permute.New(0, permute.Alphabet(strings.Split(permute.DefaultAlphabet, "")))
	var out []string
	for _, l := range lines {
		var err error
		out, err = p.AppendVariants(out, l)
		if err != nil {
			t.Fatalf("AppendVariants(%q): %v", l, err)
		}
	}
	return out
}

func TestOrderInvariance(t *testing.T) {
	var lines []string
	for i := 0; i < 97; i++ {
		switch i % 3 {
		case 0:
			lines = append(lines, fmt.Sprintf("w%d", i%10))
		case 1:
			lines = append(lines, fmt.Sprintf("a%db%d", i%10, (i/10)%10))
		default:
			lines = append(lines, "plain")
		}
	}
	input := strings.Join(lines, "\n") + "\n"
	want := expected(t, lines)

	for _, workers := range []int{1, 2, 4, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

			sink := &memorySink{}
			totals, err := newTestRunner(t, workers, 5).Process(context.Background(), strings.NewReader(input), sink)
			if err != nil {
				t.Fatalf("Process failed: %v", err)
			}
			if !sink.closed {
				t.Error("sink was not closed")
			}
			if !slices.Equal(sink.flushed, want) {
				t.Fatalf("output differs: got %d variants, want %d", len(sink.flushed), len(want))
			}
			if totals.Lines != int64(len(lines)) || totals.Variants != int64(len(want)) {
				t.Errorf("totals = %+v", totals)
			}
			if totals.Batches != 20 {
				t.Errorf("batches = %d, want 20", totals.Batches)
			}
		})
	}
}

func TestZeroDigitWords(t *testing.T) {
	input := "abc\n\nx1\n"
	want := []string{"abc", "", "x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7", "x8", "x9"}

	for _, workers := range []int{1, 3} {
		sink := &memorySink{}
		if _, err := newTestRunner(t, workers, 1).Process(context.Background(), strings.NewReader(input), sink); err != nil {
			t.Fatalf("workers=%d: Process failed: %v", workers, err)
		}
		if !slices.Equal(sink.flushed, want) {
			t.Errorf("workers=%d: got %q, want %q", workers, sink.flushed, want)
		}
	}
}

func TestEmptyInput(t *testing.T) {
	for _, workers := range []int{1, 4} {
		sink := &memorySink{}
		totals, err := newTestRunner(t, workers, 10).Process(context.Background(), strings.NewReader(""), sink)
		if err != nil {
			t.Fatalf("workers=%d: Process failed: %v", workers, err)
		}
		if len(sink.flushed) != 0 || totals.Lines != 0 || totals.Batches != 0 {
			t.Errorf("workers=%d: expected no output, got %q %+v", workers, sink.flushed, totals)
		}
		if !sink.closed {
			t.Errorf("workers=%d: sink was not closed", workers)
		}
	}
}

// faultyExpander fails on "bad" and panics on "boom".
type faultyExpander struct {
	*permute.Permuter
}

func (f faultyExpander) check(word string) error {
	switch word {
	case "bad":
		return errors.New("rejected")
	case "boom":
		panic("expander exploded")
	}
	return nil
}

func (f faultyExpander) AppendVariants(dst []string, word string) ([]string, error) {
	if err := f.check(word); err != nil {
		return dst, err
	}
	return f.Permuter.AppendVariants(dst, word)
}

func TestLineErrorsAreContained(t *testing.T) {
	input := "a1\nbad\nb2\nboom\nc\n"
	want := expected(t, []string{"a1", "b2", "c"})

	for _, workers := range []int{1, 2} {
		r := newTestRunner(t, workers, 2)
		r.WithExpander(faultyExpander{permute.New(0, permute.Alphabet(strings.Split(permute.DefaultAlphabet, "")))})

		sink := &memorySink{}
		totals, err := r.Process(context.Background(), strings.NewReader(input), sink)
		if err != nil {
			t.Fatalf("workers=%d: Process failed: %v", workers, err)
		}
		if !slices.Equal(sink.flushed, want) {
			t.Errorf("workers=%d: got %q, want %q", workers, sink.flushed, want)
		}
		if totals.ExpansionErrors != 2 || totals.Lines != 5 {
			t.Errorf("workers=%d: totals = %+v", workers, totals)
		}
	}
}

// partialExpander produces three variants of "x9" and then panics.
type partialExpander struct {
	*permute.Permuter
}

func (p partialExpander) AppendVariants(dst []string, word string) ([]string, error) {
	if word != "x9" {
		return p.Permuter.AppendVariants(dst, word)
	}
	seq, err := p.Permuter.Variants(word)
	if err != nil {
		return dst, err
	}
	n := 0
	for v := range seq {
		if n == 3 {
			panic("expander died mid-line")
		}
		dst = append(dst, v)
		n++
	}
	return dst, nil
}

func TestPartialLineFailureLeavesNoOutput(t *testing.T) {
	input := "a1\nx9\nb2\n"
	want := expected(t, []string{"a1", "b2"})

	for _, workers := range []int{1, 2} {
		r := newTestRunner(t, workers, 10)
		r.WithExpander(partialExpander{permute.New(0, permute.Alphabet(strings.Split(permute.DefaultAlphabet, "")))})

		sink := &memorySink{}
		totals, err := r.Process(context.Background(), strings.NewReader(input), sink)
		if err != nil {
			t.Fatalf("workers=%d: Process failed: %v", workers, err)
		}
		if !slices.Equal(sink.flushed, want) {
			t.Errorf("workers=%d: got %d variants %q, want %q", workers, len(sink.flushed), sink.flushed, want)
		}
		if totals.Variants != int64(len(want)) || totals.ExpansionErrors != 1 {
			t.Errorf("workers=%d: totals = %+v", workers, totals)
		}
	}
}

// slowExpander delays every word starting with "slow".
type slowExpander struct {
	*permute.Permuter
	delay time.Duration
}

func (s slowExpander) AppendVariants(dst []string, word string) ([]string, error) {
	if strings.HasPrefix(word, "slow") {
		time.Sleep(s.delay)
	}
	return s.Permuter.AppendVariants(dst, word)
}

func TestFirstBatchFinishesLast(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	lines := []string{"slow1", "b2", "c3", "d4", "e5", "f6"}
	input := strings.Join(lines, "\n") + "\n"
	want := expected(t, lines)

	// batch 0 is the only slow one, so every later batch is pending when
	// it arrives
	r := newTestRunner(t, 4, 1)
	r.WithExpander(slowExpander{
		Permuter: permute.New(0, permute.Alphabet(strings.Split(permute.DefaultAlphabet, ""))),
		delay:    100 * time.Millisecond,
	})

	sink := &memorySink{}
	totals, err := r.Process(context.Background(), strings.NewReader(input), sink)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !slices.Equal(sink.flushed, want) {
		t.Fatalf("output out of order: first variants %q", sink.flushed[:min(len(sink.flushed), 12)])
	}
	if totals.Batches != int64(len(lines)) {
		t.Errorf("batches = %d, want %d", totals.Batches, len(lines))
	}
}

func TestExpandBatchLineNumbers(t *testing.T) {
	e := faultyExpander{permute.New(0, permute.Alphabet{"0"})}
	task := BatchTask{FirstLine: 11}
	task.Batch.Seq = 3
	task.Batch.Lines = []string{"x1", "bad", "boom"}

	res := expandBatch(e, task)
	if res.Seq != 3 || !slices.Equal(res.Variants, []string{"x0"}) {
		t.Errorf("result = %+v", res)
	}
	if len(res.LineErrors) != 2 {
		t.Fatalf("line errors = %v", res.LineErrors)
	}
	if res.LineErrors[0].Line != 12 || res.LineErrors[1].Line != 13 {
		t.Errorf("line numbers = %d, %d", res.LineErrors[0].Line, res.LineErrors[1].Line)
	}
	for _, le := range res.LineErrors {
		if !errors.Is(le, ErrExpansion) {
			t.Errorf("%v should wrap ErrExpansion", le)
		}
	}
}

func TestSinkFailureCancels(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&b, "k%d\n", i%10)
	}

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

			sink := &memorySink{failAfter: 25}
			_, err := newTestRunner(t, workers, 1).Process(context.Background(), strings.NewReader(b.String()), sink)
			if !errors.Is(err, ErrOutputIO) {
				t.Fatalf("expected ErrOutputIO, got %v", err)
			}
			if !sink.aborted || sink.closed {
				t.Errorf("sink should be aborted, not closed (aborted=%v closed=%v)", sink.aborted, sink.closed)
			}
			// only whole batches reach the output
			if len(sink.flushed) != 20 {
				t.Errorf("flushed %d variants, want 20", len(sink.flushed))
			}
		})
	}
}

func TestReadFailure(t *testing.T) {
	for _, workers := range []int{1, 2} {
		sink := &memorySink{}
		src := iotest.ErrReader(errors.New("device gone"))
		_, err := newTestRunner(t, workers, 10).Process(context.Background(), src, sink)
		if !errors.Is(err, ErrInputIO) {
			t.Errorf("workers=%d: expected ErrInputIO, got %v", workers, err)
		}
		if !sink.aborted {
			t.Errorf("workers=%d: sink should be aborted", workers)
		}
	}
}

func TestCanceledContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		sink := &memorySink{}
		_, err := newTestRunner(t, workers, 1).Process(ctx, strings.NewReader("a1\nb2\n"), sink)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: expected context.Canceled, got %v", workers, err)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.ChunkSize = 0
	if _, err := New(cfg, "in", "out"); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}

	cfg = config.Default()
	cfg.Permute.DigitAlphabet = ""
	if _, err := New(cfg, "in", "out"); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for empty alphabet, got %v", err)
	}
}

func TestRunFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "words.txt")
	output := filepath.Join(dir, "out", "variants.txt")
	if err := os.WriteFile(input, []byte("a1b2\r\nzz\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Permute.Depth = 1
	cfg.Pipeline.Workers = 2
	cfg.Report.Manifest = filepath.Join(dir, "run.json")
	cfg.Report.Stats = filepath.Join(dir, "stats.parquet")

	r, err := New(cfg, input, output)
	if err != nil {
		t.Fatal(err)
	}
	totals, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	want := "a1b0\na1b1\na1b2\na1b3\na1b4\na1b5\na1b6\na1b7\na1b8\na1b9\nzz\n"
	if string(data) != want {
		t.Errorf("output = %q", data)
	}
	if totals.BytesWritten != int64(len(want)) || !strings.HasPrefix(totals.Checksum, "sha256:") {
		t.Errorf("totals = %+v", totals)
	}

	m, err := metadata.ReadJSON(cfg.Report.Manifest)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.RunID != r.RunID() || m.Totals.Variants != 11 || m.Output.Checksum != totals.Checksum {
		t.Errorf("manifest = %+v", m)
	}

	rows, err := metadata.ReadStats(cfg.Report.Stats)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(rows) != 1 || rows[0].Lines != 2 || rows[0].Variants != 11 {
		t.Errorf("stats rows = %+v", rows)
	}
}

func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "missing.txt")
	output := filepath.Join(dir, "variants.txt")

	r, err := New(config.Default(), input, output)
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Run(context.Background())
	if !errors.Is(err, ErrInputIO) {
		t.Fatalf("expected ErrInputIO, got %v", err)
	}
	if !strings.Contains(err.Error(), input) {
		t.Errorf("error %q should name %s", err, input)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("output should not be created when the input is unreadable")
	}
}
