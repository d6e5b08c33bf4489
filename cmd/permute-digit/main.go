// Command permute-digit expands every line of a wordlist into all variants
// obtained by substituting its digits.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/digit-permuter/internal/config"
	"github.com/withObsrvr/digit-permuter/internal/logging"
	"github.com/withObsrvr/digit-permuter/internal/metrics"
	"github.com/withObsrvr/digit-permuter/internal/permuter"
)

// Exit codes
const (
	exitOK     = 0
	exitIO     = 1
	exitConfig = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "permute-digit: %v\n", err)
	if errors.Is(err, permuter.ErrConfig) {
		return exitConfig
	}
	return exitIO
}

// flagValues holds the raw flag targets. Only flags the user set override
// the config file.
type flagValues struct {
	configPath  string
	depth       int
	workers     int
	chunkSize   int
	digits      string
	queueSize   int
	atomic      bool
	manifest    string
	stats       string
	metricsAddr string
	metricsFile string
	logLevel    string
	logFormat   string
}

func newRootCmd() *cobra.Command {
	var fv flagValues
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "permute-digit INPUT OUTPUT",
		Short: "Expand the digits of every word in a wordlist",
		Long: `Reads INPUT one word per line and writes, for every word, each variant
obtained by replacing its digits with every combination of the digit
alphabet. Use "-" for stdin or stdout. Paths ending in .gz or .zst are
(de)compressed, and gs://, s3:// and file:// URLs are read and written
through object storage.`,
		Version:       permuter.Version,
		Args:          exactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, fv)
			if err != nil {
				return err
			}
			return runPermute(cmd.Context(), cfg, args[0], args[1])
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", config.ErrConfig, err)
	})

	f := cmd.Flags()
	f.StringVar(&fv.configPath, "config", "", "YAML config file")
	f.IntVarP(&fv.depth, "depth", "d", defaults.Permute.Depth, "permute only the last N digit positions (0 = all)")
	f.IntVarP(&fv.workers, "workers", "w", defaults.Pipeline.Workers, "number of expansion workers")
	f.IntVarP(&fv.chunkSize, "chunk-size", "c", defaults.Pipeline.ChunkSize, "lines per batch")
	f.StringVarP(&fv.digits, "digit", "i", defaults.Permute.DigitAlphabet, "substitution alphabet, one symbol per character")
	f.IntVar(&fv.queueSize, "queue-size", defaults.Pipeline.QueueSize, "max batches in flight (0 = 2*workers)")
	f.BoolVar(&fv.atomic, "atomic", defaults.Output.Atomic, "write local output to a temp file and rename on success")
	f.StringVar(&fv.manifest, "manifest", "", "write a JSON run manifest to this path")
	f.StringVar(&fv.stats, "stats", "", "write per-batch statistics as parquet to this path")
	f.StringVar(&fv.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.StringVar(&fv.metricsFile, "metrics-file", "", "write Prometheus metrics to this file at exit")
	f.StringVar(&fv.logLevel, "log-level", defaults.Logging.Level, "debug, info, warn or error")
	f.StringVar(&fv.logFormat, "log-format", defaults.Logging.Format, "text or json")

	return cmd
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %v (usage: %s)", config.ErrConfig, err, cmd.UseLine())
		}
		return nil
	}
}

// resolveConfig loads the config file, if any, and applies explicitly set
// flags over it.
func resolveConfig(cmd *cobra.Command, fv flagValues) (config.Config, error) {
	cfg := config.Default()
	if fv.configPath != "" {
		loaded, err := config.Load(fv.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("depth") {
		cfg.Permute.Depth = fv.depth
	}
	if f.Changed("digit") {
		cfg.Permute.DigitAlphabet = fv.digits
	}
	if f.Changed("workers") {
		cfg.Pipeline.Workers = fv.workers
	}
	if f.Changed("chunk-size") {
		cfg.Pipeline.ChunkSize = fv.chunkSize
	}
	if f.Changed("queue-size") {
		cfg.Pipeline.QueueSize = fv.queueSize
	}
	if f.Changed("atomic") {
		cfg.Output.Atomic = fv.atomic
	}
	if f.Changed("manifest") {
		cfg.Report.Manifest = fv.manifest
	}
	if f.Changed("stats") {
		cfg.Report.Stats = fv.stats
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Address = fv.metricsAddr
	}
	if f.Changed("metrics-file") {
		cfg.Metrics.Textfile = fv.metricsFile
	}
	if f.Changed("log-level") {
		cfg.Logging.Level = fv.logLevel
	}
	if f.Changed("log-format") {
		cfg.Logging.Format = fv.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runPermute(ctx context.Context, cfg config.Config, input, output string) error {
	logging.Setup(cfg.Logging)
	log := logging.Component("main")
	log.Info("permute-digit starting", "version", permuter.Version, "git_sha", permuter.GitSHA)

	r, err := permuter.New(cfg, input, output)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled() {
		m := metrics.Init("")
		defer metrics.Reset()

		if addr := cfg.Metrics.Address; addr != "" {
			go func() {
				log.Info("starting metrics server", "address", addr)
				if err := m.StartServer(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server error", "error", err)
				}
			}()
		}
		if path := cfg.Metrics.Textfile; path != "" {
			defer func() {
				if err := m.WriteTextfile(path); err != nil {
					log.Warn("failed to write metrics file", "path", path, "error", err)
				}
			}()
		}
	}

	// Graceful shutdown handler
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	totals, err := r.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("run interrupted", "error", err)
		}
		return err
	}

	slog.Debug("output written", "checksum", totals.Checksum, "bytes", totals.BytesWritten)
	return nil
}
