// Package config loads permute-digit settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/withObsrvr/digit-permuter/internal/logging"
	"github.com/withObsrvr/digit-permuter/internal/metrics"
	"github.com/withObsrvr/digit-permuter/internal/permute"
)

// ErrConfig marks every configuration problem. It is raised before any
// input or output is touched.
var ErrConfig = errors.New("invalid configuration")

type Config struct {
	Permute  PermuteConfig  `yaml:"permute"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Output   OutputConfig   `yaml:"output"`
	Logging  logging.Config `yaml:"logging"`
	Metrics  metrics.Config `yaml:"metrics"`
	Report   ReportConfig   `yaml:"report"`
}

type PermuteConfig struct {
	// Depth limits substitution to the last Depth digit positions of a
	// word. Zero or negative means every position.
	Depth         int    `yaml:"depth"`
	DigitAlphabet string `yaml:"digit_alphabet"`
}

type PipelineConfig struct {
	Workers   int `yaml:"workers"`
	ChunkSize int `yaml:"chunk_size"`
	// QueueSize caps the batches in flight between the reader and the
	// writer. Zero selects 2*Workers.
	QueueSize int `yaml:"queue_size"`
}

type OutputConfig struct {
	Atomic bool `yaml:"atomic"`
}

type ReportConfig struct {
	Manifest string `yaml:"manifest"` // run manifest JSON path
	Stats    string `yaml:"stats"`    // per-batch stats parquet path
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Permute: PermuteConfig{
			Depth:         0,
			DigitAlphabet: permute.DefaultAlphabet,
		},
		Pipeline: PipelineConfig{
			Workers:   2,
			ChunkSize: 1000,
		},
		Logging: logging.Config{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return cfg, nil
}

// Validate checks the settings. Every error wraps ErrConfig.
func (c Config) Validate() error {
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrConfig, c.Pipeline.Workers)
	}
	if c.Pipeline.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk size must be at least 1, got %d", ErrConfig, c.Pipeline.ChunkSize)
	}
	if c.Pipeline.QueueSize < 0 {
		return fmt.Errorf("%w: queue size must not be negative, got %d", ErrConfig, c.Pipeline.QueueSize)
	}
	if _, err := c.Alphabet(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

// Alphabet parses Permute.DigitAlphabet.
func (c Config) Alphabet() (permute.Alphabet, error) {
	a, err := permute.ParseAlphabet(c.Permute.DigitAlphabet)
	if err != nil {
		return nil, fmt.Errorf("%w: digit alphabet: %v", ErrConfig, err)
	}
	return a, nil
}

// EffectiveQueueSize resolves the zero default.
func (c Config) EffectiveQueueSize() int {
	if c.Pipeline.QueueSize > 0 {
		return c.Pipeline.QueueSize
	}
	return 2 * c.Pipeline.Workers
}
