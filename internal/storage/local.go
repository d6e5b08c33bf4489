package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/withObsrvr/digit-permuter/internal/source"
)

// LocalSink writes variants to a file on the local filesystem.
type LocalSink struct {
	*lineWriter
	path     string
	tempPath string // empty unless atomic
	file     *os.File
}

// NewLocalSink creates (or truncates) the output file. With atomic set the
// data goes to path+".tmp" and is renamed over path on Close.
func NewLocalSink(path string, comp source.Compression, atomic bool) (*LocalSink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	target := path
	s := &LocalSink{path: path}
	if atomic {
		s.tempPath = path + ".tmp"
		target = s.tempPath
	}

	f, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", target, err)
	}
	s.file = f

	lw, err := newLineWriter(f, comp)
	if err != nil {
		f.Close()
		os.Remove(target)
		return nil, err
	}
	s.lineWriter = lw

	return s, nil
}

// Location returns the final output path.
func (s *LocalSink) Location() string {
	return s.path
}

// Close flushes the output and, for atomic sinks, moves the temp file into
// place.
func (s *LocalSink) Close() error {
	if err := s.finish(); err != nil {
		s.Abort()
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	if err := s.file.Close(); err != nil {
		if s.tempPath != "" {
			os.Remove(s.tempPath)
		}
		return fmt.Errorf("close %s: %w", s.path, err)
	}

	if s.tempPath == "" {
		return nil
	}
	if err := os.Rename(s.tempPath, s.path); err != nil {
		// Clean up temp file on rename failure
		os.Remove(s.tempPath)
		return fmt.Errorf("rename %s to %s: %w", s.tempPath, s.path, err)
	}
	return nil
}

// Abort closes the file without flushing. Atomic sinks remove their temp
// file; plain sinks keep every batch flushed so far.
func (s *LocalSink) Abort() error {
	err := s.file.Close()
	if s.tempPath != "" {
		if rerr := os.Remove(s.tempPath); rerr != nil && !os.IsNotExist(rerr) {
			return rerr
		}
	}
	return err
}
