package source

import (
	"fmt"
	"os"
)

// LocalSource reads a wordlist from the local filesystem.
type LocalSource struct {
	path string
	file *os.File
}

// NewLocalSource opens path for reading.
func NewLocalSource(path string) (*LocalSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("invalid local path %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("local path %s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return &LocalSource{path: path, file: f}, nil
}

func (s *LocalSource) Read(p []byte) (int, error) {
	return s.file.Read(p)
}

// Location returns the path the source was opened from.
func (s *LocalSource) Location() string {
	return s.path
}

// Close closes the underlying file.
func (s *LocalSource) Close() error {
	return s.file.Close()
}

// stdinSource reads from standard input. Close leaves stdin open.
type stdinSource struct {
	f *os.File
}

func newStdinSource() *stdinSource {
	return &stdinSource{f: os.Stdin}
}

func (s *stdinSource) Read(p []byte) (int, error) { return s.f.Read(p) }
func (s *stdinSource) Location() string           { return StdinLocation }
func (s *stdinSource) Close() error               { return nil }
