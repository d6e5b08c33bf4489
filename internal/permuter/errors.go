package permuter

import (
	"errors"

	"github.com/withObsrvr/digit-permuter/internal/config"
)

var (
	// ErrConfig is returned for settings rejected before any I/O.
	ErrConfig = config.ErrConfig
	// ErrInputIO is returned when the input cannot be opened or read.
	ErrInputIO = errors.New("input error")
	// ErrOutputIO is returned when the output cannot be opened, written,
	// flushed or closed.
	ErrOutputIO = errors.New("output error")
	// ErrExpansion marks a single line that could not be expanded. It is
	// logged and counted, never returned from a run.
	ErrExpansion = errors.New("expansion failed")
)
