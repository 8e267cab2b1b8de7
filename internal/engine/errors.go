package engine

import "errors"

var (
	// ErrClosed is returned when the engine has already been closed.
	ErrClosed = errors.New("engine closed")

	// ErrInvalidConfig is returned for non-positive capacity options.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)
