package sbtree

import (
	"errors"

	"github.com/hupe1980/sbtree/internal/engine"
	"github.com/hupe1980/sbtree/internal/searchlayer"
)

var (
	// ErrClosed is returned by operations on a closed tree.
	ErrClosed = engine.ErrClosed

	// ErrInvalidConfig is returned by New for non-positive capacities.
	ErrInvalidConfig = engine.ErrInvalidConfig

	// ErrInvalidFanout is returned by New when the fanout is below 2.
	ErrInvalidFanout = searchlayer.ErrInvalidFanout

	// ErrLengthMismatch is returned by BatchInsert when the key and
	// value slices differ in length.
	ErrLengthMismatch = errors.New("keys and values length mismatch")
)
