package sbtree

import (
	"log/slog"

	"github.com/hupe1980/sbtree/internal/datablock"
	"github.com/hupe1980/sbtree/internal/searchlayer"
	"github.com/hupe1980/sbtree/internal/segment"
)

type options struct {
	bufferCapacity int
	blockCapacity  int
	buckets        int
	maxSlots       int
	fanout         int
	logger         *slog.Logger
	metrics        MetricsObserver
	memoryLimit    int64
	maxConversions int64
	applyLimit     float64
	cacheEntries   int64
}

func defaultOptions() options {
	return options{
		bufferCapacity: segment.DefaultBufferCapacity,
		blockCapacity:  datablock.DefaultCapacity,
		buckets:        datablock.DefaultBuckets,
		maxSlots:       segment.DefaultMaxSlots,
		fanout:         searchlayer.DefaultFanout,
	}
}

// Option configures a Tree.
type Option func(*options)

// WithBufferCapacity sets the per-writer buffer capacity in pairs. The
// default is derived from a 16 KiB buffer budget. Smaller buffers mean
// more frequent conversions, which is handy in tests.
func WithBufferCapacity(pairs int) Option {
	return func(o *options) {
		o.bufferCapacity = pairs
	}
}

// WithBlockCapacity sets the data-block capacity in pairs. The default is
// derived from a 4 KiB block budget.
func WithBlockCapacity(pairs int) Option {
	return func(o *options) {
		o.blockCapacity = pairs
	}
}

// WithBuckets sets the number of n-ary partitions per data block.
func WithBuckets(buckets int) Option {
	return func(o *options) {
		o.buckets = buckets
	}
}

// WithMaxWriterSlots sets the size of a segment's writer slot table,
// bounding how many concurrent writers share one segment.
func WithMaxWriterSlots(slots int) Option {
	return func(o *options) {
		o.maxSlots = slots
	}
}

// WithFanout sets the search-layer fanout. Must be at least 2.
func WithFanout(fanout int) Option {
	return func(o *options) {
		o.fanout = fanout
	}
}

// WithLogger sets the logger for background events. Nil disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets a metrics observer for engine operations.
func WithMetrics(m MetricsObserver) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMemoryLimit caps the memory reserved for converted data blocks, in
// bytes. Exceeding the cap is reported through the logger; 0 disables the
// cap and keeps plain tracking.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMaxConversions bounds how many segment conversions may run at once.
// 0 leaves conversions unbounded.
func WithMaxConversions(n int64) Option {
	return func(o *options) {
		o.maxConversions = n
	}
}

// WithApplyRateLimit throttles the background index worker to the given
// number of leaf blocks per second. 0 disables throttling.
func WithApplyRateLimit(blocksPerSec float64) Option {
	return func(o *options) {
		o.applyLimit = blocksPerSec
	}
}

// WithLookupCache enables a positive-lookup cache holding up to entries
// keys. The workload contract has no updates or deletes, so cached values
// never go stale. 0 disables the cache.
func WithLookupCache(entries int64) Option {
	return func(o *options) {
		o.cacheEntries = entries
	}
}
