package sbtree

import (
	"fmt"
	"iter"
	"math"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/hupe1980/sbtree/internal/engine"
	"github.com/hupe1980/sbtree/internal/model"
	"github.com/hupe1980/sbtree/internal/resource"
)

// KV is an ordered key/value pair.
type KV = model.KV

// Stats is a point-in-time snapshot of the engine's diagnostic counters.
type Stats = engine.Stats

// Tree is a concurrent ordered key/value store. Any number of goroutines
// may call Insert, Lookup and Scan concurrently.
type Tree struct {
	eng    *engine.Engine
	cache  *ristretto.Cache[uint64, uint64]
	closed atomic.Bool
}

// New creates a tree and starts its background index worker.
func New(optFns ...Option) (*Tree, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	var rc *resource.Controller
	if o.memoryLimit > 0 || o.maxConversions > 0 || o.applyLimit > 0 {
		rc = resource.NewController(resource.Config{
			MemoryLimitBytes:       o.memoryLimit,
			MaxConversions:         o.maxConversions,
			ApplyLimitBlocksPerSec: o.applyLimit,
		})
	}

	eng, err := engine.New(func(eo *engine.Options) {
		eo.BufferCapacity = o.bufferCapacity
		eo.BlockCapacity = o.blockCapacity
		eo.Buckets = o.buckets
		eo.MaxSlots = o.maxSlots
		eo.Fanout = o.fanout
		eo.Logger = o.logger
		eo.Metrics = o.metrics
		eo.Resources = rc
	})
	if err != nil {
		return nil, err
	}

	t := &Tree{eng: eng}

	if o.cacheEntries > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[uint64, uint64]{
			NumCounters: o.cacheEntries * 10,
			MaxCost:     o.cacheEntries,
			BufferItems: 64,
		})
		if err != nil {
			_ = eng.Close()
			return nil, fmt.Errorf("lookup cache: %w", err)
		}
		t.cache = cache
	}

	return t, nil
}

// Insert stores (k, v).
func (t *Tree) Insert(k, v uint64) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.eng.Insert(k, v)
	return nil
}

// BatchInsert stores keys[i] -> values[i] through one pinned writer
// handle.
func (t *Tree) BatchInsert(keys, values []uint64) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if len(keys) != len(values) {
		return fmt.Errorf("%w: %d keys, %d values", ErrLengthMismatch, len(keys), len(values))
	}
	w := t.eng.Writer()
	for i, k := range keys {
		w.Insert(k, values[i])
	}
	return nil
}

// Writer returns an insert handle pinned to this tree. A handle caches
// its buffer slot across inserts and must not be shared between
// goroutines; it is the cheapest way to drive a sustained single-writer
// stream.
func (t *Tree) Writer() *Writer {
	return &Writer{t: t, w: t.eng.Writer()}
}

// Writer is a single-goroutine insert handle. See Tree.Writer.
type Writer struct {
	t *Tree
	w *engine.Writer
}

// Insert stores (k, v).
func (w *Writer) Insert(k, v uint64) error {
	if w.t.closed.Load() {
		return ErrClosed
	}
	w.w.Insert(k, v)
	return nil
}

// Lookup returns the value stored under k. Keys are expected to be
// unique; if duplicates were ever inserted, the occurrence in the
// leftmost containing data block wins, earliest-staged first.
func (t *Tree) Lookup(k uint64) (uint64, bool) {
	if t.cache != nil {
		if v, ok := t.cache.Get(k); ok {
			return v, true
		}
	}
	v, ok := t.eng.Lookup(k)
	if ok && t.cache != nil {
		t.cache.Set(k, v, 1)
	}
	return v, ok
}

// Scan returns the values of all keys in [lo, hi] in ascending key
// order. An inverted or disjoint range yields an empty result.
func (t *Tree) Scan(lo, hi uint64) []uint64 {
	return t.eng.Scan(lo, hi)
}

// Range iterates the pairs with keys in [lo, hi] in ascending key order.
func (t *Tree) Range(lo, hi uint64) iter.Seq2[uint64, uint64] {
	return func(yield func(uint64, uint64) bool) {
		c := t.eng.RangeCursor(lo, hi)
		for kv, ok := c.Next(); ok; kv, ok = c.Next() {
			if !yield(kv.Key, kv.Value) {
				return
			}
		}
	}
}

// All iterates every stored pair in ascending key order.
func (t *Tree) All() iter.Seq2[uint64, uint64] {
	return t.Range(0, math.MaxUint64)
}

// RangeCursor opens a lazy cursor over [lo, hi]. The cursor stays valid
// for the life of the tree.
func (t *Tree) RangeCursor(lo, hi uint64) *Cursor {
	return &Cursor{c: t.eng.RangeCursor(lo, hi)}
}

// Flush converts the active segment synchronously, making its pairs
// readable. Idempotent when nothing is staged.
func (t *Tree) Flush() error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.eng.Flush()
	return nil
}

// FlushIndex blocks until all previously enqueued index work has been
// applied to the search layer.
func (t *Tree) FlushIndex() error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.eng.FlushIndex()
	return nil
}

// Stats returns the engine's diagnostic counters.
func (t *Tree) Stats() Stats {
	return t.eng.Stats()
}

// Levels returns the number of search-index levels visible to readers,
// including the leaf level.
func (t *Tree) Levels() int {
	return t.eng.Levels()
}

// MaxKey returns the largest key ever inserted. Diagnostic only.
func (t *Tree) MaxKey() uint64 {
	return t.eng.MaxKey()
}

// Close flushes outstanding writes and index work, then stops the
// background worker. Subsequent calls return ErrClosed.
func (t *Tree) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	err := t.eng.Close()
	if t.cache != nil {
		t.cache.Close()
	}
	return err
}
