package sbtree

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/sbtree/internal/engine"
)

// MetricsObserver receives engine operation events. Implement it to
// integrate with monitoring systems; the insert and lookup hooks sit on
// hot paths and should stay cheap.
type MetricsObserver = engine.MetricsObserver

// NoopMetrics discards all events.
type NoopMetrics = engine.NoopMetrics

// BasicMetrics is a simple in-memory MetricsObserver backed by atomic
// counters. Useful for debugging and tests without external dependencies.
type BasicMetrics struct {
	inserts        atomic.Uint64
	lookupHits     atomic.Uint64
	lookupMisses   atomic.Uint64
	scannedValues  atomic.Uint64
	conversions    atomic.Uint64
	convertedItems atomic.Uint64
	indexApplies   atomic.Uint64
	appliedBlocks  atomic.Uint64
	maxQueueDepth  atomic.Int64
}

func (m *BasicMetrics) OnInsert() { m.inserts.Add(1) }

func (m *BasicMetrics) OnLookup(hit bool) {
	if hit {
		m.lookupHits.Add(1)
	} else {
		m.lookupMisses.Add(1)
	}
}

func (m *BasicMetrics) OnScan(values int) { m.scannedValues.Add(uint64(values)) }

func (m *BasicMetrics) OnConvert(blocks, items int, _ time.Duration) {
	m.conversions.Add(1)
	m.convertedItems.Add(uint64(items))
}

func (m *BasicMetrics) OnIndexApply(blocks int, _ time.Duration) {
	m.indexApplies.Add(1)
	m.appliedBlocks.Add(uint64(blocks))
}

func (m *BasicMetrics) OnQueueDepth(depth int) {
	for {
		cur := m.maxQueueDepth.Load()
		if int64(depth) <= cur || m.maxQueueDepth.CompareAndSwap(cur, int64(depth)) {
			return
		}
	}
}

// Inserts returns the number of stored pairs.
func (m *BasicMetrics) Inserts() uint64 { return m.inserts.Load() }

// Lookups returns the number of point-lookup hits and misses.
func (m *BasicMetrics) Lookups() (hits, misses uint64) {
	return m.lookupHits.Load(), m.lookupMisses.Load()
}

// ScannedValues returns the total number of values returned by scans.
func (m *BasicMetrics) ScannedValues() uint64 { return m.scannedValues.Load() }

// Conversions returns the number of segment conversions and the total
// pairs they produced.
func (m *BasicMetrics) Conversions() (count, items uint64) {
	return m.conversions.Load(), m.convertedItems.Load()
}

// IndexApplies returns the number of applied runs and leaf blocks.
func (m *BasicMetrics) IndexApplies() (runs, blocks uint64) {
	return m.indexApplies.Load(), m.appliedBlocks.Load()
}

// MaxQueueDepth returns the deepest index queue observed.
func (m *BasicMetrics) MaxQueueDepth() int64 { return m.maxQueueDepth.Load() }
