package engine

import "time"

// MetricsObserver receives engine operation events. Implementations must
// be safe for concurrent use; the insert and lookup hooks sit on hot
// paths and should stay cheap.
type MetricsObserver interface {
	// OnInsert is called after each stored pair.
	OnInsert()

	// OnLookup is called after each point lookup.
	OnLookup(hit bool)

	// OnScan is called after each range scan with the number of values
	// returned.
	OnScan(values int)

	// OnConvert is called after a segment conversion.
	OnConvert(blocks, items int, d time.Duration)

	// OnIndexApply is called after the worker applies one run.
	OnIndexApply(blocks int, d time.Duration)

	// OnQueueDepth reports the index queue depth after an enqueue.
	OnQueueDepth(depth int)
}

// NoopMetrics discards all events.
type NoopMetrics struct{}

func (NoopMetrics) OnInsert()                         {}
func (NoopMetrics) OnLookup(bool)                     {}
func (NoopMetrics) OnScan(int)                        {}
func (NoopMetrics) OnConvert(int, int, time.Duration) {}
func (NoopMetrics) OnIndexApply(int, time.Duration)   {}
func (NoopMetrics) OnQueueDepth(int)                  {}
