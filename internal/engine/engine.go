package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/sbtree/internal/datablock"
	"github.com/hupe1980/sbtree/internal/model"
	"github.com/hupe1980/sbtree/internal/resource"
	"github.com/hupe1980/sbtree/internal/searchlayer"
	"github.com/hupe1980/sbtree/internal/segment"
)

// Options configures an Engine.
type Options struct {
	// BufferCapacity is the per-writer buffer capacity in pairs.
	BufferCapacity int

	// BlockCapacity is the data-block capacity in pairs.
	BlockCapacity int

	// Buckets is the number of n-ary partitions per data block.
	Buckets int

	// MaxSlots is the size of a segment's buffer slot table.
	MaxSlots int

	// Fanout is the search-layer fanout. Must be at least 2.
	Fanout int

	// Logger receives background events. Nil disables logging.
	Logger *slog.Logger

	// Metrics observes engine operations. Defaults to NoopMetrics.
	Metrics MetricsObserver

	// Resources limits background work. Nil means unlimited tracking-free.
	Resources *resource.Controller
}

// Engine coordinates the write staging, conversion and index maintenance
// pipeline and exposes the point-lookup and scan read paths.
type Engine struct {
	opts Options

	active atomic.Pointer[segment.Block]
	data   datablock.List
	search *searchlayer.Layer

	// appendMu serializes data-layer attach plus run enqueue, so runs
	// reach the index worker in data-layer order.
	appendMu sync.Mutex

	qmu      sync.Mutex
	qcond    *sync.Cond
	queue    [][]*datablock.Block
	inFlight int
	stopped  bool

	wg sync.WaitGroup

	maxKey atomic.Uint64
	items  atomic.Uint64
	closed atomic.Bool

	batchesEnqueued atomic.Uint64
	batchesApplied  atomic.Uint64
	itemsEnqueued   atomic.Uint64
	itemsApplied    atomic.Uint64

	memBytes atomic.Int64

	writers sync.Pool

	ctx    context.Context
	cancel context.CancelFunc

	logger    *slog.Logger
	metrics   MetricsObserver
	resources *resource.Controller
}

// New creates an engine and starts its index worker.
func New(optFns ...func(*Options)) (*Engine, error) {
	opts := Options{
		BufferCapacity: segment.DefaultBufferCapacity,
		BlockCapacity:  datablock.DefaultCapacity,
		Buckets:        datablock.DefaultBuckets,
		MaxSlots:       segment.DefaultMaxSlots,
		Fanout:         searchlayer.DefaultFanout,
		Metrics:        NoopMetrics{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.BufferCapacity <= 0 {
		return nil, fmt.Errorf("%w: buffer capacity %d", ErrInvalidConfig, opts.BufferCapacity)
	}
	if opts.BlockCapacity <= 0 {
		return nil, fmt.Errorf("%w: block capacity %d", ErrInvalidConfig, opts.BlockCapacity)
	}
	if opts.Buckets <= 0 {
		return nil, fmt.Errorf("%w: buckets %d", ErrInvalidConfig, opts.Buckets)
	}
	if opts.MaxSlots <= 0 {
		return nil, fmt.Errorf("%w: max slots %d", ErrInvalidConfig, opts.MaxSlots)
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics{}
	}

	search, err := searchlayer.New(opts.Fanout)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:      opts,
		search:    search,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		resources: opts.Resources,
	}
	e.qcond = sync.NewCond(&e.qmu)
	e.active.Store(segment.New(opts.BufferCapacity, opts.MaxSlots))
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.writers.New = func() any { return e.Writer() }

	e.wg.Add(1)
	go e.runIndexLoop()

	return e, nil
}

// Insert stores (k, v) using a pooled writer handle. For a pinned
// high-throughput writer, use Writer.
func (e *Engine) Insert(k model.Key, v model.Value) {
	w := e.writers.Get().(*Writer)
	w.Insert(k, v)
	e.writers.Put(w)
}

// Lookup returns the value stored under k. The search layer yields a
// candidate lower-bound block; keys in the unpromoted tail are reached by
// walking right along the data layer.
func (e *Engine) Lookup(k model.Key) (model.Value, bool) {
	blk := e.search.FindCandidate(k)
	if blk == nil {
		blk = e.data.Head()
	}
	for blk != nil {
		if v, ok := blk.Find(k); ok {
			e.metrics.OnLookup(true)
			return v, true
		}
		next := blk.Next()
		if next == nil || next.MinKey() > k {
			break
		}
		blk = next
	}
	e.metrics.OnLookup(false)
	return 0, false
}

// Scan returns the values of all keys in [lo, hi] in ascending key order.
func (e *Engine) Scan(lo, hi model.Key) []model.Value {
	if lo > hi {
		return nil
	}
	blk := e.search.FindCandidate(lo)
	if blk == nil {
		blk = e.data.Head()
	}
	var out []model.Value
	for blk != nil {
		if blk.MinKey() > hi {
			break
		}
		out = blk.ScanRange(lo, hi, out)
		blk = blk.Next()
	}
	e.metrics.OnScan(len(out))
	return out
}

// Flush converts the active segment synchronously. Idempotent when the
// active segment is empty or absent.
func (e *Engine) Flush() {
	if old := e.active.Swap(nil); old != nil {
		old.Seal()
		e.convertAndAppend(old)
	}
}

// FlushIndex blocks until all previously enqueued index runs have been
// applied.
func (e *Engine) FlushIndex() {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	for len(e.queue) > 0 || e.inFlight > 0 {
		e.qcond.Wait()
	}
}

// Close flushes outstanding writes and index work, then stops and joins
// the index worker. Subsequent calls return ErrClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	e.Flush()
	e.FlushIndex()

	e.qmu.Lock()
	e.stopped = true
	e.qmu.Unlock()
	e.qcond.Broadcast()
	e.cancel()
	e.wg.Wait()

	if e.resources != nil {
		e.resources.ReleaseMemory(e.memBytes.Swap(0))
	}
	return nil
}

// rotate swaps a fresh segment in for old. The CAS winner seals and
// converts old; losers retry against the new active segment.
func (e *Engine) rotate(old *segment.Block) {
	fresh := segment.New(e.opts.BufferCapacity, e.opts.MaxSlots)
	if e.active.CompareAndSwap(old, fresh) {
		old.Seal()
		e.convertAndAppend(old)
	}
}

// convertAndAppend drains seg into a sorted run, slices it into data
// blocks, attaches them to the data layer and enqueues the run for the
// index worker.
func (e *Engine) convertAndAppend(seg *segment.Block) {
	if err := e.resources.AcquireConversion(e.ctx); err == nil {
		defer e.resources.ReleaseConversion()
	}

	start := time.Now()
	kvs := seg.CollectAndSort()
	if len(kvs) == 0 {
		return
	}

	blocks := make([]*datablock.Block, 0, (len(kvs)+e.opts.BlockCapacity-1)/e.opts.BlockCapacity)
	rest := kvs
	for len(rest) > 0 {
		blk, consumed := datablock.BuildFromSorted(rest, e.opts.BlockCapacity, e.opts.Buckets)
		rest = rest[consumed:]
		if n := len(blocks); n > 0 {
			blocks[n-1].SetNext(blk)
		}
		blocks = append(blocks, blk)
	}

	bytes := int64(len(blocks)) * datablock.BlockBytes
	if err := e.resources.AcquireMemory(bytes); err != nil {
		if e.logger != nil {
			e.logger.Error("block memory reservation failed", "bytes", bytes, "error", err)
		}
	} else {
		e.memBytes.Add(bytes)
	}

	e.appendMu.Lock()
	e.data.Append(blocks[0], blocks[len(blocks)-1], len(blocks))
	e.enqueueRun(blocks)
	e.appendMu.Unlock()

	e.items.Add(uint64(len(kvs)))
	e.metrics.OnConvert(len(blocks), len(kvs), time.Since(start))
	if e.logger != nil {
		e.logger.Debug("segment converted", "blocks", len(blocks), "items", len(kvs))
	}
}

func (e *Engine) enqueueRun(blocks []*datablock.Block) {
	e.qmu.Lock()
	e.batchesEnqueued.Add(1)
	e.itemsEnqueued.Add(uint64(len(blocks)))
	e.queue = append(e.queue, blocks)
	depth := len(e.queue)
	e.qmu.Unlock()
	e.qcond.Broadcast()
	e.metrics.OnQueueDepth(depth)
}

// runIndexLoop is the single background worker that applies queued runs
// to the search layer and publishes snapshots.
func (e *Engine) runIndexLoop() {
	defer e.wg.Done()
	for {
		e.qmu.Lock()
		for !e.stopped && len(e.queue) == 0 {
			e.qcond.Wait()
		}
		if e.stopped && len(e.queue) == 0 {
			e.qmu.Unlock()
			return
		}
		run := e.queue[0]
		e.queue = e.queue[1:]
		e.inFlight++
		e.qmu.Unlock()

		// Throttle is skipped during shutdown so queued runs still land.
		_ = e.resources.WaitApply(e.ctx, len(run))

		start := time.Now()
		if err := e.search.AppendRun(run); err != nil {
			if e.logger != nil {
				e.logger.Error("index apply failed", "blocks", len(run), "error", err)
			}
		}
		e.batchesApplied.Add(1)
		e.itemsApplied.Add(uint64(len(run)))
		e.metrics.OnIndexApply(len(run), time.Since(start))

		e.qmu.Lock()
		e.inFlight--
		e.qmu.Unlock()
		e.qcond.Broadcast()
	}
}

// Levels returns the number of search-layer levels visible to readers,
// including the leaf level.
func (e *Engine) Levels() int {
	return e.search.Snapshot().NumLevels()
}

// MaxKey returns the largest key ever inserted. Diagnostic only; the read
// path never consults it.
func (e *Engine) MaxKey() model.Key {
	return e.maxKey.Load()
}

// Stats is a point-in-time snapshot of the engine's diagnostic counters.
type Stats struct {
	Items                uint64
	Blocks               int64
	IndexLevels          int
	IndexLeaves          int
	IndexBatchesEnqueued uint64
	IndexBatchesApplied  uint64
	IndexItemsEnqueued   uint64
	IndexItemsApplied    uint64
	MaxKey               model.Key
	MemoryUsageBytes     int64
}

// Stats returns the current diagnostic counters.
func (e *Engine) Stats() Stats {
	snap := e.search.Snapshot()
	return Stats{
		Items:                e.items.Load(),
		Blocks:               e.data.Blocks(),
		IndexLevels:          snap.NumLevels(),
		IndexLeaves:          len(snap.L0),
		IndexBatchesEnqueued: e.batchesEnqueued.Load(),
		IndexBatchesApplied:  e.batchesApplied.Load(),
		IndexItemsEnqueued:   e.itemsEnqueued.Load(),
		IndexItemsApplied:    e.itemsApplied.Load(),
		MaxKey:               e.maxKey.Load(),
		MemoryUsageBytes:     e.memBytes.Load(),
	}
}
