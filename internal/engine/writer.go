package engine

import (
	"github.com/hupe1980/sbtree/internal/model"
	"github.com/hupe1980/sbtree/internal/segment"
)

// Writer is an insert handle that caches its buffer slot in the active
// segment. The handle owns the slot exclusively while held, which keeps
// per-writer buffers single-owner. The cache is invalidated whenever the
// active segment rotates underneath the handle.
//
// A Writer must not be used from multiple goroutines at once.
type Writer struct {
	e    *Engine
	seg  *segment.Block
	slot int
}

// Writer returns a fresh insert handle pinned to this engine.
func (e *Engine) Writer() *Writer {
	return &Writer{e: e, slot: -1}
}

// Insert stores (k, v). Append rejections from the segment are transient
// control signals, answered by rotating to a fresh segment and retrying.
func (w *Writer) Insert(k model.Key, v model.Value) {
	e := w.e
	for {
		seg := e.active.Load()
		if seg == nil {
			e.active.CompareAndSwap(nil, segment.New(e.opts.BufferCapacity, e.opts.MaxSlots))
			continue
		}
		if w.seg != seg {
			w.seg, w.slot = seg, -1
		}
		if w.slot < 0 {
			if w.slot = seg.AcquireSlot(); w.slot < 0 {
				w.seg = nil
				e.rotate(seg)
				continue
			}
		}
		if seg.Append(w.slot, k, v) {
			for {
				cur := e.maxKey.Load()
				if k <= cur || e.maxKey.CompareAndSwap(cur, k) {
					break
				}
			}
			e.metrics.OnInsert()
			if seg.ShouldSeal() {
				e.rotate(seg)
			}
			return
		}
		w.seg = nil
		e.rotate(seg)
	}
}
