package segment

import (
	"cmp"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/sbtree/internal/model"
)

// DefaultMaxSlots is the default size of a Block's buffer slot table.
const DefaultMaxSlots = 128

// Status is the lifecycle phase of a Block.
type Status uint32

const (
	// StatusActive accepts appends.
	StatusActive Status = iota
	// StatusConvert rejects appends; the block is being drained.
	StatusConvert
	// StatusConverted marks a fully drained block.
	StatusConverted
)

// Block is a segmented write block: a fixed table of per-writer buffer
// slots plus the shared state needed to seal and drain it.
//
// Appends are accepted only while the status is StatusActive. Append
// failures are not errors; they signal the coordinator to rotate to a
// fresh Block.
type Block struct {
	status     atomic.Uint32
	minKey     atomic.Uint64
	shouldSeal atomic.Bool

	// reserved counts appends that entered Append, committed counts
	// appends that left it. CollectAndSort seals and then waits for
	// reserved == committed before touching buffer contents.
	reserved  atomic.Int64
	committed atomic.Int64

	mu      sync.Mutex
	buffers []*Buffer
	bufCap  int
	slots   atomic.Int32
}

// New creates an active Block with the given per-buffer capacity and slot
// table size.
func New(bufferCapacity, maxSlots int) *Block {
	b := &Block{
		buffers: make([]*Buffer, maxSlots),
		bufCap:  bufferCapacity,
	}
	b.minKey.Store(model.MaxKey)
	return b
}

// AcquireSlot allocates a buffer slot for the calling writer. The returned
// slot index is owned exclusively by the caller until the Block is drained.
// Returns -1 when the slot table is exhausted.
func (b *Block) AcquireSlot() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, buf := range b.buffers {
		if buf == nil {
			b.buffers[i] = NewBuffer(b.bufCap)
			b.slots.Add(1)
			return i
		}
	}
	return -1
}

// Append writes (k, v) into the caller-owned slot. It returns false when
// the block is no longer active or the slot's buffer is full; the value is
// stored only on a true return.
func (b *Block) Append(slot int, k model.Key, v model.Value) bool {
	b.reserved.Add(1)
	defer b.committed.Add(1)

	if Status(b.status.Load()) != StatusActive {
		return false
	}

	buf := b.buffers[slot]
	if !buf.Insert(k, v) {
		return false
	}

	for {
		cur := b.minKey.Load()
		if k >= cur || b.minKey.CompareAndSwap(cur, k) {
			break
		}
	}

	if buf.IsFull() {
		b.shouldSeal.Store(true)
	}
	return true
}

// ShouldSeal reports whether some buffer filled up. Once raised it stays
// raised.
func (b *Block) ShouldSeal() bool {
	return b.shouldSeal.Load()
}

// Seal transitions the block from active to converting. Idempotent.
func (b *Block) Seal() {
	b.status.CompareAndSwap(uint32(StatusActive), uint32(StatusConvert))
}

// Status returns the current lifecycle phase.
func (b *Block) Status() Status {
	return Status(b.status.Load())
}

// MinKey returns the smallest key appended so far, or model.MaxKey when
// the block is empty.
func (b *Block) MinKey() model.Key {
	return b.minKey.Load()
}

// Slots returns the number of allocated buffer slots.
func (b *Block) Slots() int {
	return int(b.slots.Load())
}

// CollectAndSort seals the block if needed, waits for in-flight appends to
// drain, and returns the contents of all buffers merged into one slice
// sorted ascending by key. The sort is stable, so duplicates staged within
// one block keep their arrival order.
func (b *Block) CollectAndSort() []model.KV {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Seal()
	for b.reserved.Load() != b.committed.Load() {
		// Stragglers that passed the status check are finishing up.
		runtime.Gosched()
	}

	total := 0
	for _, buf := range b.buffers {
		if buf != nil {
			total += buf.Len()
		}
	}
	if total == 0 {
		b.status.Store(uint32(StatusConverted))
		return nil
	}

	out := make([]model.KV, 0, total)
	for _, buf := range b.buffers {
		if buf != nil {
			out = append(out, buf.Entries()...)
		}
	}
	slices.SortStableFunc(out, func(a, b model.KV) int {
		return cmp.Compare(a.Key, b.Key)
	})

	b.status.Store(uint32(StatusConverted))
	return out
}
