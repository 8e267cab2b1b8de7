package datablock

import (
	"sync/atomic"

	"github.com/hupe1980/sbtree/internal/model"
)

const (
	// BlockBytes is the byte budget of one block.
	BlockBytes = 4096

	// headerBytes covers status, min key, next pointer, a lock word and
	// the entry count.
	headerBytes = 1 + 8 + 8 + 4 + 4

	// DefaultBuckets is the default number of n-ary partitions.
	DefaultBuckets = 8

	// DefaultCapacity is the number of pairs that fit the budget after
	// header and n-ary table with DefaultBuckets.
	DefaultCapacity = (BlockBytes - headerBytes - DefaultBuckets*8) / model.KVSize
)

// Block is an immutable sorted leaf. Keys are kept separate from values,
// and a small n-ary table over the sorted keys narrows point lookups to a
// short linear scan.
//
// A Block never changes after BuildFromSorted except for its next link,
// which is set once while linking the block into the data layer.
type Block struct {
	minKey  model.Key
	count   int
	buckets int
	next    atomic.Pointer[Block]
	nary    []model.Key
	keys    []model.Key
	vals    []model.Value
}

// BuildFromSorted builds a block from a prefix of src, which must be
// sorted ascending by key. It consumes min(len(src), capacity) pairs and
// returns the block together with the number consumed, so the caller can
// slice the remainder into further blocks.
func BuildFromSorted(src []model.KV, capacity, buckets int) (*Block, int) {
	take := min(len(src), capacity)
	b := &Block{
		minKey:  model.MaxKey,
		count:   take,
		buckets: buckets,
		nary:    make([]model.Key, buckets),
		keys:    make([]model.Key, take),
		vals:    make([]model.Value, take),
	}
	for i := range take {
		b.keys[i] = src[i].Key
		b.vals[i] = src[i].Value
	}
	if take > 0 {
		b.minKey = b.keys[0]
	}
	b.buildNary()
	return b, take
}

func (b *Block) buildNary() {
	for i := range b.nary {
		b.nary[i] = model.MaxKey
	}
	if b.count == 0 {
		return
	}
	buckets := min(b.count, b.buckets)
	per := (b.count + buckets - 1) / buckets
	for i := range buckets {
		if idx := i * per; idx < b.count {
			b.nary[i] = b.keys[idx]
		}
	}
}

// bucketRange returns the half-open index range [lo, hi) of the n-ary
// bucket that may contain k.
func (b *Block) bucketRange(k model.Key) (int, int) {
	upper := 0
	for upper < b.buckets && b.nary[upper] <= k {
		upper++
	}
	buckets := min(b.count, b.buckets)
	per := (b.count + buckets - 1) / buckets
	if upper == 0 {
		return 0, min(per, b.count)
	}
	return (upper - 1) * per, min(upper*per, b.count)
}

// Find returns the value stored under k.
func (b *Block) Find(k model.Key) (model.Value, bool) {
	if b.count == 0 || k < b.minKey {
		return 0, false
	}
	lo, hi := b.bucketRange(k)
	for i := lo; i < hi; i++ {
		if b.keys[i] == k {
			return b.vals[i], true
		}
		if b.keys[i] > k {
			break
		}
	}
	return 0, false
}

// ScanFrom appends up to n values starting at the first key >= start and
// returns the extended slice.
func (b *Block) ScanFrom(start model.Key, n int, out []model.Value) []model.Value {
	if b.count == 0 {
		return out
	}
	lo, hi := b.bucketRange(start)
	pos := lo
	for pos < hi && b.keys[pos] < start {
		pos++
	}
	for pos < b.count && n > 0 {
		out = append(out, b.vals[pos])
		pos++
		n--
	}
	return out
}

// ScanRange appends the values of all keys in [lo, hi] and returns the
// extended slice.
func (b *Block) ScanRange(lo, hi model.Key, out []model.Value) []model.Value {
	if lo > hi {
		return out
	}
	pos := b.lowerBound(lo)
	for i := pos; i < b.count; i++ {
		if b.keys[i] > hi {
			break
		}
		out = append(out, b.vals[i])
	}
	return out
}

// Seek returns the first index with keys[i] >= k, or Size when every key
// is smaller.
func (b *Block) Seek(k model.Key) int {
	return b.lowerBound(k)
}

// lowerBound returns the first index with keys[i] >= k, or count.
func (b *Block) lowerBound(k model.Key) int {
	lo, hi := 0, b.count
	pos := b.count
	for lo < hi {
		mid := lo + (hi-lo)/2
		if b.keys[mid] >= k {
			pos = mid
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return pos
}

// EntryAt returns the pair at index i. No bounds check; test and cursor
// callers stay within [0, Size).
func (b *Block) EntryAt(i int) model.KV {
	return model.KV{Key: b.keys[i], Value: b.vals[i]}
}

// Size returns the number of stored pairs.
func (b *Block) Size() int {
	return b.count
}

// MinKey returns the smallest key in the block.
func (b *Block) MinKey() model.Key {
	return b.minKey
}

// MaxKey returns the largest key in the block. Meaningless when empty.
func (b *Block) MaxKey() model.Key {
	if b.count == 0 {
		return 0
	}
	return b.keys[b.count-1]
}

// Next returns the following block in the data layer, if any.
func (b *Block) Next() *Block {
	return b.next.Load()
}

// SetNext links the following block. Called once per block while the data
// layer appends a converted run; the atomic store publishes the link to
// lock-free readers.
func (b *Block) SetNext(n *Block) {
	b.next.Store(n)
}
