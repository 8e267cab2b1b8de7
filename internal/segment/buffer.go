package segment

import "github.com/hupe1980/sbtree/internal/model"

const (
	// bufferBytes is the byte budget of one per-writer buffer.
	bufferBytes = 16 << 10

	// bufferMetaBytes accounts for the length and max-key prefix.
	bufferMetaBytes = 16

	// DefaultBufferCapacity is the number of pairs that fit the budget.
	DefaultBufferCapacity = (bufferBytes - bufferMetaBytes) / model.KVSize
)

// Buffer is a single-owner, fixed-capacity append buffer. It carries no
// internal synchronization: exactly one writer appends until the owning
// Block is sealed, after which the contents are read quiescently.
type Buffer struct {
	entries []model.KV
	maxKey  model.Key
}

// NewBuffer creates a buffer holding up to capacity pairs.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{entries: make([]model.KV, 0, capacity)}
}

// Insert appends (k, v). It returns false when the buffer is full; the
// caller is expected to switch to a fresh segment.
func (b *Buffer) Insert(k model.Key, v model.Value) bool {
	if len(b.entries) == cap(b.entries) {
		return false
	}
	b.entries = append(b.entries, model.KV{Key: k, Value: v})
	b.maxKey = k
	return true
}

// IsFull reports whether the buffer reached its capacity.
func (b *Buffer) IsFull() bool {
	return len(b.entries) == cap(b.entries)
}

// Len returns the number of stored pairs.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// MaxKey returns the key of the most recent append. Meaningless while the
// buffer is empty.
func (b *Buffer) MaxKey() model.Key {
	return b.maxKey
}

// Entries exposes the stored pairs. Only valid once the owning Block has
// been sealed and all in-flight appends have drained.
func (b *Buffer) Entries() []model.KV {
	return b.entries
}
