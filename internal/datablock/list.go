package datablock

import (
	"sync"
	"sync/atomic"
)

// List is the data layer: a singly-linked list of immutable blocks in
// ascending min-key order. Appends take the mutex; readers traverse head
// and next pointers lock-free, relying on block immutability and on the
// engine never unlinking a block before teardown.
type List struct {
	mu     sync.Mutex
	head   atomic.Pointer[Block]
	tail   *Block
	blocks atomic.Int64
}

// Append attaches a pre-linked chain of n blocks to the tail.
func (l *List) Append(head, tail *Block, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tail == nil {
		l.head.Store(head)
	} else {
		l.tail.SetNext(head)
	}
	l.tail = tail
	l.blocks.Add(int64(n))
}

// Head returns the first block, or nil while the layer is empty.
func (l *List) Head() *Block {
	return l.head.Load()
}

// Blocks returns the number of attached blocks.
func (l *List) Blocks() int64 {
	return l.blocks.Load()
}
