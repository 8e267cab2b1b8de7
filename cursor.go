package sbtree

import "github.com/hupe1980/sbtree/internal/engine"

// Cursor lazily produces the pairs of a key range in ascending key
// order. A cursor must not be shared between goroutines; it stays valid
// for the life of the tree because data blocks are never unlinked.
type Cursor struct {
	c *engine.Cursor
}

// Next returns the next pair, or ok=false once the range is exhausted.
func (c *Cursor) Next() (kv KV, ok bool) {
	return c.c.Next()
}

// NextBatch returns up to limit pairs.
func (c *Cursor) NextBatch(limit int) []KV {
	return c.c.NextBatch(limit)
}
