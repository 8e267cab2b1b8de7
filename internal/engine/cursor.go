package engine

import (
	"github.com/hupe1980/sbtree/internal/datablock"
	"github.com/hupe1980/sbtree/internal/model"
)

// Cursor produces the pairs of a key range lazily, one at a time or in
// batches. A cursor stays valid as long as the engine lives: data blocks
// are never unlinked or freed before teardown.
type Cursor struct {
	hi  model.Key
	blk *datablock.Block
	pos int
}

// RangeCursor opens a cursor over [lo, hi]. An inverted range yields an
// exhausted cursor.
func (e *Engine) RangeCursor(lo, hi model.Key) *Cursor {
	c := &Cursor{hi: hi}
	if lo > hi {
		return c
	}
	blk := e.search.FindCandidate(lo)
	if blk == nil {
		blk = e.data.Head()
	}
	for blk != nil {
		if pos := blk.Seek(lo); pos < blk.Size() {
			c.blk, c.pos = blk, pos
			break
		}
		blk = blk.Next()
	}
	return c
}

// Next returns the next pair in ascending key order.
func (c *Cursor) Next() (model.KV, bool) {
	for c.blk != nil {
		if c.pos >= c.blk.Size() {
			c.blk = c.blk.Next()
			c.pos = 0
			continue
		}
		kv := c.blk.EntryAt(c.pos)
		if kv.Key > c.hi {
			c.blk = nil
			break
		}
		c.pos++
		return kv, true
	}
	return model.KV{}, false
}

// NextBatch returns up to limit pairs.
func (c *Cursor) NextBatch(limit int) []model.KV {
	if limit <= 0 {
		return nil
	}
	out := make([]model.KV, 0, limit)
	for len(out) < limit {
		kv, ok := c.Next()
		if !ok {
			break
		}
		out = append(out, kv)
	}
	return out
}
