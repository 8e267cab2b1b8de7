package searchlayer

import (
	"github.com/hupe1980/sbtree/internal/datablock"
	"github.com/hupe1980/sbtree/internal/model"
)

// Snapshot is the immutable read-side view of the search layer. Readers
// load it atomically and hold their own reference for the duration of a
// lookup or scan; the worker never mutates a published snapshot.
type Snapshot struct {
	L0     []LeafEnt
	Levels [][]NodeEnt
}

// NumLevels returns the number of levels including the leaf level, or 0
// for an empty snapshot.
func (s *Snapshot) NumLevels() int {
	if len(s.L0) == 0 {
		return 0
	}
	return len(s.Levels) + 1
}

// FindCandidate walks top-down from the highest inner level and returns
// the leaf block with the greatest min key <= k inside the covered
// windows, or nil when k is below the index's minimum.
func (s *Snapshot) FindCandidate(k model.Key) *datablock.Block {
	if len(s.L0) == 0 {
		return nil
	}

	if len(s.Levels) == 0 {
		if pos := leafFloor(s.L0, 0, len(s.L0), k); pos >= 0 {
			return s.L0[pos].Block
		}
		return nil
	}

	top := s.Levels[len(s.Levels)-1]
	idx := nodeFloor(top, 0, len(top), k)
	if idx < 0 {
		return nil
	}
	lo := top[idx].ChildBegin
	hi := lo + top[idx].ChildCount

	for lv := len(s.Levels) - 1; lv > 0; lv-- {
		nodes := s.Levels[lv-1]
		pos := nodeFloor(nodes, lo, hi, k)
		if pos < 0 {
			return nil
		}
		lo = nodes[pos].ChildBegin
		hi = lo + nodes[pos].ChildCount
	}

	if pos := leafFloor(s.L0, lo, hi, k); pos >= 0 {
		return s.L0[pos].Block
	}
	return nil
}

// nodeFloor binary-searches [lo, hi) of arr for the last entry with
// MinKey <= k. Returns -1 when there is none.
func nodeFloor(arr []NodeEnt, lo, hi int, k model.Key) int {
	pos := -1
	for lo < hi {
		mid := lo + (hi-lo)/2
		if arr[mid].MinKey <= k {
			pos = mid
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return pos
}

// leafFloor is nodeFloor over leaf entries.
func leafFloor(arr []LeafEnt, lo, hi int, k model.Key) int {
	pos := -1
	for lo < hi {
		mid := lo + (hi-lo)/2
		if arr[mid].MinKey <= k {
			pos = mid
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return pos
}
