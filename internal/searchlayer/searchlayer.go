package searchlayer

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/hupe1980/sbtree/internal/datablock"
	"github.com/hupe1980/sbtree/internal/model"
)

// DefaultFanout is the default number of children per inner entry.
const DefaultFanout = 64

var (
	// ErrInvalidFanout is returned when the fanout is below 2.
	ErrInvalidFanout = errors.New("fanout must be at least 2")

	// ErrRunNotSorted is returned when a run's blocks are not in
	// ascending min-key order.
	ErrRunNotSorted = errors.New("run blocks not sorted by min key")

	// ErrRunRegressed is returned when a run starts below the last
	// indexed leaf.
	ErrRunRegressed = errors.New("run starts below last indexed leaf")
)

// LeafEnt summarizes one data block at level 0.
type LeafEnt struct {
	MinKey model.Key
	Block  *datablock.Block
}

// NodeEnt is an inner entry covering a contiguous group of exactly
// fanout entries of the level below.
type NodeEnt struct {
	MinKey     model.Key
	ChildBegin int
	ChildCount int
}

// Layer is the append-only, fanout-F search index over the data layer.
// A single background worker mutates it; readers only ever see the
// immutable snapshots it publishes.
type Layer struct {
	fanout   int
	l0       []LeafEnt
	levels   [][]NodeEnt
	promoted []int
	snap     atomic.Pointer[Snapshot]
}

// New creates an empty layer with the given fanout.
func New(fanout int) (*Layer, error) {
	if fanout < 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFanout, fanout)
	}
	l := &Layer{fanout: fanout}
	l.snap.Store(&Snapshot{})
	return l, nil
}

// Fanout returns the configured fanout.
func (l *Layer) Fanout() int {
	return l.fanout
}

// Empty reports whether no leaves have been appended.
func (l *Layer) Empty() bool {
	return len(l.l0) == 0
}

// LeafSize returns the number of leaf entries.
func (l *Layer) LeafSize() int {
	return len(l.l0)
}

// NumLevels returns the number of levels including the leaf level, or 0
// while the layer is empty.
func (l *Layer) NumLevels() int {
	if len(l.l0) == 0 {
		return 0
	}
	return len(l.levels) + 1
}

// Clear resets the layer to empty and publishes an empty snapshot.
func (l *Layer) Clear() {
	l.l0 = nil
	l.levels = nil
	l.promoted = nil
	l.snap.Store(&Snapshot{})
}

// AppendRun appends one converted run of blocks to the leaf level,
// promotes full groups bottom-up, and publishes a fresh snapshot.
//
// blocks must be sorted ascending by min key and must
// not start below the last indexed leaf. Violations are engine bugs and
// are reported as errors without mutating the layer.
func (l *Layer) AppendRun(blocks []*datablock.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	for i := 1; i < len(blocks); i++ {
		if blocks[i-1].MinKey() > blocks[i].MinKey() {
			return ErrRunNotSorted
		}
	}
	if len(l.l0) > 0 && l.l0[len(l.l0)-1].MinKey > blocks[0].MinKey() {
		return ErrRunRegressed
	}

	l.l0 = slices.Grow(l.l0, len(blocks))
	for _, b := range blocks {
		l.l0 = append(l.l0, LeafEnt{MinKey: b.MinKey(), Block: b})
	}
	if len(l.promoted) == 0 {
		l.promoted = make([]int, 1)
	}

	l.promoteFrom(0)
	l.publish()
	return nil
}

// levelSize returns the entry count of a level (0 = leaf level).
func (l *Layer) levelSize(lv int) int {
	if lv == 0 {
		return len(l.l0)
	}
	return len(l.levels[lv-1])
}

// levelMinKeyAt returns the min key of entry idx at a level.
func (l *Layer) levelMinKeyAt(lv, idx int) model.Key {
	if lv == 0 {
		return l.l0[idx].MinKey
	}
	return l.levels[lv-1][idx].MinKey
}

// promoteFrom groups full runs of fanout entries into parent entries,
// ascending as long as a parent level itself accumulates a full group.
// The trailing up-to-fanout-1 entries of each level stay unpromoted until
// later runs complete their group.
func (l *Layer) promoteFrom(level int) {
	f := l.fanout
	for lv := level; ; {
		if len(l.promoted) <= lv {
			l.promoted = append(l.promoted, make([]int, lv+1-len(l.promoted))...)
		}

		p := l.promoted[lv]
		if l.levelSize(lv) >= p+f {
			if len(l.levels) <= lv {
				l.levels = append(l.levels, nil)
			}
			l.levels[lv] = append(l.levels[lv], NodeEnt{
				MinKey:     l.levelMinKeyAt(lv, p),
				ChildBegin: p,
				ChildCount: f,
			})
			l.promoted[lv] = p + f
			continue
		}

		if len(l.levels) <= lv {
			return
		}
		parentP := 0
		if len(l.promoted) > lv+1 {
			parentP = l.promoted[lv+1]
		}
		if len(l.levels[lv]) >= parentP+f {
			lv++
			continue
		}
		return
	}
}

// publish stores a value copy of the current levels as the new snapshot.
func (l *Layer) publish() {
	s := &Snapshot{
		L0:     slices.Clone(l.l0),
		Levels: make([][]NodeEnt, len(l.levels)),
	}
	for i, lv := range l.levels {
		s.Levels[i] = slices.Clone(lv)
	}
	l.snap.Store(s)
}

// Snapshot returns the currently published immutable snapshot.
func (l *Layer) Snapshot() *Snapshot {
	return l.snap.Load()
}

// FindCandidate locates the leaf block whose min key is the greatest one
// <= k in the published snapshot, or nil if no such leaf exists. The
// result is a lower bound: keys in the unpromoted tail are reached by the
// engine's right-walk along the data layer.
func (l *Layer) FindCandidate(k model.Key) *datablock.Block {
	return l.snap.Load().FindCandidate(k)
}

// CheckInvariants verifies the layer's structural invariants. Exercised
// by tests after every mutation.
func (l *Layer) CheckInvariants() error {
	for i := 1; i < len(l.l0); i++ {
		if l.l0[i-1].MinKey > l.l0[i].MinKey {
			return fmt.Errorf("leaf level not non-decreasing at %d", i)
		}
	}
	for lv, p := range l.promoted {
		if lv > len(l.levels) {
			break
		}
		if p > l.levelSize(lv) {
			return fmt.Errorf("promoted[%d] = %d exceeds level size %d", lv, p, l.levelSize(lv))
		}
	}
	for lv, parent := range l.levels {
		childSize := l.levelSize(lv)
		for i, ent := range parent {
			if i > 0 && parent[i-1].MinKey > ent.MinKey {
				return fmt.Errorf("level %d not non-decreasing at %d", lv+1, i)
			}
			if ent.ChildCount != l.fanout {
				return fmt.Errorf("level %d entry %d child count %d != fanout %d", lv+1, i, ent.ChildCount, l.fanout)
			}
			if ent.ChildBegin+ent.ChildCount > childSize {
				return fmt.Errorf("level %d entry %d child range out of bounds", lv+1, i)
			}
			if ent.MinKey != l.levelMinKeyAt(lv, ent.ChildBegin) {
				return fmt.Errorf("level %d entry %d min key mismatch", lv+1, i)
			}
		}
	}
	return nil
}
