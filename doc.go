// Package sbtree provides a concurrent, in-memory, ordered key/value
// storage engine for monotonically-ordered write workloads.
//
// Writes are staged in per-writer buffers inside a segmented write block.
// When a buffer fills, the block is sealed, merge-sorted and sliced into
// immutable 4 KiB data blocks appended to a sorted linked list. A single
// background worker folds each converted run into an append-only,
// fanout-F search index published to readers as immutable snapshots, so
// readers never block writers and writers never block readers.
//
// # Quick Start
//
//	t, _ := sbtree.New()
//	defer t.Close()
//
//	for k := uint64(1); k <= 10000; k++ {
//	    t.Insert(k, k*10)
//	}
//	t.Flush()
//
//	v, ok := t.Lookup(5000) // 50000, true
//	vs := t.Scan(1, 5)      // [10 20 30 40 50]
//
// # Write Model
//
// Keys are expected to be unique and monotonically increasing within each
// writer goroutine's stream; conversion re-sorts globally, so interleaving
// across writers is fine. Inserted pairs become readable once the segment
// that staged them has been converted: synchronously after a buffer fills,
// or on demand via Flush. FlushIndex additionally waits for the search
// index to catch up; reads are correct without it because lookups fall
// back to walking the data layer.
package sbtree
