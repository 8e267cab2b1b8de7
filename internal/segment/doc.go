// Package segment implements the write-side staging area of the engine.
//
// A Block aggregates up to its configured number of per-writer Buffers.
// Each writer owns one slot exclusively, so appends into a Buffer need no
// synchronization. When any Buffer fills, the Block raises its seal flag;
// the coordinator swaps in a fresh Block, seals the old one and drains it
// via CollectAndSort, which merges all buffers into one globally sorted run.
package segment
