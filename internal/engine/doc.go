// Package engine implements the core ordered key/value engine.
//
// The engine orchestrates:
//   - Segmented write blocks with per-writer buffers for hot appends
//   - Atomic segment rotation and conversion into immutable data blocks
//   - The data layer: an append-only linked list readers traverse
//     lock-free
//   - A single background worker that folds converted runs into the
//     fanout-F search layer and publishes immutable snapshots
//   - Point lookups and range scans that combine a snapshot candidate
//     with a right-walk along the data layer
package engine
