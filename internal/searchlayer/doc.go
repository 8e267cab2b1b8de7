// Package searchlayer implements the append-only, fixed-fanout search
// index over the data layer.
//
// Each converted run appends one leaf entry per data block. Whenever a
// level accumulates a full group of fanout entries, the group is promoted
// into a single parent entry one level up; the trailing partial group
// stays unpromoted until later runs complete it. After every run the
// worker publishes a value copy of all levels as an immutable snapshot,
// so readers never observe mutating state.
package searchlayer
