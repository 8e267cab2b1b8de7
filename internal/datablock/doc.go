// Package datablock implements the immutable leaves of the data layer.
//
// Conversion slices a sorted run into fixed-budget blocks and appends them
// to the List. Blocks never change after construction (apart from the
// one-time next link), which is what lets readers chase pointers without
// locks.
package datablock
