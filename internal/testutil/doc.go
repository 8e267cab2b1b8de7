// Package testutil provides reproducible workload generators for tests
// and benchmarks.
package testutil
