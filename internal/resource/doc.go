// Package resource provides memory accounting, conversion concurrency
// caps and index-apply throttling for the engine's background work.
package resource
