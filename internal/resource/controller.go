package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a memory reservation would
// exceed the configured limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits for the engine's background machinery.
type Config struct {
	// MemoryLimitBytes is the hard limit for converted-block memory.
	// If 0, no limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxConversions is the maximum number of segment conversions
	// running at once. If 0, conversions are unbounded.
	MaxConversions int64

	// ApplyLimitBlocksPerSec throttles how many leaf blocks per second
	// the index worker applies. If 0, unlimited.
	ApplyLimitBlocksPerSec float64
}

// Controller manages memory accounting, conversion concurrency and the
// index-apply rate.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	convSem *semaphore.Weighted // nil if unbounded

	applyLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a controller for the given limits.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.MaxConversions > 0 {
		c.convSem = semaphore.NewWeighted(cfg.MaxConversions)
	}
	if cfg.ApplyLimitBlocksPerSec > 0 {
		c.applyLimiter = rate.NewLimiter(rate.Limit(cfg.ApplyLimitBlocksPerSec), int(cfg.ApplyLimitBlocksPerSec)+1)
	}
	return c
}

// AcquireMemory reserves bytes of block memory. Non-blocking: callers
// treat ErrMemoryLimitExceeded as fatal, matching the engine's
// allocation-failure policy.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return ErrMemoryLimitExceeded
	}
	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns previously reserved bytes.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireConversion blocks until a conversion slot is available.
func (c *Controller) AcquireConversion(ctx context.Context) error {
	if c == nil || c.convSem == nil {
		return nil
	}
	return c.convSem.Acquire(ctx, 1)
}

// ReleaseConversion returns a conversion slot.
func (c *Controller) ReleaseConversion() {
	if c == nil || c.convSem == nil {
		return
	}
	c.convSem.Release(1)
}

// WaitApply blocks until the apply limiter grants blocks tokens.
func (c *Controller) WaitApply(ctx context.Context, blocks int) error {
	if c == nil || c.applyLimiter == nil || blocks <= 0 {
		return nil
	}
	if blocks > c.applyLimiter.Burst() {
		blocks = c.applyLimiter.Burst()
	}
	return c.applyLimiter.WaitN(ctx, blocks)
}
