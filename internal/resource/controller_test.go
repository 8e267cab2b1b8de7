package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	assert.ErrorIs(t, c.AcquireMemory(20), ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(20))
}

func TestController_MemoryUnlimited(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(1<<40))
	assert.Equal(t, int64(1<<40), c.MemoryUsage())
	c.ReleaseMemory(1 << 40)
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestController_Conversions(t *testing.T) {
	c := NewController(Config{MaxConversions: 1})

	require.NoError(t, c.AcquireConversion(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireConversion(ctx), context.DeadlineExceeded)

	c.ReleaseConversion()
	require.NoError(t, c.AcquireConversion(context.Background()))
	c.ReleaseConversion()
}

func TestController_WaitApply(t *testing.T) {
	c := NewController(Config{ApplyLimitBlocksPerSec: 1000})

	// Within burst: immediate.
	require.NoError(t, c.WaitApply(context.Background(), 10))

	// Requests above the burst are clamped rather than rejected.
	require.NoError(t, c.WaitApply(context.Background(), 1<<20))
}

func TestController_NilIsNoop(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Equal(t, int64(0), c.MemoryUsage())
	require.NoError(t, c.AcquireConversion(context.Background()))
	c.ReleaseConversion()
	require.NoError(t, c.WaitApply(context.Background(), 10))
}
