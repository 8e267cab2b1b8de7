package sbtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/sbtree/internal/testutil"
)

func newTestTree(t *testing.T, optFns ...Option) *Tree {
	t.Helper()
	tr, err := New(optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestNew_Validation(t *testing.T) {
	_, err := New(WithFanout(1))
	assert.ErrorIs(t, err, ErrInvalidFanout)

	_, err = New(WithBufferCapacity(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(WithBlockCapacity(-1))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTree_EmptyReads(t *testing.T) {
	tr := newTestTree(t)

	_, ok := tr.Lookup(1)
	assert.False(t, ok)
	assert.Empty(t, tr.Scan(10, 20))
	assert.Empty(t, tr.Scan(20, 10))
}

func TestTree_InsertLookupScan(t *testing.T) {
	tr := newTestTree(t)

	for k := uint64(1); k <= 10000; k++ {
		require.NoError(t, tr.Insert(k, k*10))
	}
	require.NoError(t, tr.Flush())

	v, ok := tr.Lookup(5000)
	require.True(t, ok)
	assert.Equal(t, uint64(50000), v)

	_, ok = tr.Lookup(10123)
	assert.False(t, ok)

	assert.Equal(t, []uint64{10, 20, 30, 40, 50}, tr.Scan(1, 5))
	assert.Len(t, tr.Scan(9950, 10010), 51)
}

func TestTree_BatchInsert(t *testing.T) {
	tr := newTestTree(t)

	keys := testutil.MonotonicKeys(1000, 1, 1)
	values := make([]uint64, len(keys))
	for i, k := range keys {
		values[i] = k * 2
	}

	require.NoError(t, tr.BatchInsert(keys, values))
	require.NoError(t, tr.Flush())

	v, ok := tr.Lookup(500)
	require.True(t, ok)
	assert.Equal(t, uint64(1000), v)

	assert.ErrorIs(t, tr.BatchInsert(keys, values[:10]), ErrLengthMismatch)
}

func TestTree_Range(t *testing.T) {
	tr := newTestTree(t, WithBufferCapacity(16))

	w := tr.Writer()
	for k := uint64(1); k <= 100; k++ {
		require.NoError(t, w.Insert(k, k*10))
	}
	require.NoError(t, tr.Flush())

	var keys []uint64
	for k, v := range tr.Range(10, 20) {
		assert.Equal(t, k*10, v)
		keys = append(keys, k)
	}
	require.Len(t, keys, 11)
	assert.Equal(t, uint64(10), keys[0])
	assert.Equal(t, uint64(20), keys[10])

	// Early break.
	n := 0
	for range tr.All() {
		n++
		if n == 5 {
			break
		}
	}
	assert.Equal(t, 5, n)
}

func TestTree_RangeCursor(t *testing.T) {
	tr := newTestTree(t)

	for k := uint64(1); k <= 50; k++ {
		require.NoError(t, tr.Insert(k, k))
	}
	require.NoError(t, tr.Flush())

	c := tr.RangeCursor(40, 60)
	batch := c.NextBatch(100)
	require.Len(t, batch, 11)
	assert.Equal(t, KV{Key: 40, Value: 40}, batch[0])

	_, ok := c.Next()
	assert.False(t, ok)
}

func TestTree_LookupCache(t *testing.T) {
	tr := newTestTree(t, WithLookupCache(1024))

	for k := uint64(1); k <= 1000; k++ {
		require.NoError(t, tr.Insert(k, k*10))
	}
	require.NoError(t, tr.Flush())

	// Repeated lookups stay stable whether or not they hit the cache.
	for range 3 {
		v, ok := tr.Lookup(77)
		require.True(t, ok)
		assert.Equal(t, uint64(770), v)
	}

	_, ok := tr.Lookup(2000)
	assert.False(t, ok)
}

func TestTree_Metrics(t *testing.T) {
	var m BasicMetrics
	tr := newTestTree(t, WithMetrics(&m), WithBufferCapacity(32))

	for k := uint64(0); k < 100; k++ {
		require.NoError(t, tr.Insert(k, k))
	}
	require.NoError(t, tr.Flush())
	require.NoError(t, tr.FlushIndex())

	assert.Equal(t, uint64(100), m.Inserts())

	tr.Lookup(5)
	tr.Lookup(500)
	hits, misses := m.Lookups()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)

	tr.Scan(0, 9)
	assert.Equal(t, uint64(10), m.ScannedValues())

	conversions, items := m.Conversions()
	assert.Positive(t, conversions)
	assert.Equal(t, uint64(100), items)

	runs, _ := m.IndexApplies()
	assert.Equal(t, conversions, runs)
}

func TestTree_ResourceLimits(t *testing.T) {
	tr := newTestTree(t,
		WithBufferCapacity(64),
		WithMaxConversions(1),
		WithApplyRateLimit(10000),
		WithMemoryLimit(64<<20),
	)

	for k := uint64(0); k < 5000; k++ {
		require.NoError(t, tr.Insert(k, k*10))
	}
	require.NoError(t, tr.Flush())
	require.NoError(t, tr.FlushIndex())

	stats := tr.Stats()
	assert.Equal(t, uint64(5000), stats.Items)
	assert.Positive(t, stats.MemoryUsageBytes)

	vals := tr.Scan(0, 4999)
	assert.Len(t, vals, 5000)
}

func TestTree_ConcurrentWriters(t *testing.T) {
	// Each writer's stripe fits one per-writer buffer, so all writers
	// share a single segment and the final conversion sorts globally.
	const writers = 4
	const perWriter = 1000

	tr := newTestTree(t)

	stripes := testutil.SplitKeys(testutil.MonotonicKeys(writers*perWriter, 0, 1), writers)
	var g errgroup.Group
	for _, stripe := range stripes {
		g.Go(func() error {
			w := tr.Writer()
			for _, k := range stripe {
				if err := w.Insert(k, k*10); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.NoError(t, tr.Flush())
	require.NoError(t, tr.FlushIndex())

	const n = writers * perWriter
	vals := tr.Scan(0, n-1)
	require.Len(t, vals, n)
	for i, v := range vals {
		require.Equal(t, uint64(i)*10, v)
	}
}

func TestTree_StatsAndLevels(t *testing.T) {
	tr := newTestTree(t, WithBufferCapacity(4), WithBlockCapacity(4), WithFanout(4))

	w := tr.Writer()
	for k := uint64(0); k < 16; k++ {
		require.NoError(t, w.Insert(k, k))
	}
	require.NoError(t, tr.FlushIndex())

	assert.Equal(t, 2, tr.Levels())
	stats := tr.Stats()
	assert.Equal(t, 4, stats.IndexLeaves)
	assert.Equal(t, uint64(15), tr.MaxKey())
}

func TestTree_Close(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	require.NoError(t, tr.Insert(1, 10))
	require.NoError(t, tr.Close())

	assert.ErrorIs(t, tr.Close(), ErrClosed)
	assert.ErrorIs(t, tr.Insert(2, 20), ErrClosed)
	assert.ErrorIs(t, tr.Flush(), ErrClosed)
	assert.ErrorIs(t, tr.FlushIndex(), ErrClosed)

	// Reads keep working after close.
	v, ok := tr.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, uint64(10), v)
}
