package segment

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sbtree/internal/model"
)

func TestBlock_AppendBasic(t *testing.T) {
	b := New(8, 4)

	slot := b.AcquireSlot()
	require.GreaterOrEqual(t, slot, 0)

	assert.True(t, b.Append(slot, 5, 50))
	assert.True(t, b.Append(slot, 7, 70))
	assert.Equal(t, uint64(5), b.MinKey())
	assert.Equal(t, StatusActive, b.Status())
	assert.False(t, b.ShouldSeal())
}

func TestBlock_SlotExhaustion(t *testing.T) {
	b := New(8, 2)

	assert.Equal(t, 0, b.AcquireSlot())
	assert.Equal(t, 1, b.AcquireSlot())
	assert.Equal(t, -1, b.AcquireSlot())
	assert.Equal(t, 2, b.Slots())
}

func TestBlock_SealOnFill(t *testing.T) {
	b := New(3, 1)
	slot := b.AcquireSlot()

	assert.True(t, b.Append(slot, 1, 10))
	assert.True(t, b.Append(slot, 2, 20))
	assert.False(t, b.ShouldSeal())
	assert.True(t, b.Append(slot, 3, 30))
	assert.True(t, b.ShouldSeal())

	// The buffer is full; further appends are rejected.
	assert.False(t, b.Append(slot, 4, 40))
}

func TestBlock_SealRejectsAppends(t *testing.T) {
	b := New(8, 2)
	slot := b.AcquireSlot()
	require.True(t, b.Append(slot, 1, 10))

	b.Seal()
	assert.Equal(t, StatusConvert, b.Status())
	assert.False(t, b.Append(slot, 2, 20))

	// Idempotent.
	b.Seal()
	assert.Equal(t, StatusConvert, b.Status())
}

func TestBlock_CollectAndSort(t *testing.T) {
	b := New(8, 4)

	s1 := b.AcquireSlot()
	s2 := b.AcquireSlot()

	// Two writers with interleaved key ranges.
	for _, k := range []uint64{10, 30, 50} {
		require.True(t, b.Append(s1, k, k))
	}
	for _, k := range []uint64{20, 40, 60} {
		require.True(t, b.Append(s2, k, k))
	}

	kvs := b.CollectAndSort()
	require.Len(t, kvs, 6)
	for i, want := range []uint64{10, 20, 30, 40, 50, 60} {
		assert.Equal(t, want, kvs[i].Key)
	}
	assert.Equal(t, StatusConverted, b.Status())
}

func TestBlock_CollectAndSortEmpty(t *testing.T) {
	b := New(8, 4)
	assert.Nil(t, b.CollectAndSort())
	assert.Equal(t, StatusConverted, b.Status())
}

func TestBlock_CollectAndSortSealsFirst(t *testing.T) {
	b := New(8, 2)
	slot := b.AcquireSlot()
	require.True(t, b.Append(slot, 1, 10))

	kvs := b.CollectAndSort()
	require.Len(t, kvs, 1)
	assert.Equal(t, model.KV{Key: 1, Value: 10}, kvs[0])
	assert.False(t, b.Append(slot, 2, 20))
}

func TestBlock_ConcurrentAppends(t *testing.T) {
	const writers = 8
	const perWriter = 100

	b := New(perWriter, writers)

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot := b.AcquireSlot()
			assert.GreaterOrEqual(t, slot, 0)
			for i := range perWriter {
				k := uint64(w*perWriter + i)
				assert.True(t, b.Append(slot, k, k*10))
			}
		}()
	}
	wg.Wait()

	kvs := b.CollectAndSort()
	require.Len(t, kvs, writers*perWriter)
	for i := 1; i < len(kvs); i++ {
		assert.Less(t, kvs[i-1].Key, kvs[i].Key)
	}
	assert.Equal(t, uint64(0), b.MinKey())
}
