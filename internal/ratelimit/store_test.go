package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketStore_GetOrCreate(t *testing.T) {
	clk := testClock()
	store := NewBucketStore(clk, time.Hour)

	b1 := store.GetOrCreate(BucketKey("ip:1.2.3.4", "free"), 5, 10.0/60.0)
	b2 := store.GetOrCreate(BucketKey("ip:1.2.3.4", "free"), 5, 10.0/60.0)

	assert.Same(t, b1, b2)
	assert.Equal(t, 1, store.Len())
}

func TestBucketStore_DistinctKeysGetDistinctBuckets(t *testing.T) {
	clk := testClock()
	store := NewBucketStore(clk, time.Hour)

	b1 := store.GetOrCreate(BucketKey("ip:1.2.3.4", "free"), 5, 10.0/60.0)
	b2 := store.GetOrCreate(BucketKey("ip:5.6.7.8", "free"), 5, 10.0/60.0)
	b3 := store.GetOrCreate(BucketKey("ip:1.2.3.4", "basic"), 20, 100.0/60.0)

	assert.NotSame(t, b1, b2)
	assert.NotSame(t, b1, b3)
	assert.Equal(t, 3, store.Len())
}

func TestBucketStore_ConcurrentFirstAccessCreatesOneBucket(t *testing.T) {
	clk := testClock()
	store := NewBucketStore(clk, time.Hour)
	key := BucketKey("ip:1.2.3.4", "free")

	var wg sync.WaitGroup
	buckets := make([]*TokenBucket, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buckets[i] = store.GetOrCreate(key, 5, 10.0/60.0)
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(buckets); i++ {
		require.Same(t, buckets[0], buckets[i])
	}
	assert.Equal(t, 1, store.Len())
}

func TestBucketStore_GetReconcilesEffectiveLimits(t *testing.T) {
	clk := testClock()
	store := NewBucketStore(clk, time.Hour)
	key := BucketKey("ip:1.2.3.4", "free")

	b := store.GetOrCreate(key, 10, 1.0)
	require.Equal(t, 10, b.Remaining())

	// Multiplier shrank the effective burst; the stored bucket is clamped.
	b = store.GetOrCreate(key, 4, 1.0)
	assert.Equal(t, 4, b.Remaining())
}

func TestBucketStore_SweepEvictsIdleFullBuckets(t *testing.T) {
	clk := testClock()
	store := NewBucketStore(clk, time.Hour)

	// Untouched bucket, full the whole time.
	store.GetOrCreate(BucketKey("ip:idle", "free"), 5, 10.0/60.0)

	// Drained bucket: also untouched, but refilled to full by the time the
	// sweep runs, so it is reclaimable too.
	drained := store.GetOrCreate(BucketKey("ip:drained", "free"), 5, 10.0/60.0)
	for i := 0; i < 5; i++ {
		require.True(t, drained.TryConsume())
	}

	clk.Advance(2 * time.Hour)
	evicted := store.Sweep()

	assert.Equal(t, 2, evicted)
	assert.Equal(t, 0, store.Len())
}

func TestBucketStore_SweepKeepsRecentlyTouchedBuckets(t *testing.T) {
	clk := testClock()
	store := NewBucketStore(clk, time.Hour)

	b := store.GetOrCreate(BucketKey("ip:active", "free"), 5, 10.0/60.0)

	clk.Advance(59 * time.Minute)
	b.TryConsume() // touch refreshes the refill timestamp

	clk.Advance(30 * time.Minute)
	evicted := store.Sweep()

	assert.Equal(t, 0, evicted)
	assert.Equal(t, 1, store.Len())
}

func TestBucketStore_SweepDoesNotPerturbAccounting(t *testing.T) {
	clk := testClock()
	store := NewBucketStore(clk, time.Hour)

	b := store.GetOrCreate(BucketKey("ip:busy", "free"), 5, 10.0/60.0)
	require.True(t, b.TryConsume())

	clk.Advance(time.Minute)
	store.Sweep()

	// The bucket survives and its tokens reflect normal refill only.
	again := store.GetOrCreate(BucketKey("ip:busy", "free"), 5, 10.0/60.0)
	assert.Same(t, b, again)
	assert.Equal(t, 5, again.Remaining())
}

func TestBucketStore_ConcurrentAccessAcrossKeys(t *testing.T) {
	clk := testClock()
	store := NewBucketStore(clk, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := BucketKey(fmt.Sprintf("ip:10.0.0.%d", id%10), "free")
			for j := 0; j < 20; j++ {
				b := store.GetOrCreate(key, 5, 10.0/60.0)
				b.TryConsume()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, store.Len())
}
