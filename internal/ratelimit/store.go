package ratelimit

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const bucketShardCount = 32

// DefaultIdleHorizon is how long a full, untouched bucket survives before the
// sweep reclaims it.
const DefaultIdleHorizon = time.Hour

type bucketShard struct {
	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

// BucketStore is a concurrent registry of token buckets keyed by
// identifier+tier. Buckets are created lazily on first access and reclaimed
// by Sweep once idle. Sharded so callers on different keys never contend on
// the same lock, and Sweep never pauses the whole store at once.
type BucketStore struct {
	clk         Clock
	idleHorizon time.Duration
	shards      [bucketShardCount]*bucketShard
}

// NewBucketStore creates a store that evicts buckets idle past the horizon.
func NewBucketStore(clk Clock, idleHorizon time.Duration) *BucketStore {
	if idleHorizon <= 0 {
		idleHorizon = DefaultIdleHorizon
	}
	s := &BucketStore{clk: clk, idleHorizon: idleHorizon}
	for i := range s.shards {
		s.shards[i] = &bucketShard{buckets: make(map[string]*TokenBucket)}
	}
	return s
}

// BucketKey builds the store key. The adaptive multiplier is deliberately not
// part of the key: a multiplier change reuses the same bucket, and the caller
// reconciles capacity drift. Keying by tier name keeps a tier change for an
// identifier from corrupting another tier's accounting.
func BucketKey(identifier, tierName string) string {
	return identifier + "|" + tierName
}

// GetOrCreate returns the bucket for key, constructing it with the given
// effective capacity and refill rate on first access. Exactly one bucket is
// ever constructed per key, even under simultaneous first-access races.
// Existing buckets are reconciled to the currently-effective limits.
func (s *BucketStore) GetOrCreate(key string, capacity, refillPerSecond float64) *TokenBucket {
	shard := s.shards[xxhash.Sum64String(key)%bucketShardCount]

	shard.mu.Lock()
	b, ok := shard.buckets[key]
	if !ok {
		b = NewTokenBucket(s.clk, capacity, refillPerSecond)
		shard.buckets[key] = b
	}
	shard.mu.Unlock()

	if ok {
		b.Reconcile(capacity, refillPerSecond)
	}
	return b
}

// Sweep evicts buckets that would be at full capacity and have gone untouched
// past the idle horizon. Each shard is inspected under its own lock; there is
// no global pause.
func (s *BucketStore) Sweep() int {
	now := s.clk.Now()
	evicted := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, b := range shard.buckets {
			if b.idleAt(now, s.idleHorizon) {
				delete(shard.buckets, key)
				evicted++
			}
		}
		shard.mu.Unlock()
	}
	return evicted
}

// Len returns the number of live buckets.
func (s *BucketStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		total += len(shard.buckets)
		shard.mu.Unlock()
	}
	return total
}
