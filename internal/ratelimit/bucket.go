package ratelimit

import (
	"math"
	"sync"
	"time"
)

// TokenBucket is a single counter with lazy, time-proportional refill and
// one-token consumption. All methods refill first, so token state is always
// current as of the call. Safe for concurrent use; the mutex makes each
// refill+consume sequence atomic with respect to other callers on the same
// bucket.
type TokenBucket struct {
	clk Clock

	mu              sync.Mutex
	capacity        float64
	refillPerSecond float64
	tokens          float64
	lastRefill      time.Time
}

// NewTokenBucket returns a bucket starting at full capacity. The refill rate
// is tokens per second; fractional rates are supported.
func NewTokenBucket(clk Clock, capacity, refillPerSecond float64) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	if refillPerSecond <= 0 {
		refillPerSecond = 1
	}
	return &TokenBucket{
		clk:             clk,
		capacity:        capacity,
		refillPerSecond: refillPerSecond,
		tokens:          capacity,
		lastRefill:      clk.Now(),
	}
}

// TryConsume refills, then takes one token if at least one is available.
// A failed attempt has no effect beyond the refill.
func (b *TokenBucket) TryConsume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Remaining refills and returns the whole tokens currently available.
func (b *TokenBucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return int(math.Floor(b.tokens))
}

// TimeUntilNextToken refills and returns how long until one full token is
// available. Zero when a token is already available.
func (b *TokenBucket) TimeUntilNextToken() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		return 0
	}
	missing := 1 - b.tokens
	secs := missing / b.refillPerSecond
	return time.Duration(math.Ceil(secs*1000)) * time.Millisecond
}

// Reconcile updates the bucket to a new effective capacity and refill rate.
// The adaptive multiplier is recomputed per decision while the bucket itself
// is keyed without it, so the effective capacity can drift between calls.
// When capacity shrinks, tokens are clamped down so the bucket never holds
// more than it is allowed to; when capacity grows, tokens are left alone and
// the headroom fills through normal refill.
func (b *TokenBucket) Reconcile(capacity, refillPerSecond float64) {
	if capacity < 1 || refillPerSecond <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	b.capacity = capacity
	b.refillPerSecond = refillPerSecond
	if b.tokens > capacity {
		b.tokens = capacity
	}
}

// idleAt reports whether the bucket would be full at now and has not been
// touched since the given horizon. Token state is projected, not mutated, so
// sweeping never perturbs accounting.
func (b *TokenBucket) idleAt(now time.Time, horizon time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill)
	if elapsed < horizon {
		return false
	}
	projected := b.tokens + elapsed.Seconds()*b.refillPerSecond
	return projected >= b.capacity
}

// refill advances token state to the current time. Caller must hold b.mu.
// Negative tokens never occur, but the clamp guards against float drift.
func (b *TokenBucket) refill() {
	now := b.clk.Now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(b.capacity, b.tokens+elapsed.Seconds()*b.refillPerSecond)
	if b.tokens < 0 {
		b.tokens = 0
	}
	b.lastRefill = now
}
