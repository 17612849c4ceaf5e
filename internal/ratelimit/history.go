package ratelimit

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const historyShardCount = 32

// DefaultLookback bounds how much request history is retained per identifier.
const DefaultLookback = 10 * time.Minute

type historyShard struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

// HistoryTracker keeps a rolling log of request timestamps per identifier,
// pruned lazily to a fixed lookback. It exists only to feed the adaptive
// policy. Sharded so unrelated identifiers do not contend on one lock.
type HistoryTracker struct {
	clk      Clock
	lookback time.Duration
	shards   [historyShardCount]*historyShard
}

// NewHistoryTracker creates a tracker with the given lookback window.
func NewHistoryTracker(clk Clock, lookback time.Duration) *HistoryTracker {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	t := &HistoryTracker{clk: clk, lookback: lookback}
	for i := range t.shards {
		t.shards[i] = &historyShard{entries: make(map[string][]time.Time)}
	}
	return t
}

func (t *HistoryTracker) shard(identifier string) *historyShard {
	return t.shards[xxhash.Sum64String(identifier)%historyShardCount]
}

// Record appends a request timestamp and drops entries past the lookback.
// Every attempt is recorded, admitted or not, so history reflects actual
// caller behavior.
func (t *HistoryTracker) Record(identifier string, ts time.Time) {
	s := t.shard(identifier)
	cutoff := t.clk.Now().Add(-t.lookback)

	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.entries[identifier], ts)
	list = pruneBefore(list, cutoff)
	if len(list) == 0 {
		delete(s.entries, identifier)
		return
	}
	s.entries[identifier] = list
}

// RecentWithin returns the identifier's timestamps inside the given window,
// oldest first. The returned slice is a copy.
func (t *HistoryTracker) RecentWithin(identifier string, window time.Duration) []time.Time {
	s := t.shard(identifier)
	now := t.clk.Now()
	cutoff := now.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	list := pruneBefore(s.entries[identifier], now.Add(-t.lookback))
	if len(list) == 0 {
		delete(s.entries, identifier)
		return nil
	}
	s.entries[identifier] = list

	start := 0
	for start < len(list) && list[start].Before(cutoff) {
		start++
	}
	out := make([]time.Time, len(list)-start)
	copy(out, list[start:])
	return out
}

// TrackedIdentifiers returns how many identifiers currently hold history.
func (t *HistoryTracker) TrackedIdentifiers() int {
	total := 0
	for _, s := range t.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

// pruneBefore drops leading timestamps older than cutoff. Entries are
// append-ordered, so a prefix scan suffices.
func pruneBefore(list []time.Time, cutoff time.Time) []time.Time {
	start := 0
	for start < len(list) && list[start].Before(cutoff) {
		start++
	}
	if start == 0 {
		return list
	}
	return append([]time.Time(nil), list[start:]...)
}
