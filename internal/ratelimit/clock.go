package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock time so bucket refill and history pruning can be
// tested deterministically without sleeps.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the real time package.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a controllable Clock for tests. Advance moves time forward;
// it never moves backward, matching the monotonicity the limiter assumes.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a ManualClock starting at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative durations are ignored.
func (c *ManualClock) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
