// Package ratelimit implements adaptive token-bucket rate limiting. Each
// caller identifier maps to a quota tier whose effective limits scale up or
// down with the caller's recent request cadence. It includes HTTP middleware
// that sets standard rate limit response headers.
package ratelimit

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// FallbackIdentifier substitutes for an empty or malformed identifier so the
// request still proceeds under normal (lowest-tier) accounting.
const FallbackIdentifier = IPPrefix + "unknown"

// DefaultSweepProbability is the per-decision chance of running an idle-bucket
// sweep. Probabilistic triggering bounds memory under sustained load without a
// dedicated background goroutine.
const DefaultSweepProbability = 0.01

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Tier       Tier          `json:"tier"`
	Limit      int           `json:"limit"`       // effective max requests, post-multiplier
	Remaining  int           `json:"remaining"`   // whole tokens left (0 when denied)
	ResetAt    time.Time     `json:"reset_at"`    // when a full window's quota is restored
	RetryAfter time.Duration `json:"retry_after"` // wait until the next token (denials only)
	Multiplier float64       `json:"multiplier"`  // adaptive multiplier applied
}

// Decider is the decision contract. Implementations must be safe for
// concurrent use and must never block beyond negligible lock hold time.
type Decider interface {
	Decide(identifier string) Decision
}

// Limiter is the public entry point tying tier resolution, history tracking,
// the adaptive policy and the bucket store together. Construct one per
// process and pass it by handle; independent instances never share state.
type Limiter struct {
	clk              Clock
	tiers            *TierRegistry
	history          *HistoryTracker
	policy           AdaptivePolicy
	store            *BucketStore
	sweepProbability float64
}

// Option configures optional Limiter behavior.
type Option func(*limiterOptions)

type limiterOptions struct {
	clk              Clock
	tiers            []Tier
	policy           AdaptivePolicy
	lookback         time.Duration
	idleHorizon      time.Duration
	sweepProbability float64
}

// WithClock overrides the time source. Tests use a ManualClock here.
func WithClock(clk Clock) Option {
	return func(o *limiterOptions) { o.clk = clk }
}

// WithTiers replaces the default quota table.
func WithTiers(tiers []Tier) Option {
	return func(o *limiterOptions) { o.tiers = tiers }
}

// WithPolicy sets the adaptive policy step and multiplier bounds.
func WithPolicy(p AdaptivePolicy) Option {
	return func(o *limiterOptions) { o.policy = p }
}

// WithLookback sets the history retention window.
func WithLookback(d time.Duration) Option {
	return func(o *limiterOptions) { o.lookback = d }
}

// WithIdleHorizon sets how long idle buckets survive before eviction.
func WithIdleHorizon(d time.Duration) Option {
	return func(o *limiterOptions) { o.idleHorizon = d }
}

// WithSweepProbability sets the per-decision sweep chance. Zero disables
// opportunistic sweeping; callers can still invoke Sweep directly.
func WithSweepProbability(p float64) Option {
	return func(o *limiterOptions) { o.sweepProbability = p }
}

// New constructs a Limiter with the given options.
func New(opts ...Option) *Limiter {
	o := &limiterOptions{
		clk:              SystemClock{},
		policy:           NewAdaptivePolicy(0, 0, 0),
		lookback:         DefaultLookback,
		idleHorizon:      DefaultIdleHorizon,
		sweepProbability: DefaultSweepProbability,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Limiter{
		clk:              o.clk,
		tiers:            NewTierRegistry(o.tiers),
		history:          NewHistoryTracker(o.clk, o.lookback),
		policy:           o.policy,
		store:            NewBucketStore(o.clk, o.idleHorizon),
		sweepProbability: o.sweepProbability,
	}
}

// Decide resolves the identifier's tier, records the attempt, computes the
// adaptive multiplier and attempts to consume one token from the caller's
// bucket. It never returns an error: any internal fault fails open with a
// neutral allowed decision, because blocking legitimate traffic on an
// internal bug is the worse failure mode.
func (l *Limiter) Decide(identifier string) (d Decision) {
	now := l.clk.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("rate limit decision failed, failing open", "identifier", identifier, "panic", r)
			d = Decision{Allowed: true, Tier: l.tiers.Tiers()[0], Multiplier: 1.0, ResetAt: now}
		}
	}()

	if identifier == "" {
		slog.Warn("empty rate limit identifier, using fallback key")
		identifier = FallbackIdentifier
	}

	tier := l.tiers.Resolve(identifier)

	// Record before deciding: history reflects attempted behavior, not
	// admitted behavior.
	l.history.Record(identifier, now)
	recent := l.history.RecentWithin(identifier, tier.Window)
	multiplier := l.policy.Multiplier(recent, tier)

	effectiveMax := scaled(tier.MaxRequests, multiplier)
	effectiveBurst := scaled(tier.BurstLimit, multiplier)
	refill := float64(effectiveMax) / tier.Window.Seconds()

	bucket := l.store.GetOrCreate(BucketKey(identifier, tier.Name), float64(effectiveBurst), refill)
	allowed := bucket.TryConsume()

	if rand.Float64() < l.sweepProbability {
		l.store.Sweep()
	}

	d = Decision{
		Allowed:    allowed,
		Tier:       tier,
		Limit:      effectiveMax,
		ResetAt:    now.Add(tier.Window),
		Multiplier: multiplier,
	}
	if allowed {
		d.Remaining = bucket.Remaining()
		return d
	}

	d.RetryAfter = bucket.TimeUntilNextToken()
	if d.RetryAfter <= 0 {
		// A token refilled between consume and the retry calculation.
		d.RetryAfter = time.Millisecond
	}
	return d
}

// Sweep runs an idle-bucket eviction pass and reports how many were removed.
func (l *Limiter) Sweep() int {
	return l.store.Sweep()
}

// Stats describes the limiter's live state for the status endpoint.
type Stats struct {
	Buckets            int `json:"buckets"`
	TrackedIdentifiers int `json:"tracked_identifiers"`
}

// Stats returns current store and history sizes.
func (l *Limiter) Stats() Stats {
	return Stats{
		Buckets:            l.store.Len(),
		TrackedIdentifiers: l.history.TrackedIdentifiers(),
	}
}

// Tiers exposes the quota table, priority ascending.
func (l *Limiter) Tiers() []Tier {
	return l.tiers.Tiers()
}

// scaled applies the multiplier to a tier limit, flooring but never below 1
// so a caller is never permanently locked out.
func scaled(limit int, multiplier float64) int {
	v := int(math.Floor(float64(limit) * multiplier))
	if v < 1 {
		return 1
	}
	return v
}
