package ratelimit

import (
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Tier is an immutable quota profile. Tiers are ordered by Priority ascending.
type Tier struct {
	Name        string        `json:"name" yaml:"name"`
	MaxRequests int           `json:"max_requests" yaml:"max_requests"`
	BurstLimit  int           `json:"burst_limit" yaml:"burst_limit"`
	Window      time.Duration `json:"window" yaml:"window"`
	Priority    int           `json:"priority" yaml:"priority"`
}

// RefillPerSecond derives the steady-state refill rate for this tier.
func (t Tier) RefillPerSecond() float64 {
	if t.Window <= 0 {
		return float64(t.MaxRequests)
	}
	return float64(t.MaxRequests) / t.Window.Seconds()
}

// APIKeyPrefix and IPPrefix are the identifier namespaces the limiter
// partitions state by. Identifiers are produced by the HTTP layer.
const (
	APIKeyPrefix = "api:"
	IPPrefix     = "ip:"
)

// DefaultTiers returns the built-in quota table.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "free", MaxRequests: 10, BurstLimit: 5, Window: time.Minute, Priority: 1},
		{Name: "basic", MaxRequests: 100, BurstLimit: 20, Window: time.Minute, Priority: 2},
		{Name: "premium", MaxRequests: 1000, BurstLimit: 100, Window: time.Minute, Priority: 3},
		{Name: "enterprise", MaxRequests: 10000, BurstLimit: 1000, Window: time.Minute, Priority: 4},
	}
}

// TierRegistry maps identifiers to quota tiers. Resolution is a pure function
// of the identifier string, so repeated lookups are stable for the life of
// the process.
type TierRegistry struct {
	tiers []Tier
}

// NewTierRegistry builds a registry from the given tiers, sorted by priority.
// An empty slice falls back to the default table.
func NewTierRegistry(tiers []Tier) *TierRegistry {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &TierRegistry{tiers: sorted}
}

// Tiers returns the registered tiers in priority order.
func (r *TierRegistry) Tiers() []Tier {
	out := make([]Tier, len(r.tiers))
	copy(out, r.tiers)
	return out
}

// Resolve returns the tier for an identifier. Identifiers without an API key
// resolve to the lowest tier. API-keyed identifiers resolve via a stable hash
// of the key modulo the tier count.
//
// The hash assignment is a placeholder pending a real entitlement lookup; it
// is deterministic per key but is not a security boundary.
func (r *TierRegistry) Resolve(identifier string) Tier {
	if !strings.HasPrefix(identifier, APIKeyPrefix) {
		return r.tiers[0]
	}
	key := strings.TrimPrefix(identifier, APIKeyPrefix)
	if key == "" {
		return r.tiers[0]
	}
	idx := xxhash.Sum64String(key) % uint64(len(r.tiers))
	return r.tiers[idx]
}
