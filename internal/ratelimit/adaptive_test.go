package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var freeTier = Tier{Name: "free", MaxRequests: 10, BurstLimit: 5, Window: time.Minute, Priority: 1}

func timestamps(start time.Time, interval time.Duration, count int) []time.Time {
	out := make([]time.Time, count)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * interval)
	}
	return out
}

func TestAdaptivePolicy_EmptyHistoryIsNeutral(t *testing.T) {
	p := NewAdaptivePolicy(0, 0, 0)
	assert.Equal(t, 1.0, p.Multiplier(nil, freeTier))
}

func TestAdaptivePolicy_SingleRequestIsNeutral(t *testing.T) {
	p := NewAdaptivePolicy(0, 0, 0)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, p.Multiplier(timestamps(base, 0, 1), freeTier))
}

func TestAdaptivePolicy_SaturationTightens(t *testing.T) {
	p := NewAdaptivePolicy(0, 0, 0)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 10 requests inside the window saturate a max of 10.
	m := p.Multiplier(timestamps(base, 100*time.Millisecond, 10), freeTier)
	assert.InDelta(t, 0.8, m, 1e-9)

	// Heavier saturation is tightened the same single step.
	m = p.Multiplier(timestamps(base, 10*time.Millisecond, 40), freeTier)
	assert.InDelta(t, 0.8, m, 1e-9)
}

func TestAdaptivePolicy_SparseEvenTrafficRewarded(t *testing.T) {
	p := NewAdaptivePolicy(0, 0, 0)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 5 requests 8s apart: count below threshold (8), spacing above the
	// expected interval (6s).
	m := p.Multiplier(timestamps(base, 8*time.Second, 5), freeTier)
	assert.InDelta(t, 1.2, m, 1e-9)
}

func TestAdaptivePolicy_TightSpacingIsNeutral(t *testing.T) {
	p := NewAdaptivePolicy(0, 0, 0)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Below threshold but bunched: no reward, no penalty.
	m := p.Multiplier(timestamps(base, time.Second, 5), freeTier)
	assert.Equal(t, 1.0, m)
}

func TestAdaptivePolicy_AtThresholdIsNeutral(t *testing.T) {
	p := NewAdaptivePolicy(0, 0, 0)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// count == threshold (8 of 10) no longer qualifies for the reward even
	// with generous spacing.
	m := p.Multiplier(timestamps(base, 7*time.Second, 8), freeTier)
	assert.Equal(t, 1.0, m)
}

func TestAdaptivePolicy_OutputAlwaysWithinBounds(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	histories := [][]time.Time{
		nil,
		timestamps(base, 0, 1),
		timestamps(base, 0, 100),
		timestamps(base, time.Millisecond, 500),
		timestamps(base, 30*time.Second, 3),
		timestamps(base, time.Minute, 2),
	}

	// A large step still clamps to the configured bounds.
	p := NewAdaptivePolicy(0.9, 0.5, 2.0)
	for _, h := range histories {
		m := p.Multiplier(h, freeTier)
		assert.GreaterOrEqual(t, m, 0.5)
		assert.LessOrEqual(t, m, 2.0)
	}
}

func TestAdaptivePolicy_ZeroMaxRequestsIsNeutral(t *testing.T) {
	p := NewAdaptivePolicy(0, 0, 0)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := p.Multiplier(timestamps(base, time.Second, 3), Tier{Name: "broken", Window: time.Minute})
	assert.Equal(t, 1.0, m)
}

func TestNewAdaptivePolicy_DefaultsSubstituted(t *testing.T) {
	p := NewAdaptivePolicy(0, 0, 0)
	assert.Equal(t, DefaultAdaptiveStep, p.Step)
	assert.Equal(t, DefaultMinMultiplier, p.Min)
	assert.Equal(t, DefaultMaxMultiplier, p.Max)

	p = NewAdaptivePolicy(0.3, 0.6, 1.5)
	assert.Equal(t, 0.3, p.Step)
	assert.Equal(t, 0.6, p.Min)
	assert.Equal(t, 1.5, p.Max)
}
