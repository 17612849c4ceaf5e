package ratelimit

import (
	"math"
	"time"
)

// Adaptive policy defaults.
const (
	DefaultAdaptiveStep  = 0.2
	DefaultMinMultiplier = 0.5
	DefaultMaxMultiplier = 2.0

	// adaptiveThresholdRatio of a tier's MaxRequests is the request count
	// below which well-spaced traffic earns extra headroom.
	adaptiveThresholdRatio = 0.8
)

// AdaptivePolicy derives a limit multiplier from recent request cadence.
// It is a pure function of its inputs: callers saturating their window get
// tightened limits, sparse evenly-spaced callers get extra headroom, and
// everyone else stays neutral. The output is always within [Min, Max].
type AdaptivePolicy struct {
	Step float64
	Min  float64
	Max  float64
}

// NewAdaptivePolicy returns a policy with the given step and bounds,
// substituting defaults for zero or nonsensical values.
func NewAdaptivePolicy(step, min, max float64) AdaptivePolicy {
	if step <= 0 {
		step = DefaultAdaptiveStep
	}
	if min <= 0 {
		min = DefaultMinMultiplier
	}
	if max < min {
		max = DefaultMaxMultiplier
	}
	return AdaptivePolicy{Step: step, Min: min, Max: max}
}

// Multiplier computes the adaptive multiplier for a tier given the caller's
// request history within the tier's window, oldest first.
func (p AdaptivePolicy) Multiplier(history []time.Time, tier Tier) float64 {
	count := len(history)
	if count == 0 || tier.MaxRequests <= 0 {
		return p.clamp(1.0)
	}

	// Saturating the window: tighten.
	if count >= tier.MaxRequests {
		return p.clamp(1.0 - p.Step)
	}

	// Sparse and evenly spaced: reward. Requires at least two requests to
	// have an inter-arrival interval at all.
	threshold := int(math.Floor(float64(tier.MaxRequests) * adaptiveThresholdRatio))
	if count < threshold && count > 1 {
		expected := tier.Window / time.Duration(tier.MaxRequests)
		if avgInterval(history) >= expected {
			return p.clamp(1.0 + p.Step)
		}
	}

	return p.clamp(1.0)
}

func (p AdaptivePolicy) clamp(m float64) float64 {
	return math.Max(p.Min, math.Min(p.Max, m))
}

func avgInterval(history []time.Time) time.Duration {
	if len(history) < 2 {
		return 0
	}
	span := history[len(history)-1].Sub(history[0])
	return span / time.Duration(len(history)-1)
}
