package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierRegistry_Defaults(t *testing.T) {
	r := NewTierRegistry(nil)
	tiers := r.Tiers()

	require.Len(t, tiers, 4)
	assert.Equal(t, "free", tiers[0].Name)
	assert.Equal(t, "enterprise", tiers[3].Name)

	// Priority ascending
	for i := 1; i < len(tiers); i++ {
		assert.Greater(t, tiers[i].Priority, tiers[i-1].Priority)
	}
}

func TestTierRegistry_IPResolvesToLowestTier(t *testing.T) {
	r := NewTierRegistry(nil)

	assert.Equal(t, "free", r.Resolve("ip:192.168.1.1").Name)
	assert.Equal(t, "free", r.Resolve("ip:10.0.0.7").Name)
}

func TestTierRegistry_EmptyAPIKeyResolvesToLowestTier(t *testing.T) {
	r := NewTierRegistry(nil)
	assert.Equal(t, "free", r.Resolve("api:").Name)
}

func TestTierRegistry_ResolutionIsStable(t *testing.T) {
	r := NewTierRegistry(nil)

	keys := []string{"api:alpha", "api:beta", "api:gamma", "ip:172.16.0.1"}
	for _, key := range keys {
		first := r.Resolve(key)
		for i := 0; i < 100; i++ {
			assert.Equal(t, first.Name, r.Resolve(key).Name, "tier flapped for %s", key)
		}
	}
}

func TestTierRegistry_APIKeysSpreadAcrossTiers(t *testing.T) {
	r := NewTierRegistry(nil)

	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		tier := r.Resolve(fmt.Sprintf("api:key-%d", i))
		seen[tier.Name] = true
	}

	// Stable hash modulo tier count should hit more than one tier over a
	// reasonable sample of keys.
	assert.Greater(t, len(seen), 1)
}

func TestTierRegistry_CustomTiersSortedByPriority(t *testing.T) {
	custom := []Tier{
		{Name: "gold", MaxRequests: 100, BurstLimit: 10, Window: time.Minute, Priority: 2},
		{Name: "bronze", MaxRequests: 10, BurstLimit: 2, Window: time.Minute, Priority: 1},
	}
	r := NewTierRegistry(custom)

	tiers := r.Tiers()
	require.Len(t, tiers, 2)
	assert.Equal(t, "bronze", tiers[0].Name)
	assert.Equal(t, "bronze", r.Resolve("ip:1.2.3.4").Name)
}

func TestTier_RefillPerSecond(t *testing.T) {
	tier := Tier{Name: "free", MaxRequests: 10, BurstLimit: 5, Window: time.Minute}
	assert.InDelta(t, 10.0/60.0, tier.RefillPerSecond(), 1e-9)
}
