package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/models"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/version"
)

func testObsConfig() models.ObservabilityConfig {
	return models.ObservabilityConfig{
		ServiceName: "gatekeeper-test",
		Tracing: models.TracingConfig{
			Enabled:    false,
			Exporter:   "stdout",
			SampleRate: 1.0,
		},
	}
}

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(models.MetricsConfig{Enabled: false}, testObsConfig(), version.Info{Version: "test"})
	require.NoError(t, err)
	assert.Nil(t, p.PrometheusExporter())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_MetricsOnly(t *testing.T) {
	p, err := Setup(models.MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090}, testObsConfig(), version.Info{Version: "test"})
	require.NoError(t, err)
	assert.NotNil(t, p.PrometheusExporter())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_StdoutTracing(t *testing.T) {
	obs := testObsConfig()
	obs.Tracing.Enabled = true

	p, err := Setup(models.MetricsConfig{Enabled: false}, obs, version.Info{Version: "test"})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_UnsupportedExporter(t *testing.T) {
	obs := testObsConfig()
	obs.Tracing.Enabled = true
	obs.Tracing.Exporter = "jaeger"

	_, err := Setup(models.MetricsConfig{Enabled: false}, obs, version.Info{Version: "test"})
	assert.Error(t, err)
}

func TestInstrumentedLimiter_DelegatesDecisions(t *testing.T) {
	clk := ratelimit.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	inner := ratelimit.New(
		ratelimit.WithClock(clk),
		ratelimit.WithSweepProbability(0),
	)

	// The global meter defaults to a no-op provider; instrument creation
	// still succeeds and recording is harmless.
	wrapped, err := NewInstrumentedLimiter(inner)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		d := wrapped.Decide("ip:203.0.113.9")
		assert.True(t, d.Allowed)
		assert.Equal(t, "free", d.Tier.Name)
	}
	d := wrapped.Decide("ip:203.0.113.9")
	assert.False(t, d.Allowed)

	// The wrapper shares state with the inner limiter.
	assert.Equal(t, 1, inner.Stats().Buckets)
}
