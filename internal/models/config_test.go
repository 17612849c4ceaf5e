package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"valid", func(sc *ServerConfig) {}, ""},
		{"zero port", func(sc *ServerConfig) { sc.Port = 0 }, "port"},
		{"port too high", func(sc *ServerConfig) { sc.Port = 70000 }, "port"},
		{"empty host", func(sc *ServerConfig) { sc.Host = "" }, "host"},
		{"negative timeout", func(sc *ServerConfig) { sc.ReadTimeout = -time.Second }, "timeouts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(&cfg.Server)
			err := cfg.Server.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RateLimitConfig)
		wantErr string
	}{
		{"valid", func(rc *RateLimitConfig) {}, ""},
		{"step out of range", func(rc *RateLimitConfig) { rc.AdaptiveStep = 1.0 }, "adaptive step"},
		{"negative step", func(rc *RateLimitConfig) { rc.AdaptiveStep = -0.1 }, "adaptive step"},
		{"negative min", func(rc *RateLimitConfig) { rc.MinMultiplier = -1 }, "min multiplier"},
		{"max below min", func(rc *RateLimitConfig) { rc.MinMultiplier = 1.5; rc.MaxMultiplier = 1.0 }, "max multiplier"},
		{"probability above one", func(rc *RateLimitConfig) { rc.SweepProbability = 1.5 }, "sweep probability"},
		{"negative lookback", func(rc *RateLimitConfig) { rc.Lookback = -time.Minute }, "durations"},
		{"empty tier name", func(rc *RateLimitConfig) {
			rc.Tiers = []TierConfig{{MaxRequests: 10, BurstLimit: 5, Window: time.Minute}}
		}, "tier name"},
		{"duplicate tier", func(rc *RateLimitConfig) {
			rc.Tiers = []TierConfig{
				{Name: "a", MaxRequests: 10, BurstLimit: 5, Window: time.Minute},
				{Name: "a", MaxRequests: 20, BurstLimit: 5, Window: time.Minute},
			}
		}, "duplicate"},
		{"non-positive quota", func(rc *RateLimitConfig) {
			rc.Tiers = []TierConfig{{Name: "a", MaxRequests: 0, BurstLimit: 5, Window: time.Minute}}
		}, "must be positive"},
		{"non-positive window", func(rc *RateLimitConfig) {
			rc.Tiers = []TierConfig{{Name: "a", MaxRequests: 10, BurstLimit: 5}}
		}, "window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(&cfg.RateLimit)
			err := cfg.RateLimit.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoggingConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()

	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Logging.Validate())

	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Logging.Validate())

	cfg.Logging.Format = "text"
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = ""
	assert.Error(t, cfg.Logging.Validate())

	cfg.Logging.FilePath = "/var/log/gatekeeper.log"
	assert.NoError(t, cfg.Logging.Validate())
}

func TestMetricsConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()

	cfg.Metrics.Port = 0
	assert.Error(t, cfg.Metrics.Validate())

	// Disabled metrics skip validation entirely.
	cfg.Metrics.Enabled = false
	assert.NoError(t, cfg.Metrics.Validate())
}

func TestObservabilityConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()

	cfg.Observability.ServiceName = ""
	assert.Error(t, cfg.Observability.Validate())

	cfg.Observability.ServiceName = "gatekeeper"
	cfg.Observability.Tracing.Enabled = true
	cfg.Observability.Tracing.Exporter = "otlp"
	cfg.Observability.Tracing.OTLPEndpoint = ""
	assert.Error(t, cfg.Observability.Validate())

	cfg.Observability.Tracing.OTLPEndpoint = "localhost:4317"
	assert.NoError(t, cfg.Observability.Validate())

	cfg.Observability.Tracing.Exporter = "jaeger"
	assert.Error(t, cfg.Observability.Validate())

	cfg.Observability.Tracing.Exporter = "stdout"
	cfg.Observability.Tracing.SampleRate = 1.5
	assert.Error(t, cfg.Observability.Validate())
}
