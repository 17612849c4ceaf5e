// Package models defines the service configuration structures and the JSON
// envelopes returned by the API. Configuration is hierarchical with logical
// grouping per component, defaults that work out of the box, and validation
// that catches misconfigurations at startup.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration for the gatekeeper service.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

// TierConfig overrides one entry of the built-in quota table.
type TierConfig struct {
	Name        string        `yaml:"name" json:"name"`
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
	BurstLimit  int           `yaml:"burst_limit" json:"burst_limit"`
	Window      time.Duration `yaml:"window" json:"window"`
	Priority    int           `yaml:"priority" json:"priority"`
}

// RateLimitConfig tunes the adaptive limiter. Zero values fall back to the
// limiter's built-in defaults.
type RateLimitConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	AdaptiveStep     float64       `yaml:"adaptive_step" json:"adaptive_step"`
	MinMultiplier    float64       `yaml:"min_multiplier" json:"min_multiplier"`
	MaxMultiplier    float64       `yaml:"max_multiplier" json:"max_multiplier"`
	Lookback         time.Duration `yaml:"lookback" json:"lookback"`
	IdleHorizon      time.Duration `yaml:"idle_horizon" json:"idle_horizon"`
	SweepProbability float64       `yaml:"sweep_probability" json:"sweep_probability"`
	Tiers            []TierConfig  `yaml:"tiers" json:"tiers"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"` // "stdout" or "otlp"
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults:
// rate limiting on, JSON logs, metrics exposed on a separate port, tracing
// off until an exporter is configured.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			AdaptiveStep:     0.2,
			MinMultiplier:    0.5,
			MaxMultiplier:    2.0,
			Lookback:         10 * time.Minute,
			IdleHorizon:      time.Hour,
			SweepProbability: 0.01,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "gatekeeper",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}
	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}
	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}
	return nil
}

func (rc *RateLimitConfig) Validate() error {
	if rc.AdaptiveStep < 0 || rc.AdaptiveStep >= 1 {
		return errors.New("adaptive step must be in [0, 1)")
	}
	if rc.MinMultiplier < 0 {
		return errors.New("min multiplier cannot be negative")
	}
	if rc.MaxMultiplier != 0 && rc.MaxMultiplier < rc.MinMultiplier {
		return errors.New("max multiplier cannot be below min multiplier")
	}
	if rc.SweepProbability < 0 || rc.SweepProbability > 1 {
		return errors.New("sweep probability must be in [0, 1]")
	}
	if rc.Lookback < 0 || rc.IdleHorizon < 0 {
		return errors.New("durations cannot be negative")
	}
	seen := make(map[string]bool, len(rc.Tiers))
	for _, t := range rc.Tiers {
		if t.Name == "" {
			return errors.New("tier name cannot be empty")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate tier name: %s", t.Name)
		}
		seen[t.Name] = true
		if t.MaxRequests <= 0 || t.BurstLimit <= 0 {
			return fmt.Errorf("tier %s: max_requests and burst_limit must be positive", t.Name)
		}
		if t.Window <= 0 {
			return fmt.Errorf("tier %s: window must be positive", t.Name)
		}
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}
	switch lc.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}
	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}
	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}
	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}
	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}
	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}
	if oc.Tracing.Enabled {
		switch oc.Tracing.Exporter {
		case "stdout":
		case "otlp":
			if oc.Tracing.OTLPEndpoint == "" {
				return errors.New("otlp endpoint is required for the otlp exporter")
			}
		default:
			return fmt.Errorf("unsupported trace exporter: %s", oc.Tracing.Exporter)
		}
		if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
			return errors.New("trace sample rate must be in [0, 1]")
		}
	}
	return nil
}
