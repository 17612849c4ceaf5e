// Package config loads service configuration from YAML files and environment
// variables. Precedence: defaults, then file, then GATEKEEPER_* env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gatekeeper/internal/models"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from file and environment variables.
func Load(configPath string) (*models.Config, error) {
	config := models.NewDefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment overrides configuration from environment variables.
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if port := os.Getenv("GATEKEEPER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("GATEKEEPER_HOST"); host != "" {
		config.Server.Host = host
	}

	if timeout := os.Getenv("GATEKEEPER_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}

	if timeout := os.Getenv("GATEKEEPER_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}

	if timeout := os.Getenv("GATEKEEPER_IDLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.IdleTimeout = d
		}
	}

	// Rate limit configuration
	if enabled := os.Getenv("GATEKEEPER_RATELIMIT_ENABLED"); enabled != "" {
		config.RateLimit.Enabled = strings.ToLower(enabled) == "true"
	}

	if step := os.Getenv("GATEKEEPER_RATELIMIT_ADAPTIVE_STEP"); step != "" {
		if f, err := strconv.ParseFloat(step, 64); err == nil {
			config.RateLimit.AdaptiveStep = f
		}
	}

	if lookback := os.Getenv("GATEKEEPER_RATELIMIT_LOOKBACK"); lookback != "" {
		if d, err := time.ParseDuration(lookback); err == nil {
			config.RateLimit.Lookback = d
		}
	}

	if horizon := os.Getenv("GATEKEEPER_RATELIMIT_IDLE_HORIZON"); horizon != "" {
		if d, err := time.ParseDuration(horizon); err == nil {
			config.RateLimit.IdleHorizon = d
		}
	}

	if prob := os.Getenv("GATEKEEPER_RATELIMIT_SWEEP_PROBABILITY"); prob != "" {
		if f, err := strconv.ParseFloat(prob, 64); err == nil {
			config.RateLimit.SweepProbability = f
		}
	}

	// Logging configuration
	if level := os.Getenv("GATEKEEPER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("GATEKEEPER_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("GATEKEEPER_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if path := os.Getenv("GATEKEEPER_LOG_FILE_PATH"); path != "" {
		config.Logging.FilePath = path
	}

	// Metrics configuration
	if enabled := os.Getenv("GATEKEEPER_METRICS_ENABLED"); enabled != "" {
		config.Metrics.Enabled = strings.ToLower(enabled) == "true"
	}

	if port := os.Getenv("GATEKEEPER_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}

	// Observability configuration
	if name := os.Getenv("GATEKEEPER_SERVICE_NAME"); name != "" {
		config.Observability.ServiceName = name
	}

	if enabled := os.Getenv("GATEKEEPER_TRACING_ENABLED"); enabled != "" {
		config.Observability.Tracing.Enabled = strings.ToLower(enabled) == "true"
	}

	if exporter := os.Getenv("GATEKEEPER_TRACING_EXPORTER"); exporter != "" {
		config.Observability.Tracing.Exporter = exporter
	}

	if endpoint := os.Getenv("GATEKEEPER_OTLP_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.OTLPEndpoint = endpoint
	}
}
