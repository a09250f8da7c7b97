// Package config loads configuration from a yaml file and OUTPOST_ env vars.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string.
	DatabaseURL string

	// HTTP server port for the controller.
	HTTPPort int

	// SystemSecret guards the admin surface (tenant and key management).
	SystemSecret string

	// OTLP collector endpoint for traces.
	OTELEndpoint string

	// Queue behavior.
	VisibilityTimeout time.Duration
	ReceiveWait       time.Duration

	// Worker behavior.
	Runtime       string // "exec" or "docker"
	WorkspaceRoot string
	JobTimeout    time.Duration
	MetricsPort   int

	// Audit retention window in days.
	AuditRetentionDays int

	// Secret cache staleness bound.
	SecretCacheTTL time.Duration
}

// Load reads configuration from the given yaml file (optional) and from
// OUTPOST_* environment variables, env taking precedence.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_port", 6161)
	v.SetDefault("otel_endpoint", "localhost:4317")
	// Must stay above job_timeout unless the worker heartbeat is relied on
	// to keep leases alive through long runs.
	v.SetDefault("visibility_timeout", "15m")
	v.SetDefault("receive_wait", "20s")
	v.SetDefault("runtime", "exec")
	v.SetDefault("workspace_root", "/tmp/outpost/workspaces")
	v.SetDefault("job_timeout", "600s")
	v.SetDefault("metrics_port", 6162)
	v.SetDefault("audit_retention_days", 90)
	v.SetDefault("secret_cache_ttl", "5m")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("outpost")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("OUTPOST")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; env vars may carry
		// everything. An explicit path must exist.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:        v.GetString("database_url"),
		HTTPPort:           v.GetInt("http_port"),
		SystemSecret:       v.GetString("system_secret"),
		OTELEndpoint:       v.GetString("otel_endpoint"),
		VisibilityTimeout:  v.GetDuration("visibility_timeout"),
		ReceiveWait:        v.GetDuration("receive_wait"),
		Runtime:            v.GetString("runtime"),
		WorkspaceRoot:      v.GetString("workspace_root"),
		JobTimeout:         v.GetDuration("job_timeout"),
		MetricsPort:        v.GetInt("metrics_port"),
		AuditRetentionDays: v.GetInt("audit_retention_days"),
		SecretCacheTTL:     v.GetDuration("secret_cache_ttl"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required (OUTPOST_DATABASE_URL)")
	}

	return cfg, nil
}
