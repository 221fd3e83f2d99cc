// Package config provides application configuration management.
//
// Configuration is loaded from environment variables using the envconfig package.
// A .env file, when present, is loaded by the CLI before Load is called.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Route environments. Every route, import and settings snapshot is scoped to one.
const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// RouteEnvironments lists all valid route environments.
var RouteEnvironments = []string{EnvSandbox, EnvProduction}

// Config holds all application configuration.
type Config struct {
	// Environment is the deployment environment of this process, not a route environment.
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP server for health and metrics
	ServerHost string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	ServerPort int    `envconfig:"HTTP_PORT" default:"8090"`

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Gateway  GatewayConfig

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"` // json or console

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database-specific configuration.
type DatabaseConfig struct {
	DSN string `envconfig:"POSTGRES_DSN" required:"true"`

	// Connection pool settings
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"5m"`

	ConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"10s"`
}

// RedisConfig configures the redis connection used for entity locks and
// settings invalidation.
type RedisConfig struct {
	// URL is empty when running single-instance; locks then fall back to
	// in-process mutexes.
	URL string `envconfig:"REDIS_URL"`

	LockTTL  time.Duration `envconfig:"LOCK_TTL" default:"30s"`
	LockWait time.Duration `envconfig:"LOCK_WAIT" default:"10s"`

	SettingsChannel string `envconfig:"SETTINGS_CHANNEL" default:"marketplace:settings:changes"`
}

// KafkaConfig configures the domain event sink.
type KafkaConfig struct {
	// Brokers is a comma-separated list. Empty disables kafka publishing.
	Brokers string `envconfig:"KAFKA_BROKERS"`
	Topic   string `envconfig:"KAFKA_TOPIC" default:"marketplace.apis.events"`
}

// GatewayConfig holds admin API endpoints of the gateway control plane,
// one per route environment.
type GatewayConfig struct {
	SandboxAdminURL    string        `envconfig:"GATEWAY_SANDBOX_ADMIN_URL" required:"true"`
	ProductionAdminURL string        `envconfig:"GATEWAY_PRODUCTION_ADMIN_URL" required:"true"`
	AdminToken         string        `envconfig:"GATEWAY_ADMIN_TOKEN"`
	Timeout            time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"15s"`

	// RateLimit caps admin calls per second per environment; 0 disables it.
	RateLimit float64 `envconfig:"GATEWAY_RATE_LIMIT" default:"0"`
	RateBurst int     `envconfig:"GATEWAY_RATE_BURST" default:"20"`
}

// AdminURLs returns the admin URL for every route environment.
func (g GatewayConfig) AdminURLs() map[string]string {
	return map[string]string{
		EnvSandbox:    g.SandboxAdminURL,
		EnvProduction: g.ProductionAdminURL,
	}
}

// Load loads configuration from environment variables.
//
// Returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("log_level", cfg.LogLevel).
		Str("log_format", cfg.LogFormat).
		Bool("redis_enabled", cfg.Redis.URL != "").
		Bool("kafka_enabled", cfg.Kafka.Brokers != "").
		Msg("Configuration loaded successfully")

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validEnvironments := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}

	if !validEnvironments[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, production, or test)", c.Environment)
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.ServerPort)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.LogFormat)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("max_open_conns must be at least 1")
	}

	if c.Database.MaxIdleConns < 1 {
		return fmt.Errorf("max_idle_conns must be at least 1")
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("max_idle_conns (%d) cannot be greater than max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	for env, raw := range c.Gateway.AdminURLs() {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid gateway admin url for %s: %q", env, raw)
		}
	}

	if c.Gateway.RateLimit < 0 {
		return fmt.Errorf("gateway rate limit cannot be negative")
	}

	if c.Redis.URL != "" && c.Redis.LockTTL <= 0 {
		return fmt.Errorf("lock ttl must be positive when redis is enabled")
	}

	return nil
}

// IsDevelopment returns true if running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// ServerAddress returns the server address in host:port format.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// IsRouteEnvironment reports whether env is a known route environment.
func IsRouteEnvironment(env string) bool {
	for _, e := range RouteEnvironments {
		if e == env {
			return true
		}
	}
	return false
}
