// internal/config/types.go
package config

import (
	"time"
)

// Config is the complete service configuration
type Config struct {
	LogLevel  string        `yaml:"log_level" json:"log_level"`
	LogFormat string        `yaml:"log_format" json:"log_format"`
	Server    ServerConfig  `yaml:"server" json:"server"`
	Fetch     FetchConfig   `yaml:"fetch" json:"fetch"`
	Portal    PortalConfig  `yaml:"portal" json:"portal"`
	Metrics   MetricsConfig `yaml:"metrics" json:"metrics"`
	Audit     AuditConfig   `yaml:"audit" json:"audit"`
}

// ServerConfig defines the HTTP API listener
type ServerConfig struct {
	Address         string        `yaml:"address" json:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowed_origins"`
}

// FetchConfig defines how receipt portals are contacted
type FetchConfig struct {
	Timeout        time.Duration        `yaml:"timeout" json:"timeout"`
	MaxBodyBytes   int64                `yaml:"max_body_bytes" json:"max_body_bytes"`
	UserAgents     []string             `yaml:"user_agents,omitempty" json:"user_agents,omitempty"`
	Headers        map[string]string    `yaml:"headers,omitempty" json:"headers,omitempty"`
	RateLimit      float64              `yaml:"rate_limit" json:"rate_limit"`
	RateBurst      int                  `yaml:"rate_burst" json:"rate_burst"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

// CircuitBreakerConfig configures the per-host breaker around portal fetches
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures" json:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
}

// PortalConfig lists the tax-authority domains accepted by the lookup endpoint
type PortalConfig struct {
	AllowedHosts []string `yaml:"allowed_hosts" json:"allowed_hosts"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled   *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Path      string `yaml:"path" json:"path"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// IsEnabled reports whether metrics are served; absent means enabled.
func (mc MetricsConfig) IsEnabled() bool {
	return mc.Enabled == nil || *mc.Enabled
}

// AuditConfig configures the optional extraction audit trail
type AuditConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Driver   string        `yaml:"driver,omitempty" json:"driver,omitempty"`
	DSN      string        `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Table    string        `yaml:"table,omitempty" json:"table,omitempty"`
	Database string        `yaml:"database,omitempty" json:"database,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Supported audit drivers
const (
	AuditDriverSQLite   = "sqlite3"
	AuditDriverPostgres = "postgres"
	AuditDriverMySQL    = "mysql"
	AuditDriverMongoDB  = "mongodb"
)
