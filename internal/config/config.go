// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/valpere/ReceiptScrapexter/internal/scraper"
	"github.com/valpere/ReceiptScrapexter/internal/security"
)

// Default returns a configuration with every default applied
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the
// process environment. Missing files are skipped and variables that are
// already set are never overridden.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// Load returns the defaults when filename is empty and LoadFromFile otherwise
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	return LoadFromFile(filename)
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*Config, error) {
	config, err := ParseFile(filename)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// ParseFile reads and decodes a YAML file and applies defaults without
// validating the result.
func ParseFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found: %s", filename)
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return parseBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes. ${VAR} references are
// expanded from the environment before parsing.
func LoadFromBytes(data []byte) (*Config, error) {
	config, err := parseBytes(data)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func parseBytes(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}

	return LoadFromBytes(data)
}

// SaveToFile saves configuration to a YAML file
func SaveToFile(config *Config, filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}
	defer f.Close()

	return SaveToWriter(config, f)
}

// SaveToWriter saves configuration to an io.Writer
func SaveToWriter(config *Config, writer io.Writer) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if writer == nil {
		return fmt.Errorf("writer cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}
	return encoder.Close()
}

// GenerateTemplate returns a fully populated configuration suitable as a
// starting point for operators.
func GenerateTemplate() *Config {
	config := Default()
	config.Fetch.UserAgents = scraper.DefaultUserAgents()
	config.Fetch.Headers = map[string]string{"Cache-Control": "no-cache"}
	config.Audit = AuditConfig{
		Enabled: false,
		Driver:  AuditDriverSQLite,
		DSN:     "file:receipts.db?_busy_timeout=5000",
		Table:   "extractions",
		Timeout: 5 * time.Second,
	}
	return config
}

// applyDefaults applies default values to the configuration
func applyDefaults(config *Config) {
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "json"
	}

	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 15 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 45 * time.Second
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 10 * time.Second
	}
	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = []string{"*"}
	}

	if config.Fetch.Timeout == 0 {
		config.Fetch.Timeout = 30 * time.Second
	}
	if config.Fetch.MaxBodyBytes == 0 {
		config.Fetch.MaxBodyBytes = 5 << 20
	}
	if config.Fetch.RateLimit == 0 {
		config.Fetch.RateLimit = 5
	}
	if config.Fetch.RateBurst == 0 {
		config.Fetch.RateBurst = 10
	}
	if config.Fetch.CircuitBreaker.MaxFailures == 0 {
		config.Fetch.CircuitBreaker.MaxFailures = 5
	}
	if config.Fetch.CircuitBreaker.ResetTimeout == 0 {
		config.Fetch.CircuitBreaker.ResetTimeout = 60 * time.Second
	}

	if config.Portal.AllowedHosts == nil {
		config.Portal.AllowedHosts = security.DefaultAllowedHosts()
	}

	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	if config.Metrics.Namespace == "" {
		config.Metrics.Namespace = "receiptscrapexter"
	}

	if config.Audit.Table == "" {
		config.Audit.Table = "extractions"
	}
	if config.Audit.Database == "" {
		config.Audit.Database = "receipts"
	}
	if config.Audit.Timeout == 0 {
		config.Audit.Timeout = 5 * time.Second
	}
}
