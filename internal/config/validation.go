// internal/config/validation.go - Validation with detailed error messages
package config

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a detailed validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var validLogLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate checks the configuration and returns every problem found in one error
func (c *Config) Validate() error {
	result := c.ValidateWithDetails()
	if !result.Valid {
		return formatValidationError(result)
	}
	return nil
}

// ValidateWithDetails provides detailed validation results
func (c *Config) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]ValidationError, 0),
		Warnings: make([]string, 0),
	}

	c.validateLogging(result)
	c.validateServer(result)
	c.validateFetch(result)
	c.validatePortal(result)
	c.validateMetrics(result)
	c.validateAudit(result)

	result.Valid = len(result.Errors) == 0
	return result
}

func (r *ValidationResult) addError(field, value, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: message})
}

func (c *Config) validateLogging(result *ValidationResult) {
	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		result.addError("log_level", c.LogLevel,
			fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		result.addError("log_format", c.LogFormat, "log format must be json or text")
	}
}

func (c *Config) validateServer(result *ValidationResult) {
	if strings.TrimSpace(c.Server.Address) == "" {
		result.addError("server.address", "", "listen address is required")
	}
	checkPositive(result, "server.read_timeout", c.Server.ReadTimeout)
	checkPositive(result, "server.write_timeout", c.Server.WriteTimeout)
	checkPositive(result, "server.shutdown_timeout", c.Server.ShutdownTimeout)

	if c.Server.WriteTimeout > 0 && c.Fetch.Timeout > 0 && c.Server.WriteTimeout <= c.Fetch.Timeout {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("server.write_timeout (%s) should exceed fetch.timeout (%s) or slow portals will cut responses short",
				c.Server.WriteTimeout, c.Fetch.Timeout))
	}

	for i, origin := range c.Server.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			result.addError(fmt.Sprintf("server.allowed_origins[%d]", i), origin,
				"origin must be * or start with http:// or https://")
		}
	}
}

func (c *Config) validateFetch(result *ValidationResult) {
	checkPositive(result, "fetch.timeout", c.Fetch.Timeout)
	if c.Fetch.Timeout > 5*time.Minute {
		result.addError("fetch.timeout", c.Fetch.Timeout.String(), "fetch timeout cannot exceed 5m")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		result.addError("fetch.max_body_bytes", fmt.Sprint(c.Fetch.MaxBodyBytes), "body limit must be positive")
	}
	if c.Fetch.RateLimit < 0 {
		result.addError("fetch.rate_limit", fmt.Sprint(c.Fetch.RateLimit), "rate limit cannot be negative")
	}
	if c.Fetch.RateBurst < 0 {
		result.addError("fetch.rate_burst", fmt.Sprint(c.Fetch.RateBurst), "rate burst cannot be negative")
	}
	if c.Fetch.CircuitBreaker.MaxFailures < 1 {
		result.addError("fetch.circuit_breaker.max_failures", fmt.Sprint(c.Fetch.CircuitBreaker.MaxFailures),
			"at least one failure is required to open the circuit")
	}
	checkPositive(result, "fetch.circuit_breaker.reset_timeout", c.Fetch.CircuitBreaker.ResetTimeout)

	for name := range c.Fetch.Headers {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " :\r\n") {
			result.addError("fetch.headers", name, "invalid header name")
			continue
		}
		if http.CanonicalHeaderKey(name) == "Host" {
			result.addError("fetch.headers", name, "the Host header cannot be overridden")
		}
	}
}

func (c *Config) validatePortal(result *ValidationResult) {
	if len(c.Portal.AllowedHosts) == 0 {
		result.Warnings = append(result.Warnings,
			"portal.allowed_hosts is empty: the lookup endpoint will fetch any host")
	}
	for i, host := range c.Portal.AllowedHosts {
		if strings.TrimSpace(host) == "" || strings.Contains(host, "://") || strings.Contains(host, "/") {
			result.addError(fmt.Sprintf("portal.allowed_hosts[%d]", i), host,
				"allowed hosts are bare domain names without scheme or path")
		}
	}
}

func (c *Config) validateMetrics(result *ValidationResult) {
	if !c.Metrics.IsEnabled() {
		return
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		result.addError("metrics.path", c.Metrics.Path, "metrics path must start with /")
	}
	if !identifierPattern.MatchString(c.Metrics.Namespace) {
		result.addError("metrics.namespace", c.Metrics.Namespace,
			"metrics namespace must contain only letters, digits and underscores")
	}
}

func (c *Config) validateAudit(result *ValidationResult) {
	if !c.Audit.Enabled {
		return
	}

	drivers := []string{AuditDriverSQLite, AuditDriverPostgres, AuditDriverMySQL, AuditDriverMongoDB}
	if !contains(drivers, c.Audit.Driver) {
		result.addError("audit.driver", c.Audit.Driver,
			fmt.Sprintf("audit driver must be one of: %s", strings.Join(drivers, ", ")))
	}
	if strings.TrimSpace(c.Audit.DSN) == "" {
		result.addError("audit.dsn", "", "a DSN is required when audit is enabled")
	}
	if !identifierPattern.MatchString(c.Audit.Table) {
		result.addError("audit.table", c.Audit.Table, "table name must be a plain identifier")
	}
	if c.Audit.Driver == AuditDriverMongoDB && strings.TrimSpace(c.Audit.Database) == "" {
		result.addError("audit.database", "", "a database name is required for mongodb")
	}
}

func checkPositive(result *ValidationResult, field string, d time.Duration) {
	if d <= 0 {
		result.addError(field, d.String(), "duration must be positive")
	}
}

// formatValidationError creates a comprehensive error message
func formatValidationError(result *ValidationResult) error {
	var errorMsg strings.Builder

	errorMsg.WriteString("configuration validation failed:\n")

	for i, err := range result.Errors {
		errorMsg.WriteString(fmt.Sprintf("  %d. %s", i+1, err.Message))
		if err.Field != "" {
			errorMsg.WriteString(fmt.Sprintf(" (field: %s)", err.Field))
		}
		if err.Value != "" {
			errorMsg.WriteString(fmt.Sprintf(" (value: %s)", err.Value))
		}
		errorMsg.WriteString("\n")
	}

	return fmt.Errorf("%s", errorMsg.String())
}

// GetValidationSuggestions provides actionable suggestions for fixing validation errors
func GetValidationSuggestions(result *ValidationResult) []string {
	suggestions := make([]string, 0)

	hasTimeoutError := false
	hasAuditError := false
	hasPortalError := false

	for _, err := range result.Errors {
		if strings.Contains(err.Field, "timeout") {
			hasTimeoutError = true
		}
		if strings.HasPrefix(err.Field, "audit.") {
			hasAuditError = true
		}
		if strings.HasPrefix(err.Field, "portal.") {
			hasPortalError = true
		}
	}

	if hasTimeoutError {
		suggestions = append(suggestions,
			"Write durations with a unit, for example 30s or 2m",
			"Keep server.write_timeout above fetch.timeout")
	}

	if hasAuditError {
		suggestions = append(suggestions,
			"Use sqlite3 with a file DSN for local runs",
			"Set audit.enabled to false to run without an audit trail")
	}

	if hasPortalError {
		suggestions = append(suggestions,
			"List portal domains like fazenda.sp.gov.br; subdomains match automatically")
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions,
			"Review the configuration file for syntax errors",
			"Check YAML indentation and formatting")
	}

	return suggestions
}

// Helper function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
