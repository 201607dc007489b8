// internal/errors/service.go - Circuit breaking and user-facing error reporting
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute when the breaker for a key is open.
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// Service guards portal fetches with one circuit breaker per key (host) and
// turns technical errors into operator-facing messages and exit codes.
type Service struct {
	breakerConfig   CircuitBreakerConfig
	classifier      func(error) bool
	messageHandler  *MessageHandler
	circuitBreakers map[string]*CircuitBreaker
	mu              sync.RWMutex
}

// MessageHandler converts technical errors to user-friendly messages
type MessageHandler struct {
	showTechnical bool
}

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String returns the state name
func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker implements circuit breaker pattern for error recovery
type CircuitBreaker struct {
	name            string
	maxFailures     int
	resetTimeout    time.Duration
	state           CircuitBreakerState
	failures        int
	lastFailureTime time.Time
	nextAttemptTime time.Time
	mu              sync.Mutex
}

// CircuitBreakerConfig configures circuit breaker behavior
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures" json:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
}

// RecoveryResult contains the outcome of a guarded operation
type RecoveryResult struct {
	Success       bool
	CircuitOpen   bool
	RecoveryTime  time.Duration
	OriginalError error
}

// Option customizes a Service
type Option func(*Service)

// WithCircuitBreaker sets the configuration used for every new breaker
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(s *Service) {
		if config.MaxFailures > 0 {
			s.breakerConfig.MaxFailures = config.MaxFailures
		}
		if config.ResetTimeout > 0 {
			s.breakerConfig.ResetTimeout = config.ResetTimeout
		}
	}
}

// WithFailureClassifier decides which errors count against a breaker.
// Errors for which classify returns false are returned but not recorded.
func WithFailureClassifier(classify func(error) bool) Option {
	return func(s *Service) {
		s.classifier = classify
	}
}

// NewService creates a new error service
func NewService(opts ...Option) *Service {
	s := &Service{
		breakerConfig: CircuitBreakerConfig{
			MaxFailures:  5,
			ResetTimeout: 60 * time.Second,
		},
		classifier:      func(error) bool { return true },
		messageHandler:  &MessageHandler{showTechnical: false},
		circuitBreakers: make(map[string]*CircuitBreaker),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithVerbose enables technical error details
func (s *Service) WithVerbose(verbose bool) *Service {
	s.messageHandler.showTechnical = verbose
	return s
}

// Execute runs operation behind the breaker for key. It returns ErrCircuitOpen
// without calling operation when the breaker is open.
func (s *Service) Execute(ctx context.Context, key string, operation func(context.Context) error) error {
	result := s.ExecuteWithRecovery(ctx, key, operation)
	if result.CircuitOpen {
		return fmt.Errorf("%w for %s", ErrCircuitOpen, key)
	}
	return result.OriginalError
}

// ExecuteWithRecovery calls operation once behind the breaker for key and
// reports what happened. There are no retries: a portal gets one request.
func (s *Service) ExecuteWithRecovery(ctx context.Context, key string, operation func(context.Context) error) *RecoveryResult {
	startTime := time.Now()
	result := &RecoveryResult{}

	circuitBreaker := s.getOrCreateCircuitBreaker(key)
	if !circuitBreaker.CanExecute() {
		result.CircuitOpen = true
		result.RecoveryTime = time.Since(startTime)
		return result
	}

	err := operation(ctx)
	result.RecoveryTime = time.Since(startTime)
	if err == nil {
		circuitBreaker.RecordSuccess()
		result.Success = true
		return result
	}

	// A caller giving up is not evidence that the portal is failing.
	if ctx.Err() == nil && s.classifier(err) {
		circuitBreaker.RecordFailure()
	}
	result.OriginalError = err
	return result
}

// getOrCreateCircuitBreaker gets or creates a circuit breaker for a key
func (s *Service) getOrCreateCircuitBreaker(key string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, exists := s.circuitBreakers[key]; exists {
		return cb
	}

	cb := NewCircuitBreaker(key, s.breakerConfig)
	s.circuitBreakers[key] = cb
	return cb
}

// GetUserFriendlyError converts technical errors to user-friendly messages
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case stderrors.Is(err, ErrCircuitOpen):
		return "Portal Temporarily Skipped",
			"Recent requests to this receipt portal kept failing, so it is not being contacted for now.",
			[]string{
				"Wait for the circuit breaker reset timeout and try again",
				"Check whether the state tax portal is down",
			}

	case stderrors.Is(err, context.DeadlineExceeded) || strings.Contains(errStr, "timeout"):
		return "Connection Timeout",
			"The receipt portal did not answer within the configured time budget.",
			[]string{
				"Check your internet connection",
				"Increase fetch.timeout in the configuration",
				"Government portals are often slow at peak hours; try again later",
			}

	case strings.Contains(errStr, "no such host"):
		return "Domain Not Found",
			"Could not resolve the receipt portal domain.",
			[]string{
				"Check that the QR code was scanned completely",
				"Check your DNS settings",
			}

	case strings.Contains(errStr, "connection refused"):
		return "Connection Refused",
			"The receipt portal refused the connection.",
			[]string{
				"Check if the portal opens in a browser",
				"The server might be temporarily down",
			}

	case strings.Contains(errStr, "not a known tax-authority portal") || strings.Contains(errStr, "not allowed"):
		return "Unknown Portal",
			"The link does not point to a known tax-authority receipt portal.",
			[]string{
				"Verify the QR code belongs to a fiscal receipt",
				"Add the domain to portal.allowed_hosts if it is legitimate",
			}

	case strings.Contains(errStr, "yaml") || strings.Contains(errStr, "config"):
		return "Configuration Error",
			"The configuration file is invalid.",
			[]string{
				"Check YAML indentation (use spaces, not tabs)",
				"Run the validate command to see every problem",
				"Generate a fresh file with the template command",
			}

	case strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit"):
		return "Rate Limit Exceeded",
			"The receipt portal is throttling requests.",
			[]string{
				"Lower fetch.rate_limit",
				"Reduce batch concurrency",
			}

	case strings.Contains(errStr, "validation"):
		return "Invalid Input",
			"The input did not pass validation.",
			[]string{
				"Check the value and date formats (1234,56 and DD/MM/YYYY)",
			}
	}

	return "Unexpected Error",
		"An unexpected error occurred during the operation.",
		[]string{
			"Try running the command again",
			"Run with --verbose for technical details",
		}
}

// GetExitCode returns appropriate exit code for error
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "config") || strings.Contains(errStr, "yaml"):
		return 2 // Configuration error
	case stderrors.Is(err, ErrCircuitOpen) || stderrors.Is(err, context.DeadlineExceeded) || isNetworkError(err) ||
		containsAny(errStr, "network", "timeout", "connection", "no such host"):
		return 3 // Network error
	case strings.Contains(errStr, "validation") || strings.Contains(errStr, "not allowed") ||
		strings.Contains(errStr, "tax-authority"):
		return 6 // Validation error
	default:
		return 1 // General error
	}
}

// FormatErrorForCLI formats error for command-line display
func (s *Service) FormatErrorForCLI(err error) string {
	title, message, suggestions := s.GetUserFriendlyError(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "❌ %s\n%s\n", title, message)

	if s.messageHandler.showTechnical {
		fmt.Fprintf(&sb, "\nTechnical details: %s\n", err.Error())
	}

	if len(suggestions) > 0 {
		sb.WriteString("\n💡 Suggestions:\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(&sb, "  • %s\n", suggestion)
		}
	}

	return sb.String()
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return stderrors.As(err, &opErr)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NewCircuitBreaker creates a closed breaker. Zero config values fall back
// to 5 failures and a 60s reset timeout.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		name:         name,
		maxFailures:  config.MaxFailures,
		resetTimeout: config.ResetTimeout,
		state:        CircuitClosed,
	}
}

// CanExecute checks if circuit breaker allows execution
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Now().After(cb.nextAttemptTime) {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	case CircuitHalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess records successful execution
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = CircuitClosed
}

// RecordFailure records failed execution. A failure while half-open reopens
// the breaker immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = CircuitOpen
		cb.nextAttemptTime = time.Now().Add(cb.resetTimeout)
	}
}

// GetState returns current circuit breaker state
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// OpenCircuits returns the keys whose breaker is currently open
func (s *Service) OpenCircuits() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []string
	for name, cb := range s.circuitBreakers {
		if cb.GetState() == CircuitOpen {
			open = append(open, name)
		}
	}
	return open
}
