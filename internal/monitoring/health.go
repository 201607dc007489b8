// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name      string                                      `json:"name"`
	Status    HealthStatus                                `json:"status"`
	Message   string                                      `json:"message,omitempty"`
	Error     string                                      `json:"error,omitempty"`
	LastCheck time.Time                                   `json:"last_check"`
	Duration  time.Duration                               `json:"duration"`
	Metadata  map[string]interface{}                      `json:"metadata,omitempty"`
	CheckFunc func(ctx context.Context) HealthCheckResult `json:"-"`
	Timeout   time.Duration                               `json:"-"`
	Critical  bool                                        `json:"critical"`
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status   HealthStatus
	Message  string
	Error    error
	Metadata map[string]interface{}
}

// HealthManager runs health checks periodically and serves the liveness and readiness endpoints
type HealthManager struct {
	checks      map[string]*HealthCheck
	checksMutex sync.RWMutex
	ready       atomic.Bool
	stopOnce    sync.Once
	stopCh      chan struct{}
	config      HealthConfig
}

// HealthConfig configuration for health monitoring
type HealthConfig struct {
	CheckInterval    time.Duration `json:"check_interval"`
	DefaultTimeout   time.Duration `json:"default_timeout"`
	DetailedResponse bool          `json:"detailed_response"`
	Version          string        `json:"version"`
}

// SystemHealth represents overall system health information
type SystemHealth struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks,omitempty"`
	Summary   HealthSummary          `json:"summary"`
}

// HealthSummary provides a summary of health checks
type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
	Unknown   int `json:"unknown"`
}

var startTime = time.Now()

// NewHealthManager creates a new health manager. It starts out ready.
func NewHealthManager(config HealthConfig) *HealthManager {
	if config.CheckInterval == 0 {
		config.CheckInterval = 30 * time.Second
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = 5 * time.Second
	}

	hm := &HealthManager{
		checks: make(map[string]*HealthCheck),
		stopCh: make(chan struct{}),
		config: config,
	}
	hm.ready.Store(true)
	return hm
}

// RegisterCheck registers a new health check
func (hm *HealthManager) RegisterCheck(check *HealthCheck) {
	if check.Timeout == 0 {
		check.Timeout = hm.config.DefaultTimeout
	}
	if check.Status == "" {
		check.Status = HealthStatusUnknown
	}

	hm.checksMutex.Lock()
	hm.checks[check.Name] = check
	hm.checksMutex.Unlock()
}

// SetReady flips the readiness state. The server marks itself not ready
// while draining connections on shutdown.
func (hm *HealthManager) SetReady(ready bool) {
	hm.ready.Store(ready)
}

// Start runs all checks once and then on every interval until ctx is done
// or Stop is called.
func (hm *HealthManager) Start(ctx context.Context) {
	ticker := time.NewTicker(hm.config.CheckInterval)

	go func() {
		defer ticker.Stop()
		hm.RunChecks(ctx)

		for {
			select {
			case <-ticker.C:
				hm.RunChecks(ctx)
			case <-hm.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the health monitoring
func (hm *HealthManager) Stop() {
	hm.stopOnce.Do(func() { close(hm.stopCh) })
}

// RunChecks runs every registered check concurrently and stores the results
func (hm *HealthManager) RunChecks(ctx context.Context) {
	hm.checksMutex.RLock()
	checks := make([]*HealthCheck, 0, len(hm.checks))
	for _, check := range hm.checks {
		checks = append(checks, check)
	}
	hm.checksMutex.RUnlock()

	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(c *HealthCheck) {
			defer wg.Done()
			hm.runCheck(ctx, c)
		}(check)
	}
	wg.Wait()
}

// runCheck runs a single health check
func (hm *HealthManager) runCheck(ctx context.Context, check *HealthCheck) {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	var result HealthCheckResult
	if check.CheckFunc != nil {
		result = check.CheckFunc(checkCtx)
	} else {
		result = HealthCheckResult{
			Status:  HealthStatusUnknown,
			Message: "No check function defined",
		}
	}

	hm.checksMutex.Lock()
	defer hm.checksMutex.Unlock()

	check.LastCheck = start
	check.Duration = time.Since(start)
	check.Status = result.Status
	check.Message = result.Message
	check.Metadata = result.Metadata
	if result.Error != nil {
		check.Error = result.Error.Error()
	} else {
		check.Error = ""
	}
}

// GetHealth returns the overall health status
func (hm *HealthManager) GetHealth() SystemHealth {
	hm.checksMutex.RLock()
	defer hm.checksMutex.RUnlock()

	health := SystemHealth{
		Timestamp: time.Now(),
		Version:   hm.config.Version,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}

	if hm.config.DetailedResponse {
		health.Checks = make(map[string]HealthCheck, len(hm.checks))
		for name, check := range hm.checks {
			health.Checks[name] = *check
		}
	}

	summary := HealthSummary{}
	overallStatus := HealthStatusHealthy

	for _, check := range hm.checks {
		summary.Total++

		switch check.Status {
		case HealthStatusHealthy:
			summary.Healthy++
		case HealthStatusUnhealthy:
			summary.Unhealthy++
			if check.Critical {
				overallStatus = HealthStatusUnhealthy
			} else if overallStatus == HealthStatusHealthy {
				overallStatus = HealthStatusDegraded
			}
		case HealthStatusDegraded:
			summary.Degraded++
			if overallStatus == HealthStatusHealthy {
				overallStatus = HealthStatusDegraded
			}
		default:
			summary.Unknown++
		}
	}

	health.Status = overallStatus
	health.Summary = summary
	return health
}

// GetReadiness reports whether the service should receive traffic.
// Degraded counts as ready.
func (hm *HealthManager) GetReadiness() SystemHealth {
	health := hm.GetHealth()
	if !hm.ready.Load() || health.Status == HealthStatusUnhealthy {
		health.Status = HealthStatusUnhealthy
	} else {
		health.Status = HealthStatusHealthy
	}
	return health
}

// GetLiveness reports whether the process is alive. Only the process itself
// matters here; dependency failures never trigger a restart.
func (hm *HealthManager) GetLiveness() SystemHealth {
	return SystemHealth{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Version:   hm.config.Version,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}
}

// HealthHandler returns the HTTP handler for the health endpoint
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, hm.GetHealth())
	}
}

// ReadinessHandler returns HTTP handler for readiness endpoint
func (hm *HealthManager) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, hm.GetReadiness())
	}
}

// LivenessHandler returns HTTP handler for liveness endpoint
func (hm *HealthManager) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, hm.GetLiveness())
	}
}

func writeHealth(w http.ResponseWriter, health SystemHealth) {
	w.Header().Set("Content-Type", "application/json")
	if health.Status == HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(health)
}

// DatabaseHealthCheck creates a connectivity check for the audit sink
func DatabaseHealthCheck(name string, checkFunc func(ctx context.Context) error) *HealthCheck {
	return &HealthCheck{
		Name:     name,
		Critical: false,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			if err := checkFunc(ctx); err != nil {
				return HealthCheckResult{
					Status:  HealthStatusUnhealthy,
					Message: "Database connection failed",
					Error:   err,
				}
			}
			return HealthCheckResult{
				Status:  HealthStatusHealthy,
				Message: "Database connection successful",
			}
		},
	}
}

// CircuitBreakerHealthCheck reports degraded while any portal host has an
// open circuit breaker.
func CircuitBreakerHealthCheck(openCircuits func() []string) *HealthCheck {
	return &HealthCheck{
		Name:     "portal_circuits",
		Critical: false,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			open := openCircuits()
			metadata := map[string]interface{}{"open": open}
			if len(open) > 0 {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("%d portal host(s) skipped by circuit breaker", len(open)),
					Metadata: metadata,
				}
			}
			return HealthCheckResult{
				Status:   HealthStatusHealthy,
				Message:  "All portal circuits closed",
				Metadata: metadata,
			}
		},
	}
}

// GoroutineHealthCheck creates a goroutine count health check
func GoroutineHealthCheck(maxGoroutines int) *HealthCheck {
	return &HealthCheck{
		Name:     "goroutines",
		Critical: false,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			count := runtime.NumGoroutine()

			metadata := map[string]interface{}{
				"goroutine_count": count,
				"max_allowed":     maxGoroutines,
			}

			if count > maxGoroutines {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("High goroutine count: %d", count),
					Metadata: metadata,
				}
			}

			return HealthCheckResult{
				Status:   HealthStatusHealthy,
				Message:  fmt.Sprintf("Goroutine count normal: %d", count),
				Metadata: metadata,
			}
		},
	}
}
