// internal/errors/service_test.go
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// Test configuration constants
const (
	TestCircuitBreakerResetTimeout = 100 * time.Millisecond // Short timeout for circuit breaker tests
)

func TestService_ExecuteWithRecovery_Success(t *testing.T) {
	service := NewService()
	ctx := context.Background()

	result := service.ExecuteWithRecovery(ctx, "portal.example", func(context.Context) error {
		return nil
	})

	if !result.Success {
		t.Error("Expected operation to succeed")
	}
	if result.OriginalError != nil {
		t.Errorf("Expected no error, got %v", result.OriginalError)
	}
}

func TestService_DefaultIsSingleAttempt(t *testing.T) {
	service := NewService()
	attempts := 0

	err := service.Execute(context.Background(), "portal.example", func(context.Context) error {
		attempts++
		return fmt.Errorf("HTTP 503: service unavailable")
	})

	if err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected exactly 1 attempt without retry policy, got %d", attempts)
	}
}

func TestService_ExecuteWithRecovery_TransientErrorNotRetried(t *testing.T) {
	service := NewService()
	transient := fmt.Errorf("HTTP 503: temporary error")

	attempts := 0
	result := service.ExecuteWithRecovery(context.Background(), "portal.example", func(context.Context) error {
		attempts++
		return transient
	})

	if result.Success {
		t.Error("Expected failure")
	}
	if attempts != 1 {
		t.Errorf("Expected a single call even for a transient error, got %d", attempts)
	}
	if !stderrors.Is(result.OriginalError, transient) {
		t.Errorf("Expected the operation error, got %v", result.OriginalError)
	}
}

func TestService_CircuitBreakerOpens(t *testing.T) {
	service := NewService(WithCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: TestCircuitBreakerResetTimeout,
	}))
	ctx := context.Background()
	failing := func(context.Context) error { return fmt.Errorf("connection refused") }

	for i := 0; i < 2; i++ {
		if err := service.Execute(ctx, "portal.example", failing); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}

	called := false
	err := service.Execute(ctx, "portal.example", func(context.Context) error {
		called = true
		return nil
	})
	if !stderrors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Operation must not run while the breaker is open")
	}
	if open := service.OpenCircuits(); len(open) != 1 || open[0] != "portal.example" {
		t.Errorf("OpenCircuits() = %v", open)
	}

	// Other hosts are unaffected
	if err := service.Execute(ctx, "other.example", func(context.Context) error { return nil }); err != nil {
		t.Errorf("Unexpected error for other host: %v", err)
	}

	time.Sleep(TestCircuitBreakerResetTimeout + 20*time.Millisecond)

	if err := service.Execute(ctx, "portal.example", func(context.Context) error { return nil }); err != nil {
		t.Errorf("Expected half-open trial call to succeed, got %v", err)
	}
	if len(service.OpenCircuits()) != 0 {
		t.Error("Expected breaker to close after a successful trial call")
	}
}

func TestService_FailureClassifier(t *testing.T) {
	notCounted := stderrors.New("HTTP 404: not found")
	service := NewService(
		WithCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute}),
		WithFailureClassifier(func(err error) bool { return !stderrors.Is(err, notCounted) }),
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := service.Execute(ctx, "portal.example", func(context.Context) error { return notCounted })
		if !stderrors.Is(err, notCounted) {
			t.Fatalf("Expected original error, got %v", err)
		}
	}
	if len(service.OpenCircuits()) != 0 {
		t.Error("Unclassified failures must not open the breaker")
	}
}

func TestService_CancelledCallerDoesNotTripBreaker(t *testing.T) {
	service := NewService(WithCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	service.Execute(ctx, "portal.example", func(ctx context.Context) error { return ctx.Err() })

	if len(service.OpenCircuits()) != 0 {
		t.Error("Context cancellation must not open the breaker")
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("portal.example", CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: 10 * time.Millisecond})
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	if cb.GetState() != CircuitOpen {
		t.Fatalf("Expected open, got %s", cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)
	if !cb.CanExecute() {
		t.Fatal("Expected half-open trial call to be allowed")
	}
	cb.RecordFailure()
	if cb.GetState() != CircuitOpen {
		t.Errorf("Expected a failed trial call to reopen, got %s", cb.GetState())
	}
}

func TestService_SuccessAfterResetClosesBreaker(t *testing.T) {
	service := NewService(WithCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond}))
	service.Execute(context.Background(), "portal.example", func(context.Context) error { return fmt.Errorf("boom") })
	if len(service.OpenCircuits()) != 1 {
		t.Fatal("Expected breaker to open after one failure")
	}

	time.Sleep(20 * time.Millisecond)
	if err := service.Execute(context.Background(), "portal.example", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Expected half-open trial call to run, got %v", err)
	}
	if len(service.OpenCircuits()) != 0 {
		t.Error("Expected breaker to close after a successful trial call")
	}
}

func TestService_GetUserFriendlyError(t *testing.T) {
	service := NewService()

	tests := []struct {
		name          string
		err           error
		expectedTitle string
	}{
		{"timeout", context.DeadlineExceeded, "Connection Timeout"},
		{"dns", fmt.Errorf("dial tcp: lookup x: no such host"), "Domain Not Found"},
		{"refused", fmt.Errorf("connection refused"), "Connection Refused"},
		{"breaker", fmt.Errorf("%w for portal.example", ErrCircuitOpen), "Portal Temporarily Skipped"},
		{"host", fmt.Errorf("Host 'x' is not a known tax-authority portal"), "Unknown Portal"},
		{"config", fmt.Errorf("failed to parse config YAML"), "Configuration Error"},
		{"other", fmt.Errorf("boom"), "Unexpected Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, message, suggestions := service.GetUserFriendlyError(tt.err)
			if title != tt.expectedTitle {
				t.Errorf("Expected title %q, got %q", tt.expectedTitle, title)
			}
			if message == "" || len(suggestions) == 0 {
				t.Error("Expected message and suggestions")
			}
		})
	}

	if title, _, _ := service.GetUserFriendlyError(nil); title != "" {
		t.Error("Expected empty title for nil error")
	}
}

func TestService_GetExitCode(t *testing.T) {
	service := NewService()

	tests := []struct {
		err      error
		expected int
	}{
		{nil, 0},
		{fmt.Errorf("failed to load config"), 2},
		{fmt.Errorf("request failed: connection refused"), 3},
		{context.DeadlineExceeded, 3},
		{fmt.Errorf("validation failed: bad date"), 6},
		{fmt.Errorf("boom"), 1},
	}

	for _, tt := range tests {
		if got := service.GetExitCode(tt.err); got != tt.expected {
			t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.expected)
		}
	}
}

func TestService_FormatErrorForCLI(t *testing.T) {
	service := NewService().WithVerbose(true)
	out := service.FormatErrorForCLI(fmt.Errorf("connection refused"))

	for _, want := range []string{"Connection Refused", "Technical details: connection refused", "Suggestions"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}
