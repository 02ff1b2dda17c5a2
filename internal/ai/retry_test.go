package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 2, 100*time.Millisecond)

	if cb.GetState() != CircuitClosed {
		t.Fatalf("expected closed initially, got %s", cb.GetState())
	}

	for i := 0; i < 3; i++ {
		if err := cb.Allow(); err != nil {
			t.Fatalf("request %d blocked while closed: %v", i, err)
		}
		cb.RecordFailure()
	}

	if cb.GetState() != CircuitOpen {
		t.Fatalf("expected open after threshold, got %s", cb.GetState())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreakerRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	if cb.GetState() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.GetState())
	}

	// After the open timeout, a probe is allowed
	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected probe allowed after timeout, got %v", err)
	}
	if cb.GetState() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.GetState())
	}

	// Two successes close the circuit
	cb.RecordSuccess()
	cb.RecordSuccess()
	if cb.GetState() != CircuitClosed {
		t.Errorf("expected closed after recovery, got %s", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatal(err)
	}

	cb.RecordFailure()
	if cb.GetState() != CircuitOpen {
		t.Errorf("expected reopened after half-open failure, got %s", cb.GetState())
	}
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retriable bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate limit", errors.New("429 rate limit exceeded"), true},
		{"server error", errors.New("500 internal server error"), true},
		{"service unavailable", errors.New("service unavailable"), true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"auth failure", errors.New("401 unauthorized"), false},
		{"bad request", errors.New("400 bad request"), false},
		{"unknown", errors.New("something odd"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetriableError(tt.err); got != tt.retriable {
				t.Errorf("isRetriableError(%v) = %v, want %v", tt.err, got, tt.retriable)
			}
		})
	}
}

func TestRetryWithBackoffStopsOnNonRetriable(t *testing.T) {
	engine := &Engine{retry: RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Timeout:           time.Second,
	}}

	calls := 0
	err := engine.retryWithBackoff(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return errors.New("401 unauthorized")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for non-retriable error, got %d", calls)
	}
}

func TestRetryWithBackoffRetriesTransientErrors(t *testing.T) {
	engine := &Engine{retry: RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Timeout:           time.Second,
	}}

	calls := 0
	err := engine.retryWithBackoff(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}
