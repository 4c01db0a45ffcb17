package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing() error { return errBoom }
func succeeding() error { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    3,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
	})

	for i := 0; i < 3; i++ {
		if err := cb.Execute(failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want %v", i, err, errBoom)
		}
	}

	if err := cb.Execute(succeeding); !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("err = %v, want %v", err, ErrCircuitBreakerOpen)
	}
	if got := cb.GetState(); got != StateOpen {
		t.Errorf("state = %v, want %v", got, StateOpen)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
	})

	cb.Execute(failing)
	cb.Execute(succeeding)
	cb.Execute(failing)

	if err := cb.Execute(succeeding); err != nil {
		t.Fatalf("breaker opened despite non-consecutive failures: %v", err)
	}
}

func TestBreakerProbesAndCloses(t *testing.T) {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    1,
		SuccessThreshold:    1,
		Timeout:             10 * time.Millisecond,
		HalfOpenMaxRequests: 1,
	})

	cb.Execute(failing)
	if err := cb.Execute(succeeding); !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("err = %v, want %v", err, ErrCircuitBreakerOpen)
	}

	time.Sleep(20 * time.Millisecond)

	// First call after the timeout is the probe.
	if err := cb.Execute(succeeding); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	if err := cb.Execute(succeeding); err != nil {
		t.Fatalf("post-probe call rejected: %v", err)
	}
	if got := cb.GetState(); got != StateClosed {
		t.Errorf("state = %v, want %v", got, StateClosed)
	}
}

func TestBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    1,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
	})

	cb.Execute(failing)
	cb.Execute(succeeding) // transitions to open
	cb.Reset()

	if err := cb.Execute(succeeding); err != nil {
		t.Fatalf("call after reset rejected: %v", err)
	}
}
