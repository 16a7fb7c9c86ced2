package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failingCalls(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Execute(context.Background(), func() error { return errBoom })
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 3, Timeout: time.Minute})

	failingCalls(cb, 2)
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state after 2 failures = %v, want closed", got)
	}

	failingCalls(cb, 1)
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state after 3 failures = %v, want open", got)
	}

	err := cb.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute on open breaker returned %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 3, Timeout: time.Minute})

	failingCalls(cb, 2)
	cb.Execute(context.Background(), func() error { return nil })
	failingCalls(cb, 2)

	if got := cb.State(); got != StateClosed {
		t.Errorf("state = %v, want closed after streak reset", got)
	}
}

func TestBreakerHalfOpenThenCloses(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		MaxRequests:      2,
		Timeout:          10 * time.Millisecond,
	})

	failingCalls(cb, 1)
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(20 * time.Millisecond)
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("state after timeout = %v, want half-open", got)
	}

	for i := 0; i < 2; i++ {
		if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("state after probes = %v, want closed", got)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 1,
		Timeout:          10 * time.Millisecond,
	})

	failingCalls(cb, 1)
	time.Sleep(20 * time.Millisecond)

	cb.Execute(context.Background(), func() error { return errBoom })
	if got := cb.State(); got != StateOpen {
		t.Errorf("state after half-open failure = %v, want open", got)
	}
}

func TestBreakerCounts(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 10})

	cb.Execute(context.Background(), func() error { return nil })
	failingCalls(cb, 2)

	counts := cb.Counts()
	if counts.TotalSuccesses != 1 || counts.TotalFailures != 2 {
		t.Errorf("counts = %+v, want 1 success, 2 failures", counts)
	}
	if counts.ConsecutiveFailures != 2 {
		t.Errorf("consecutive failures = %d, want 2", counts.ConsecutiveFailures)
	}
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("llm", Config{
		FailureThreshold: 1,
		Timeout:          time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+": "+from.String()+" -> "+to.String())
		},
	})

	failingCalls(cb, 1)

	if len(transitions) != 1 || transitions[0] != "llm: closed -> open" {
		t.Errorf("transitions = %v, want [llm: closed -> open]", transitions)
	}
	if cb.Name() != "llm" {
		t.Errorf("Name() = %q, want %q", cb.Name(), "llm")
	}
}
