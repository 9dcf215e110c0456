package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCaller_RetriesThenSucceeds(t *testing.T) {
	c := NewCaller(CallerConfig{Service: "test", MaxRetries: 2})
	c.Retry.Initial = time.Millisecond
	c.Retry.Jitter = 0

	calls := 0
	got, err := Call(context.Background(), c, func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("overloaded"), 529)
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "done" || calls != 2 {
		t.Errorf("got %q after %d calls", got, calls)
	}
	if c.State() != CircuitClosed {
		t.Errorf("expected closed, got %s", c.State())
	}
}

func TestCaller_StatusOfDecidesRetry(t *testing.T) {
	c := NewCaller(CallerConfig{
		Service:    "test",
		MaxRetries: 3,
		StatusOf:   func(error) int { return 401 },
	})
	c.Retry.Initial = time.Millisecond

	calls := 0
	_, err := Call(context.Background(), c, func(_ context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("unauthorized"), 401)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("401 should not be retried, got %d calls", calls)
	}
}

func TestCaller_RateLimitWaitCancelled(t *testing.T) {
	c := NewCaller(CallerConfig{Service: "test", RatePerSec: 0.001})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Call(ctx, c, func(_ context.Context) (int, error) {
		calls++
		return 0, nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 0 {
		t.Errorf("expected no calls, got %d", calls)
	}
}
