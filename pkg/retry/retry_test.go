package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts: attempts,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		Multiplier:  2,
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("unexpected retry hooks: %v", retried)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	transient := errors.New("transient")
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return Retryable(transient)
	})
	if !errors.Is(err, transient) {
		t.Fatalf("expected wrapped transient error, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("expected last error to stay retryable")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fastConfig(0), func() error {
		return Retryable(errors.New("transient"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	v, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		if calls == 1 {
			return "", Retryable(errors.New("again"))
		}
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestRetryableNil(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("expected nil")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := Config{InitialWait: time.Second, MaxWait: 3 * time.Second, Multiplier: 2}
	if got := cfg.backoff(1); got != time.Second {
		t.Errorf("attempt 1: got %v", got)
	}
	if got := cfg.backoff(2); got != 2*time.Second {
		t.Errorf("attempt 2: got %v", got)
	}
	if got := cfg.backoff(5); got != 3*time.Second {
		t.Errorf("attempt 5: got %v", got)
	}
}
