package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetrySucceedsWithoutRetry(t *testing.T) {
	var delays []time.Duration
	p := Policy{Retries: 3, BaseDelay: time.Second, Factor: 2, sleep: recordingSleep(&delays)}

	calls := 0
	err := p.Retry(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if len(delays) != 0 {
		t.Fatalf("expected no sleeps, got %v", delays)
	}
}

func TestRetryExhaustsBudgetAndReturnsLastError(t *testing.T) {
	var delays []time.Duration
	p := Policy{Retries: 2, BaseDelay: 100 * time.Millisecond, Factor: 3, sleep: recordingSleep(&delays)}

	boom := errors.New("boom")
	calls := 0
	err := p.Retry(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error to propagate, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", calls)
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(delays))
	}
	// 100ms, then 300ms, each plus at most 50ms jitter.
	if delays[0] < 100*time.Millisecond || delays[0] >= 150*time.Millisecond {
		t.Fatalf("first delay out of range: %v", delays[0])
	}
	if delays[1] < 300*time.Millisecond || delays[1] >= 350*time.Millisecond {
		t.Fatalf("second delay out of range: %v", delays[1])
	}
}

func TestRetryRecoversMidway(t *testing.T) {
	var delays []time.Duration
	p := Policy{Retries: 5, BaseDelay: 10 * time.Millisecond, Factor: 2, sleep: recordingSleep(&delays)}

	calls := 0
	err := p.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDelayIsCapped(t *testing.T) {
	p := Policy{Retries: 10, BaseDelay: 10 * time.Second, Factor: 10}
	d := p.delay(5)
	if d > maxDelay+maxJitter {
		t.Fatalf("delay %v exceeds cap", d)
	}
}

func TestRetryValueReturnsResult(t *testing.T) {
	p := Policy{Retries: 1, BaseDelay: time.Millisecond, Factor: 2, sleep: recordingSleep(new([]time.Duration))}

	calls := 0
	got, err := RetryValue(context.Background(), p, func() ([]string, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return []string{"a", "b"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{Retries: 3, BaseDelay: time.Millisecond, Factor: 2}
	calls := 0
	err := p.Retry(ctx, func() error {
		calls++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}
