// Package backoff wraps remote calls with bounded exponential retry.
package backoff

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const (
	maxDelay  = 30 * time.Second
	maxJitter = 50 * time.Millisecond
)

// Policy controls how a failing operation is retried. The delay before the
// n-th retry is min(BaseDelay*Factor^(n-1), 30s) plus up to 50ms of random
// jitter, which desynchronizes concurrent callers hitting the same
// rate-limited service.
type Policy struct {
	Retries   int
	BaseDelay time.Duration
	Factor    float64

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy matches the quota profile of the Google APIs: three retries
// starting at half a second, doubling each attempt.
func DefaultPolicy() Policy {
	return Policy{Retries: 3, BaseDelay: 500 * time.Millisecond, Factor: 2}
}

// Retry invokes op and retries any returned error up to p.Retries times.
// After the budget is exhausted the last error propagates unchanged. A nil
// return never retries, including operations that legitimately produced an
// empty result.
func (p Policy) Retry(ctx context.Context, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if attempt >= p.Retries {
			return err
		}
		if sleepErr := p.pause(ctx, attempt); sleepErr != nil {
			return sleepErr
		}
	}
}

// RetryValue is Retry for operations that return a value.
func RetryValue[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	var out T
	err := p.Retry(ctx, func() error {
		var opErr error
		out, opErr = op()
		return opErr
	})
	return out, err
}

func (p Policy) pause(ctx context.Context, attempt int) error {
	d := p.delay(attempt)
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return sleep(ctx, d)
}

// delay computes the pause after the given zero-based failed attempt.
func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 2
	}
	d := time.Duration(float64(base) * math.Pow(factor, float64(attempt)))
	if d > maxDelay || d <= 0 {
		d = maxDelay
	}
	return d + rand.N(maxJitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
