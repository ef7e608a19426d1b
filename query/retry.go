package query

import (
	"context"
	"time"
)

// RetryPolicy decides whether a failed fetch is tried again. failures is the
// number of failures so far minus one, so the first failure is passed as 0.
// It returns the delay before the next attempt and whether to retry at all.
type RetryPolicy func(failures int, err error) (time.Duration, bool)

// ExponentialBackoff retries up to maxRetries times after the initial attempt,
// waiting min(base*2^k, max) before retry k. The error class is not consulted.
func ExponentialBackoff(maxRetries int, base, max time.Duration) RetryPolicy {
	return func(failures int, _ error) (time.Duration, bool) {
		if failures < 0 || failures >= maxRetries {
			return 0, false
		}
		return backoff(failures, base, max), true
	}
}

// NoRetry gives up after the first failure.
func NoRetry(int, error) (time.Duration, bool) {
	return 0, false
}

func backoff(k int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	// 1<<k overflows a Duration long after any sensible cap.
	if k > 30 {
		k = 30
	}
	delay := base * time.Duration(1<<k)
	if max > 0 && (delay > max || delay <= 0) {
		delay = max
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
