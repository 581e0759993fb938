package pipeline

import (
	"context"
	"time"
)

// Exponential backoff: start at 200ms, double each retry, cap at 5s.
const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// retry calls fn up to 1+retries times while retryable accepts its error,
// sleeping with exponential backoff between attempts. It returns the last
// error, or ctx.Err() if cancelled while waiting.
func retry(ctx context.Context, retries int, start time.Duration, retryable func(error) bool, fn func() error) error {
	backoff := start
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= retries || !retryable(err) {
			return err
		}
		if !sleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}
