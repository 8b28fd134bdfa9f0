package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"
)

// Do runs fn, retrying up to budget additional times when retryable reports
// the error as transient. Delay doubles per attempt with ±30% jitter.
// Context cancellation is never retried.
func Do(ctx context.Context, label string, budget int, baseDelay time.Duration, retryable func(error) bool, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	for attempt := 1; attempt <= budget; attempt++ {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if !retryable(err) {
			return err
		}

		delay := backoff(baseDelay, attempt)
		log.Printf("[retry:%s] attempt %d/%d in %v after: %v", label, attempt, budget, delay, err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry %s cancelled: %w", label, ctx.Err())
		case <-time.After(delay):
		}

		if err = fn(); err == nil {
			return nil
		}
	}

	return err
}

// backoff is baseDelay * 2^(attempt-1) with ±30% jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}
