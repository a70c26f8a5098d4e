package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryConfig mirrors spec.md's stated resilience numbers: exponential
// backoff starting at 1s, factor 2, capped attempts, with jitter to avoid
// synchronized retries across concurrent agents. Grounded on the shape of
// itsneelabh-gomind/resilience/retry.go's RetryConfig, implemented here on
// top of the real cenkalti/backoff/v4 dependency rather than hand-rolled.
type retryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		MaxAttempts:   5,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

func (c retryConfig) backoffPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.InitialDelay
	eb.MaxInterval = c.MaxDelay
	eb.Multiplier = c.BackoffFactor
	eb.RandomizationFactor = 0.2
	eb.MaxElapsedTime = 0 // bounded by MaxAttempts, not elapsed wall time
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.MaxAttempts-1)), ctx)
}

// isRetryable reports whether err should trigger another attempt.
// ErrProviderInvalidResponse is deliberately excluded: a malformed response
// will not become well-formed on retry, so retrying it only burns quota.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrProviderInvalidResponse) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderRateLimited) || errors.Is(err, ErrTimeout)
}

// withRetry runs fn, retrying retryable failures with exponential backoff
// and jitter. ErrProviderRateLimited is retried at most once per call.
// Non-retryable errors and context cancellation return immediately.
func withRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	var lastErr error
	rateLimitRetried := false

	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		if errors.Is(err, ErrProviderRateLimited) {
			if rateLimitRetried {
				return backoff.Permanent(err)
			}
			rateLimitRetried = true
		}
		return err
	}

	if err := backoff.Retry(op, cfg.backoffPolicy(ctx)); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
