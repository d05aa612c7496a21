package kernel

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryStrategy names one of the three retry shapes the kernel supports
// (§4.4 "Retry policies"). A provider binding selects a strategy; the
// kernel applies it uniformly regardless of brand.
type RetryStrategy string

const (
	RetryNone        RetryStrategy = "none"
	RetryImmediate   RetryStrategy = "retry-immediate"
	RetryDelayed     RetryStrategy = "retry-delayed"
	RetryExponential RetryStrategy = "retry-exponential"
)

// RetryPolicy configures how many attempts a request gets and how long the
// kernel waits between them.
type RetryPolicy struct {
	Strategy   RetryStrategy
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy mirrors what most provider bindings want: a handful of
// exponential-backoff retries capped at a few seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Strategy:   RetryExponential,
		MaxRetries: 3,
		BaseDelay:  250 * time.Millisecond,
		MaxDelay:   8 * time.Second,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	switch p.Strategy {
	case RetryImmediate:
		return 0

	case RetryDelayed:
		return p.BaseDelay

	case RetryExponential:
		d := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
		// jitter within ±10% to avoid synchronized retry storms across
		// concurrent requests hitting the same degraded instance.
		jitter := time.Duration(rand.Int63n(int64(d) / 5))
		d = d - d/10 + jitter

		if d > p.MaxDelay {
			d = p.MaxDelay
		}

		return d

	default:
		return 0
	}
}

// Retryable classifies whether an error/status combination is worth
// retrying at all. Non-2xx client errors (400-499, except 408/429) are not
// retried; everything else that reached the kernel as a transport failure
// or 5xx/408/429 is.
func Retryable(statusCode int, transportErr error) bool {
	if statusCode == 408 || statusCode == 429 {
		return true
	}

	if statusCode >= 400 && statusCode < 500 {
		return false
	}

	if transportErr != nil {
		return true
	}

	return statusCode >= 500
}

// withRetry runs attempt up to policy.MaxRetries+1 times, sleeping between
// attempts per the policy's strategy, stopping early if Retryable reports
// false or the context is cancelled.
func withRetry(ctx context.Context, policy RetryPolicy, attempt func(attemptNum int) (statusCode int, err error)) error {
	var lastErr error

	for i := 0; i <= policy.MaxRetries; i++ {
		statusCode, err := attempt(i)
		if err == nil && !Retryable(statusCode, nil) {
			return nil
		}

		if err == nil && statusCode < 400 {
			return nil
		}

		lastErr = err

		if i == policy.MaxRetries || !Retryable(statusCode, err) || policy.Strategy == RetryNone {
			break
		}

		d := policy.delay(i)
		if d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}
