// Package ratelimit throttles calls to remote providers with a token bucket
// and retries transient failures with exponential backoff.
package ratelimit

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket is a requests-per-minute limiter with a retry policy.
type TokenBucket struct {
	limiter       *rate.Limiter
	retryWaitTime time.Duration
	maxRetries    int
	now           func() time.Time
}

// NewTokenBucket allows qpm requests per minute with bursts up to capacity.
// A non-positive capacity defaults to half of qpm.
func NewTokenBucket(qpm int, capacity int) *TokenBucket {
	if qpm <= 0 {
		qpm = 60
	}
	if capacity <= 0 {
		capacity = qpm / 2
		if capacity <= 0 {
			capacity = 1
		}
	}
	return &TokenBucket{
		limiter:       rate.NewLimiter(rate.Limit(float64(qpm)/60.0), capacity),
		retryWaitTime: time.Second,
		maxRetries:    3,
		now:           time.Now,
	}
}

// WithRetryPolicy sets the first backoff and the number of retries.
func (tb *TokenBucket) WithRetryPolicy(waitTime time.Duration, maxRetries int) *TokenBucket {
	tb.retryWaitTime = waitTime
	tb.maxRetries = maxRetries
	return tb
}

// Allow takes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.AllowN(tb.now(), 1)
}

// Wait blocks until a token is available or ctx ends.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// RetryWithBackoff runs fn under the limiter, retrying retryable errors
// with a doubling backoff.
func (tb *TokenBucket) RetryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	for retry := 0; retry <= tb.maxRetries; retry++ {
		if err = tb.Wait(ctx); err != nil {
			return err
		}
		err = fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || retry >= tb.maxRetries {
			return err
		}

		backoff := tb.retryWaitTime * time.Duration(1<<uint(retry))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

var retryableFragments = []string{
	"timeout",
	"deadline exceeded",
	"connection reset",
	"EOF",
	"connection refused",
	"429",
	"rate limit",
	"Throttling",
	"no such host",
	"503",
}

// IsRetryable reports whether err looks like a transient transport or quota failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, frag := range retryableFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
