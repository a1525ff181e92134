package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// RetryOption customizes the retry decorator.
type RetryOption func(*retryingProvider)

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) RetryOption {
	return func(r *retryingProvider) {
		r.sleeper = sleeper
	}
}

// WithRetry wraps p so transient failures (408, 429, 5xx, network timeouts,
// empty content) are retried with exponential backoff. Non-positive arguments
// fall back to 3 attempts, 1s base and 10s cap.
func WithRetry(p Provider, attempts int, baseDelay, maxDelay time.Duration, opts ...RetryOption) Provider {
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	if baseDelay < 0 {
		baseDelay = defaultRetryBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	r := &retryingProvider{next: p, attempts: attempts, baseDelay: baseDelay, maxDelay: maxDelay}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type retryingProvider struct {
	next      Provider
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	sleeper   func(time.Duration)
}

func (r *retryingProvider) Name() string { return r.next.Name() }

func (r *retryingProvider) Generate(ctx context.Context, req Request) (Result, error) {
	for attempt := 1; ; attempt++ {
		res, err := r.next.Generate(ctx, req)
		if err == nil {
			return res, nil
		}
		delay, retry := r.retryDelay(ctx, err, attempt)
		if !retry {
			if attempt == 1 {
				return Result{}, err
			}
			return Result{}, fmt.Errorf("%s: failed after %d attempts: %w", r.next.Name(), attempt, err)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return Result{}, err
		}
	}
}

func (r *retryingProvider) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= r.attempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var emptyErr *EmptyContentError
	if errors.As(err, &emptyErr) {
		return r.backoffDelay(attempt), true
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return r.capDelay(statusErr.RetryAfter), true
			}
			return r.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return r.backoffDelay(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return r.backoffDelay(attempt), true
	}
	return 0, false
}

// backoffDelay doubles from baseDelay per attempt: base, base*2, base*4, ...
func (r *retryingProvider) backoffDelay(attempt int) time.Duration {
	if r.baseDelay <= 0 {
		return 0
	}
	delay := r.baseDelay
	for i := 1; i < attempt; i++ {
		if delay > r.maxDelay/2 {
			delay = r.maxDelay
			break
		}
		delay *= 2
	}
	return r.capDelay(delay)
}

func (r *retryingProvider) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if delay > r.maxDelay {
		return r.maxDelay
	}
	return delay
}

func (r *retryingProvider) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if r.sleeper != nil {
		r.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
