package gdrive

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultRetryAfterSeconds is the backoff applied when a 429 response
// carries no Retry-After header.
const defaultRetryAfterSeconds = 60

// RateLimiter paces Drive API requests with a token bucket and honors
// server-imposed backoff from 429 responses.
type RateLimiter struct {
	mu      sync.Mutex
	bucket  *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter with the given sustained rate and
// burst size.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		bucket: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Wait blocks until a request may proceed. Any pending Retry-After
// backoff is served first, then the token bucket.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if until := time.Until(retryAt); until > 0 {
		timer := time.NewTimer(until)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.bucket.Wait(ctx)
}

// RecordRetryAfter pauses all requests for the given number of seconds.
// Call it when the API returns 429; zero or negative seconds apply the
// default backoff.
func (r *RateLimiter) RecordRetryAfter(seconds int) {
	if seconds <= 0 {
		seconds = defaultRetryAfterSeconds
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = time.Now().Add(time.Duration(seconds) * time.Second)
}

// Allow reports whether a request may proceed immediately.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return r.bucket.Allow()
}
