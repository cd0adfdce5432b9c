package rpc

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/holdings/internal/snapshot/metrics"
)

const (
	// DefaultRateLimitRPS applies when a network has no configured limit.
	DefaultRateLimitRPS = 10

	// DefaultAcquireTimeout bounds one token acquisition attempt.
	DefaultAcquireTimeout = 30 * time.Second

	// DefaultRetryBackoff is the fixed delay between acquisition attempts.
	DefaultRetryBackoff = 1 * time.Second
)

// Limiter admission-controls calls to a single network with a token bucket
// refilling continuously at the configured requests-per-second. The first
// token is available immediately at creation and admissions are evenly
// paced, so no one-second window ever carries more than rps calls. Distinct
// networks get distinct limiters; calls admitted for the same network are
// not otherwise serialized.
type Limiter struct {
	network        string
	bucket         *rate.Limiter
	acquireTimeout time.Duration
	retryBackoff   time.Duration
}

// NewLimiter creates a limiter admitting rps requests per second.
func NewLimiter(network string, rps float64) *Limiter {
	if rps <= 0 {
		rps = DefaultRateLimitRPS
	}
	return &Limiter{
		network:        network,
		bucket:         rate.NewLimiter(rate.Limit(rps), 1),
		acquireTimeout: DefaultAcquireTimeout,
		retryBackoff:   DefaultRetryBackoff,
	}
}

// Execute acquires one token, then invokes op. An acquisition that times out
// is retried after a fixed backoff for as long as ctx lives; a timeout is
// never surfaced as an error. Errors returned by op propagate immediately
// without retry.
func (l *Limiter) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	return op(ctx)
}

func (l *Limiter) acquire(ctx context.Context) error {
	if l.bucket.Allow() {
		return nil
	}
	metrics.RateLimitWaits.WithLabelValues(l.network).Inc()

	for {
		waitCtx, cancel := context.WithTimeout(ctx, l.acquireTimeout)
		err := l.bucket.Wait(waitCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Acquisition timed out; back off and try again.
		metrics.RateLimitTimeouts.WithLabelValues(l.network).Inc()
		select {
		case <-time.After(l.retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
