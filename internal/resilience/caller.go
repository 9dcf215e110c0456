package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CallerConfig configures a Caller.
type CallerConfig struct {
	// Service names the provider in logs.
	Service string
	// RatePerSec caps call rate; zero or negative means unlimited.
	RatePerSec float64
	// MaxRetries is the retries after the first attempt.
	MaxRetries int
	// StatusOf extracts an HTTP status from the provider's errors.
	StatusOf func(error) int
}

// Caller wraps one provider: each call waits on the rate limiter, then
// runs through the breaker, retrying transient failures inside it.
type Caller struct {
	service string
	limiter *rate.Limiter
	breaker *Breaker

	// Retry is exported so tests can shorten backoff.
	Retry RetryPolicy
}

// NewCaller builds a Caller from cfg.
func NewCaller(cfg CallerConfig) *Caller {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	retryable := Classifier(cfg.StatusOf)

	retry := DefaultRetryPolicy()
	retry.Attempts = cfg.MaxRetries + 1
	retry.Initial = time.Second
	retry.Retryable = retryable
	retry.OnRetry = RetryLogger(cfg.Service, "escalate")

	bc := DefaultBreakerConfig()
	bc.Trips = retryable
	bc.OnStateChange = func(from, to CircuitState) {
		zap.L().Warn("resilience: circuit changed state",
			zap.String("service", cfg.Service),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}

	return &Caller{
		service: cfg.Service,
		limiter: rate.NewLimiter(limit, 1),
		breaker: NewBreaker(bc),
		Retry:   retry,
	}
}

// State reports the breaker state.
func (c *Caller) State() CircuitState {
	return c.breaker.State()
}

// Call runs fn once the limiter allows it.
func Call[T any](ctx context.Context, c *Caller, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		var zero T
		return zero, eris.Wrapf(err, "resilience: %s rate limit wait", c.service)
	}
	return Guard(ctx, c.breaker, func(ctx context.Context) (T, error) {
		return Retry(ctx, c.Retry, fn)
	})
}
