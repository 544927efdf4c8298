package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Exchanger performs one exchange and reports whether it failed.
type Exchanger interface {
	Do(ctx context.Context) error
}

// ExchangeFunc adapts a plain function to Exchanger.
type ExchangeFunc func(ctx context.Context) error

func (f ExchangeFunc) Do(ctx context.Context) error { return f(ctx) }

// Options configure the Runner. Zero values mean: one worker, no exchange
// budget, no time cap and no pacing.
type Options struct {
	Concurrency int
	// Exchanges is the permit budget. Zero runs until Duration elapses or
	// the context is cancelled.
	Exchanges int
	Duration  time.Duration
	// Rate caps permits handed out per second.
	Rate      int
	Exchanger Exchanger
	// NewLimiter replaces the default token bucket, mostly for tests.
	NewLimiter func(rps int) *rate.Limiter
}

func (o *Options) normalize() {
	o.Concurrency = max(o.Concurrency, 1)
	o.Exchanges = max(o.Exchanges, 0)
	o.Rate = max(o.Rate, 0)
	o.Duration = max(o.Duration, 0)
	if o.NewLimiter == nil {
		o.NewLimiter = tokenBucket
	}
}

// tokenBucket allows a burst of one second's worth of permits so concurrent
// workers are not serialised behind single tokens.
func tokenBucket(rps int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(rps), rps)
}
