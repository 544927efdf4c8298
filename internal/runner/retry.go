package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/torosent/h1exec/internal/requester"
)

// StatusError reports an exchange that completed with a 4xx or 5xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status error: %s", e.Status)
	}
	return fmt.Sprintf("status error: %s: %s", e.Status, e.Body)
}

// FailureLogger logs failed exchanges.
type FailureLogger interface {
	LogFailure(err error)
}

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, RetryTransient
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

// RetryTransient retries failures where the request may never have reached
// the server intact: connection setup, timeouts and write errors. Protocol
// violations and HTTP statuses are final.
func RetryTransient(err error) bool {
	switch requester.KindOf(err) {
	case requester.KindConnection, requester.KindTimeout, requester.KindWrite:
		return true
	default:
		return false
	}
}

// retryExchanger wraps an Exchanger with retry logic.
type retryExchanger struct {
	inner  Exchanger
	policy RetryPolicy
}

// WithRetry wraps an Exchanger with retry capability.
func WithRetry(req Exchanger, policy RetryPolicy) Exchanger {
	if policy.MaxAttempts <= 1 {
		return req // no retries needed
	}
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = RetryTransient
	}
	return &retryExchanger{
		inner:  req,
		policy: policy,
	}
}

func (r *retryExchanger) Do(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = r.inner.Do(ctx)
		if lastErr == nil {
			return nil
		}
		if !r.policy.ShouldRetry(lastErr) {
			return lastErr
		}

		// Don't delay after the last attempt.
		if attempt < r.policy.MaxAttempts {
			var delay time.Duration
			if r.policy.DelayFunc != nil {
				delay = r.policy.DelayFunc(attempt, lastErr)
			} else {
				delay = r.policy.Delay
			}
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

// loggingExchanger wraps an Exchanger with failure logging.
type loggingExchanger struct {
	inner  Exchanger
	logger FailureLogger
}

// WithLogging wraps an Exchanger to log failures.
func WithLogging(req Exchanger, logger FailureLogger) Exchanger {
	if logger == nil {
		return req
	}
	return &loggingExchanger{
		inner:  req,
		logger: logger,
	}
}

func (l *loggingExchanger) Do(ctx context.Context) error {
	err := l.inner.Do(ctx)
	if err != nil {
		l.logger.LogFailure(err)
	}
	return err
}
