package runner_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/h1exec/internal/requester"
	"github.com/torosent/h1exec/internal/runner"
)

func TestRetryRespectsMaxAttempts(t *testing.T) {
	var attempts int64
	req := &flakyExchanger{attempts: &attempts, failUntil: 3, err: errors.New("transient failure")}

	policy := runner.RetryPolicy{
		MaxAttempts: 5,
		ShouldRetry: func(error) bool { return true },
		DelayFunc: func(attempt int, err error) time.Duration {
			return time.Duration(attempt) * time.Millisecond
		},
	}

	r := runner.New(runner.Options{
		Concurrency: 1,
		Exchanges:   1,
		Exchanger:   runner.WithRetry(req, policy),
	})
	res := r.Run(context.Background())

	if res.Total != 1 {
		t.Errorf("expected total 1, got %d", res.Total)
	}
	if res.Errors != 0 {
		t.Errorf("expected errors 0, got %d", res.Errors)
	}
	// Succeeds on the 4th attempt.
	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
}

func TestRetryExceedsMaxAttempts(t *testing.T) {
	var attempts int64
	req := &flakyExchanger{
		attempts:  &attempts,
		failUntil: 100,
		err:       &requester.Error{Kind: requester.KindConnection, Op: "connect", Err: errors.New("refused")},
	}

	r := runner.New(runner.Options{
		Concurrency: 1,
		Exchanges:   1,
		Exchanger:   runner.WithRetry(req, runner.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}),
	})
	res := r.Run(context.Background())

	if res.Errors != 1 {
		t.Errorf("expected errors 1, got %d", res.Errors)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryDefaultSkipsFinalFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int64
	}{
		{"timeout", &requester.Error{Kind: requester.KindTimeout, Op: "read response head", Err: errors.New("i/o timeout")}, 3},
		{"write", &requester.Error{Kind: requester.KindWrite, Op: "write request head", Err: errors.New("broken pipe")}, 3},
		{"protocol", &requester.Error{Kind: requester.KindProtocol, Op: "read response head", Err: errors.New("bad status")}, 1},
		{"listener", &requester.Error{Kind: requester.KindListener, Op: "response head", Err: errors.New("veto")}, 1},
		{"status", &runner.StatusError{StatusCode: 500, Status: "500 Internal Server Error"}, 1},
		{"plain", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int64
			req := &flakyExchanger{attempts: &attempts, failUntil: 100, err: tt.err}
			err := runner.WithRetry(req, runner.RetryPolicy{MaxAttempts: 3}).Do(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if attempts != tt.want {
				t.Fatalf("attempts = %d, want %d", attempts, tt.want)
			}
		})
	}
}

func TestRetryShouldRetryStopsEarly(t *testing.T) {
	var attempts int64
	req := &flakyExchanger{attempts: &attempts, failUntil: 100, err: errors.New("permanent failure")}
	policy := runner.RetryPolicy{
		MaxAttempts: 5,
		ShouldRetry: func(err error) bool { return false },
	}
	if err := runner.WithRetry(req, policy).Do(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt got %d", attempts)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	var attempts int64
	req := &flakyExchanger{attempts: &attempts, failUntil: 100, err: errors.New("transient failure")}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	policy := runner.RetryPolicy{
		MaxAttempts: 10,
		ShouldRetry: func(error) bool { return true },
		Delay:       time.Hour,
	}
	err := runner.WithRetry(req, policy).Do(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt got %d", attempts)
	}
}

func TestStatusErrorLogged(t *testing.T) {
	logger := &testLogger{}
	r := runner.New(runner.Options{
		Concurrency: 1,
		Exchanges:   2,
		Exchanger:   runner.WithLogging(&statusExchanger{statusCode: 500}, logger),
	})
	res := r.Run(context.Background())

	if res.Total != 2 {
		t.Errorf("expected total 2, got %d", res.Total)
	}
	if res.Errors != 2 {
		t.Errorf("expected 2 errors, got %d", res.Errors)
	}
	if logger.count.Load() != 2 {
		t.Errorf("expected 2 logged failures, got %d", logger.count.Load())
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &runner.StatusError{StatusCode: 404, Status: "404 Not Found", Body: "missing"}
	if got := err.Error(); got != "status error: 404 Not Found: missing" {
		t.Fatalf("Error() = %q", got)
	}
	err.Body = ""
	if got := err.Error(); got != "status error: 404 Not Found" {
		t.Fatalf("Error() = %q", got)
	}
}

type flakyExchanger struct {
	attempts  *int64
	failUntil int64
	err       error
}

func (r *flakyExchanger) Do(ctx context.Context) error {
	attempt := atomic.AddInt64(r.attempts, 1)
	if attempt <= r.failUntil {
		return r.err
	}
	return nil
}

type statusExchanger struct {
	statusCode int
}

func (s *statusExchanger) Do(ctx context.Context) error {
	if s.statusCode >= 400 {
		return &runner.StatusError{StatusCode: s.statusCode, Status: "500 Internal Server Error", Body: "error body"}
	}
	return nil
}

type testLogger struct {
	count atomic.Int32
}

func (l *testLogger) LogFailure(err error) {
	l.count.Add(1)
}
