package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Result summarises a run. Total counts exchanges started; an exchange whose
// permit was withdrawn by cancellation is not counted.
type Result struct {
	Total    int64
	Errors   int64
	Duration time.Duration
	// Interrupted is set when the caller's context ended the run before
	// its budget or Duration ran out.
	Interrupted bool
}

// Succeeded returns the number of exchanges that reported no error.
func (r Result) Succeeded() int64 { return r.Total - r.Errors }

// Runner spreads a budget of exchanges over a fixed set of workers.
type Runner struct {
	opt     Options
	limiter *rate.Limiter
}

// New normalises opt and builds its rate limiter.
func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, limiter: opt.NewLimiter(opt.Rate)}
}

// Run blocks until the budget is spent, Duration elapses or ctx ends.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	parent := ctx

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.opt.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, r.opt.Duration)
		defer stop()
	}

	var issued, failed atomic.Int64
	permits := make(chan struct{}, r.opt.Concurrency)
	go r.schedule(ctx, permits, &issued)

	var wg sync.WaitGroup
	for range r.opt.Concurrency {
		wg.Go(func() {
			for range permits {
				if r.opt.Exchanger != nil && r.opt.Exchanger.Do(ctx) != nil {
					failed.Add(1)
				}
				if ctx.Err() != nil {
					return
				}
			}
		})
	}
	wg.Wait()

	return Result{
		Total:       issued.Load(),
		Errors:      failed.Load(),
		Duration:    time.Since(start),
		Interrupted: parent.Err() != nil,
	}
}

// schedule is the only goroutine that waits on the limiter, so pacing holds
// across workers. A permit is counted before it is handed out so workers
// never run past the budget.
func (r *Runner) schedule(ctx context.Context, permits chan<- struct{}, issued *atomic.Int64) {
	defer close(permits)
	budget := int64(r.opt.Exchanges)
	for ctx.Err() == nil {
		if budget > 0 && issued.Load() >= budget {
			return
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		issued.Add(1)
		select {
		case permits <- struct{}{}:
		case <-ctx.Done():
			issued.Add(-1)
			return
		}
	}
}
