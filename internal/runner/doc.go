// Package runner drives repeated exchanges for h1exec's bench command.
//
// A Runner hands out a fixed budget of permits to a pool of workers, pacing
// the hand-out with a token bucket when a rate is configured:
//
//	r := runner.New(runner.Options{
//		Concurrency: 4,
//		Exchanges:   100,
//		Rate:        50,
//		Exchanger:   myExchanger,
//	})
//	result := r.Run(ctx)
//
// Exchangers compose with [WithRetry] and [WithLogging]. Retries default to
// [RetryTransient], which only repeats failures where the request may not
// have reached the server.
//
// A completed exchange with a 4xx or 5xx status is reported as a
// [StatusError] so it counts as a failure without being retried.
package runner
