package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/torosent/h1exec/internal/config"
	"github.com/torosent/h1exec/internal/message"
	"github.com/torosent/h1exec/internal/metrics"
	"github.com/torosent/h1exec/internal/output"
	"github.com/torosent/h1exec/internal/requester"
	"github.com/torosent/h1exec/internal/runner"
	"github.com/torosent/h1exec/internal/threshold"
)

const (
	progressInterval   = time.Second
	maxLoggedBodyBytes = 1024
	baseRetryDelay     = 100 * time.Millisecond
	maxRetryDelay      = 5 * time.Second
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive many exchanges with concurrency, pacing and retries, then report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			return runBench(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	config.RegisterFlags(cmd)
	return cmd
}

// benchExchanger adapts one Execute call, with body drain, to runner.Exchanger.
type benchExchanger struct {
	cfg       *config.Config
	target    message.Host
	client    *requester.Requester
	collector *metrics.Collector
}

func (r *benchExchanger) Do(ctx context.Context) error {
	start := time.Now()
	req, err := buildRequest(r.cfg, r.target)
	if err != nil {
		r.collector.RecordRequest(time.Since(start), err, nil)
		return err
	}

	resp, err := r.client.Execute(ctx, r.target, req, r.cfg.Socket.SoTimeout, nil)
	if err != nil {
		r.collector.RecordRequest(time.Since(start), err, nil)
		return err
	}
	defer resp.Close()

	var resultErr error
	if resp.StatusCode >= 400 {
		snippet, readErr := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBodyBytes))
		if readErr != nil {
			resultErr = readErr
		} else {
			resultErr = &runner.StatusError{
				StatusCode: resp.StatusCode,
				Status:     strings.TrimPrefix(resp.StatusLine(), resp.Proto+" "),
				Body:       strings.TrimSpace(string(snippet)),
			}
		}
	}
	// Draining completes the exchange so the connection can be pooled.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil && resultErr == nil {
		resultErr = err
	}

	r.collector.RecordRequest(time.Since(start), resultErr, &metrics.RequestMetadata{
		Proto:      resp.Proto,
		StatusCode: resp.StatusCode,
	})
	return resultErr
}

func runBench(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logger := newStderrLogger(stderr, cfg.Verbose)
	target, err := cfg.TargetHost()
	if err != nil {
		return err
	}

	spans, stopTracing, err := startTracing(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stopTracing()

	var journal *output.Journal
	if cfg.Journal != "" {
		if journal, err = output.OpenJournal(cfg.Journal); err != nil {
			return err
		}
		defer journal.Close()
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	exchanges := metrics.NewListener(collector)
	client := newRequester(cfg, listenerChain(exchanges, spanListener(spans), journalListener(journal)), logger)
	defer client.Close()

	var wrapped runner.Exchanger = &benchExchanger{
		cfg:       cfg,
		target:    target,
		client:    client,
		collector: collector,
	}
	if cfg.LogErrors {
		wrapped = runner.WithLogging(wrapped, logger)
	}
	if cfg.Retries > 0 {
		wrapped = runner.WithRetry(wrapped, newRetryPolicy(cfg.Retries))
	}

	r := runner.New(runner.Options{
		Concurrency: cfg.Concurrency,
		Exchanges:   cfg.Total,
		Rate:        cfg.Rate,
		Exchanger:   wrapped,
	})

	if cfg.Progress {
		progress := output.NewProgressReporter(collector, progressInterval, stderr)
		progress.Start()
		defer progress.Stop()
	}

	collector.Start()
	result := r.Run(ctx)
	stats := collector.Stats(result.Duration)
	if result.Interrupted {
		logger.Warnf("interrupted after %d of %d exchanges", result.Total, cfg.Total)
	}
	if n := exchanges.InFlight(); n > 0 {
		logger.Warnf("%d exchanges did not complete", n)
	}
	logger.Debugf("%d idle connections to %s", client.IdleConnections(target), target)

	if err := output.Print(stdout, output.Format(cfg.Output), stats); err != nil {
		return err
	}
	if len(thresholds) > 0 {
		results := threshold.NewEvaluator(thresholds).Evaluate(stats)
		output.PrintThresholds(stderr, results)
		if failed := threshold.Failed(results); failed > 0 {
			return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
		}
	}
	if result.Errors > 0 {
		return fmt.Errorf("%d exchanges failed", result.Errors)
	}
	return nil
}

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}

// newRetryPolicy retries transport failures plus 429 and 5xx responses with
// jittered exponential backoff.
func newRetryPolicy(retries int) runner.RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}

	return runner.RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: func(err error) bool {
			if err == nil {
				return false
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			var statusErr *runner.StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode == 429 || statusErr.StatusCode >= 500
			}
			return runner.RetryTransient(err)
		},
		DelayFunc: func(attempt int, err error) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			return backoff + source.jitter(backoff/2)
		},
	}
}
