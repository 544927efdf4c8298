package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/torosent/h1exec/internal/config"
	"github.com/torosent/h1exec/internal/tracing"
)

const tracingShutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "h1exec",
		Short: "Blocking HTTP/1.1 request execution",
		Long: `h1exec executes HTTP/1.1 exchanges over persistent connections and reports
every protocol milestone: request head sent, response head received and
whether the connection was kept alive.

Examples:
  h1exec post                                   # four POST demo against httpbin.org
  h1exec post --target localhost:8080           # same, against h1echo
  h1exec send --target localhost:8080 -X POST --path /post --body hi --stream
  h1exec bench --target localhost:8080 --path /status/200 -n 1000 -c 8 -r 200`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newPostCmd(), newSendCmd(), newBenchCmd())
	return root
}

// loadConfig reads the --config file and flags of cmd, then validates.
func loadConfig(cmd *cobra.Command, defaults func(*config.Config)) (*config.Config, error) {
	cfg, err := config.NewLoader().LoadFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if defaults != nil {
		defaults(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// startTracing returns a span listener when tracing is configured, and a
// shutdown func that flushes pending spans.
func startTracing(ctx context.Context, cfg *config.Config, logger *stderrLogger) (*tracing.Listener, func(), error) {
	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: %w", err)
	}
	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("tracing shutdown: %v", err)
		}
	}
	if !provider.Exporting() {
		return nil, shutdown, nil
	}
	return provider.Listener(), shutdown, nil
}
