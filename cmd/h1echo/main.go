package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/torosent/h1exec/internal/echoserver"
)

type stderrLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *stderrLogger) Infof(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[h1echo] "+format+"\n", args...)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr  string
		quiet bool
	)
	cmd := &cobra.Command{
		Use:           "h1echo",
		Short:         "Local httpbin-style origin for h1exec",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var logger echoserver.Logger
			if !quiet {
				logger = &stderrLogger{w: cmd.ErrOrStderr()}
			}
			srv, err := echoserver.Listen(addr, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", srv.Addr())
			return srv.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&addr, "listen", "l", "127.0.0.1:8080", "Address to listen on")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not log requests")
	return cmd
}
