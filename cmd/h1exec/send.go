package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/torosent/h1exec/internal/config"
	"github.com/torosent/h1exec/internal/extractor"
	"github.com/torosent/h1exec/internal/message"
	"github.com/torosent/h1exec/internal/output"
	"github.com/torosent/h1exec/internal/requester"
	"github.com/torosent/h1exec/internal/session"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Execute configured exchanges one after another and print each response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			return runSend(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	config.RegisterFlags(cmd)
	return cmd
}

// runSend executes cfg.Total exchanges sequentially on one session, so a
// persistent connection is reused whenever the server allows it.
func runSend(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
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

	var console requester.StreamListener
	if cfg.Verbose {
		console = output.NewConsoleListener(stderr)
	}
	client := newRequester(cfg, listenerChain(spanListener(spans), console, journalListener(journal)), logger)
	defer client.Close()

	extractors := extractor.FromConfig(cfg.Extractors)
	sc := session.New(target, cfg.Socket.SoTimeout)
	for i := 0; i < cfg.Total; i++ {
		req, err := buildRequest(cfg, target)
		if err != nil {
			return err
		}
		if err := sendOne(ctx, client, target, req, cfg, sc, extractors, logger, stdout); err != nil {
			if cfg.LogErrors {
				logger.LogFailure(err)
			}
			return err
		}
	}
	if last := sc.LastConnectionID(); last != "" {
		logger.Debugf("session %s: %d exchanges, last connection %s", sc.ID(), sc.Exchanges(), last)
	}
	return nil
}

func sendOne(ctx context.Context, client *requester.Requester, target message.Host, req *requester.Request, cfg *config.Config, sc *session.Context, extractors []extractor.Extractor, logger *stderrLogger, stdout io.Writer) error {
	resp, err := client.Execute(ctx, target, req, cfg.Socket.SoTimeout, sc)
	if err != nil {
		return err
	}
	defer resp.Close()

	fmt.Fprintln(stdout, resp.StatusLine())
	if cfg.Verbose {
		writeFields(stdout, resp.Header)
		fmt.Fprintln(stdout)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if len(body) > 0 {
		fmt.Fprintln(stdout, string(body))
	}
	if cfg.Verbose && len(resp.Trailer) > 0 {
		writeFields(stdout, resp.Trailer)
	}
	if len(extractors) > 0 {
		values := extractor.ExtractAll(body, extractors, logger)
		for _, name := range extractor.Names(values) {
			fmt.Fprintf(stdout, "%s=%s\n", name, values[name])
		}
	}
	return nil
}

func writeFields(w io.Writer, h message.Header) {
	for _, f := range h {
		fmt.Fprintln(w, f.String())
	}
}
