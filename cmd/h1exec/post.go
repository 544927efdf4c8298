package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/torosent/h1exec/internal/config"
	"github.com/torosent/h1exec/internal/entity"
	"github.com/torosent/h1exec/internal/message"
	"github.com/torosent/h1exec/internal/output"
	"github.com/torosent/h1exec/internal/requester"
	"github.com/torosent/h1exec/internal/session"
	"github.com/torosent/h1exec/internal/tracing"
)

const (
	demoTarget    = "httpbin.org"
	demoPath      = "/post"
	demoSeparator = "=============="
)

func newPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Run the four POST demo: fixed text, fixed bytes, streamed, streamed with trailers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, func(cfg *config.Config) {
				if cfg.Target == "" {
					cfg.Target = demoTarget
				}
				if cfg.Path == "/" {
					cfg.Path = demoPath
				}
			})
			if err != nil {
				return err
			}
			return runPost(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	config.RegisterFlags(cmd)
	return cmd
}

// demoEntities returns the four demo bodies. They are built per run because
// the streaming ones are one-shot.
func demoEntities() []*entity.Entity {
	text := message.TextPlain.WithCharset("UTF-8")
	return []*entity.Entity{
		entity.FromText("This is the first test request", text),
		entity.FromBytes([]byte("This is the second test request"), message.ApplicationOctetStream),
		entity.FromWriter(streamString("This is the third test request (streaming)"), text),
		entity.WithTrailers("This is the fourth test request (streaming with trailers)", text,
			message.Field{Name: "trailer1", Value: "And goodbye"}),
	}
}

func runPost(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
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

	listener := listenerChain(spanListener(spans), output.NewConsoleListener(stdout), journalListener(journal))
	client := newRequester(cfg, listener, logger)
	defer client.Close()

	sc := session.New(target, cfg.Socket.SoTimeout)
	for _, e := range demoEntities() {
		req := requester.NewRequest("POST", cfg.Path, e)
		req.Header = cfg.HeaderFields()
		if err := postOne(ctx, client, target, req, cfg, sc, stdout); err != nil {
			return err
		}
	}
	logger.Debugf("session %s completed %d exchanges", sc.ID(), sc.Exchanges())
	return nil
}

func postOne(ctx context.Context, client *requester.Requester, target message.Host, req *requester.Request, cfg *config.Config, sc *session.Context, stdout io.Writer) error {
	resp, err := client.Execute(ctx, target, req, cfg.Socket.SoTimeout, sc)
	if err != nil {
		return err
	}
	defer resp.Close()

	fmt.Fprintf(stdout, "%s->%d\n", req.Path, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	fmt.Fprintln(stdout, string(body))
	fmt.Fprintln(stdout, demoSeparator)
	return nil
}

// spanListener and journalListener keep typed nils out of listener chains.
func spanListener(l *tracing.Listener) requester.StreamListener {
	if l == nil {
		return nil
	}
	return l
}

func journalListener(j *output.Journal) requester.StreamListener {
	if j == nil {
		return nil
	}
	return j
}
