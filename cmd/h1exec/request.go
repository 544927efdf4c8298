package main

import (
	"io"
	"strings"

	"github.com/torosent/h1exec/internal/config"
	"github.com/torosent/h1exec/internal/entity"
	"github.com/torosent/h1exec/internal/message"
	"github.com/torosent/h1exec/internal/requester"
)

var defaultTextType = message.TextPlain.WithCharset("UTF-8")

// buildRequest assembles a fresh request from cfg. Streaming entities are
// one-shot, so every exchange gets its own.
func buildRequest(cfg *config.Config, target message.Host) (*requester.Request, error) {
	e, err := buildEntity(cfg)
	if err != nil {
		return nil, err
	}
	req := requester.NewRequest(cfg.Method, cfg.Path, e)
	req.Host = target
	req.Header = cfg.HeaderFields()
	return req, nil
}

func buildEntity(cfg *config.Config) (*entity.Entity, error) {
	ct := message.ParseContentType(cfg.ContentType)
	if cfg.BodyFile != "" {
		if ct.IsZero() {
			ct = message.ApplicationOctetStream
		}
		return entity.FromFile(cfg.BodyFile, ct)
	}
	trailers := cfg.TrailerFields()
	if cfg.Body == "" && len(trailers) == 0 && !cfg.Stream {
		return nil, nil
	}
	if ct.IsZero() {
		ct = defaultTextType
	}
	body := cfg.Body
	switch {
	case len(trailers) > 0 && cfg.Stream:
		return entity.FromWriterWithTrailers(streamString(body), ct, trailers...), nil
	case len(trailers) > 0:
		return entity.WithTrailers(body, ct, trailers...), nil
	case cfg.Stream:
		return entity.FromWriter(streamString(body), ct), nil
	default:
		return entity.FromText(body, ct), nil
	}
}

func streamString(s string) entity.WriteFunc {
	return func(w io.Writer) error {
		_, err := io.Copy(w, strings.NewReader(s))
		return err
	}
}

// newRequester maps the socket and request settings onto the executor.
func newRequester(cfg *config.Config, listener requester.StreamListener, logger requester.Logger) *requester.Requester {
	return requester.New(requester.Options{
		ConnectTimeout: cfg.Socket.ConnectTimeout,
		Timeout:        cfg.Socket.SoTimeout,
		MaxIdlePerHost: cfg.Socket.MaxIdlePerHost,
		Listener:       listener,
		UserAgent:      cfg.UserAgent,
		Logger:         logger,
	})
}

// listenerChain drops nil members and collapses single-member chains.
func listenerChain(members ...requester.StreamListener) requester.StreamListener {
	var ls requester.Listeners
	for _, m := range members {
		if m != nil {
			ls = append(ls, m)
		}
	}
	switch len(ls) {
	case 0:
		return nil
	case 1:
		return ls[0]
	default:
		return ls
	}
}
