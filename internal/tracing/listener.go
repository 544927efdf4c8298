package tracing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/h1exec/internal/conn"
	"github.com/torosent/h1exec/internal/message"
	"github.com/torosent/h1exec/internal/requester"
)

// AttrKeptAlive records whether the connection went back to the pool.
const AttrKeptAlive = attribute.Key("h1exec.connection.kept_alive")

// ErrExchangeAborted is recorded on spans whose exchange ended before a
// response head arrived.
var ErrExchangeAborted = errors.New("exchange aborted before response head")

// Listener opens a span at the request head and ends it when the exchange
// completes. With propagation on, traceparent is added to the request head
// before it is written.
type Listener struct {
	tracer    trace.Tracer
	propagate bool
	parent    context.Context

	mu    sync.Mutex
	spans map[string]*exchangeSpan
}

type exchangeSpan struct {
	span   trace.Span
	status int
}

var _ requester.StreamListener = (*Listener)(nil)

// NewListener creates a listener that starts root spans on tracer.
func NewListener(tracer trace.Tracer, propagate bool) *Listener {
	return &Listener{
		tracer:    tracer,
		propagate: propagate,
		parent:    context.Background(),
		spans:     make(map[string]*exchangeSpan),
	}
}

// Listener returns a span listener bound to the provider's tracer.
func (p *Provider) Listener() *Listener {
	return NewListener(p.Tracer(), p.ShouldPropagate())
}

// WithParent makes every exchange span a child of the span in ctx.
func (l *Listener) WithParent(ctx context.Context) *Listener {
	l.parent = ctx
	return l
}

func (l *Listener) OnRequestHead(c *conn.Connection, req *requester.Request) error {
	target, err := message.ParseHost(c.Key())
	if err != nil {
		target = req.Host
	}
	ctx, span := StartExchangeSpan(l.parent, l.tracer, req.Method, req.Path, target)
	span.SetAttributes(attribute.String("h1exec.connection.id", c.ID()))
	if l.propagate {
		InjectHeaders(ctx, &req.Header)
	}
	l.mu.Lock()
	l.spans[c.ID()] = &exchangeSpan{span: span}
	l.mu.Unlock()
	return nil
}

func (l *Listener) OnResponseHead(c *conn.Connection, resp *requester.Response) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if es, ok := l.spans[c.ID()]; ok {
		es.status = resp.StatusCode
		es.span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	}
	return nil
}

func (l *Listener) OnExchangeComplete(c *conn.Connection, keepAlive bool) error {
	l.mu.Lock()
	es, ok := l.spans[c.ID()]
	delete(l.spans, c.ID())
	l.mu.Unlock()
	if !ok {
		return nil
	}

	var err error
	switch {
	case es.status == 0:
		err = ErrExchangeAborted
	case es.status >= 400:
		err = fmt.Errorf("HTTP %d", es.status)
	}
	EndSpan(es.span, err, AttrKeptAlive.Bool(keepAlive))
	return nil
}
