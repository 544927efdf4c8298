package metrics

import (
	"sync"
	"time"

	"github.com/torosent/h1exec/internal/conn"
	"github.com/torosent/h1exec/internal/requester"
)

// Listener feeds a Collector from exchange events: time to response head,
// connection reuse outcome and bytes moved per exchange.
type Listener struct {
	collector *Collector
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]inflight
}

type inflight struct {
	start time.Time
	sent  int64
	recv  int64
}

var _ requester.StreamListener = (*Listener)(nil)

// NewListener feeds protocol milestones into c.
func NewListener(c *Collector) *Listener {
	return &Listener{
		collector: c,
		now:       time.Now,
		inflight:  make(map[string]inflight),
	}
}

func (l *Listener) OnRequestHead(c *conn.Connection, _ *requester.Request) error {
	snap := c.Metrics()
	l.mu.Lock()
	l.inflight[c.ID()] = inflight{start: l.now(), sent: snap.BytesSent, recv: snap.BytesReceived}
	l.mu.Unlock()
	return nil
}

func (l *Listener) OnResponseHead(c *conn.Connection, _ *requester.Response) error {
	l.mu.Lock()
	f, ok := l.inflight[c.ID()]
	l.mu.Unlock()
	if ok {
		l.collector.RecordHead(l.now().Sub(f.start))
	}
	return nil
}

func (l *Listener) OnExchangeComplete(c *conn.Connection, keepAlive bool) error {
	l.mu.Lock()
	f, ok := l.inflight[c.ID()]
	delete(l.inflight, c.ID())
	l.mu.Unlock()

	var sent, recv int64
	if ok {
		snap := c.Metrics()
		sent = snap.BytesSent - f.sent
		recv = snap.BytesReceived - f.recv
	}
	l.collector.RecordCompletion(keepAlive, sent, recv)
	return nil
}

// InFlight reports exchanges whose completion has not been seen yet.
func (l *Listener) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}
