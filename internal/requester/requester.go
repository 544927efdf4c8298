package requester

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/torosent/h1exec/internal/conn"
	"github.com/torosent/h1exec/internal/message"
	"github.com/torosent/h1exec/internal/pool"
	"github.com/torosent/h1exec/internal/session"
	"github.com/torosent/h1exec/internal/wire"
)

// DefaultUserAgent is sent when the request carries no User-Agent field.
const DefaultUserAgent = "h1exec/1.0"

// maxInterimResponses bounds how many 1xx heads are skipped per exchange.
const maxInterimResponses = 16

// Logger receives diagnostic lines about connection handling.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Options configures a Requester.
type Options struct {
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
	// Timeout is the inactivity bound used when neither the Execute argument
	// nor the session supplies one. Zero means no bound.
	Timeout time.Duration
	// MaxIdlePerHost caps the idle connections kept per endpoint.
	MaxIdlePerHost int
	// Listener observes every exchange. Nil means NopListener.
	Listener StreamListener
	// UserAgent overrides DefaultUserAgent. "-" suppresses the field.
	UserAgent string
	// MaxHeaderBytes bounds each response head line.
	MaxHeaderBytes int
	// MaxHeaderCount bounds the fields in a response head or trailer.
	MaxHeaderCount int
	Logger         Logger
	// Dialer replaces the default TCP dialer.
	Dialer *conn.Dialer
}

// Requester executes blocking HTTP/1.1 exchanges and keeps idle persistent
// connections for reuse. It is safe for concurrent use; each exchange owns
// its connection exclusively.
type Requester struct {
	opts     Options
	dialer   *conn.Dialer
	pool     *pool.ConnectionPool[*conn.Connection]
	listener StreamListener
	logger   Logger
}

// New creates a Requester.
func New(opts Options) *Requester {
	r := &Requester{
		opts:     opts,
		dialer:   opts.Dialer,
		pool:     pool.NewConnectionPool[*conn.Connection](opts.MaxIdlePerHost),
		listener: opts.Listener,
		logger:   opts.Logger,
	}
	if r.dialer == nil {
		r.dialer = &conn.Dialer{ConnectTimeout: opts.ConnectTimeout}
	}
	if r.listener == nil {
		r.listener = NopListener{}
	}
	if r.logger == nil {
		r.logger = nopLogger{}
	}
	return r
}

// Close closes all idle connections. Connections still carrying an
// exchange are closed when that exchange completes.
func (r *Requester) Close() error {
	return r.pool.Close()
}

// IdleConnections reports how many idle connections are parked for target.
func (r *Requester) IdleConnections(target message.Host) int {
	return r.pool.Len(pool.MakePoolKey(target))
}

// Execute runs one exchange against target and returns once the response
// head has been received. The returned body reads lazily from the
// connection; draining it to EOF or closing it completes the exchange.
//
// timeout is the inactivity bound for every read and write of the exchange.
// Zero falls back to sc.Timeout and then Options.Timeout. ctx bounds the
// dial and caps the I/O deadlines when it carries a deadline.
func (r *Requester) Execute(ctx context.Context, target message.Host, req *Request, timeout time.Duration, sc *session.Context) (*Response, error) {
	if req == nil {
		return nil, errors.New("requester: nil request")
	}
	if target.IsZero() {
		target = req.Host
	}
	if target.IsZero() && sc != nil {
		target = sc.Target
	}
	if target.IsZero() {
		return nil, &Error{Kind: KindConnection, Op: "resolve target", Err: errors.New("no target host")}
	}
	if timeout <= 0 && sc != nil {
		timeout = sc.Timeout
	}
	if timeout <= 0 {
		timeout = r.opts.Timeout
	}

	if sc != nil {
		if err := sc.Begin(); err != nil {
			return nil, err
		}
	}

	c, err := r.acquire(ctx, target)
	if err != nil {
		if sc != nil {
			sc.End()
		}
		return nil, err
	}

	var hard time.Time
	if dl, ok := ctx.Deadline(); ok {
		hard = dl
	}
	c.SetTimeout(timeout, hard)

	ex := &exchange{r: r, conn: c, sc: sc}
	return ex.run(target, req)
}

func (r *Requester) acquire(ctx context.Context, target message.Host) (*conn.Connection, error) {
	key := pool.MakePoolKey(target)
	for {
		c, ok := r.pool.Get(key)
		if !ok {
			break
		}
		if !c.Alive() {
			r.logger.Debugf("discarding stale connection %s to %s", c.ID(), c)
			_ = c.Close()
			continue
		}
		if err := c.Activate(true); err == nil {
			r.logger.Debugf("reusing connection %s to %s", c.ID(), c)
			return c, nil
		}
		_ = c.Close()
	}

	c, err := r.dialer.Connect(ctx, key, target.Address())
	if err != nil {
		r.logger.Warnf("connect to %s failed: %v", target.Address(), err)
		return nil, &Error{Kind: KindConnection, Op: "connect", Err: err}
	}
	if err := c.Activate(false); err != nil {
		_ = c.Close()
		return nil, &Error{Kind: KindConnection, Op: "connect", Err: err}
	}
	r.logger.Debugf("opened connection %s to %s", c.ID(), c)
	return c, nil
}

// requestHeader assembles the fields actually sent: Host first, then the
// caller's fields minus body framing, then defaults and entity framing.
func (r *Requester) requestHeader(target message.Host, req *Request) message.Header {
	h := make(message.Header, 0, len(req.Header)+5)
	if !req.Header.Has("Host") {
		h.Add("Host", target.Authority())
	}
	for _, f := range req.Header {
		if strings.EqualFold(f.Name, "Content-Length") || strings.EqualFold(f.Name, "Transfer-Encoding") || strings.EqualFold(f.Name, "Trailer") {
			continue
		}
		h = append(h, f)
	}
	if ua := r.userAgent(); ua != "" && !h.Has("User-Agent") {
		h.Add("User-Agent", ua)
	}
	if req.Entity != nil {
		for _, f := range req.Entity.FramingHeaders() {
			if strings.EqualFold(f.Name, "Content-Type") && h.Has("Content-Type") {
				continue
			}
			h = append(h, f)
		}
	} else if bodyExpected(req.Method) {
		h.Add("Content-Length", "0")
	}
	return h
}

func (r *Requester) userAgent() string {
	switch r.opts.UserAgent {
	case "":
		return DefaultUserAgent
	case "-":
		return ""
	default:
		return r.opts.UserAgent
	}
}

func bodyExpected(method string) bool {
	switch strings.ToUpper(method) {
	case "POST", "PUT", "PATCH":
		return true
	default:
		return false
	}
}

// keepAlivePermitted decides persistence from the heads and the body
// framing alone. Draining and transport health are checked at completion.
func keepAlivePermitted(sent message.Header, status wire.StatusLine, h message.Header, f wire.Framing) bool {
	if sent.HasToken("Connection", "close") {
		return false
	}
	if f.Conflicting || !f.SelfDelimiting() || status.Code == 101 {
		return false
	}
	if h.HasToken("Connection", "close") {
		return false
	}
	if status.Major == 1 && status.Minor == 0 {
		return h.HasToken("Connection", "keep-alive")
	}
	return true
}

func errNoResponse(attempts int) error {
	return fmt.Errorf("%w: more than %d interim responses", wire.ErrMalformed, attempts)
}
