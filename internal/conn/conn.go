package conn

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/h1exec/internal/clientmetrics"
)

// State is the lifecycle position of a Connection.
type State int32

const (
	StateIdle State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotIdle is returned when activating a connection that is in use or closed.
var ErrNotIdle = errors.New("conn: connection is not idle")

const bufferSize = 8 << 10

// livenessWindow bounds the read made by Alive before a parked connection
// is reused.
const livenessWindow = time.Millisecond

// Connection is one transport connection to an origin server. It is owned
// by a single exchange at a time: Activate moves it from Idle to Active and
// Finish hands it back (Idle) or closes it.
type Connection struct {
	id      string
	key     string
	raw     net.Conn
	io      *timeoutConn
	br      *bufio.Reader
	bw      *bufio.Writer
	metrics *clientmetrics.ClientMetrics

	state      atomic.Int32
	persistent atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

// New wraps an established net.Conn. key identifies the endpoint for pooling.
func New(raw net.Conn, key string) *Connection {
	m := clientmetrics.New()
	m.MarkConnected()
	tc := &timeoutConn{Conn: raw, metrics: m}
	c := &Connection{
		id:      ulid.Make().String(),
		key:     key,
		raw:     raw,
		io:      tc,
		br:      bufio.NewReaderSize(tc, bufferSize),
		bw:      bufio.NewWriterSize(tc, bufferSize),
		metrics: m,
	}
	c.state.Store(int32(StateIdle))
	return c
}

// ID returns the ulid assigned when the connection was wrapped.
func (c *Connection) ID() string { return c.id }

// Key returns the pool key of the endpoint.
func (c *Connection) Key() string { return c.key }

// RemoteAddr returns the peer address of the transport.
func (c *Connection) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// LocalAddr returns the local address of the transport.
func (c *Connection) LocalAddr() net.Addr { return c.raw.LocalAddr() }

// State returns the current lifecycle position.
func (c *Connection) State() State { return State(c.state.Load()) }

// Reader returns the buffered reader the response is parsed from.
func (c *Connection) Reader() *bufio.Reader { return c.br }

// Writer returns the buffered writer the request is framed into.
func (c *Connection) Writer() *bufio.Writer { return c.bw }

// Persistent reports whether the last exchange left the connection reusable.
func (c *Connection) Persistent() bool { return c.persistent.Load() }

// Metrics returns a snapshot of the connection's I/O counters.
func (c *Connection) Metrics() clientmetrics.Snapshot { return c.metrics.Snapshot() }

// String returns the peer address, or the pool key when there is none.
func (c *Connection) String() string {
	if addr := c.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return c.key
}

// Exchanges returns how many exchanges the connection has carried.
func (c *Connection) Exchanges() int64 {
	return c.metrics.Snapshot().Exchanges
}

// Activate claims the connection for one exchange.
func (c *Connection) Activate(reused bool) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateActive)) {
		return fmt.Errorf("%w: %s is %s", ErrNotIdle, c.id, c.State())
	}
	c.persistent.Store(false)
	c.metrics.IncrementExchanges(reused)
	return nil
}

// SetTimeout applies an inactivity bound to every subsequent read and write.
// A non-zero hard deadline caps each per-operation deadline.
func (c *Connection) SetTimeout(inactivity time.Duration, hard time.Time) {
	c.io.inactivity = inactivity
	c.io.hard = hard
}

// Finish ends the current exchange. With keepAlive the connection becomes
// Idle and persistent; otherwise it is closed.
func (c *Connection) Finish(keepAlive bool) error {
	if keepAlive && c.state.CompareAndSwap(int32(StateActive), int32(StateIdle)) {
		c.persistent.Store(true)
		c.io.inactivity = 0
		c.io.hard = time.Time{}
		_ = c.raw.SetDeadline(time.Time{})
		return nil
	}
	c.persistent.Store(false)
	return c.Close()
}

// MarkFailed records a transport or protocol failure against this connection.
func (c *Connection) MarkFailed() {
	c.metrics.IncrementErrors()
}

// Reusable reports whether the connection may be handed to a new exchange.
func (c *Connection) Reusable() bool {
	return c.State() == StateIdle && c.Persistent()
}

// Alive reports whether an idle connection can still carry an exchange. It
// reads with a short deadline: a timeout means the peer is quiet and the
// connection is alive, while EOF, an error or bytes nobody asked for mean
// the peer has given up on it.
func (c *Connection) Alive() bool {
	if !c.Reusable() || c.br.Buffered() > 0 {
		return false
	}
	c.io.hard = time.Now().Add(livenessWindow)
	_, err := c.br.Peek(1)
	c.io.hard = time.Time{}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Close closes the transport. It is safe to call more than once.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.persistent.Store(false)
		c.metrics.Reset()
		c.closeErr = c.raw.Close()
	})
	return c.closeErr
}

// timeoutConn refreshes the deadline before every I/O call so the bound
// applies to inactivity rather than to the whole exchange.
type timeoutConn struct {
	net.Conn
	inactivity time.Duration
	hard       time.Time
	metrics    *clientmetrics.ClientMetrics
}

func (t *timeoutConn) deadline() time.Time {
	var d time.Time
	if t.inactivity > 0 {
		d = time.Now().Add(t.inactivity)
	}
	if !t.hard.IsZero() && (d.IsZero() || t.hard.Before(d)) {
		d = t.hard
	}
	return d
}

func (t *timeoutConn) Read(p []byte) (int, error) {
	if err := t.Conn.SetReadDeadline(t.deadline()); err != nil {
		return 0, err
	}
	n, err := t.Conn.Read(p)
	t.metrics.AddReceived(int64(n))
	return n, err
}

func (t *timeoutConn) Write(p []byte) (int, error) {
	if err := t.Conn.SetWriteDeadline(t.deadline()); err != nil {
		return 0, err
	}
	n, err := t.Conn.Write(p)
	t.metrics.AddSent(int64(n))
	return n, err
}
