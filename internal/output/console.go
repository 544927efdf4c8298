package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/torosent/h1exec/internal/conn"
	"github.com/torosent/h1exec/internal/requester"
)

// ConsoleListener prints one line per protocol milestone, prefixed with the
// peer address of the connection carrying the exchange.
type ConsoleListener struct {
	mu sync.Mutex
	w  io.Writer
}

var _ requester.StreamListener = (*ConsoleListener)(nil)

// NewConsoleListener writes milestone lines to w.
func NewConsoleListener(w io.Writer) *ConsoleListener {
	return &ConsoleListener{w: w}
}

func (l *ConsoleListener) OnRequestHead(c *conn.Connection, req *requester.Request) error {
	return l.printf("%s %s\n", c, req.RequestLine())
}

func (l *ConsoleListener) OnResponseHead(c *conn.Connection, resp *requester.Response) error {
	return l.printf("%s %s\n", c, resp.StatusLine())
}

func (l *ConsoleListener) OnExchangeComplete(c *conn.Connection, keepAlive bool) error {
	if keepAlive {
		return l.printf("%s exchange completed (connection kept alive)\n", c)
	}
	return l.printf("%s exchange completed (connection closed)\n", c)
}

func (l *ConsoleListener) printf(format string, args ...any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.w, format, args...)
	return err
}
