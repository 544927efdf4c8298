package requester

import (
	"errors"

	"github.com/torosent/h1exec/internal/conn"
)

// StreamListener observes protocol milestones. For every exchange that got
// past connection establishment, OnRequestHead and OnExchangeComplete fire
// exactly once, with OnResponseHead in between when a head was received.
// A returned error aborts the exchange.
//
// keepAlive passed to OnExchangeComplete is the protocol's verdict. If
// OnExchangeComplete itself returns an error, the connection is closed
// even when that verdict was true.
type StreamListener interface {
	OnRequestHead(c *conn.Connection, req *Request) error
	OnResponseHead(c *conn.Connection, resp *Response) error
	OnExchangeComplete(c *conn.Connection, keepAlive bool) error
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) OnRequestHead(*conn.Connection, *Request) error   { return nil }
func (NopListener) OnResponseHead(*conn.Connection, *Response) error { return nil }
func (NopListener) OnExchangeComplete(*conn.Connection, bool) error  { return nil }

// ListenerFuncs adapts plain functions to StreamListener. Nil fields are no-ops.
type ListenerFuncs struct {
	RequestHead      func(c *conn.Connection, req *Request) error
	ResponseHead     func(c *conn.Connection, resp *Response) error
	ExchangeComplete func(c *conn.Connection, keepAlive bool) error
}

func (f ListenerFuncs) OnRequestHead(c *conn.Connection, req *Request) error {
	if f.RequestHead == nil {
		return nil
	}
	return f.RequestHead(c, req)
}

func (f ListenerFuncs) OnResponseHead(c *conn.Connection, resp *Response) error {
	if f.ResponseHead == nil {
		return nil
	}
	return f.ResponseHead(c, resp)
}

func (f ListenerFuncs) OnExchangeComplete(c *conn.Connection, keepAlive bool) error {
	if f.ExchangeComplete == nil {
		return nil
	}
	return f.ExchangeComplete(c, keepAlive)
}

// Listeners fans events out in order and stops at the first error.
// OnExchangeComplete is delivered to every member so each sees the end of
// the exchange; their errors are joined.
type Listeners []StreamListener

func (ls Listeners) OnRequestHead(c *conn.Connection, req *Request) error {
	for _, l := range ls {
		if err := l.OnRequestHead(c, req); err != nil {
			return err
		}
	}
	return nil
}

func (ls Listeners) OnResponseHead(c *conn.Connection, resp *Response) error {
	for _, l := range ls {
		if err := l.OnResponseHead(c, resp); err != nil {
			return err
		}
	}
	return nil
}

func (ls Listeners) OnExchangeComplete(c *conn.Connection, keepAlive bool) error {
	var errs []error
	for _, l := range ls {
		if err := l.OnExchangeComplete(c, keepAlive); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
