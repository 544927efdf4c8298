package requester

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/torosent/h1exec/internal/conn"
	"github.com/torosent/h1exec/internal/message"
	"github.com/torosent/h1exec/internal/session"
	"github.com/torosent/h1exec/internal/wire"
)

// ErrBodyClosed is returned by reads after the response body was closed.
var ErrBodyClosed = errors.New("requester: read on closed response body")

// exchange is one request/response cycle on an Active connection.
type exchange struct {
	r    *Requester
	conn *conn.Connection
	sc   *session.Context

	// persistent is the keep-alive verdict from the heads.
	persistent bool
	done       atomic.Bool
}

func (ex *exchange) run(target message.Host, req *Request) (*Response, error) {
	if err := ex.r.listener.OnRequestHead(ex.conn, req); err != nil {
		return nil, ex.fail(KindListener, "request head", err)
	}

	sent := ex.r.requestHeader(target, req)
	bw := ex.conn.Writer()
	if err := wire.WriteRequestHead(bw, req.Method, req.Path, sent); err != nil {
		return nil, ex.fail(classifyWrite(err), "write head", err)
	}
	if req.Entity != nil {
		if err := req.Entity.Produce(bw); err != nil {
			return nil, ex.fail(classifyWrite(err), "write body", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, ex.fail(classifyWrite(err), "flush", err)
	}

	hr := &wire.HeadReader{
		BR:           ex.conn.Reader(),
		MaxLineBytes: ex.r.opts.MaxHeaderBytes,
		MaxFields:    ex.r.opts.MaxHeaderCount,
	}
	status, header, err := readFinalHead(hr)
	if err != nil {
		return nil, ex.fail(classifyRead(err), "read head", err)
	}

	framing, err := wire.ResponseFraming(req.Method, status.Code, header)
	if err != nil {
		return nil, ex.fail(KindProtocol, "body framing", err)
	}
	ex.persistent = keepAlivePermitted(sent, status, header, framing)

	resp := &Response{
		Proto:         status.Proto,
		StatusCode:    status.Code,
		Reason:        status.Reason,
		Header:        header,
		ContentLength: -1,
	}
	if framing.Kind == wire.FramingLength {
		resp.ContentLength = framing.Length
	} else if framing.Kind == wire.FramingNone {
		resp.ContentLength = 0
	}

	if err := ex.r.listener.OnResponseHead(ex.conn, resp); err != nil {
		return nil, ex.fail(KindListener, "response head", err)
	}
	if ex.sc != nil {
		ex.sc.Record(ex.conn.ID(), resp.StatusCode)
	}

	resp.Body = &responseBody{
		ex:   ex,
		resp: resp,
		body: wire.NewBody(hr.BR, framing, ex.r.opts.MaxHeaderBytes, ex.r.opts.MaxHeaderCount),
	}
	return resp, nil
}

// readFinalHead skips interim 1xx heads. 101 is final: the connection has
// switched protocols and is not reused.
func readFinalHead(hr *wire.HeadReader) (wire.StatusLine, message.Header, error) {
	for i := 0; i <= maxInterimResponses; i++ {
		status, err := hr.ReadStatusLine()
		if err != nil {
			return wire.StatusLine{}, nil, err
		}
		header, err := hr.ReadHeader()
		if err != nil {
			return wire.StatusLine{}, nil, err
		}
		if status.Code >= 200 || status.Code == 101 {
			return status, header, nil
		}
	}
	return wire.StatusLine{}, nil, errNoResponse(maxInterimResponses)
}

// complete ends the exchange once: notify the listener, then pool the
// connection or close it. A listener error closes the connection too.
func (ex *exchange) complete(keepAlive bool) error {
	if !ex.done.CompareAndSwap(false, true) {
		return nil
	}
	if ex.sc != nil {
		defer ex.sc.End()
	}

	lerr := ex.r.listener.OnExchangeComplete(ex.conn, keepAlive)
	if keepAlive && lerr == nil {
		if err := ex.conn.Finish(true); err != nil {
			ex.r.logger.Warnf("release connection %s: %v", ex.conn.ID(), err)
		}
		if err := ex.r.pool.Put(ex.conn); err != nil {
			ex.r.logger.Warnf("close surplus connection %s: %v", ex.conn.ID(), err)
		}
	} else {
		if err := ex.conn.Finish(false); err != nil {
			ex.r.logger.Debugf("close connection %s: %v", ex.conn.ID(), err)
		}
		ex.r.logger.Debugf("closed connection %s", ex.conn.ID())
	}

	if lerr != nil {
		return &Error{Kind: KindListener, Op: "exchange complete", Err: lerr}
	}
	return nil
}

// fail aborts the exchange with keepAlive=false and returns the primary
// error, joined with any error the completion listener raised.
func (ex *exchange) fail(kind Kind, op string, err error) error {
	ex.conn.MarkFailed()
	primary := &Error{Kind: kind, Op: op, Err: err}
	ex.r.logger.Debugf("exchange on %s failed: %v", ex.conn.ID(), primary)
	if cerr := ex.complete(false); cerr != nil {
		return errors.Join(primary, cerr)
	}
	return primary
}

// responseBody reads the framed body and completes the exchange at EOF or
// Close. A single goroutine is expected to read it.
type responseBody struct {
	ex     *exchange
	resp   *Response
	body   wire.Body
	err    error // sticky result once the exchange has ended
	closed bool
}

func (b *responseBody) Read(p []byte) (int, error) {
	if b.closed {
		return 0, ErrBodyClosed
	}
	if b.err != nil {
		return 0, b.err
	}
	n, err := b.body.Read(p)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		if cb, ok := b.body.(*wire.ChunkedBody); ok {
			b.resp.Trailer = cb.Trailer()
		}
		b.err = io.EOF
		if cerr := b.ex.complete(b.ex.persistent && b.body.Drained()); cerr != nil {
			b.err = cerr
		}
		return n, b.err
	default:
		b.err = b.ex.fail(classifyRead(err), "read body", err)
		return n, b.err
	}
}

// Close ends the exchange. A body that was not read to its end leaves the
// connection in an unknown position, so it is closed rather than pooled.
func (b *responseBody) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.err != nil {
		return nil
	}
	return b.ex.complete(b.ex.persistent && b.body.Drained())
}
