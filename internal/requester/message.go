package requester

import (
	"io"

	"github.com/torosent/h1exec/internal/entity"
	"github.com/torosent/h1exec/internal/message"
)

// Request is one outbound HTTP/1.1 request. It is consumed by a single
// Execute call; a streaming Entity cannot be sent twice.
type Request struct {
	Method string
	// Host is used when Execute is given a zero target.
	Host   message.Host
	Path   string
	Header message.Header
	Entity *entity.Entity
}

// NewRequest builds a request with an optional entity.
func NewRequest(method, path string, e *entity.Entity) *Request {
	return &Request{Method: method, Path: path, Entity: e}
}

// RequestLine renders the request line as sent on the wire.
func (r *Request) RequestLine() string {
	return message.RequestLine(r.Method, r.Path, message.DefaultProto)
}

// Response is a received response head plus a body bound to the connection
// that carried it. The body must be read to EOF or closed; either one ends
// the exchange and releases the connection.
type Response struct {
	Proto      string
	StatusCode int
	Reason     string
	Header     message.Header
	// Trailer holds trailer fields once a chunked body has been read to EOF.
	Trailer message.Header
	// ContentLength is -1 when the length is not declared.
	ContentLength int64
	Body          io.ReadCloser
}

// StatusLine renders the status line as received.
func (r *Response) StatusLine() string {
	return message.StatusLine(r.Proto, r.StatusCode, r.Reason)
}

// ContentType parses the Content-Type field.
func (r *Response) ContentType() message.ContentType {
	return message.ParseContentType(r.Header.Get("Content-Type"))
}

// Close releases the exchange. An undrained body closes the connection.
func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}
