package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/torosent/h1exec/internal/message"
)

// FramingKind says how a message body is delimited on the wire.
type FramingKind int

const (
	FramingNone FramingKind = iota
	FramingLength
	FramingChunked
	FramingClose
)

func (k FramingKind) String() string {
	switch k {
	case FramingNone:
		return "none"
	case FramingLength:
		return "content-length"
	case FramingChunked:
		return "chunked"
	case FramingClose:
		return "close-delimited"
	default:
		return "unknown"
	}
}

// Framing is the body delimitation decided from a response head.
type Framing struct {
	Kind   FramingKind
	Length int64
	// Conflicting is set when both Transfer-Encoding and Content-Length were
	// present. Transfer-Encoding wins but the connection must not be reused.
	Conflicting bool
}

// SelfDelimiting reports whether the end of the body can be found without
// closing the connection.
func (f Framing) SelfDelimiting() bool {
	return f.Kind != FramingClose
}

// ResponseFraming applies the RFC 9112 section 6.3 rules.
func ResponseFraming(method string, code int, h message.Header) (Framing, error) {
	if strings.EqualFold(method, "HEAD") || (code >= 100 && code < 200) || code == 204 || code == 304 {
		return Framing{Kind: FramingNone}, nil
	}
	hasCL := h.Has("Content-Length")
	if codings := h.Tokens("Transfer-Encoding"); len(codings) > 0 {
		if codings[len(codings)-1] == "chunked" {
			return Framing{Kind: FramingChunked, Length: -1, Conflicting: hasCL}, nil
		}
		return Framing{Kind: FramingClose, Length: -1, Conflicting: hasCL}, nil
	}
	if hasCL {
		n, err := parseContentLength(h.Values("Content-Length"))
		if err != nil {
			return Framing{}, err
		}
		if n == 0 {
			return Framing{Kind: FramingNone}, nil
		}
		return Framing{Kind: FramingLength, Length: n}, nil
	}
	return Framing{Kind: FramingClose, Length: -1}, nil
}

// parseContentLength accepts repeated or comma-joined values only when they
// all agree.
func parseContentLength(values []string) (int64, error) {
	var n int64 = -1
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				return 0, fmt.Errorf("%w: empty value", ErrInvalidContentLength)
			}
			for i := 0; i < len(part); i++ {
				if part[i] < '0' || part[i] > '9' {
					return 0, fmt.Errorf("%w: %q", ErrInvalidContentLength, part)
				}
			}
			m, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %q", ErrInvalidContentLength, part)
			}
			if n >= 0 && m != n {
				return 0, fmt.Errorf("%w: conflicting values %d and %d", ErrInvalidContentLength, n, m)
			}
			n = m
		}
	}
	return n, nil
}

// Body is a framed message body. Drained reports whether every framed byte
// has been consumed, which is required before the connection can be reused.
type Body interface {
	io.Reader
	Drained() bool
}

// NewBody returns the reader matching f.
func NewBody(br *bufio.Reader, f Framing, maxLine, maxFields int) Body {
	switch f.Kind {
	case FramingLength:
		return &lengthBody{br: br, remain: f.Length}
	case FramingChunked:
		return NewChunkedBody(br, maxLine, maxFields)
	case FramingClose:
		return &closeBody{br: br}
	default:
		return noBody{}
	}
}

type noBody struct{}

func (noBody) Read([]byte) (int, error) { return 0, io.EOF }
func (noBody) Drained() bool            { return true }

type lengthBody struct {
	br     *bufio.Reader
	remain int64
}

func (b *lengthBody) Read(p []byte) (int, error) {
	if b.remain <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > b.remain {
		p = p[:b.remain]
	}
	n, err := b.br.Read(p)
	b.remain -= int64(n)
	if b.remain == 0 {
		return n, nil
	}
	if errors.Is(err, io.EOF) {
		return n, io.ErrUnexpectedEOF
	}
	return n, err
}

func (b *lengthBody) Drained() bool { return b.remain <= 0 }

type closeBody struct {
	br  *bufio.Reader
	eof bool
}

func (b *closeBody) Read(p []byte) (int, error) {
	if b.eof {
		return 0, io.EOF
	}
	n, err := b.br.Read(p)
	if errors.Is(err, io.EOF) {
		b.eof = true
	}
	return n, err
}

func (b *closeBody) Drained() bool { return b.eof }

// ChunkedBody decodes chunked transfer-coding and keeps the trailer section.
type ChunkedBody struct {
	br        *bufio.Reader
	remain    int64
	finished  bool
	maxLine   int
	maxFields int
	trailer   message.Header
}

// NewChunkedBody decodes a chunked body from br. Zero limits use the
// package defaults.
func NewChunkedBody(br *bufio.Reader, maxLine, maxFields int) *ChunkedBody {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	if maxFields <= 0 {
		maxFields = DefaultMaxFields
	}
	return &ChunkedBody{br: br, maxLine: maxLine, maxFields: maxFields}
}

func (c *ChunkedBody) Read(p []byte) (int, error) {
	if c.finished {
		return 0, io.EOF
	}
	if c.remain == 0 {
		size, err := c.readChunkSize()
		if err != nil {
			return 0, err
		}
		if size == 0 {
			trailer, err := readFields(c.br, c.maxLine, c.maxFields)
			if err != nil {
				return 0, eofIsUnexpected(err)
			}
			c.trailer = trailer
			c.finished = true
			return 0, io.EOF
		}
		c.remain = size
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > c.remain {
		p = p[:c.remain]
	}
	n, err := c.br.Read(p)
	c.remain -= int64(n)
	if err != nil {
		return n, eofIsUnexpected(err)
	}
	if c.remain == 0 {
		if err := c.expectCRLF(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Trailer returns the trailer fields once the body has been read to EOF.
func (c *ChunkedBody) Trailer() message.Header { return c.trailer }

// Drained reports whether the terminal chunk and trailers were read.
func (c *ChunkedBody) Drained() bool { return c.finished }

func (c *ChunkedBody) readChunkSize() (int64, error) {
	line, err := readLine(c.br, c.maxLine)
	if err != nil {
		return 0, eofIsUnexpected(err)
	}
	// Chunk extensions are ignored.
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, fmt.Errorf("%w: empty chunk size", ErrMalformed)
	}
	for i := 0; i < len(line); i++ {
		if !isHexDigit(line[i]) {
			return 0, fmt.Errorf("%w: chunk size %q", ErrMalformed, line)
		}
	}
	n, err := strconv.ParseInt(line, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: chunk size %q", ErrMalformed, line)
	}
	return n, nil
}

func isHexDigit(b byte) bool {
	return '0' <= b && b <= '9' || 'a' <= b && b <= 'f' || 'A' <= b && b <= 'F'
}

func (c *ChunkedBody) expectCRLF() error {
	b1, err := c.br.ReadByte()
	if err != nil {
		return eofIsUnexpected(err)
	}
	b2, err := c.br.ReadByte()
	if err != nil {
		return eofIsUnexpected(err)
	}
	if b1 != '\r' || b2 != '\n' {
		return fmt.Errorf("%w: expected CRLF after chunk, got %q%q", ErrMalformed, b1, b2)
	}
	return nil
}

func eofIsUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
