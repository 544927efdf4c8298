package wire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/torosent/h1exec/internal/message"
)

// WriteRequestHead writes the request line, the fields in order and the
// terminating empty line. Field values are stripped of control characters;
// an illegal field name is an error rather than being dropped.
func WriteRequestHead(bw *bufio.Writer, method, target string, h message.Header) error {
	if !validToken(method) {
		return fmt.Errorf("%w: method %q", ErrInvalidField, method)
	}
	if target == "" {
		target = "/"
	}
	if strings.ContainsAny(target, " \r\n") {
		return fmt.Errorf("%w: request target %q", ErrInvalidField, target)
	}
	if _, err := bw.WriteString(message.RequestLine(method, target, message.DefaultProto) + "\r\n"); err != nil {
		return err
	}
	if err := writeFields(bw, h); err != nil {
		return err
	}
	_, err := bw.WriteString("\r\n")
	return err
}

func writeFields(w io.Writer, h message.Header) error {
	for _, f := range h {
		if !validToken(f.Name) {
			return fmt.Errorf("%w: name %q", ErrInvalidField, f.Name)
		}
		if _, err := io.WriteString(w, f.Name+": "+sanitizeValue(f.Value)+"\r\n"); err != nil {
			return err
		}
	}
	return nil
}

// ChunkedWriter frames everything written to it with chunked
// transfer-coding. Finish writes the terminal chunk and any trailers.
type ChunkedWriter struct {
	w        io.Writer
	written  int64
	finished bool
}

// NewChunkedWriter frames everything written to it as chunks on w.
func NewChunkedWriter(w io.Writer) *ChunkedWriter {
	return &ChunkedWriter{w: w}
}

// Write emits p as one chunk.
func (c *ChunkedWriter) Write(p []byte) (int, error) {
	if c.finished {
		return 0, ErrWriterClosed
	}
	// A zero-length chunk would terminate the body.
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := io.WriteString(c.w, strconv.FormatInt(int64(len(p)), 16)+"\r\n"); err != nil {
		return 0, err
	}
	n, err := c.w.Write(p)
	c.written += int64(n)
	if err != nil {
		return n, err
	}
	if _, err := io.WriteString(c.w, "\r\n"); err != nil {
		return n, err
	}
	return n, nil
}

// Finish writes "0\r\n", the trailer fields and the closing CRLF.
func (c *ChunkedWriter) Finish(trailers message.Header) error {
	if c.finished {
		return ErrWriterClosed
	}
	c.finished = true
	if _, err := io.WriteString(c.w, "0\r\n"); err != nil {
		return err
	}
	if err := writeFields(c.w, trailers); err != nil {
		return err
	}
	_, err := io.WriteString(c.w, "\r\n")
	return err
}

// Written returns the number of payload bytes, excluding framing.
func (c *ChunkedWriter) Written() int64 { return c.written }

// LengthWriter passes through exactly n bytes. Writing past n fails, and
// Finish fails if fewer than n bytes were written.
type LengthWriter struct {
	w        io.Writer
	declared int64
	written  int64
}

// NewLengthWriter passes up to n bytes through to w.
func NewLengthWriter(w io.Writer, n int64) *LengthWriter {
	return &LengthWriter{w: w, declared: n}
}

// Write fails with ErrLengthMismatch once the declared length would be
// exceeded.
func (l *LengthWriter) Write(p []byte) (int, error) {
	if l.written+int64(len(p)) > l.declared {
		return 0, fmt.Errorf("%w: declared %d, attempted %d", ErrLengthMismatch, l.declared, l.written+int64(len(p)))
	}
	n, err := l.w.Write(p)
	l.written += int64(n)
	return n, err
}

// Finish reports ErrLengthMismatch if fewer than the declared bytes were
// written.
func (l *LengthWriter) Finish() error {
	if l.written != l.declared {
		return fmt.Errorf("%w: declared %d, wrote %d", ErrLengthMismatch, l.declared, l.written)
	}
	return nil
}

// Written returns the bytes passed through so far.
func (l *LengthWriter) Written() int64 { return l.written }

// validToken reports whether s is an RFC 9110 token.
func validToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			continue
		}
		switch c {
		case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
			continue
		default:
			return false
		}
	}
	return true
}

// sanitizeValue removes CR, LF and other control characters except HTAB.
func sanitizeValue(v string) string {
	clean := true
	for i := 0; i < len(v); i++ {
		if c := v[i]; (c < 0x20 && c != '\t') || c == 0x7f {
			clean = false
			break
		}
	}
	if clean {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < 0x20 && c != '\t') || c == 0x7f {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
