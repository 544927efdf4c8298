package wire

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/torosent/h1exec/internal/message"
)

func TestWriteRequestHead(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	h := message.NewHeader("Host", "example.com", "X-Dup", "1", "X-Dup", "2", "X-Evil", "a\r\nInjected: yes")
	if err := WriteRequestHead(bw, "POST", "/post", h); err != nil {
		t.Fatalf("WriteRequestHead failed: %v", err)
	}
	_ = bw.Flush()

	want := "POST /post HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"X-Dup: 1\r\n" +
		"X-Dup: 2\r\n" +
		"X-Evil: aInjected: yes\r\n" +
		"\r\n"
	if got := buf.String(); got != want {
		t.Errorf("Unexpected head:\n%q\nwant\n%q", got, want)
	}
}

func TestWriteRequestHead_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		header message.Header
	}{
		{"bad method", "PO ST", "/", nil},
		{"bad target", "GET", "/a b", nil},
		{"bad field name", "GET", "/", message.Header{{Name: "Bad Name", Value: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bw := bufio.NewWriter(&bytes.Buffer{})
			if err := WriteRequestHead(bw, tt.method, tt.target, tt.header); !errors.Is(err, ErrInvalidField) {
				t.Errorf("Expected ErrInvalidField, got %v", err)
			}
		})
	}
}

func TestWriteRequestHead_EmptyTarget(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	if err := WriteRequestHead(bw, "GET", "", nil); err != nil {
		t.Fatalf("WriteRequestHead failed: %v", err)
	}
	_ = bw.Flush()
	if !strings.HasPrefix(buf.String(), "GET / HTTP/1.1\r\n") {
		t.Errorf("Expected default target, got %q", buf.String())
	}
}

func TestChunkedWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChunkedWriter(&buf)

	_, _ = cw.Write([]byte("hello "))
	_, _ = cw.Write(nil)
	_, _ = cw.Write([]byte("world, this is chunked"))
	if err := cw.Finish(message.NewHeader("trailer1", "And goodbye")); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	want := "6\r\nhello \r\n16\r\nworld, this is chunked\r\n0\r\ntrailer1: And goodbye\r\n\r\n"
	if got := buf.String(); got != want {
		t.Errorf("Unexpected chunked output:\n%q\nwant\n%q", got, want)
	}
	if cw.Written() != 28 {
		t.Errorf("Expected 28 payload bytes, got %d", cw.Written())
	}
	if _, err := cw.Write([]byte("late")); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Expected ErrWriterClosed, got %v", err)
	}
	if err := cw.Finish(nil); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Expected second Finish to fail, got %v", err)
	}
}

func TestChunkedWriter_NoTrailers(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChunkedWriter(&buf)
	_ = cw.Finish(nil)
	if got := buf.String(); got != "0\r\n\r\n" {
		t.Errorf("Expected empty chunked body, got %q", got)
	}
}

func TestLengthWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := NewLengthWriter(&buf, 5)

	if _, err := lw.Write([]byte("abc")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := lw.Finish(); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Expected short write to fail Finish, got %v", err)
	}
	if _, err := lw.Write([]byte("def")); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Expected overflow to fail, got %v", err)
	}
	if _, err := lw.Write([]byte("de")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := lw.Finish(); err != nil {
		t.Errorf("Expected exact length to pass, got %v", err)
	}
	if buf.String() != "abcde" || lw.Written() != 5 {
		t.Errorf("Unexpected output %q (%d)", buf.String(), lw.Written())
	}
}
