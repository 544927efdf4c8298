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

const (
	DefaultMaxLineBytes = 8 << 10
	DefaultMaxFields    = 100
)

// HeadReader parses a response head from a buffered connection.
type HeadReader struct {
	BR           *bufio.Reader
	MaxLineBytes int // per line; 0 means DefaultMaxLineBytes
	MaxFields    int // per head; 0 means DefaultMaxFields
}

// StatusLine is the parsed first line of a response.
type StatusLine struct {
	Proto  string
	Major  int
	Minor  int
	Code   int
	Reason string
}

func (s StatusLine) String() string {
	return message.StatusLine(s.Proto, s.Code, s.Reason)
}

// ReadStatusLine reads "HTTP/1.x NNN reason".
func (r *HeadReader) ReadStatusLine() (StatusLine, error) {
	line, err := readLine(r.BR, r.maxLine())
	if err != nil {
		return StatusLine{}, err
	}
	proto, rest, ok := strings.Cut(line, " ")
	if !ok {
		return StatusLine{}, fmt.Errorf("%w: status line %q", ErrMalformed, line)
	}
	major, minor, ok := parseVersion(proto)
	if !ok || major != 1 {
		return StatusLine{}, fmt.Errorf("%w: protocol version %q", ErrMalformed, proto)
	}
	codeStr, reason, _ := strings.Cut(rest, " ")
	if len(codeStr) != 3 {
		return StatusLine{}, fmt.Errorf("%w: status code %q", ErrMalformed, codeStr)
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil || code < 100 {
		return StatusLine{}, fmt.Errorf("%w: status code %q", ErrMalformed, codeStr)
	}
	return StatusLine{Proto: proto, Major: major, Minor: minor, Code: code, Reason: reason}, nil
}

// ReadHeader reads field lines up to and including the empty line.
func (r *HeadReader) ReadHeader() (message.Header, error) {
	return readFields(r.BR, r.maxLine(), r.maxFields())
}

func (r *HeadReader) maxLine() int {
	if r.MaxLineBytes > 0 {
		return r.MaxLineBytes
	}
	return DefaultMaxLineBytes
}

func (r *HeadReader) maxFields() int {
	if r.MaxFields > 0 {
		return r.MaxFields
	}
	return DefaultMaxFields
}

func readFields(br *bufio.Reader, maxLine, maxFields int) (message.Header, error) {
	var h message.Header
	for {
		line, err := readLine(br, maxLine)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return h, nil
		}
		if len(h) >= maxFields {
			return nil, ErrTooManyFields
		}
		// Obsolete line folding is rejected.
		if line[0] == ' ' || line[0] == '\t' {
			return nil, fmt.Errorf("%w: folded header line", ErrMalformed)
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !validToken(name) {
			return nil, fmt.Errorf("%w: header line %q", ErrMalformed, line)
		}
		h = append(h, message.Field{Name: name, Value: strings.TrimSpace(value)})
	}
}

// readLine returns one CRLF (or bare LF) terminated line without its
// terminator. A CR anywhere but right before the LF is malformed. EOF
// before any byte is io.EOF; EOF mid-line is io.ErrUnexpectedEOF.
func readLine(br *bufio.Reader, limit int) (string, error) {
	var sb strings.Builder
	started := false
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && started {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		started = true
		if b == '\n' {
			break
		}
		if b == '\r' {
			next, err := br.ReadByte()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return "", io.ErrUnexpectedEOF
				}
				return "", err
			}
			if next != '\n' {
				return "", fmt.Errorf("%w: bare CR in line", ErrMalformed)
			}
			break
		}
		sb.WriteByte(b)
		if limit > 0 && sb.Len() > limit {
			return "", ErrLineTooLong
		}
	}
	return sb.String(), nil
}

func parseVersion(proto string) (major, minor int, ok bool) {
	if len(proto) != len("HTTP/1.1") || !strings.HasPrefix(proto, "HTTP/") || proto[6] != '.' {
		return 0, 0, false
	}
	maj, min := proto[5], proto[7]
	if maj < '0' || maj > '9' || min < '0' || min > '9' {
		return 0, 0, false
	}
	return int(maj - '0'), int(min - '0'), true
}
