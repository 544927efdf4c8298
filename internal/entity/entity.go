package entity

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/torosent/h1exec/internal/message"
	"github.com/torosent/h1exec/internal/wire"
)

// ErrConsumed is returned when a one-shot entity is produced a second time.
var ErrConsumed = errors.New("entity: already consumed")

// Kind tags the body source variant of an Entity.
type Kind int

const (
	// KindFixed is an in-memory byte sequence of known length.
	KindFixed Kind = iota
	// KindStream is driven by a WriteFunc. Without a declared length it is
	// framed with chunked transfer-coding.
	KindStream
	// KindTrailers is chunked content followed by a fixed set of trailer fields.
	KindTrailers
)

func (k Kind) String() string {
	switch k {
	case KindFixed:
		return "fixed"
	case KindStream:
		return "stream"
	case KindTrailers:
		return "stream+trailers"
	default:
		return "unknown"
	}
}

// WriteFunc produces body bytes into w. Returning signals completion.
type WriteFunc func(w io.Writer) error

// Entity is a request body. Build it with one of the constructors; the zero
// value is not usable.
type Entity struct {
	kind        Kind
	contentType message.ContentType
	length      int64 // -1 when unknown
	data        []byte
	write       WriteFunc
	trailers    message.Header
	consumed    atomic.Bool
}

// FromText returns a fixed entity holding s.
func FromText(s string, ct message.ContentType) *Entity {
	return FromBytes([]byte(s), ct)
}

// FromBytes returns a fixed entity holding b. b is not copied.
func FromBytes(b []byte, ct message.ContentType) *Entity {
	return &Entity{kind: KindFixed, contentType: ct, length: int64(len(b)), data: b}
}

// FromWriter returns a streaming entity of unknown length.
func FromWriter(fn WriteFunc, ct message.ContentType) *Entity {
	return &Entity{kind: KindStream, contentType: ct, length: -1, write: fn}
}

// FromSizedWriter returns a streaming entity that promises exactly n bytes.
// Producing more or fewer fails the exchange.
func FromSizedWriter(fn WriteFunc, n int64, ct message.ContentType) *Entity {
	if n < 0 {
		n = -1
	}
	return &Entity{kind: KindStream, contentType: ct, length: n, write: fn}
}

// FromFile streams the named file with its current size as the declared length.
func FromFile(path string, ct message.ContentType) (*Entity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("body file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("body file %q is a directory", path)
	}
	fn := func(w io.Writer) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	}
	return FromSizedWriter(fn, info.Size(), ct), nil
}

// WithTrailers returns a chunked entity holding s followed by trailers.
func WithTrailers(s string, ct message.ContentType, trailers ...message.Field) *Entity {
	return &Entity{
		kind:        KindTrailers,
		contentType: ct,
		length:      -1,
		data:        []byte(s),
		trailers:    message.Header(trailers).Clone(),
	}
}

// FromWriterWithTrailers returns a chunked streaming entity followed by trailers.
func FromWriterWithTrailers(fn WriteFunc, ct message.ContentType, trailers ...message.Field) *Entity {
	return &Entity{
		kind:        KindTrailers,
		contentType: ct,
		length:      -1,
		write:       fn,
		trailers:    message.Header(trailers).Clone(),
	}
}

// Kind returns the production variant.
func (e *Entity) Kind() Kind { return e.kind }

// ContentType returns the declared media type.
func (e *Entity) ContentType() message.ContentType { return e.contentType }

// Trailers returns a copy of the trailer fields sent after the last chunk.
func (e *Entity) Trailers() message.Header { return e.trailers.Clone() }

// ContentLength returns the declared length and whether it is known.
func (e *Entity) ContentLength() (int64, bool) {
	return e.length, e.length >= 0
}

// Chunked reports whether the body is framed with chunked transfer-coding.
func (e *Entity) Chunked() bool {
	return e.length < 0
}

// Repeatable reports whether Produce may be called more than once.
func (e *Entity) Repeatable() bool {
	return e.write == nil
}

// FramingHeaders returns the fields that describe this body on the wire.
func (e *Entity) FramingHeaders() message.Header {
	var h message.Header
	if !e.contentType.IsZero() {
		h.Add("Content-Type", e.contentType.String())
	}
	if e.Chunked() {
		h.Add("Transfer-Encoding", "chunked")
		if names := e.trailers.Names(); len(names) > 0 {
			h.Add("Trailer", strings.Join(names, ", "))
		}
	} else {
		h.Add("Content-Length", strconv.FormatInt(e.length, 10))
	}
	return h
}

// Produce writes the framed body to w: exactly the declared bytes for a
// known length, otherwise chunks, the terminal chunk and any trailers.
func (e *Entity) Produce(w io.Writer) error {
	if e.write != nil && e.consumed.Swap(true) {
		return ErrConsumed
	}
	switch e.kind {
	case KindFixed:
		return e.produceFixed(w)
	case KindStream:
		if e.length >= 0 {
			return e.produceSized(w)
		}
		return e.produceChunked(w, nil)
	case KindTrailers:
		return e.produceChunked(w, e.trailers)
	default:
		return fmt.Errorf("entity: unknown kind %d", e.kind)
	}
}

func (e *Entity) produceFixed(w io.Writer) error {
	lw := wire.NewLengthWriter(w, e.length)
	if _, err := lw.Write(e.data); err != nil {
		return err
	}
	return lw.Finish()
}

func (e *Entity) produceSized(w io.Writer) error {
	lw := wire.NewLengthWriter(w, e.length)
	if err := e.write(lw); err != nil {
		return fmt.Errorf("entity: write callback: %w", err)
	}
	return lw.Finish()
}

func (e *Entity) produceChunked(w io.Writer, trailers message.Header) error {
	cw := wire.NewChunkedWriter(w)
	if e.write != nil {
		if err := e.write(cw); err != nil {
			return fmt.Errorf("entity: write callback: %w", err)
		}
	} else if _, err := cw.Write(e.data); err != nil {
		return err
	}
	return cw.Finish(trailers)
}

// Bytes returns the content of a fixed or trailer-bearing text entity.
// Streaming entities return nil.
func (e *Entity) Bytes() []byte {
	if e.write != nil {
		return nil
	}
	return bytes.Clone(e.data)
}
