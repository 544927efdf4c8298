package requester

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// Kind classifies an exchange failure.
type Kind int

const (
	// KindConnection means the transport could not be established.
	KindConnection Kind = iota + 1
	// KindTimeout means no I/O progress was made within the inactivity bound.
	KindTimeout
	// KindProtocol means the response was malformed or violated framing.
	KindProtocol
	// KindWrite means the request head or entity could not be written.
	KindWrite
	// KindListener means a StreamListener callback returned an error.
	KindListener
)

// Sentinels matched by errors.Is against an *Error of the same Kind.
var (
	ErrConnection = errors.New("connection error")
	ErrTimeout    = errors.New("timeout")
	ErrProtocol   = errors.New("protocol error")
	ErrWrite      = errors.New("write error")
	ErrListener   = errors.New("listener error")
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	case KindWrite:
		return "write"
	case KindListener:
		return "listener"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindTimeout:
		return ErrTimeout
	case KindProtocol:
		return ErrProtocol
	case KindWrite:
		return ErrWrite
	case KindListener:
		return ErrListener
	default:
		return nil
	}
}

// Error reports a failed exchange step.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTimeout) and friends work.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classifyWrite maps a failure while sending the request.
func classifyWrite(err error) Kind {
	if isTimeout(err) {
		return KindTimeout
	}
	return KindWrite
}

// classifyRead maps a failure while receiving the response. Early hang-ups
// and malformed heads or framing are all protocol failures.
func classifyRead(err error) Kind {
	if isTimeout(err) {
		return KindTimeout
	}
	return KindProtocol
}
