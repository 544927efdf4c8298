package requester

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/torosent/h1exec/internal/conn"
	"github.com/torosent/h1exec/internal/message"
	"github.com/torosent/h1exec/internal/wire"
)

func TestError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := fmt.Errorf("outer: %w", &Error{Kind: KindWrite, Op: "write body", Err: cause})

	if !errors.Is(err, ErrWrite) {
		t.Error("Expected ErrWrite to match")
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrProtocol) {
		t.Error("Unexpected sentinel match")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be reachable")
	}
	if KindOf(err) != KindWrite {
		t.Errorf("KindOf = %s", KindOf(err))
	}
	if KindOf(cause) != 0 {
		t.Error("KindOf on a foreign error should be 0")
	}
	if got := (&Error{Kind: KindTimeout, Op: "read head", Err: cause}).Error(); got != "timeout read head: cause" {
		t.Errorf("Error() = %q", got)
	}
}

func TestClassify(t *testing.T) {
	if classifyRead(os.ErrDeadlineExceeded) != KindTimeout {
		t.Error("deadline should classify as timeout")
	}
	if classifyRead(wire.ErrMalformed) != KindProtocol {
		t.Error("malformed should classify as protocol")
	}
	if classifyWrite(fmt.Errorf("x: %w", os.ErrDeadlineExceeded)) != KindTimeout {
		t.Error("write deadline should classify as timeout")
	}
	if classifyWrite(wire.ErrLengthMismatch) != KindWrite {
		t.Error("length mismatch should classify as write")
	}
}

func TestKeepAlivePermitted(t *testing.T) {
	v11 := wire.StatusLine{Proto: "HTTP/1.1", Major: 1, Minor: 1, Code: 200}
	v10 := wire.StatusLine{Proto: "HTTP/1.0", Major: 1, Minor: 0, Code: 200}
	length := wire.Framing{Kind: wire.FramingLength, Length: 1}

	tests := []struct {
		name   string
		sent   message.Header
		status wire.StatusLine
		header message.Header
		f      wire.Framing
		want   bool
	}{
		{"1.1 default", nil, v11, nil, length, true},
		{"1.1 close", nil, v11, message.NewHeader("Connection", "close"), length, false},
		{"1.1 close among tokens", nil, v11, message.NewHeader("Connection", "Upgrade, Close"), length, false},
		{"1.0 default", nil, v10, nil, length, false},
		{"1.0 keep-alive", nil, v10, message.NewHeader("Connection", "keep-alive"), length, true},
		{"request close", message.NewHeader("Connection", "close"), v11, nil, length, false},
		{"close delimited", nil, v11, nil, wire.Framing{Kind: wire.FramingClose, Length: -1}, false},
		{"conflicting", nil, v11, nil, wire.Framing{Kind: wire.FramingChunked, Length: -1, Conflicting: true}, false},
		{"switching protocols", nil, wire.StatusLine{Major: 1, Minor: 1, Code: 101}, nil, wire.Framing{Kind: wire.FramingNone}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keepAlivePermitted(tt.sent, tt.status, tt.header, tt.f); got != tt.want {
				t.Errorf("keepAlivePermitted = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListeners_FanOut(t *testing.T) {
	var order []string
	mk := func(name string, err error) StreamListener {
		return ListenerFuncs{
			RequestHead: func(c *conn.Connection, req *Request) error {
				order = append(order, name+":request")
				return err
			},
			ExchangeComplete: func(c *conn.Connection, keepAlive bool) error {
				order = append(order, name+":complete")
				return err
			},
		}
	}
	boom := errors.New("boom")
	ls := Listeners{mk("a", nil), mk("b", boom), mk("c", nil)}

	if err := ls.OnRequestHead(nil, &Request{}); !errors.Is(err, boom) {
		t.Errorf("Expected first error, got %v", err)
	}
	if err := ls.OnResponseHead(nil, &Response{}); err != nil {
		t.Errorf("nil ResponseHead funcs should be no-ops, got %v", err)
	}
	if err := ls.OnExchangeComplete(nil, true); !errors.Is(err, boom) {
		t.Errorf("Expected joined error, got %v", err)
	}
	want := []string{"a:request", "b:request", "a:complete", "b:complete", "c:complete"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}
