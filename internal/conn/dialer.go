package conn

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultConnectTimeout bounds connection establishment when none is configured.
const DefaultConnectTimeout = 10 * time.Second

// Dialer opens new transport connections.
type Dialer struct {
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
	// DialContext overrides the network dial, mainly for tests.
	DialContext func(ctx context.Context, network, addr string) (net.Conn, error)
}

// Connect dials addr and wraps the result as an Idle Connection keyed by key.
func (d *Dialer) Connect(ctx context.Context, key, addr string) (*Connection, error) {
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	keepAlive := d.KeepAlive
	if keepAlive == 0 {
		keepAlive = 30 * time.Second
	}

	dial := d.DialContext
	if dial == nil {
		nd := &net.Dialer{Timeout: timeout, KeepAlive: keepAlive}
		dial = nd.DialContext
	}

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := dial(dctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(raw, key), nil
}
