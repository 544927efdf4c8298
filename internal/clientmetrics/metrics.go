package clientmetrics

import (
	"sync"
	"time"
)

// ClientMetrics tracks traffic and exchange statistics for one connection.
type ClientMetrics struct {
	mu          sync.Mutex
	connectTime time.Time
	exchanges   int64
	reuses      int64
	bytesSent   int64
	bytesRecv   int64
	errors      int64
}

// New creates a new ClientMetrics instance.
func New() *ClientMetrics {
	return &ClientMetrics{}
}

// MarkConnected records the connection time.
func (m *ClientMetrics) MarkConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectTime = time.Now()
}

// AddSent adds to the bytes-sent counter.
func (m *ClientMetrics) AddSent(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytesSent += bytes
}

// AddReceived adds to the bytes-received counter.
func (m *ClientMetrics) AddReceived(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytesRecv += bytes
}

// IncrementExchanges counts a started exchange; reused marks that the
// connection came out of the pool rather than being freshly dialed.
func (m *ClientMetrics) IncrementExchanges(reused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges++
	if reused {
		m.reuses++
	}
}

// IncrementErrors increments the error counter.
func (m *ClientMetrics) IncrementErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// Reset clears the connection time (used when disconnecting).
func (m *ClientMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectTime = time.Time{}
}

// ConnectionDuration returns the duration since connection was established.
// Returns 0 if not connected.
func (m *ClientMetrics) ConnectionDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectTime.IsZero() {
		return 0
	}
	return time.Since(m.connectTime)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	ConnectionDuration time.Duration `json:"connection_duration"`
	Exchanges          int64         `json:"exchanges"`
	Reuses             int64         `json:"reuses"`
	BytesSent          int64         `json:"bytes_sent"`
	BytesReceived      int64         `json:"bytes_received"`
	Errors             int64         `json:"errors"`
}

// Snapshot returns a consistent snapshot of all metrics.
func (m *ClientMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := time.Duration(0)
	if !m.connectTime.IsZero() {
		duration = time.Since(m.connectTime)
	}

	return Snapshot{
		ConnectionDuration: duration,
		Exchanges:          m.exchanges,
		Reuses:             m.reuses,
		BytesSent:          m.bytesSent,
		BytesReceived:      m.bytesRecv,
		Errors:             m.errors,
	}
}
