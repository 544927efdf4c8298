package pool

import (
	"errors"
	"strings"
	"sync"

	"github.com/torosent/h1exec/internal/message"
)

// Poolable represents any connection that can be parked and handed out again.
type Poolable interface {
	Key() string
	Reusable() bool
	Close() error
}

// ConnectionPool keeps idle connections keyed by endpoint. Acquire and
// release are serialized through a mutex. Put is fail-closed: anything that
// is not reusable, or does not fit, is closed instead of parked.
type ConnectionPool[C Poolable] struct {
	mu     sync.Mutex
	idle   map[string][]C
	size   int // max idle connections per key
	closed bool
}

// NewConnectionPool creates a new connection pool with the specified max idle size per key.
func NewConnectionPool[C Poolable](size int) *ConnectionPool[C] {
	if size <= 0 {
		size = 10 // default size
	}
	return &ConnectionPool[C]{
		idle: make(map[string][]C),
		size: size,
	}
}

// Get takes the most recently parked reusable connection for key.
// ok is false when there is none and the caller should dial.
func (p *ConnectionPool[C]) Get(key string) (client C, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.idle[key]
	for len(list) > 0 {
		client = list[len(list)-1]
		list = list[:len(list)-1]
		if client.Reusable() {
			p.idle[key] = list
			return client, true
		}
		_ = client.Close()
	}
	delete(p.idle, key)
	var zero C
	return zero, false
}

// Put returns a connection to the pool for reuse.
// If it is not reusable, the pool is full or closed, the connection is closed instead.
func (p *ConnectionPool[C]) Put(client C) error {
	if !client.Reusable() {
		return client.Close()
	}

	p.mu.Lock()
	key := client.Key()
	if p.closed || len(p.idle[key]) >= p.size {
		p.mu.Unlock()
		return client.Close()
	}
	p.idle[key] = append(p.idle[key], client)
	p.mu.Unlock()
	return nil
}

// Len reports the number of idle connections parked for key.
func (p *ConnectionPool[C]) Len(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[key])
}

// CloseIdle closes every parked connection but keeps the pool usable.
func (p *ConnectionPool[C]) CloseIdle() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = make(map[string][]C)
	p.mu.Unlock()
	return closeAll(idle)
}

// Close closes all connections in all pools. Later Puts close their argument.
func (p *ConnectionPool[C]) Close() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = make(map[string][]C)
	p.closed = true
	p.mu.Unlock()
	return closeAll(idle)
}

func closeAll[C Poolable](idle map[string][]C) error {
	var errs []error
	for _, list := range idle {
		for _, client := range list {
			if err := client.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// MakePoolKey generates a deterministic key for an origin endpoint.
func MakePoolKey(target message.Host) string {
	var sb strings.Builder
	scheme := target.Scheme
	if scheme == "" {
		scheme = "http"
	}
	sb.WriteString(strings.ToLower(scheme))
	sb.WriteString("://")
	sb.WriteString(strings.ToLower(target.Address()))
	return sb.String()
}
