// Package session carries correlation state across the sequential exchanges
// of one logical session.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/h1exec/internal/message"
)

// ErrInUse is returned by Begin when another exchange already holds the context.
var ErrInUse = errors.New("session: context already in use by another exchange")

// Context is threaded through one chain of sequential exchanges. It must
// not be shared by exchanges running at the same time; Begin enforces that.
type Context struct {
	// Target is the default origin for exchanges that do not name one.
	Target message.Host
	// Timeout is the default inactivity bound for exchanges that do not set one.
	Timeout time.Duration

	id string

	mu         sync.Mutex
	inUse      bool
	attrs      map[string]any
	exchanges  int
	lastStatus int
	lastConnID string
}

// New creates a session context with a fresh id.
func New(target message.Host, timeout time.Duration) *Context {
	return &Context{
		Target:  target,
		Timeout: timeout,
		id:      ulid.Make().String(),
		attrs:   make(map[string]any),
	}
}

// ID returns the session identifier.
func (c *Context) ID() string {
	return c.id
}

// Begin claims the context for one exchange.
func (c *Context) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inUse {
		return ErrInUse
	}
	c.inUse = true
	return nil
}

// End releases the claim taken by Begin.
func (c *Context) End() {
	c.mu.Lock()
	c.inUse = false
	c.mu.Unlock()
}

// Record notes a received response head.
func (c *Context) Record(connID string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges++
	c.lastStatus = status
	c.lastConnID = connID
}

// Exchanges returns how many responses the session has received.
func (c *Context) Exchanges() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exchanges
}

// LastStatus returns the status code of the most recent response, or 0.
func (c *Context) LastStatus() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStatus
}

// LastConnectionID returns the id of the connection that carried the most
// recent response.
func (c *Context) LastConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastConnID
}

// Set stores a session attribute. A nil value removes the key.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attrs == nil {
		c.attrs = make(map[string]any)
	}
	if value == nil {
		delete(c.attrs, key)
		return
	}
	c.attrs[key] = value
}

// Get returns a session attribute.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.attrs[key]
	return v, ok
}
