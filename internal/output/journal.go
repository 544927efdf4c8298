package output

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"

	"github.com/torosent/h1exec/internal/conn"
	"github.com/torosent/h1exec/internal/requester"
)

// JournalEntry is one line of the exchange journal.
type JournalEntry struct {
	ID            string    `json:"id"`
	Connection    string    `json:"connection"`
	Remote        string    `json:"remote"`
	Request       string    `json:"request"`
	Status        int       `json:"status,omitempty"`
	StatusLine    string    `json:"status_line,omitempty"`
	KeepAlive     bool      `json:"keep_alive"`
	Reused        bool      `json:"reused"`
	Started       time.Time `json:"started"`
	DurationMs    float64   `json:"duration_ms"`
	BytesSent     int64     `json:"bytes_sent"`
	BytesReceived int64     `json:"bytes_received"`
}

// Journal appends a JSON line per completed exchange. Appends take an
// advisory file lock so several processes can share one journal.
type Journal struct {
	path string
	f    *os.File
	lock *flock.Flock
	now  func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingEntry
	closed  bool
}

type pendingEntry struct {
	entry JournalEntry
	sent  int64
	recv  int64
}

var _ requester.StreamListener = (*Journal)(nil)

// OpenJournal opens path for appending, creating it if needed. The lock is
// held on a sibling "<path>.lock" file.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{
		path:    path,
		f:       f,
		lock:    flock.New(path + ".lock"),
		now:     time.Now,
		pending: make(map[string]*pendingEntry),
	}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

func (j *Journal) OnRequestHead(c *conn.Connection, req *requester.Request) error {
	snap := c.Metrics()
	p := &pendingEntry{
		entry: JournalEntry{
			ID:         ulid.Make().String(),
			Connection: c.ID(),
			Remote:     c.String(),
			Request:    req.RequestLine(),
			Reused:     snap.Exchanges > 1,
			Started:    j.now().UTC(),
		},
		sent: snap.BytesSent,
		recv: snap.BytesReceived,
	}
	j.mu.Lock()
	j.pending[c.ID()] = p
	j.mu.Unlock()
	return nil
}

func (j *Journal) OnResponseHead(c *conn.Connection, resp *requester.Response) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if p, ok := j.pending[c.ID()]; ok {
		p.entry.Status = resp.StatusCode
		p.entry.StatusLine = resp.StatusLine()
	}
	return nil
}

func (j *Journal) OnExchangeComplete(c *conn.Connection, keepAlive bool) error {
	j.mu.Lock()
	p, ok := j.pending[c.ID()]
	delete(j.pending, c.ID())
	j.mu.Unlock()
	if !ok {
		return nil
	}

	snap := c.Metrics()
	p.entry.KeepAlive = keepAlive
	p.entry.DurationMs = float64(j.now().Sub(p.entry.Started)) / float64(time.Millisecond)
	p.entry.BytesSent = snap.BytesSent - p.sent
	p.entry.BytesReceived = snap.BytesReceived - p.recv
	return j.Append(p.entry)
}

// Append writes entry as a single line under the file lock.
func (j *Journal) Append(entry JournalEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return os.ErrClosed
	}
	if err := j.lock.Lock(); err != nil {
		return fmt.Errorf("lock journal: %w", err)
	}
	defer j.lock.Unlock()
	if _, err := j.f.Write(line); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// Close flushes and closes the journal. Exchanges still in flight are not
// recorded.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	_ = j.lock.Close()
	return j.f.Close()
}
