package requester_test

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/torosent/h1exec/internal/conn"
	"github.com/torosent/h1exec/internal/message"
	"github.com/torosent/h1exec/internal/requester"
)

// recorder is a StreamListener that keeps an ordered event log.
type recorder struct {
	mu        sync.Mutex
	events    []string
	keepAlive []bool
	connIDs   []string

	failRequest  error
	failResponse error
	failComplete error
}

func (r *recorder) OnRequestHead(c *conn.Connection, req *requester.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "request "+req.RequestLine())
	r.connIDs = append(r.connIDs, c.ID())
	return r.failRequest
}

func (r *recorder) OnResponseHead(c *conn.Connection, resp *requester.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("response %d", resp.StatusCode))
	return r.failResponse
}

func (r *recorder) OnExchangeComplete(c *conn.Connection, keepAlive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("complete %v", keepAlive))
	r.keepAlive = append(r.keepAlive, keepAlive)
	return r.failComplete
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) KeepAlive() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.keepAlive...)
}

func (r *recorder) ConnIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.connIDs...)
}

// scriptedServer accepts raw TCP connections and hands each to handle.
type scriptedServer struct {
	ln       net.Listener
	accepted atomic.Int32

	mu    sync.Mutex
	conns []net.Conn
}

func newScriptedServer(t *testing.T, handle func(c net.Conn)) *scriptedServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &scriptedServer{ln: ln}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			s.accepted.Add(1)
			s.mu.Lock()
			s.conns = append(s.conns, c)
			s.mu.Unlock()
			go handle(c)
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, c := range s.conns {
			c.Close()
		}
	})
	return s
}

func (s *scriptedServer) Host(t *testing.T) message.Host {
	t.Helper()
	h, err := message.ParseHost(s.ln.Addr().String())
	if err != nil {
		t.Fatalf("parse host: %v", err)
	}
	return h
}

// respondWith answers every request on a connection with raw. With
// closeAfter the connection is closed after the first response.
func respondWith(raw string, closeAfter bool) func(net.Conn) {
	return func(c net.Conn) {
		defer c.Close()
		br := bufio.NewReader(c)
		for {
			req, err := http.ReadRequest(br)
			if err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, req.Body)
			req.Body.Close()
			if _, err := io.WriteString(c, raw); err != nil {
				return
			}
			if closeAfter {
				return
			}
		}
	}
}

// captureRequest parses one request, reports it, and answers 200 with an
// empty body.
func captureRequest(got chan<- *http.Request, bodies chan<- string) func(net.Conn) {
	return func(c net.Conn) {
		defer c.Close()
		br := bufio.NewReader(c)
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}
		body, _ := io.ReadAll(req.Body)
		req.Body.Close()
		got <- req
		if bodies != nil {
			bodies <- string(body)
		}
		_, _ = io.WriteString(c, "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
		_, _ = io.Copy(io.Discard, br)
	}
}

func newRequester(t *testing.T, l requester.StreamListener) *requester.Requester {
	t.Helper()
	r := requester.New(requester.Options{Listener: l})
	t.Cleanup(func() { r.Close() })
	return r
}

func readAll(t *testing.T, resp *requester.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}
