// Package echoserver is a small httpbin-style origin used to run the h1exec
// demo and integration tests without network access.
package echoserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxBodyBytes bounds how much of a request body is echoed.
const MaxBodyBytes = 1 << 20

// maxDelay caps /delay/{seconds}.
const maxDelay = 10 * time.Second

// Echo is the JSON document returned by /post and /anything.
type Echo struct {
	Method   string            `json:"method"`
	URL      string            `json:"url"`
	Args     map[string]string `json:"args"`
	Headers  map[string]string `json:"headers"`
	Trailers map[string]string `json:"trailers,omitempty"`
	Data     string            `json:"data"`
	JSON     json.RawMessage   `json:"json"`
	Origin   string            `json:"origin"`
	Chunked  bool              `json:"chunked"`
}

// Logger receives one line per served request.
type Logger interface {
	Infof(format string, args ...any)
}

// Handler returns the echo routes:
//
//	POST /post              echo method, headers, body and trailers
//	     /anything          same, for any method
//	GET  /status/{code}     respond with code and an empty body
//	GET  /delay/{seconds}   wait, then echo
func Handler(logger Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /post", echo)
	mux.HandleFunc("/anything", echo)
	mux.HandleFunc("/status/{code}", status)
	mux.HandleFunc("/delay/{seconds}", delay)
	if logger == nil {
		return mux
	}
	return logRequests(mux, logger)
}

func echo(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("read body: %v", err), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, newEcho(r, body))
}

func newEcho(r *http.Request, body []byte) Echo {
	e := Echo{
		Method:   r.Method,
		URL:      "http://" + r.Host + r.URL.RequestURI(),
		Args:     flatten(r.URL.Query()),
		Headers:  flatten(r.Header),
		Trailers: flatten(r.Trailer),
		Data:     encodeData(body, r.Header.Get("Content-Type")),
		JSON:     json.RawMessage("null"),
		Origin:   remoteHost(r.RemoteAddr),
		Chunked:  len(r.TransferEncoding) > 0 && r.TransferEncoding[0] == "chunked",
	}
	e.Headers["Host"] = r.Host
	if len(e.Trailers) == 0 {
		e.Trailers = nil
	}
	if json.Valid(body) {
		e.JSON = json.RawMessage(body)
	}
	return e
}

// encodeData returns text bodies verbatim and anything else as a data URL.
func encodeData(body []byte, contentType string) string {
	if len(body) == 0 {
		return ""
	}
	if utf8.Valid(body) && !strings.HasPrefix(contentType, "application/octet-stream") {
		return string(body)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(body)
}

func status(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || code < 200 || code > 599 {
		http.Error(w, "invalid status code", http.StatusBadRequest)
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, MaxBodyBytes))
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(code)
}

func delay(w http.ResponseWriter, r *http.Request) {
	secs, err := strconv.ParseFloat(r.PathValue("seconds"), 64)
	if err != nil || secs < 0 {
		http.Error(w, "invalid delay", http.StatusBadRequest)
		return
	}
	d := min(time.Duration(secs*float64(time.Second)), maxDelay)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-r.Context().Done():
		return
	}
	echo(w, r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	payload = append(payload, '\n')
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(code)
	_, _ = w.Write(payload)
}

func flatten(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = strings.Join(v, ",")
	}
	return out
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler, logger Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Infof("%s %s %s -> %d (%s)", r.RemoteAddr, r.Method, r.URL.Path, rec.code, time.Since(start).Round(time.Microsecond))
	})
}

// Server serves Handler on a TCP address.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr. Use ":0" for an ephemeral port.
func Listen(addr string, logger Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Server{
		ln: ln,
		srv: &http.Server{
			Handler:           Handler(logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
