package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/torosent/h1exec/internal/message"
	"github.com/torosent/h1exec/internal/metrics"
	"github.com/torosent/h1exec/internal/requester"
)

func TestListenerRecordsExchanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "hello")
	}))
	defer srv.Close()

	target, err := message.ParseHost(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("parse host: %v", err)
	}

	collector := metrics.NewCollector()
	listener := metrics.NewListener(collector)
	r := requester.New(requester.Options{Listener: listener})
	defer r.Close()

	for i := 0; i < 3; i++ {
		resp, err := r.Execute(context.Background(), target, requester.NewRequest("GET", "/", nil), 0, nil)
		if err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
		if _, err := io.ReadAll(resp.Body); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		resp.Close()
	}

	stats := collector.Stats(0)
	if stats.KeptAlive != 3 || stats.Closed != 0 {
		t.Errorf("kept alive %d closed %d, want 3 and 0", stats.KeptAlive, stats.Closed)
	}
	if stats.BytesSent == 0 || stats.BytesReceived == 0 {
		t.Errorf("expected byte counts, got sent %d received %d", stats.BytesSent, stats.BytesReceived)
	}
	if stats.HeadP50Latency <= 0 {
		t.Errorf("expected head latency, got %s", stats.HeadP50Latency)
	}
	if n := listener.InFlight(); n != 0 {
		t.Errorf("in flight = %d, want 0", n)
	}
}
