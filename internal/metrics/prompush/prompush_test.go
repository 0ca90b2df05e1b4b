package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"dwh/internal/metrics"
)

type gateway struct {
	mu     sync.Mutex
	method string
	path   string
	body   string
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	g.mu.Lock()
	g.method, g.path, g.body = r.Method, r.URL.Path, string(b)
	g.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func TestNewBackend_RejectsEmptyURL(t *testing.T) {
	t.Parallel()
	if _, err := NewBackend("dwh", " "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestFlush_PushesJobGroup(t *testing.T) {
	t.Parallel()

	gw := &gateway{}
	srv := httptest.NewServer(gw)
	defer srv.Close()

	b, err := NewBackend("sparkify", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "populate_users", "status": "ok"})
	b.IncCounter(metrics.RecordsTotal, 12, metrics.Labels{"kind": "users"})
	b.IncCounter(metrics.RecordsTotal, 3, metrics.Labels{})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.2, metrics.Labels{"step": "populate_users"})
	b.SetGauge(metrics.TableRows, 99, metrics.Labels{"table": "songplays"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.method != http.MethodPut {
		t.Fatalf("method=%s, want PUT", gw.method)
	}
	if gw.path != "/metrics/job/sparkify" {
		t.Fatalf("path=%s", gw.path)
	}
	if gw.body == "" {
		t.Fatalf("empty push body")
	}
}

func TestFlush_GatewayErrorSurfaces(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	err = b.Flush()
	if err == nil || !strings.Contains(err.Error(), "prompush") {
		t.Fatalf("err=%v", err)
	}
}
