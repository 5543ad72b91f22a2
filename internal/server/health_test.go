package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fakePinger is a test double for the Pinger interface.
type fakePinger struct {
	name  string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

// ready runs GET /api/ready against a server with pingers and decodes the body.
func ready(t *testing.T, pingers ...Pinger) (int, readyResponse) {
	t.Helper()
	s := newTestServer()
	s.pingers = pingers

	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return w.Code, resp
}

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d; body: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if body["status"] != statusOK {
		t.Errorf("status: expected %q, got %q", statusOK, body["status"])
	}
	if body["version"] == "" {
		t.Error("version: expected a non-empty value")
	}
}

func TestHandleReady_NoPingers(t *testing.T) {
	t.Parallel()

	code, resp := ready(t)
	if code != http.StatusOK || !resp.Ready || resp.Status != statusOK {
		t.Errorf("expected 200 ready ok, got %d %+v", code, resp)
	}
	if len(resp.Checks) != 0 {
		t.Errorf("expected 0 checks, got %d", len(resp.Checks))
	}
}

func TestHandleReady_AllHealthy(t *testing.T) {
	t.Parallel()

	code, resp := ready(t, &fakePinger{name: "ollama"}, &fakePinger{name: "qdrant"})
	if code != http.StatusOK || !resp.Ready {
		t.Fatalf("expected 200 ready, got %d %+v", code, resp)
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(resp.Checks))
	}
	if resp.Checks[0].Name != "ollama" || resp.Checks[1].Name != "qdrant" {
		t.Errorf("checks not in registration order: %+v", resp.Checks)
	}
	for _, c := range resp.Checks {
		if !c.OK || c.Error != "" {
			t.Errorf("check %q: expected ok with no error, got %+v", c.Name, c)
		}
	}
}

func TestHandleReady_RequiredFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	code, resp := ready(t,
		&fakePinger{name: "ollama"},
		&fakePinger{name: "qdrant", err: errors.New("connection refused")},
	)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if resp.Ready || resp.Status != statusUnavailable {
		t.Errorf("expected ready:false status %q, got %+v", statusUnavailable, resp)
	}
	if c := resp.Checks[1]; c.OK || c.Error != "connection refused" {
		t.Errorf("qdrant check: expected failure with error, got %+v", c)
	}
}

// TestHandleReady_OptionalFailureIsDegraded covers a Redis session store
// outage: the service still answers, so readiness stays 200.
func TestHandleReady_OptionalFailureIsDegraded(t *testing.T) {
	t.Parallel()

	code, resp := ready(t,
		&fakePinger{name: "qdrant"},
		Optional(&fakePinger{name: "redis", err: errors.New("i/o timeout")}),
	)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !resp.Ready || resp.Status != statusDegraded {
		t.Errorf("expected ready:true status %q, got %+v", statusDegraded, resp)
	}
	if c := resp.Checks[1]; c.OK || !c.Optional || c.Name != "redis" {
		t.Errorf("redis check: expected optional failure, got %+v", c)
	}
}

func TestHandleReady_RequiredWinsOverOptional(t *testing.T) {
	t.Parallel()

	code, resp := ready(t,
		Optional(&fakePinger{name: "redis", err: errors.New("down")}),
		&fakePinger{name: "ollama", err: errors.New("down")},
	)
	if code != http.StatusServiceUnavailable || resp.Status != statusUnavailable {
		t.Errorf("expected 503 %q, got %d %q", statusUnavailable, code, resp.Status)
	}
}

// TestProbeAll_Concurrent verifies probes run in parallel rather than
// one after another.
func TestProbeAll_Concurrent(t *testing.T) {
	t.Parallel()

	pingers := []Pinger{
		&fakePinger{name: "a", delay: 200 * time.Millisecond},
		&fakePinger{name: "b", delay: 200 * time.Millisecond},
		&fakePinger{name: "c", delay: 200 * time.Millisecond},
	}
	start := time.Now()
	checks := probeAll(context.Background(), pingers)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("probes took %v; expected them to overlap", elapsed)
	}
	for _, c := range checks {
		if !c.OK || c.LatencyMS < 150 {
			t.Errorf("check %q: expected ok with ~200ms latency, got %+v", c.Name, c)
		}
	}
}

func TestNewPingFunc(t *testing.T) {
	t.Parallel()

	p := NewPingFunc("redis", func(context.Context) error { return errors.New("nope") })
	if p.Name() != "redis" {
		t.Errorf("Name: expected redis, got %q", p.Name())
	}
	if err := p.Ping(context.Background()); err == nil {
		t.Error("expected the wrapped error")
	}
}

func TestNewLLMPinger_NilHealthCheck(t *testing.T) {
	t.Parallel()

	if p := NewLLMPinger(nil, "ark"); p != nil {
		t.Errorf("expected nil pinger for a backend without a health check, got %+v", p)
	}
}

func TestRequestLogger_RequestID(t *testing.T) {
	t.Parallel()

	h := requestLogger(slog.Default(), okHandler)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if got := w.Header().Get(requestIDHeader); len(got) != 16 {
		t.Errorf("generated request id: expected 16 hex chars, got %q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "proxy-abc.123")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "proxy-abc.123" {
		t.Errorf("inbound request id: expected it echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "bad id\nwith newline")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got == "bad id\nwith newline" {
		t.Error("malformed inbound request id was reused")
	}
}
