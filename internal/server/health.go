package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/helpdesk-rag/internal/logging"
	"github.com/54b3r/helpdesk-rag/internal/version"
)

// probeTimeout bounds each dependency probe so /api/ready answers quickly
// even when a dependency hangs.
const probeTimeout = 5 * time.Second

// Readiness states reported by GET /api/ready.
const (
	statusOK          = "ok"
	statusDegraded    = "degraded"
	statusUnavailable = "unavailable"
)

// Pinger reports whether one dependency is reachable. Implementations must
// be safe for concurrent use.
type Pinger interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error
	// Name is the label used in readiness responses (e.g. "ollama", "qdrant").
	Name() string
}

// optionalPinger wraps a Pinger whose failure degrades the service without
// making it unready.
type optionalPinger struct {
	Pinger
}

// Optional marks p as non-critical: when it fails /api/ready still returns
// 200 with status "degraded".
func Optional(p Pinger) Pinger {
	return optionalPinger{p}
}

func isOptional(p Pinger) bool {
	_, ok := p.(optionalPinger)
	return ok
}

type readyCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Optional  bool   `json:"optional,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type readyResponse struct {
	// Ready is false only when a required dependency failed.
	Ready   bool         `json:"ready"`
	Status  string       `json:"status"`
	Version string       `json:"version"`
	Checks  []readyCheck `json:"checks"`
}

// handleHealth handles GET /api/health. It never touches dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":     statusOK,
		"version":    version.Version,
		"commit":     version.Commit,
		"build_date": version.BuildDate,
	})
}

// handleReady handles GET /api/ready. All probes run concurrently; checks are
// reported in registration order. A failed required probe answers 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	checks := probeAll(r.Context(), s.pingers)

	resp := readyResponse{Ready: true, Status: statusOK, Version: version.Version, Checks: checks}
	for _, c := range checks {
		if c.OK {
			continue
		}
		log.Warn("readiness probe failed",
			slog.String("dependency", c.Name),
			slog.Bool("optional", c.Optional),
			slog.String("error", c.Error),
		)
		if c.Optional {
			if resp.Ready {
				resp.Status = statusDegraded
			}
			continue
		}
		resp.Ready = false
		resp.Status = statusUnavailable
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

// probeAll pings every dependency in parallel, each under probeTimeout.
func probeAll(ctx context.Context, pingers []Pinger) []readyCheck {
	checks := make([]readyCheck, len(pingers))
	var g errgroup.Group
	for i, p := range pingers {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(pctx)
			c := readyCheck{
				Name:      p.Name(),
				OK:        err == nil,
				Optional:  isOptional(p),
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				c.Error = err.Error()
			}
			checks[i] = c
			return nil
		})
	}
	_ = g.Wait()
	return checks
}
