// Package server implements the HTTP API for the helpdesk agent: question
// answering, session inspection, health and readiness probes, and
// Prometheus metrics. The server is started by the `helpdesk serve` command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/helpdesk-rag/internal/agent"
	"github.com/54b3r/helpdesk-rag/internal/logging"
)

// New constructs a Server from the provided agent and config.
func New(a *agent.Agent, cfg *Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("server: agent must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	applyDefaults(cfg)
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		answerer: a,
		sessions: a.Sessions(),
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
	}

	if len(cfg.RoleKeys) == 0 {
		log.Warn("server: no API keys configured, every caller is anonymous")
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	rl.onLimited = func(kind string) {
		s.metrics.rateLimitedTotal.WithLabelValues(kind).Inc()
	}
	s.stopRL = stop

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.routes(rl)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// applyDefaults fills unset fields of cfg. Zero and negative numbers count as
// unset.
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port <= 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout <= 0 {
		// Must outlast the slowest query.
		cfg.WriteTimeout = cfg.QueryTimeout + 10*time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
}

// routes builds the mux. Query and session routes are authenticated and rate
// limited; probes and metrics are open.
func (s *Server) routes(rl *rateLimiter) *http.ServeMux {
	protect := func(h http.HandlerFunc) http.Handler {
		return rl.middleware(authMiddleware(s.cfg.RoleKeys, h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/query", s.instrument("query", protect(s.handleQuery)))
	mux.Handle("GET /api/sessions", s.instrument("sessions_list", protect(s.handleListSessions)))
	mux.Handle("GET /api/sessions/{id}", s.instrument("session_info", protect(s.handleSessionInfo)))
	mux.Handle("GET /api/sessions/{id}/history", s.instrument("session_history", protect(s.handleSessionHistory)))
	mux.Handle("DELETE /api/sessions/{id}", s.instrument("session_clear", protect(s.handleClearSession)))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	defer s.stopRL()

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError writes an errorResponse.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}
