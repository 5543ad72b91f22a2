package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/agent"
	"github.com/54b3r/helpdesk-rag/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// QueryTimeout bounds a single POST /api/query. Defaults to 2 minutes.
	QueryTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// RoleKeys maps API keys to caller roles. Requests without a key are
	// anonymous; a key missing from the map is rejected with 401.
	RoleKeys map[string]access.Role
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// answerer is what the query and session handlers call.
// *agent.Agent satisfies it; tests inject a fake.
type answerer interface {
	AnswerQuery(ctx context.Context, req agent.Request) (*agent.Response, error)
	ClearSession(ctx context.Context, sessionID string) (bool, error)
}

// Server is the HTTP server that exposes the helpdesk agent.
type Server struct {
	// answerer handles queries and session clears.
	answerer answerer
	// sessions backs the read-only session endpoints.
	sessions session.Memory
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// SessionID continues an existing conversation when set.
	SessionID string `json:"session_id,omitempty"`
	// TopK overrides the retrieval depth; must be within 1..20 when set.
	TopK *int `json:"top_k,omitempty"`
	// IncludeSources appends the citations block to the answer.
	IncludeSources bool `json:"include_sources"`
}

// sessionListResponse is the JSON response for GET /api/sessions.
type sessionListResponse struct {
	Sessions []string `json:"sessions"`
	Total    int      `json:"total"`
}

// sessionInfoResponse is the JSON response for GET /api/sessions/{id}.
type sessionInfoResponse struct {
	SessionID    string `json:"session_id"`
	Exists       bool   `json:"exists"`
	MessageCount int    `json:"message_count"`
	// TTL is the remaining lifetime in seconds, null when expired.
	TTL *int64 `json:"ttl"`
}

// historyResponse is the JSON response for GET /api/sessions/{id}/history.
type historyResponse struct {
	SessionID    string            `json:"session_id"`
	Messages     []session.Message `json:"messages"`
	MessageCount int               `json:"message_count"`
	TTL          *int64            `json:"ttl"`
}

// clearResponse is the JSON response for DELETE /api/sessions/{id}.
type clearResponse struct {
	SessionID string `json:"session_id"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
}
