package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/helpdesk-rag/internal/provider"
)

// LLMPinger probes the chat model backend with its token-free health check.
// It satisfies the Pinger interface and is used by GET /api/ready.
type LLMPinger struct {
	healthCheck provider.HealthCheckConfig
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger. It returns nil when the backend has no
// health check, so callers skip registering it.
func NewLLMPinger(hc provider.HealthCheckConfig, name string) *LLMPinger {
	if hc == nil {
		return nil
	}
	return &LLMPinger{healthCheck: hc, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping runs the backend's model-listing probe.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if err := p.healthCheck.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%s health check failed: %w", p.name, err)
	}
	return nil
}

// QdrantPinger probes Qdrant and checks that the knowledge-base collection
// exists. Without the collection every question would be rejected as
// no_documents_found, so a missing collection is reported as not ready.
type QdrantPinger struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantPinger constructs a QdrantPinger for client and collection.
func NewQdrantPinger(client *qdrant.Client, collection string) *QdrantPinger {
	return &QdrantPinger{client: client, collection: collection}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC, then looks up the collection.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	exists, err := p.client.CollectionExists(ctx, p.collection)
	if err != nil {
		return fmt.Errorf("collection lookup failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("collection %q does not exist, run helpdesk ingest", p.collection)
	}
	return nil
}

// pingFunc is a dependency probe with a name, e.g. session.RedisMemory.Ping.
type pingFunc struct {
	name string
	fn   func(context.Context) error
}

// NewPingFunc adapts fn into a Pinger.
func NewPingFunc(name string, fn func(context.Context) error) Pinger {
	return &pingFunc{name: name, fn: fn}
}

func (p *pingFunc) Name() string                   { return p.name }
func (p *pingFunc) Ping(ctx context.Context) error { return p.fn(ctx) }
