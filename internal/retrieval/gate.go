// Package retrieval implements the retrieval gate: a single role-filtered
// search followed by FAQ boosting, optional hybrid re-ranking, and the
// similarity and authorization checks that turn weak or forbidden results
// into a typed Rejection instead of an answer.
package retrieval

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/logging"
	"github.com/54b3r/helpdesk-rag/internal/rag"
	"github.com/54b3r/helpdesk-rag/internal/ranking"
)

var tracer = otel.Tracer("github.com/54b3r/helpdesk-rag/internal/retrieval")

// Gate runs retrieval for one query at a time. It holds no per-query state
// and is safe for concurrent use.
type Gate struct {
	searcher rag.Searcher
	ranker   *ranking.Ranker
	cfg      Config
}

// NewGate returns a Gate searching through searcher.
func NewGate(searcher rag.Searcher, cfg Config) (*Gate, error) {
	if searcher == nil {
		return nil, fmt.Errorf("retrieval: searcher must not be nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &Gate{
		searcher: searcher,
		ranker:   ranking.New(cfg.Weights, ranking.DefaultMetadataBoosts(), nil),
		cfg:      cfg,
	}, nil
}

type callerRoleKey struct{}

// WithCallerRole records the authenticated role of the caller so rejections
// can address it directly. Anonymous and student callers share a filter and
// are otherwise indistinguishable.
func WithCallerRole(ctx context.Context, role access.Role) context.Context {
	return context.WithValue(ctx, callerRoleKey{}, role)
}

// callerRole returns the role from ctx when it produces filter, and the role
// inferred from filter otherwise.
func callerRole(ctx context.Context, filter *access.VisibilityFilter) access.Role {
	if role, ok := ctx.Value(callerRoleKey{}).(access.Role); ok &&
		slices.Equal(access.BuildFilter(role).Values(), filter.Values()) {
		return role
	}
	return access.DetectRole(filter)
}

// Config returns the gate's effective configuration.
func (g *Gate) Config() Config { return g.cfg }

// Retrieve searches for query under filter and classifies the result.
// k <= 0 uses the configured top-k. A vector store failure is returned as
// *Error; rejections are returned as an Outcome with a nil error.
func (g *Gate) Retrieve(ctx context.Context, query string, k int, filter *access.VisibilityFilter) (*Outcome, error) {
	if k <= 0 {
		k = g.cfg.TopK
	}
	logger := logging.FromContext(ctx).With("component", "retrieval")

	ctx, span := tracer.Start(ctx, "retrieval.Retrieve", trace.WithAttributes(
		attribute.Int("retrieval.k", k),
		attribute.StringSlice("retrieval.visibility", filter.Values()),
	))
	defer span.End()

	hits, err := g.search(ctx, query, k, filter)
	if err != nil {
		span.RecordError(err)
		return nil, &Error{Op: "search", Err: err}
	}

	if len(hits) == 0 {
		rej := g.classifyEmpty(ctx, query, filter)
		span.SetAttributes(attribute.String("retrieval.rejection", string(rej.Reason)))
		logger.Info("retrieval: no documents", "reason", rej.Reason, "k", k)
		return &Outcome{Threshold: g.cfg.Threshold, Rejection: rej}, nil
	}

	results := ranking.BoostFAQ(query, ranking.FromDocuments(hits))
	if g.cfg.Hybrid {
		results = g.ranker.Rerank(query, results)
		results = g.ranker.BoostByMetadata(query, results)
	}

	out := &Outcome{Results: results, Threshold: g.cfg.Threshold}
	out.Summary = summarize(out.SimilarityScores())

	if out.Summary.Max < g.cfg.Threshold {
		out.Rejection = &Rejection{
			Reason:    ReasonLowSimilarity,
			MaxScore:  out.Summary.Max,
			Threshold: g.cfg.Threshold,
		}
		span.SetAttributes(attribute.String("retrieval.rejection", string(ReasonLowSimilarity)))
		logger.Warn("retrieval: similarity threshold not met",
			"max_score", out.Summary.Max,
			"threshold", g.cfg.Threshold,
		)
		return out, nil
	}

	span.SetAttributes(attribute.Int("retrieval.documents", len(results)))
	logger.Info("retrieval: documents accepted",
		"documents", len(results),
		"max_score", out.Summary.Max,
		"hybrid", g.cfg.Hybrid,
	)
	return out, nil
}

// classifyEmpty decides between no_documents_found and
// insufficient_permissions. Probe failures fall back to no_documents_found.
func (g *Gate) classifyEmpty(ctx context.Context, query string, filter *access.VisibilityFilter) *Rejection {
	noDocs := &Rejection{Reason: ReasonNoDocuments}
	if !g.cfg.Probe || filter == nil {
		return noDocs
	}
	role := callerRole(ctx, filter)
	if role == access.RoleAdmin {
		return noDocs
	}

	probe, err := g.search(ctx, query, 1, nil)
	if err != nil {
		logging.FromContext(ctx).Error("retrieval: authorization probe failed", "error", err)
		return noDocs
	}
	if len(probe) == 0 {
		return noDocs
	}

	msg, required := access.RejectionMessage(role)
	logging.FromContext(ctx).Warn("retrieval: access denied, data exists above caller role",
		"user_role", role,
		"required_role", required,
	)
	return &Rejection{
		Reason:       ReasonInsufficientPermission,
		UserRole:     role,
		RequiredRole: required,
		Message:      msg,
	}
}

// search calls the searcher under the configured timeout.
func (g *Gate) search(ctx context.Context, query string, k int, filter *access.VisibilityFilter) ([]rag.Document, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}
	return g.searcher.SimilaritySearch(ctx, query, k, filter)
}
