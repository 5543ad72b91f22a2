package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/54b3r/helpdesk-rag/internal/access"
)

// queryEmbeddingTTL is how long a question's embedding is reused. A gated
// retrieval searches once under the caller's filter and may probe again
// without it, so the same question is embedded at most once per window.
const queryEmbeddingTTL = 5 * time.Minute

// DefaultSearcher implements Searcher by embedding the query and delegating
// to a VectorStore. Query embeddings are cached briefly by normalized text.
type DefaultSearcher struct {
	embedder    Embedder
	store       VectorStore
	defaultTopK int
	queries     *cache.Cache
}

// NewSearcher constructs a DefaultSearcher. defaultTopK is used when
// SimilaritySearch is called with k <= 0.
func NewSearcher(embedder Embedder, store VectorStore, defaultTopK int) (*DefaultSearcher, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 4
	}
	return &DefaultSearcher{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
		queries:     cache.New(queryEmbeddingTTL, 2*queryEmbeddingTTL),
	}, nil
}

// SimilaritySearch returns the top-k documents visible under filter, best
// first, with cosine similarity in Document.Score.
func (r *DefaultSearcher) SimilaritySearch(ctx context.Context, query string, k int, filter *access.VisibilityFilter) ([]Document, error) {
	if k <= 0 {
		k = r.defaultTopK
	}

	vec, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	docs, err := r.store.Search(ctx, vec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	return docs, nil
}

func (r *DefaultSearcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if v, ok := r.queries.Get(key); ok {
		return v.([]float32), nil
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}
	r.queries.SetDefault(key, embeddings[0])
	return embeddings[0], nil
}
