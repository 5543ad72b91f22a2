package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/54b3r/helpdesk-rag/internal/access"
)

// MemoryStore is a brute-force in-process VectorStore. It is used when
// QDRANT_HOST is unset and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string]Document
	vectors map[string][]float32
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string]Document),
		vectors: make(map[string][]float32),
	}
}

// Upsert stores or replaces docs with their embeddings.
func (m *MemoryStore) Upsert(_ context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("memory store: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range docs {
		m.docs[d.ID] = d
		m.vectors[d.ID] = embeddings[i]
	}
	return nil
}

// Search ranks every stored document passing filter by cosine similarity.
func (m *MemoryStore) Search(ctx context.Context, queryEmbedding []float32, topK int, filter *access.VisibilityFilter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Document, 0, len(m.docs))
	for id, d := range m.docs {
		if !filter.Allows(d.Metadata.Sensitivity) {
			continue
		}
		d.Score = clampScore(cosine(queryEmbedding, m.vectors[id]))
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Delete removes documents by ID. Unknown IDs are ignored.
func (m *MemoryStore) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.docs, id)
		delete(m.vectors, id)
	}
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
