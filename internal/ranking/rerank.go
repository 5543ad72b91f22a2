package ranking

import (
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/54b3r/helpdesk-rag/internal/rag"
)

// Boost tags recorded in Result.Boosts.
const (
	TagFAQ      = "faq_boosted"
	TagKeywords = "keywords"
	TagCategory = "category"
	TagPlatform = "platform"
)

// Result is a retrieved document annotated with its ranking scores.
type Result struct {
	rag.Document

	// VectorScore is the cosine similarity reported by the vector store,
	// including any FAQ boost.
	VectorScore float64 `json:"vector_score"`

	// BM25Score is the raw BM25 score for the query.
	BM25Score float64 `json:"bm25_score"`

	// HybridScore is the fused score plus metadata boosts, in [0,1].
	HybridScore float64 `json:"hybrid_score"`

	// Boosts lists the boost tags applied to this result.
	Boosts []string `json:"boost_applied,omitempty"`
}

// HasBoost reports whether tag was applied.
func (r Result) HasBoost(tag string) bool {
	return slices.Contains(r.Boosts, tag)
}

func (r *Result) addBoost(tag string) {
	if !r.HasBoost(tag) {
		r.Boosts = append(r.Boosts, tag)
	}
}

// FromDocuments wraps vector search hits in Results, using each document's
// score as both its vector and hybrid score.
func FromDocuments(docs []rag.Document) []Result {
	out := make([]Result, len(docs))
	for i, d := range docs {
		out[i] = Result{Document: d, VectorScore: d.Score, HybridScore: d.Score}
	}
	return out
}

// MetadataBoosts are the additive boosts applied by BoostByMetadata.
type MetadataBoosts struct {
	// Keywords is added once per matching keyword.
	Keywords float64
	Category float64
	Platform float64
}

// DefaultMetadataBoosts returns keywords 0.15, category 0.10, platform 0.05.
func DefaultMetadataBoosts() MetadataBoosts {
	return MetadataBoosts{Keywords: 0.15, Category: 0.10, Platform: 0.05}
}

// Ranker applies hybrid re-ranking with fixed weights and boosts.
type Ranker struct {
	weights Weights
	boosts  MetadataBoosts
	logger  *slog.Logger
}

// New returns a Ranker using w, renormalized if its components do not sum
// to 1. A nil logger uses slog.Default.
func New(w Weights, boosts MetadataBoosts, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	nw, adjusted := w.Normalized()
	if adjusted {
		logger.Warn("ranking: fusion weights do not sum to 1.0, renormalizing",
			"vector_weight", w.Vector,
			"bm25_weight", w.BM25,
			"effective_vector_weight", nw.Vector,
			"effective_bm25_weight", nw.BM25,
		)
	}
	return &Ranker{weights: nw, boosts: boosts, logger: logger}
}

// Weights returns the effective, normalized fusion weights.
func (r *Ranker) Weights() Weights { return r.weights }

// Rerank scores results with BM25 against query, fuses the BM25 and vector
// series, and returns a copy sorted by hybrid score descending. Ties keep
// their input order.
func (r *Ranker) Rerank(query string, results []Result) []Result {
	out := slices.Clone(results)
	if len(out) == 0 {
		return out
	}

	contents := make([]string, len(out))
	vector := make([]float64, len(out))
	for i, res := range out {
		contents[i] = res.Content
		vector[i] = res.VectorScore
	}
	bm25 := ScoreBM25(query, contents)
	hybrid := fuse(vector, bm25, r.weights)

	for i := range out {
		out[i].BM25Score = bm25[i]
		out[i].HybridScore = hybrid[i]
	}
	sortByHybrid(out)

	top := out[0]
	r.logger.Debug("ranking: hybrid rerank",
		"top_hybrid", top.HybridScore,
		"top_vector", top.VectorScore,
		"top_bm25", top.BM25Score,
		"results", len(out),
	)
	return out
}

// BoostByMetadata adds the configured boosts to each result's hybrid score
// when the lowercased query contains one of its keywords, its category, or
// its platform. Scores are capped at 1.0 and the copy is re-sorted by hybrid
// score descending.
func (r *Ranker) BoostByMetadata(query string, results []Result) []Result {
	out := slices.Clone(results)
	q := strings.ToLower(query)

	for i := range out {
		res := &out[i]
		meta := res.Metadata

		matches := 0
		for _, kw := range meta.Keywords {
			if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
				matches++
			}
		}
		if matches > 0 {
			res.HybridScore = capScore(res.HybridScore + r.boosts.Keywords*float64(matches))
			res.addBoost(TagKeywords)
		}

		if c := strings.ToLower(meta.Category); c != "" && strings.Contains(q, c) {
			res.HybridScore = capScore(res.HybridScore + r.boosts.Category)
			res.addBoost(TagCategory)
		}

		if p := strings.ToLower(meta.Platform); p != "" && strings.Contains(q, p) {
			res.HybridScore = capScore(res.HybridScore + r.boosts.Platform)
			res.addBoost(TagPlatform)
		}
	}

	sortByHybrid(out)
	return out
}

func sortByHybrid(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].HybridScore > results[j].HybridScore
	})
}

func capScore(s float64) float64 {
	return min(s, 1.0)
}
