package ranking

import (
	"log/slog"
	"math"
)

// DefaultVectorWeight and DefaultBM25Weight split the hybrid score 70/30
// between semantic similarity and keyword matching.
const (
	DefaultVectorWeight = 0.7
	DefaultBM25Weight   = 0.3
)

// weightTolerance is how far the weight sum may drift from 1.0 before the
// weights are renormalized.
const weightTolerance = 0.001

// Weights are the fusion weights for the vector and BM25 series.
type Weights struct {
	Vector float64
	BM25   float64
}

// DefaultWeights returns the 0.7/0.3 split.
func DefaultWeights() Weights {
	return Weights{Vector: DefaultVectorWeight, BM25: DefaultBM25Weight}
}

// Normalized returns w scaled so that Vector+BM25 == 1. The second return
// value reports whether any scaling was needed. Non-positive sums fall back
// to DefaultWeights.
func (w Weights) Normalized() (Weights, bool) {
	sum := w.Vector + w.BM25
	if math.Abs(sum-1.0) <= weightTolerance {
		return w, false
	}
	if sum <= 0 || w.Vector < 0 || w.BM25 < 0 {
		return DefaultWeights(), true
	}
	return Weights{Vector: w.Vector / sum, BM25: w.BM25 / sum}, true
}

// Normalize min-max scales scores into [0,1]. When every score is equal the
// result is all 1.0.
func Normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	if hi == lo {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

// Fuse normalizes both series independently and returns their weighted sum
// per index. Weights that do not sum to 1 are renormalized and a warning is
// logged. When the series differ in length the result has the shorter length.
func Fuse(vectorScores, bm25Scores []float64, w Weights) []float64 {
	nw, adjusted := w.Normalized()
	if adjusted {
		slog.Warn("ranking: fusion weights do not sum to 1.0, renormalizing",
			"vector_weight", w.Vector,
			"bm25_weight", w.BM25,
			"effective_vector_weight", nw.Vector,
			"effective_bm25_weight", nw.BM25,
		)
	}
	return fuse(vectorScores, bm25Scores, nw)
}

// fuse assumes w is already normalized.
func fuse(vectorScores, bm25Scores []float64, w Weights) []float64 {
	n := min(len(vectorScores), len(bm25Scores))
	v := Normalize(vectorScores[:n])
	k := Normalize(bm25Scores[:n])
	out := make([]float64, n)
	for i := range out {
		out[i] = w.Vector*v[i] + w.BM25*k[i]
	}
	return out
}
