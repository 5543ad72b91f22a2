// Package ranking implements the hybrid re-ranking applied to vector search
// hits: Okapi BM25 keyword scoring, min-max normalization, weighted fusion,
// metadata boosting, and FAQ-match boosting.
//
// Every function is pure and operates on per-call data, so a single Ranker
// can be shared across concurrent queries.
package ranking

import (
	"math"
	"strings"
)

const (
	// k1 controls term-frequency saturation.
	k1 = 1.5

	// b controls document-length normalization.
	b = 0.75
)

// tokenize lowercases s and splits on whitespace. No stemming.
func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// ScoreBM25 returns the Okapi BM25 score of each document for query.
// The result is parallel to documents. An empty document list yields an empty
// slice; query terms absent from every document contribute nothing.
// Repeated query terms are counted once per occurrence.
func ScoreBM25(query string, documents []string) []float64 {
	scores := make([]float64, len(documents))
	if len(documents) == 0 {
		return scores
	}

	terms := tokenize(query)
	docs := make([]map[string]int, len(documents))
	lengths := make([]int, len(documents))
	total := 0
	for i, d := range documents {
		tokens := tokenize(d)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		docs[i] = tf
		lengths[i] = len(tokens)
		total += len(tokens)
	}
	if total == 0 {
		return scores
	}
	avgdl := float64(total) / float64(len(documents))

	n := float64(len(documents))
	idf := make(map[string]float64, len(terms))
	for _, t := range terms {
		if _, ok := idf[t]; ok {
			continue
		}
		df := 0
		for _, tf := range docs {
			if tf[t] > 0 {
				df++
			}
		}
		idf[t] = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
	}

	for i, tf := range docs {
		norm := k1 * (1 - b + b*float64(lengths[i])/avgdl)
		var score float64
		for _, t := range terms {
			f := float64(tf[t])
			if f == 0 {
				continue
			}
			score += idf[t] * (f * (k1 + 1)) / (f + norm)
		}
		scores[i] = score
	}
	return scores
}
