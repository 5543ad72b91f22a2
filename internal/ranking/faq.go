package ranking

import (
	"slices"
	"sort"
)

const (
	// faqOverlapThreshold is the share of query words that must appear in a
	// FAQ question for the document to be boosted. The comparison is strict.
	faqOverlapThreshold = 0.6

	// faqBoost is added to the similarity score of a matching document.
	faqBoost = 0.15
)

// BoostFAQ raises the vector score of every result whose FAQ questions
// overlap the query by more than 60% of the query's words. Each document is
// boosted at most once, capped at 1.0, and tagged TagFAQ. The returned copy
// is sorted by vector score descending, ties in input order.
func BoostFAQ(query string, results []Result) []Result {
	out := slices.Clone(results)
	qWords := wordSet(query)

	for i := range out {
		res := &out[i]
		for _, faq := range res.Metadata.FAQQuestions {
			if overlapRatio(qWords, wordSet(faq)) > faqOverlapThreshold {
				res.VectorScore = capScore(res.VectorScore + faqBoost)
				res.Score = res.VectorScore
				res.addBoost(TagFAQ)
				break
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].VectorScore > out[j].VectorScore
	})
	return out
}

// overlapRatio returns |q ∩ f| / |q|, or 0 for an empty query.
func overlapRatio(q, f map[string]struct{}) float64 {
	if len(q) == 0 {
		return 0
	}
	shared := 0
	for w := range q {
		if _, ok := f[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(q))
}

func wordSet(s string) map[string]struct{} {
	tokens := tokenize(s)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
