package retrieval

import (
	"errors"
	"fmt"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/rag"
	"github.com/54b3r/helpdesk-rag/internal/ranking"
)

// Reason classifies a rejected retrieval.
type Reason string

const (
	ReasonNoDocuments            Reason = "no_documents_found"
	ReasonLowSimilarity          Reason = "low_similarity"
	ReasonInsufficientPermission Reason = "insufficient_permissions"
)

// Rejection is an expected, non-error retrieval outcome. Only the fields
// relevant to Reason are set.
type Rejection struct {
	Reason Reason

	// MaxScore and Threshold are set for low_similarity.
	MaxScore  float64
	Threshold float64

	// UserRole, RequiredRole and Message are set for insufficient_permissions.
	UserRole     access.Role
	RequiredRole string
	Message      string
}

// ToolText is the text handed back to the model as the retrieve tool result.
func (r *Rejection) ToolText() string {
	switch r.Reason {
	case ReasonLowSimilarity:
		return fmt.Sprintf("No sufficiently relevant documents found. Maximum similarity score (%.2f) is below threshold (%v).", r.MaxScore, r.Threshold)
	case ReasonInsufficientPermission:
		return r.Message
	default:
		return "No relevant documents found in knowledge base."
	}
}

// ScoreSummary aggregates the similarity scores of the final results.
type ScoreSummary struct {
	Max float64 `json:"max_similarity_score"`
	Min float64 `json:"min_similarity_score"`
	Avg float64 `json:"avg_similarity_score"`
}

// summarize returns the summary of scores; zero for an empty slice.
func summarize(scores []float64) ScoreSummary {
	if len(scores) == 0 {
		return ScoreSummary{}
	}
	s := ScoreSummary{Max: scores[0], Min: scores[0]}
	var sum float64
	for _, v := range scores {
		s.Max = max(s.Max, v)
		s.Min = min(s.Min, v)
		sum += v
	}
	s.Avg = sum / float64(len(scores))
	return s
}

// Outcome is the result of one Retrieve call: either ranked documents or a
// Rejection. A low_similarity rejection still carries the results that were
// found so callers can report them.
type Outcome struct {
	// Results are the ranked documents, best first.
	Results []ranking.Result

	// Summary covers the similarity scores of Results.
	Summary ScoreSummary

	// Threshold is the similarity floor that was applied.
	Threshold float64

	// Rejection is nil when documents were accepted.
	Rejection *Rejection
}

// Rejected reports whether the outcome is a rejection.
func (o *Outcome) Rejected() bool { return o.Rejection != nil }

// Documents returns the accepted documents, or nil for a rejection.
func (o *Outcome) Documents() []rag.Document {
	if o.Rejected() {
		return nil
	}
	out := make([]rag.Document, len(o.Results))
	for i, r := range o.Results {
		out[i] = r.Document
	}
	return out
}

// SimilarityScores returns the vector similarity of each result, in rank order.
func (o *Outcome) SimilarityScores() []float64 {
	out := make([]float64, len(o.Results))
	for i, r := range o.Results {
		out[i] = r.VectorScore
	}
	return out
}

// SourceLinks returns the distinct non-empty source links of the results,
// in rank order.
func (o *Outcome) SourceLinks() []string {
	seen := make(map[string]struct{}, len(o.Results))
	var out []string
	for _, r := range o.Results {
		link := r.Metadata.SourceLink
		if link == "" {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}
	return out
}

// ErrRetrieval matches every *Error via errors.Is.
var ErrRetrieval = errors.New("retrieval failed")

// Error reports a vector store failure. It is never converted into a
// Rejection.
type Error struct {
	// Op names the failing step, e.g. "search".
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retrieval: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRetrieval) true for any *Error.
func (e *Error) Is(target error) bool { return target == ErrRetrieval }
