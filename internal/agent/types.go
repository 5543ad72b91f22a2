package agent

import (
	"errors"
	"fmt"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/retrieval"
)

// Request is one question to answer. It is not modified by AnswerQuery.
type Request struct {
	Question string
	// SessionID selects the conversation thread. Empty starts a new
	// anonymous session.
	SessionID string
	Role      access.Role
	// TopK overrides the configured retrieval depth when > 0.
	TopK           int
	IncludeSources bool
}

// Response is the answer with its retrieval metadata.
type Response struct {
	Answer    string   `json:"answer"`
	SessionID string   `json:"session_id"`
	Metadata  Metadata `json:"metadata"`
}

// Metadata reports how the answer was produced.
type Metadata struct {
	NumDocumentsRetrieved int            `json:"num_documents_retrieved"`
	RetrievedDocuments    []DocumentInfo `json:"retrieved_documents"`
	SimilarityScores      []float64      `json:"similarity_scores"`
	RejectionReason       string         `json:"rejection_reason,omitempty"`
	UsedTools             bool           `json:"used_tools"`

	MaxSimilarityScore *float64 `json:"max_similarity_score,omitempty"`
	MinSimilarityScore *float64 `json:"min_similarity_score,omitempty"`
	AvgSimilarityScore *float64 `json:"avg_similarity_score,omitempty"`
	Threshold          float64  `json:"threshold,omitempty"`
	SourceLinks        []string `json:"source_links"`
	UserRole           string   `json:"user_role,omitempty"`
	RequiredRole       string   `json:"required_role,omitempty"`
	HasChatHistory     bool     `json:"has_chat_history"`
	ExecutedNodes      []string `json:"executed_nodes"`
}

// DocumentInfo summarizes one retrieved chunk.
type DocumentInfo struct {
	DocumentID      string   `json:"document_id"`
	DocumentName    string   `json:"document_name"`
	SourceLink      string   `json:"source_link,omitempty"`
	ContentType     string   `json:"content_type"`
	SimilarityScore float64  `json:"similarity_score"`
	HybridScore     float64  `json:"hybrid_score"`
	Boosts          []string `json:"boost_applied,omitempty"`
}

// metadataFrom fills retrieval fields from the last retrieval outcome.
func metadataFrom(out *retrieval.Outcome) Metadata {
	md := Metadata{
		RetrievedDocuments: []DocumentInfo{},
		SimilarityScores:   []float64{},
		SourceLinks:        []string{},
	}
	if out == nil {
		return md
	}

	md.Threshold = out.Threshold
	for _, r := range out.Results {
		md.RetrievedDocuments = append(md.RetrievedDocuments, DocumentInfo{
			DocumentID:      r.Metadata.DocumentID,
			DocumentName:    r.Metadata.DocumentName,
			SourceLink:      r.Metadata.SourceLink,
			ContentType:     r.Metadata.ContentType,
			SimilarityScore: r.VectorScore,
			HybridScore:     r.HybridScore,
			Boosts:          r.Boosts,
		})
	}
	md.NumDocumentsRetrieved = len(out.Results)
	md.SimilarityScores = out.SimilarityScores()
	if links := out.SourceLinks(); links != nil {
		md.SourceLinks = links
	}
	if len(out.Results) > 0 {
		s := out.Summary
		md.MaxSimilarityScore, md.MinSimilarityScore, md.AvgSimilarityScore = &s.Max, &s.Min, &s.Avg
	}

	if rej := out.Rejection; rej != nil {
		md.RejectionReason = string(rej.Reason)
		if rej.Reason == retrieval.ReasonInsufficientPermission {
			md.UserRole = rej.UserRole.String()
			md.RequiredRole = rej.RequiredRole
		}
	}
	return md
}

// ErrGeneration matches every *GenerationError via errors.Is.
var ErrGeneration = errors.New("generation failed")

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("agent: question must not be empty")

// GenerationError reports a failed model call.
type GenerationError struct {
	// Stage is the graph node that called the model.
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("agent: %s: model call failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrGeneration) true for any *GenerationError.
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }
