// Package rag defines the document model and the storage interfaces used by
// retrieval: vector storage, similarity search, and embedding.
// Concrete implementations (Qdrant, in-memory) satisfy these interfaces so
// the retrieval layer never depends on a specific backend.
package rag

import (
	"context"

	"github.com/54b3r/helpdesk-rag/internal/access"
)

// Content types produced by the PDF processor.
const (
	ContentText  = "text"
	ContentTable = "table"
	ContentImage = "image"
)

// Metadata is the typed payload stored alongside each chunk.
type Metadata struct {
	// DocumentID identifies the source PDF the chunk was extracted from.
	DocumentID string `json:"document_id"`
	// DocumentName is the human-readable file name of the source PDF.
	DocumentName string `json:"document_name"`
	// SourceLink is the public URL of the source document, if any.
	SourceLink string `json:"source_link,omitempty"`
	// ContentType is one of text, table, image.
	ContentType string `json:"content_type"`
	// Sensitivity is the visibility level matched by access.VisibilityFilter.
	Sensitivity string `json:"sensitivity"`
	// Keywords are curated search terms used for metadata boosting.
	Keywords []string `json:"keywords,omitempty"`
	// Category is a coarse topic label (e.g. "vpn", "email").
	Category string `json:"category,omitempty"`
	// Platform is the operating system or device the chunk applies to.
	Platform string `json:"platform,omitempty"`
	// FAQQuestions are canonical questions this chunk answers.
	FAQQuestions []string `json:"faq_questions,omitempty"`
	// Image holds the base64-encoded original image for image chunks.
	Image string `json:"image,omitempty"`
	// Page is the 1-based page number in the source PDF (0 when unknown).
	Page int `json:"page,omitempty"`
}

// Document represents a unit of retrieved or stored knowledge.
type Document struct {
	// ID is the unique identifier for this chunk.
	ID string `json:"id"`

	// Content is the summarized text that was embedded.
	Content string `json:"content"`

	// Metadata holds the typed chunk payload.
	Metadata Metadata `json:"metadata"`

	// Score is the cosine similarity assigned during retrieval, in [0,1].
	// Zero value means the score was not computed.
	Score float64 `json:"similarity_score"`
}

// HasImage reports whether the chunk carries an inline image.
func (d Document) HasImage() bool {
	return d.Metadata.ContentType == ContentImage && d.Metadata.Image != ""
}

// VectorStore is the interface for persisting and searching document embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of documents with their pre-computed embeddings.
	// The embeddings slice must be parallel to docs: embeddings[i] is the vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns the top-k documents closest to queryEmbedding that pass
	// filter. A nil filter searches the whole collection.
	Search(ctx context.Context, queryEmbedding []float32, topK int, filter *access.VisibilityFilter) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher is the query-side interface used by the retrieval gate: it embeds
// the query text and runs a filtered similarity search.
// Implementations must be safe to call from multiple goroutines.
type Searcher interface {
	// SimilaritySearch returns up to k documents for query, each with a
	// cosine similarity in [0,1] in Document.Score, highest first.
	SimilaritySearch(ctx context.Context, query string, k int, filter *access.VisibilityFilter) ([]Document, error)
}
