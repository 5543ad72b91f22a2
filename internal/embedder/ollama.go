package embedder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaEmbedder implements rag.Embedder using the Ollama /api/embed endpoint.
// It is safe for concurrent use. No API key is required.
type OllamaEmbedder struct {
	host       string
	model      string
	dimensions int
	client     *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// Dimensions, when > 0, is the vector size the collection was created
	// with. Ollama cannot resize vectors, so a model producing another size
	// is reported as an error instead of failing later at upsert.
	Dimensions int
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		host:       strings.TrimRight(cfg.Host, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
	// Truncate cuts inputs longer than the model context instead of failing.
	Truncate bool `json:"truncate"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed converts a batch of texts into their corresponding embeddings.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var result ollamaEmbedResponse
	status, err := postJSON(ctx, e.client, e.host+"/api/embed", nil,
		ollamaEmbedRequest{Model: e.model, Input: texts, Truncate: true}, &result)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	if !okStatus(status) {
		msg := fmt.Sprintf("HTTP %d", status)
		if result.Error != "" {
			msg = result.Error
		}
		if status == http.StatusNotFound {
			msg += fmt.Sprintf(" (is the model pulled? run: ollama pull %s)", e.model)
		}
		return nil, fmt.Errorf("ollama embedder: %s", msg)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	if e.dimensions > 0 {
		for i, v := range result.Embeddings {
			if len(v) != e.dimensions {
				return nil, fmt.Errorf("ollama embedder: model %s returned %d dimensions for input %d, collection expects %d (set EMBEDDING_DIMENSIONS)",
					e.model, len(v), i, e.dimensions)
			}
		}
	}
	return result.Embeddings, nil
}
