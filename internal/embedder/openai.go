// Package embedder implements rag.Embedder for the OpenAI, Azure OpenAI and
// Ollama embedding APIs over plain HTTP. The same embedder is used to index
// knowledge-base chunks and to embed questions at query time, so both sides
// must resolve to the same model and dimensions.
package embedder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OpenAIEmbedder implements rag.Embedder using the OpenAI (or Azure OpenAI)
// embeddings REST API. It is safe for concurrent use.
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	// azure selects the api-key header and deployment URL layout.
	azure      bool
	apiVersion string
	client     *http.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL. For OpenAI: "https://api.openai.com/v1".
	// For Azure: "https://<resource>.openai.azure.com/openai".
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Azure      bool
	APIVersion string
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		azure:      cfg.Azure,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (e *OpenAIEmbedder) endpoint() (string, map[string]string) {
	if e.azure {
		u := e.baseURL + "/deployments/" + url.PathEscape(e.model) + "/embeddings?api-version=" + url.QueryEscape(e.apiVersion)
		return u, map[string]string{"api-key": e.apiKey}
	}
	return e.baseURL + "/embeddings", map[string]string{"Authorization": "Bearer " + e.apiKey}
}

// Embed converts a batch of texts into their corresponding embeddings. The
// API may return items out of order; they are placed by index.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	u, headers := e.endpoint()
	var result openaiEmbedResponse
	status, err := postJSON(ctx, e.client, u, headers,
		openaiEmbedRequest{Input: texts, Model: e.model, Dimensions: e.dimensions}, &result)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	if !okStatus(status) {
		msg := fmt.Sprintf("HTTP %d", status)
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("openai embedder: %s", msg)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embedder: index %d out of range [0, %d)", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}
	for i, v := range embeddings {
		if v == nil {
			return nil, fmt.Errorf("openai embedder: missing embedding for input %d", i)
		}
	}
	return embeddings, nil
}
