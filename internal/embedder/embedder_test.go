package embedder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %q, want /api/embed", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Truncate {
			t.Error("truncate = false, want true")
		}
		out := ollamaEmbedResponse{}
		for range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{0.1, 0.2})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "nomic-embed-text"})
	got, err := e.Embed(context.Background(), []string{"vpn", "wifi"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 2 {
		t.Fatalf("unexpected embeddings: %v", got)
	}
}

func TestOllamaEmbedder_ErrorMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"x\" not found"}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "x"})
	_, err := e.Embed(context.Background(), []string{"vpn"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("want backend error message, got %v", err)
	}
	if !strings.Contains(err.Error(), "ollama pull x") {
		t.Errorf("want pull hint in %q", err)
	}
}

func TestOllamaEmbedder_DimensionMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text", Dimensions: 768})
	_, err := e.Embed(context.Background(), []string{"printer offline"})
	if err == nil || !strings.Contains(err.Error(), "returned 3 dimensions") {
		t.Fatalf("want dimension mismatch error, got %v", err)
	}
}

func TestOpenAIEmbedder_OrdersByIndex(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[2],"index":1},{"embedding":[1],"index":0}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "text-embedding-3-large"})
	got, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Errorf("embeddings not placed by index: %v", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestOpenAIEmbedder_AzureURL(t *testing.T) {
	t.Parallel()

	var gotPath, gotVersion, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")
		gotKey = r.Header.Get("api-key")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1],"index":0}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL + "/openai", APIKey: "az", Model: "embed-large",
		Azure: true, APIVersion: "2025-04-01-preview",
	})
	if _, err := e.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if gotPath != "/openai/deployments/embed-large/embeddings" {
		t.Errorf("path = %q", gotPath)
	}
	if gotVersion != "2025-04-01-preview" || gotKey != "az" {
		t.Errorf("api-version=%q api-key=%q", gotVersion, gotKey)
	}
}

func TestOpenAIEmbedder_EmptyInput(t *testing.T) {
	t.Parallel()
	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: "http://127.0.0.1:0"})
	got, err := e.Embed(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("empty input: got %v, %v", got, err)
	}
}

func clearEmbeddingEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY", "EMBEDDING_ENDPOINT",
		"EMBEDDING_DIMENSIONS", "MODEL_PROVIDER", "OLLAMA_HOST", "OPENAI_API_KEY",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT",
	} {
		t.Setenv(k, "")
	}
}

func TestConfigFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantErr  string
		backend  Backend
		dims     int
		endpoint string
	}{
		{
			name:     "default ollama",
			backend:  BackendOllama,
			dims:     768,
			endpoint: "http://localhost:11434",
		},
		{
			name:     "openai inherits chat key",
			env:      map[string]string{"MODEL_PROVIDER": "openai", "OPENAI_API_KEY": "sk"},
			backend:  BackendOpenAI,
			dims:     3072,
			endpoint: "https://api.openai.com/v1",
		},
		{
			name:    "openai without key",
			env:     map[string]string{"EMBEDDING_PROVIDER": "openai"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "azure without endpoint",
			env:     map[string]string{"EMBEDDING_PROVIDER": "azure", "EMBEDDING_API_KEY": "k"},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name:    "inherited gemini has no embedder",
			env:     map[string]string{"MODEL_PROVIDER": "gemini"},
			wantErr: "set EMBEDDING_PROVIDER",
		},
		{
			name:     "dimensions override",
			env:      map[string]string{"EMBEDDING_DIMENSIONS": "1024"},
			backend:  BackendOllama,
			dims:     1024,
			endpoint: "http://localhost:11434",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEmbeddingEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := ConfigFromEnv()
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("want error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Backend != tc.backend || cfg.Dimensions != tc.dims || cfg.Endpoint != tc.endpoint {
				t.Errorf("got %+v", cfg)
			}
			if _, err := New(cfg); err != nil {
				t.Errorf("New() error: %v", err)
			}
		})
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()
	for model, want := range map[string]bool{
		"nomic-embed-text":       false,
		"text-embedding-3-large": false,
		"gpt-4o":                 true,
		"llava:13b":              true,
	} {
		if got := looksLikeChatModel(model); got != want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", model, got, want)
		}
	}
	WarnMisconfig(slog.New(slog.DiscardHandler), Config{Backend: BackendOpenAI, Inherited: true, Model: "gpt-4o"})
}

func TestDimensionMismatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		model      string
		configured int
		want       bool
	}{
		{"nomic-embed-text", 768, false},
		{"nomic-embed-text:latest", 3072, true},
		{"text-embedding-3-large", 1024, false},
		{"text-embedding-3-large", 4096, true},
		{"text-embedding-ada-002", 1024, true},
		{"my-custom-embedder", 12, false},
	}
	for _, tc := range tests {
		if _, got := dimensionMismatch(tc.model, tc.configured); got != tc.want {
			t.Errorf("dimensionMismatch(%q, %d) = %v, want %v", tc.model, tc.configured, got, tc.want)
		}
	}
}
