package embedder

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/helpdesk-rag/internal/rag"
)

// Backend names an embedding service.
type Backend string

const (
	BackendOllama Backend = "ollama"
	BackendOpenAI Backend = "openai"
	BackendAzure  Backend = "azure"
)

// Default embedding models per backend. The knowledge base is indexed with
// text-embedding-3-large, so OpenAI-family backends default to it.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-large"

	defaultOllamaDimensions = 768
	defaultOpenAIDimensions = 3072
)

// Config is the resolved embedding configuration.
type Config struct {
	Backend    Backend
	Endpoint   string
	APIKey     string
	Model      string
	Dimensions int
	// APIVersion is used by Azure only.
	APIVersion string
	// Inherited is true when Backend came from MODEL_PROVIDER rather than
	// EMBEDDING_PROVIDER.
	Inherited bool
}

// ConfigFromEnv resolves the embedding configuration, inheriting from the
// chat provider settings where embedding-specific overrides are unset.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, else MODEL_PROVIDER, else ollama
//  2. Per-backend credentials inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL, EMBEDDING_API_KEY, EMBEDDING_ENDPOINT override them
//  4. EMBEDDING_DIMENSIONS overrides the default size (ollama: 768, openai/azure: 3072)
func ConfigFromEnv() (Config, error) {
	cfg := Config{Backend: Backend(os.Getenv("EMBEDDING_PROVIDER"))}
	if cfg.Backend == "" {
		cfg.Backend = Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendOllama)))
		cfg.Inherited = true
	}

	switch cfg.Backend {
	case BackendOllama:
		cfg.Endpoint = firstNonEmpty(os.Getenv("EMBEDDING_ENDPOINT"), os.Getenv("OLLAMA_HOST"), "http://localhost:11434")
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel)
		cfg.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", defaultOllamaDimensions)

	case BackendOpenAI:
		cfg.APIKey = firstNonEmpty(os.Getenv("EMBEDDING_API_KEY"), os.Getenv("OPENAI_API_KEY"))
		cfg.Endpoint = firstNonEmpty(os.Getenv("EMBEDDING_ENDPOINT"), "https://api.openai.com/v1")
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		cfg.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions)

	case BackendAzure:
		cfg.APIKey = firstNonEmpty(os.Getenv("EMBEDDING_API_KEY"), os.Getenv("AZURE_OPENAI_API_KEY"))
		cfg.Endpoint = firstNonEmpty(os.Getenv("EMBEDDING_ENDPOINT"), os.Getenv("AZURE_OPENAI_ENDPOINT"))
		cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview")
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		cfg.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions)

	default:
		if cfg.Inherited {
			return cfg, fmt.Errorf("embedder: chat provider %q has no embedding backend, set EMBEDDING_PROVIDER to ollama, openai, or azure", cfg.Backend)
		}
		return cfg, fmt.Errorf("embedder: unknown backend %q, valid values: ollama, openai, azure", cfg.Backend)
	}

	return cfg, cfg.Validate()
}

// Validate reports missing credentials for the selected backend.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case BackendAzure:
		if c.APIKey == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if c.Endpoint == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedder: dimensions must be positive, got %d", c.Dimensions)
	}
	return nil
}

// New constructs the embedder for cfg.
func New(cfg Config) (rag.Embedder, error) {
	switch cfg.Backend {
	case BackendOllama:
		return NewOllamaEmbedder(&OllamaConfig{Host: cfg.Endpoint, Model: cfg.Model, Dimensions: cfg.Dimensions}), nil
	case BackendOpenAI:
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil
	case BackendAzure:
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(cfg.Endpoint, "/") + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
		}), nil
	default:
		return nil, fmt.Errorf("embedder: unknown backend %q", cfg.Backend)
	}
}

// NewFromEnv constructs an embedder from ConfigFromEnv and returns it with
// the resolved config, whose Dimensions size the vector collection.
func NewFromEnv() (rag.Embedder, Config, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, cfg, err
	}
	e, err := New(cfg)
	return e, cfg, err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
