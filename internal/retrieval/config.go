package retrieval

import (
	"os"
	"strconv"
	"time"

	"github.com/54b3r/helpdesk-rag/internal/ranking"
)

const (
	// DefaultTopK is the number of chunks fetched when the caller does not ask.
	DefaultTopK = 4

	// MaxTopK is the largest top-k accepted from callers.
	MaxTopK = 20

	// DefaultThreshold is the minimum max-similarity for an answerable query.
	DefaultThreshold = 0.6

	// DefaultTimeout bounds each vector store call.
	DefaultTimeout = 10 * time.Second
)

// Config controls the retrieval gate.
type Config struct {
	// TopK is used when Retrieve is called with k <= 0.
	TopK int

	// Threshold is the similarity floor; a best hit below it is rejected as
	// low_similarity.
	Threshold float64

	// Hybrid enables BM25 fusion and metadata boosting after vector search.
	Hybrid bool

	// Weights are the hybrid fusion weights.
	Weights ranking.Weights

	// Probe enables the unrestricted k=1 search that distinguishes
	// insufficient_permissions from no_documents_found.
	Probe bool

	// Timeout bounds each vector store call. Zero disables the bound.
	Timeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TopK:      DefaultTopK,
		Threshold: DefaultThreshold,
		Hybrid:    true,
		Weights:   ranking.DefaultWeights(),
		Probe:     true,
		Timeout:   DefaultTimeout,
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back to
// DefaultConfig for anything unset or unparseable.
//
// Environment variables:
//
//	RAG_TOP_K             (default: 4, range 1-20)
//	SIMILARITY_THRESHOLD  (default: 0.6)
//	HYBRID_SEARCH         (default: true)
//	HYBRID_VECTOR_WEIGHT  (default: 0.7)
//	HYBRID_BM25_WEIGHT    (default: 0.3)
//	AUTH_PROBE            (default: true)
//	RETRIEVAL_TIMEOUT     (default: 10s)
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if k := getEnvInt("RAG_TOP_K", cfg.TopK); k >= 1 && k <= MaxTopK {
		cfg.TopK = k
	}
	cfg.Threshold = getEnvFloat("SIMILARITY_THRESHOLD", cfg.Threshold)
	cfg.Hybrid = getEnvBool("HYBRID_SEARCH", cfg.Hybrid)
	cfg.Weights = ranking.Weights{
		Vector: getEnvFloat("HYBRID_VECTOR_WEIGHT", cfg.Weights.Vector),
		BM25:   getEnvFloat("HYBRID_BM25_WEIGHT", cfg.Weights.BM25),
	}
	cfg.Probe = getEnvBool("AUTH_PROBE", cfg.Probe)
	cfg.Timeout = getEnvDuration("RETRIEVAL_TIMEOUT", cfg.Timeout)
	return cfg
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
