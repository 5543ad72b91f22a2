package embedder

import (
	"log/slog"
	"strings"
)

// knownChatModelPrefixes identify chat models that are not embedding models.
var knownChatModelPrefixes = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama3", "llama2", "llava", "mistral", "mixtral", "gemma", "phi3",
	"claude", "deepseek", "qwen",
}

// nativeDimensions are the output sizes of common embedding models. Models
// marked shortenable accept a smaller "dimensions" request parameter.
var nativeDimensions = map[string]struct {
	dims        int
	shortenable bool
}{
	"nomic-embed-text":       {768, false},
	"mxbai-embed-large":      {1024, false},
	"bge-m3":                 {1024, false},
	"all-minilm":             {384, false},
	"text-embedding-3-large": {3072, true},
	"text-embedding-3-small": {1536, true},
	"text-embedding-ada-002": {1536, false},
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// dimensionMismatch reports the native size of a known model when the
// configured size cannot be produced by it. Unknown models are never flagged.
func dimensionMismatch(model string, configured int) (native int, mismatch bool) {
	name, _, _ := strings.Cut(strings.ToLower(model), ":")
	known, ok := nativeDimensions[name]
	if !ok {
		return 0, false
	}
	if known.shortenable {
		return known.dims, configured > known.dims
	}
	return known.dims, configured != known.dims
}

// WarnMisconfig logs configurations that work but are probably mistakes:
// an inherited non-ollama backend, a chat model used for embeddings, or a
// vector size the model cannot produce. The last one makes every upsert into
// the knowledge-base collection fail.
func WarnMisconfig(log *slog.Logger, cfg Config) {
	if cfg.Inherited && cfg.Backend != BackendOllama {
		log.Warn("embedder: EMBEDDING_PROVIDER is not set, inheriting MODEL_PROVIDER as embedding backend",
			slog.String("backend", string(cfg.Backend)),
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure) to be explicit"),
		)
	}
	if looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-large"),
		)
	}
	if native, bad := dimensionMismatch(cfg.Model, cfg.Dimensions); bad {
		log.Warn("embedder: EMBEDDING_DIMENSIONS does not match the model",
			slog.String("model", cfg.Model),
			slog.Int("configured", cfg.Dimensions),
			slog.Int("native", native),
		)
	}
}
