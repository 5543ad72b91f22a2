package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/54b3r/helpdesk-rag/internal/agent"
	"github.com/54b3r/helpdesk-rag/internal/answer"
	"github.com/54b3r/helpdesk-rag/internal/embedder"
	"github.com/54b3r/helpdesk-rag/internal/provider"
	"github.com/54b3r/helpdesk-rag/internal/rag"
	"github.com/54b3r/helpdesk-rag/internal/retrieval"
	"github.com/54b3r/helpdesk-rag/internal/session"
	"github.com/54b3r/helpdesk-rag/internal/store"
)

// defaultCollection is the Qdrant collection used when QDRANT_COLLECTION is unset.
const defaultCollection = "helpdesk-kb"

// stack is the fully wired answering pipeline shared by serve and ask.
type stack struct {
	agent       *agent.Agent
	providerCfg *provider.Config
	sessions    session.Memory
	// qdrant is nil when the in-memory vector store is in use.
	qdrant  *rag.QdrantStore
	closers []func() error
}

// Close releases every resource opened by buildStack, last opened first.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// buildStack constructs the chat model, embedder, vector store, retrieval
// gate, answer generator, session memory, and checkpoint store, and wires them
// into an Agent. On error everything opened so far is closed.
func buildStack(ctx context.Context, log *slog.Logger) (_ *stack, err error) {
	s := &stack{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	s.providerCfg = provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, s.providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised", slog.String("provider", string(s.providerCfg.Backend)))

	emb, embCfg, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	embedder.WarnMisconfig(log, embCfg)

	vs, err := s.openVectorStore(ctx, log, embCfg.Dimensions, false)
	if err != nil {
		return nil, err
	}

	retrievalCfg := retrieval.ConfigFromEnv()
	searcher, err := rag.NewSearcher(emb, vs, retrievalCfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to create searcher: %w", err)
	}
	gate, err := retrieval.NewGate(searcher, retrievalCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval gate: %w", err)
	}

	modelTimeout := getEnvDuration("MODEL_TIMEOUT", 60*time.Second)
	vision := s.providerCfg.SupportsVision()
	if !vision {
		log.Info("answer: chat model is text-only, image chunks are passed as text",
			slog.String("model", s.providerCfg.ModelName()))
	}
	answerer, err := answer.New(chatModel, modelTimeout, answer.WithImages(vision))
	if err != nil {
		return nil, fmt.Errorf("failed to create answer generator: %w", err)
	}

	s.sessions, err = session.FromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session memory: %w", err)
	}
	if rm, ok := s.sessions.(*session.RedisMemory); ok {
		s.closers = append(s.closers, rm.Close)
		log.Info("sessions: redis backend", slog.String("addr", getEnvOrDefault("REDIS_ADDR", "localhost:6379")))
	} else {
		log.Info("sessions: in-process backend")
	}

	checkpoints := s.openCheckpoints(log)

	s.agent, err = agent.New(ctx, &agent.Config{
		ChatModel:    chatModel,
		Retriever:    gate,
		Answerer:     answerer,
		Sessions:     s.sessions,
		Checkpoints:  checkpoints,
		TopK:         retrievalCfg.TopK,
		ModelTimeout: modelTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise agent: %w", err)
	}
	return s, nil
}

// openVectorStore connects to Qdrant when QDRANT_HOST is set. Otherwise it
// falls back to an empty in-process store, unless requireQdrant is true, in
// which case localhost is assumed.
func (s *stack) openVectorStore(ctx context.Context, log *slog.Logger, dims int, requireQdrant bool) (rag.VectorStore, error) {
	host := os.Getenv("QDRANT_HOST")
	if host == "" && !requireQdrant {
		log.Warn("vector store: QDRANT_HOST not set, using an empty in-memory store",
			slog.String("hint", "every question will be rejected with no_documents until a knowledge base is configured"),
		)
		return rag.NewMemoryStore(), nil
	}
	if host == "" {
		host = "localhost"
	}

	qs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", defaultCollection),
		VectorSize: uint64(dims),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	s.qdrant = qs
	s.closers = append(s.closers, qs.Close)
	log.Info("vector store: qdrant connected",
		slog.String("host", host),
		slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)),
	)
	return qs, nil
}

// openCheckpoints opens the SQLite thread store. HELPDESK_CHECKPOINT_DB
// overrides the default path (~/.helpdesk/checkpoints.db); set it to
// "disabled" to keep threads out of storage. Failures disable the store
// rather than aborting startup.
func (s *stack) openCheckpoints(log *slog.Logger) store.CheckpointStore {
	dbPath := os.Getenv("HELPDESK_CHECKPOINT_DB")
	if dbPath == "disabled" {
		log.Info("checkpoints: disabled via HELPDESK_CHECKPOINT_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("checkpoints: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	cs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("checkpoints: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	s.closers = append(s.closers, cs.Close)
	log.Info("checkpoints: store opened", slog.String("path", dbPath))
	return cs
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
