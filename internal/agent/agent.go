// Package agent runs the helpdesk conversation graph. A question is either
// answered with a fixed greeting or routed through a tool-calling model that
// must retrieve from the knowledge base before an answer is generated.
// Retrieval happens under the caller's visibility filter, and every answer
// comes back with the retrieval metadata that produced it.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/budget"
	"github.com/54b3r/helpdesk-rag/internal/logging"
	"github.com/54b3r/helpdesk-rag/internal/retrieval"
	"github.com/54b3r/helpdesk-rag/internal/session"
)

// DefaultModelTimeout bounds a single routing model call.
const DefaultModelTimeout = 60 * time.Second

// AnonymousSessionPrefix prefixes generated session ids.
const AnonymousSessionPrefix = "anon_"

// New constructs an Agent and compiles its graph.
func New(ctx context.Context, cfg *Config) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent: config must not be nil")
	}
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("agent: Retriever must not be nil")
	}
	if cfg.Answerer == nil {
		return nil, fmt.Errorf("agent: Answerer must not be nil")
	}

	router, err := cfg.ChatModel.WithTools([]*schema.ToolInfo{retrieveToolInfo()})
	if err != nil {
		return nil, fmt.Errorf("agent: failed to bind retrieve tool: %w", err)
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	timeout := cfg.ModelTimeout
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	a := &Agent{
		router:           router,
		retriever:        cfg.Retriever,
		answerer:         cfg.Answerer,
		sessions:         cfg.Sessions,
		checkpoints:      cfg.Checkpoints,
		topK:             topK,
		modelTimeout:     timeout,
		maxContextTokens: maxCtx,
	}

	a.tools, err = newToolsNode(ctx, cfg.Retriever)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to build tools node: %w", err)
	}

	a.graph, err = a.buildGraph(ctx)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// NewSessionID returns a fresh anonymous session id.
func NewSessionID() string {
	return AnonymousSessionPrefix + uuid.NewString()
}

// AnswerQuery answers one question. Rejections are reported in the response
// metadata, not as errors. Errors match retrieval.ErrRetrieval or
// ErrGeneration. Session memory and the checkpoint are written only after
// the graph completes.
func (a *Agent) AnswerQuery(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}
	if req.SessionID == "" {
		req.SessionID = NewSessionID()
	}
	if !req.Role.Valid() {
		req.Role = access.RoleAnonymous
	}

	logger := logging.FromContext(ctx).With(
		slog.String("session_id", req.SessionID),
		slog.String("role", req.Role.String()),
	)
	ctx = logging.WithLogger(ctx, logger)
	ctx = retrieval.WithCallerRole(ctx, req.Role)

	st := &turnState{
		req:    req,
		filter: access.BuildFilter(req.Role),
		topK:   a.requestTopK(req.TopK),
	}

	threadLoaded := a.loadThread(ctx, st)
	a.loadHistory(ctx, st)

	out, err := a.graph.Invoke(ctx, st)
	if err != nil {
		if st.fatal != nil {
			return nil, st.fatal
		}
		return nil, fmt.Errorf("agent: graph run failed: %w", err)
	}

	out.turn = append(out.turn, schema.AssistantMessage(out.answer, nil))
	a.persist(ctx, out, threadLoaded)

	md := metadataFrom(out.outcome)
	md.UsedTools = out.usedTools
	md.HasChatHistory = len(out.history) > 0
	md.ExecutedNodes = out.executed

	logger.Info("agent: query answered",
		slog.Any("executed_nodes", out.executed),
		slog.Bool("used_tools", out.usedTools),
		slog.Int("documents", md.NumDocumentsRetrieved),
		slog.String("rejection_reason", md.RejectionReason),
	)

	return &Response{
		Answer:    out.answer,
		SessionID: req.SessionID,
		Metadata:  md,
	}, nil
}

func (a *Agent) requestTopK(k int) int {
	switch {
	case k <= 0:
		return a.topK
	case k > retrieval.MaxTopK:
		return retrieval.MaxTopK
	default:
		return k
	}
}

// loadThread reads the checkpointed thread. It reports false when the read
// failed, in which case the thread must not be saved over.
func (a *Agent) loadThread(ctx context.Context, st *turnState) bool {
	if a.checkpoints == nil {
		return true
	}
	msgs, err := a.checkpoints.Load(ctx, st.req.SessionID)
	if err != nil {
		logging.FromContext(ctx).Warn("agent: failed to load checkpoint, starting empty thread", slog.Any("error", err))
		return false
	}
	st.thread = msgs
	return true
}

func (a *Agent) loadHistory(ctx context.Context, st *turnState) {
	if a.sessions == nil {
		return
	}
	history, err := a.sessions.History(ctx, st.req.SessionID)
	if err != nil {
		logging.FromContext(ctx).Warn("agent: failed to read session history", slog.Any("error", err))
		return
	}
	st.history = history
}

// persist saves the finished turn. Failures are logged and never fail the
// request.
func (a *Agent) persist(ctx context.Context, st *turnState, threadLoaded bool) {
	logger := logging.FromContext(ctx)

	if a.checkpoints != nil && threadLoaded {
		thread := make([]*schema.Message, 0, len(st.thread)+len(st.turn))
		thread = append(thread, st.thread...)
		thread = append(thread, st.turn...)
		if err := a.checkpoints.Save(ctx, st.req.SessionID, thread); err != nil {
			logger.Warn("agent: failed to save checkpoint", slog.Any("error", err))
		}
	}

	if a.sessions != nil {
		if err := a.sessions.AddExchange(ctx, st.req.SessionID, st.req.Question, st.answer); err != nil {
			logger.Warn("agent: failed to save session exchange", slog.Any("error", err))
		}
	}
}

// ClearSession removes a session's memory and its checkpointed thread. It
// reports whether either existed.
func (a *Agent) ClearSession(ctx context.Context, sessionID string) (bool, error) {
	existed := false
	if a.sessions != nil {
		ok, err := a.sessions.Clear(ctx, sessionID)
		if err != nil {
			return false, fmt.Errorf("agent: clear session: %w", err)
		}
		existed = existed || ok
	}
	if a.checkpoints != nil {
		ok, err := a.checkpoints.Delete(ctx, sessionID)
		if err != nil {
			return existed, fmt.Errorf("agent: clear checkpoint: %w", err)
		}
		existed = existed || ok
	}
	return existed, nil
}

// Sessions returns the configured session memory, or nil.
func (a *Agent) Sessions() session.Memory { return a.sessions }
