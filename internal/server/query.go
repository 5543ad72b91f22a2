package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/helpdesk-rag/internal/agent"
	"github.com/54b3r/helpdesk-rag/internal/audit"
	"github.com/54b3r/helpdesk-rag/internal/logging"
	"github.com/54b3r/helpdesk-rag/internal/retrieval"
)

// maxQueryBody caps the POST /api/query body.
const maxQueryBody = 64 << 10

// handleQuery handles POST /api/query. Rejections are successful responses
// carrying rejection_reason in metadata; only failures map to error statuses.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req queryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, r, http.StatusBadRequest, "question is required")
		return
	}
	topK := 0
	if req.TopK != nil {
		if *req.TopK < 1 || *req.TopK > retrieval.MaxTopK {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("top_k must be between 1 and %d", retrieval.MaxTopK))
			return
		}
		topK = *req.TopK
	}

	role := roleFromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	s.metrics.queryInFlight.Inc()
	defer s.metrics.queryInFlight.Dec()

	start := time.Now()
	resp, err := s.answerer.AnswerQuery(ctx, agent.Request{
		Question:       req.Question,
		SessionID:      req.SessionID,
		Role:           role,
		TopK:           topK,
		IncludeSources: req.IncludeSources,
	})
	elapsed := time.Since(start)

	rec := audit.QueryRecord{
		SessionID: req.SessionID,
		Role:      role.String(),
		Duration:  elapsed,
	}

	if err != nil {
		rec.Outcome = audit.OutcomeFailed
		rec.Err = err
		s.metrics.observeQuery(rec.Outcome, elapsed)
		audit.LogQuery(r.Context(), log, rec)

		status, msg := queryErrorStatus(ctx, err)
		if status >= http.StatusInternalServerError {
			log.Error("query failed", slog.Any("error", err))
		}
		writeError(w, r, status, msg)
		return
	}

	rec.SessionID = resp.SessionID
	rec.Documents = resp.Metadata.NumDocumentsRetrieved
	rec.UsedTools = resp.Metadata.UsedTools
	rec.RejectionReason = resp.Metadata.RejectionReason
	rec.Outcome = audit.OutcomeAnswered
	if rec.RejectionReason != "" {
		rec.Outcome = audit.OutcomeRejected
		s.metrics.rejectionsTotal.WithLabelValues(rec.RejectionReason).Inc()
	}
	s.metrics.observeQuery(rec.Outcome, elapsed)
	audit.LogQuery(r.Context(), log, rec)

	writeJSON(w, r, http.StatusOK, resp)
}

// queryErrorStatus maps an AnswerQuery failure onto an HTTP status and a
// client-safe message.
func queryErrorStatus(ctx context.Context, err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrEmptyQuestion):
		return http.StatusBadRequest, "question is required"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "query timed out"
	case errors.Is(err, retrieval.ErrRetrieval):
		return http.StatusBadGateway, "document retrieval failed"
	case errors.Is(err, agent.ErrGeneration):
		return http.StatusBadGateway, "answer generation failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
