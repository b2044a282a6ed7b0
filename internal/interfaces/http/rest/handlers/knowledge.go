package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"channelflow-backend/internal/service/triage"
	"channelflow-backend/pkg/api"
)

// KnowledgeHandler serves knowledge base queries.
type KnowledgeHandler struct {
	svc    triage.Service
	logger *zap.Logger
}

// NewKnowledgeHandler creates a knowledge handler.
func NewKnowledgeHandler(svc triage.Service, logger *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc, logger: logger}
}

// Query handles POST /knowledge/query.
func (h *KnowledgeHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req api.KnowledgeQueryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	answer, err := h.svc.QueryKnowledge(r.Context(), req.Question)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, answer)
}
