package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"channelflow-backend/internal/flow"
	"channelflow-backend/internal/service/triage"
	"channelflow-backend/pkg/api"
)

// FlowHandler serves the flow catalog, validation, execution and run
// history endpoints.
type FlowHandler struct {
	svc    triage.Service
	logger *zap.Logger
}

// NewFlowHandler creates a flow handler.
func NewFlowHandler(svc triage.Service, logger *zap.Logger) *FlowHandler {
	return &FlowHandler{svc: svc, logger: logger}
}

// ListFlows handles GET /flows.
func (h *FlowHandler) ListFlows(w http.ResponseWriter, r *http.Request) {
	docs := h.svc.Flows()
	summaries := make([]api.FlowSummary, 0, len(docs))
	for _, doc := range docs {
		summaries = append(summaries, api.FlowSummary{
			ID:          doc.ID,
			Name:        doc.Name,
			Description: doc.Description,
			Nodes:       len(doc.Nodes),
			Edges:       len(doc.Edges),
		})
	}
	api.Success(w, http.StatusOK, api.FlowListResponse{Flows: summaries})
}

// GetFlow handles GET /flows/{flowID}.
func (h *FlowHandler) GetFlow(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetFlow(chi.URLParam(r, "flowID"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, doc)
}

// ValidateFlow handles POST /flows/validate. A document that parses but
// fails validation is a 200 with valid=false; only an unparseable body is
// a client error.
func (h *FlowHandler) ValidateFlow(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	doc, err := flow.Parse(data)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.ValidateDocument(doc); err != nil {
		api.Success(w, http.StatusOK, api.ValidateFlowResponse{Valid: false, Error: err.Error()})
		return
	}
	api.Success(w, http.StatusOK, api.ValidateFlowResponse{Valid: true})
}

// RunFlow handles POST /flows/{flowID}/run. The body is optional; without
// tweaks the flow runs on its stored node data.
func (h *FlowHandler) RunFlow(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowID")

	var req api.RunFlowRequest
	if r.ContentLength != 0 {
		if !decodeAndValidate(w, r, &req) {
			return
		}
	}

	res, err := h.svc.RunFlow(r.Context(), flowID, req.Tweaks)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, res)
}

// ListRuns handles GET /flows/{flowID}/runs.
func (h *FlowHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowID")

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.svc.ListRuns(r.Context(), flowID, limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{
		"flow_id": flowID,
		"runs":    records,
	})
}

// GetRun handles GET /flows/{flowID}/runs/{runID}.
func (h *FlowHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	record, err := h.svc.GetRun(r.Context(), chi.URLParam(r, "flowID"), chi.URLParam(r, "runID"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, record)
}
