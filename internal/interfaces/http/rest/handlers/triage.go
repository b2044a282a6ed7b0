package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"channelflow-backend/internal/service/triage"
	"channelflow-backend/pkg/api"
)

// TriageHandler serves message triage and item management endpoints.
type TriageHandler struct {
	svc    triage.Service
	logger *zap.Logger
}

// NewTriageHandler creates a triage handler.
func NewTriageHandler(svc triage.Service, logger *zap.Logger) *TriageHandler {
	return &TriageHandler{svc: svc, logger: logger}
}

// ProcessMessage handles POST /messages.
func (h *TriageHandler) ProcessMessage(w http.ResponseWriter, r *http.Request) {
	var req api.ProcessMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.svc.ProcessMessage(r.Context(), triage.ProcessRequest{
		ChannelID: req.ChannelID,
		Category:  req.Category,
		Message:   req.Message,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	api.Success(w, http.StatusOK, api.ProcessMessageResponse{
		RunID:           res.RunID,
		ProcessedResult: res.Result,
		IsUpdate:        res.IsUpdate,
		DBResult:        res.DBResult,
	})
}

// ListItems handles GET /channels/{channelID}/items.
func (h *TriageHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	category := r.URL.Query().Get("category")

	items, err := h.svc.ListItems(r.Context(), channelID, category)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	api.Success(w, http.StatusOK, api.ItemsResponse{
		ChannelID: channelID,
		Category:  strings.ToUpper(strings.TrimSpace(category)),
		Items:     itemMaps(items),
	})
}

// UpdateItem handles PATCH /channels/{channelID}/items/{itemID}.
func (h *TriageHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	itemID := chi.URLParam(r, "itemID")

	var req api.UpdateItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ch, err := h.svc.UpdateItem(r.Context(), channelID, req.Category, itemID, req.Updates)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	api.Success(w, http.StatusOK, api.ChannelResponse{
		ChannelID: ch.ChannelID,
		Items:     itemMaps(ch.Items),
		Version:   ch.Version,
		UpdatedAt: ch.UpdatedAt,
	})
}
