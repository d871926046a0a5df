package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"bigbio/internal/apperr"
	"bigbio/internal/library/model"
	"bigbio/middleware"
	"bigbio/pkg/logger"
)

// Service is the library behaviour the handler needs.
type Service interface {
	EvaluatePromotion(ctx context.Context, req model.PromoteRequest) (*model.PromotionOutcome, error)
	CheckDuplicates(ctx context.Context, req model.CheckRequest) (*model.CheckResponse, error)
	ListPromotionEvents(ctx context.Context, blockID string) ([]model.PromotionEvent, error)
	ListLibrary(ctx context.Context, limit int) ([]model.LibraryItem, error)
}

type LibraryHandler struct {
	Service Service
}

func NewLibraryHandler(service Service) *LibraryHandler {
	return &LibraryHandler{Service: service}
}

func (h *LibraryHandler) Promote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.PromoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.AdminUserID = middleware.UserID(r)

	out, err := h.Service.EvaluatePromotion(r.Context(), req)
	if err != nil {
		writeError(w, "promote block "+req.BlockID, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LibraryHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.Service.CheckDuplicates(r.Context(), req)
	if err != nil {
		writeError(w, "check duplicates", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *LibraryHandler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	blockID := r.URL.Query().Get("blockId")
	if blockID == "" {
		http.Error(w, "Missing blockId parameter", http.StatusBadRequest)
		return
	}

	events, err := h.Service.ListPromotionEvents(r.Context(), blockID)
	if err != nil {
		writeError(w, "list promotion events for "+blockID, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	items, err := h.Service.ListLibrary(r.Context(), limit)
	if err != nil {
		writeError(w, "list library", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to their status. Internal errors are logged and not echoed to the client.
func writeError(w http.ResponseWriter, action string, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Sugar.Errorf("Handler: Failed to %s: %v", action, err)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
