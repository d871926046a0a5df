package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"bigbio/internal/apperr"
	"bigbio/internal/block/model"
	"bigbio/internal/linediff"
	"bigbio/internal/skeleton"
	"bigbio/internal/tagsuggest"
	"bigbio/middleware"
	"bigbio/pkg/logger"
)

// Service is the block behaviour the handler needs.
type Service interface {
	CreateBlock(ctx context.Context, ownerID string, req model.CreateBlockRequest) (*model.BlockResponse, error)
	UpdateBlock(ctx context.Context, userID, blockID string, req model.UpdateBlockRequest) (*model.BlockResponse, error)
	RemixBlock(ctx context.Context, ownerID string, req model.RemixRequest) (*model.BlockResponse, error)
	GetBlock(ctx context.Context, viewerID, blockID string) (*model.Block, error)
	ListDiffs(ctx context.Context, viewerID, blockID string) ([]model.DiffRecord, error)
	ListDrafts(ctx context.Context, userID string) ([]model.Block, error)
}

type BlockHandler struct {
	Service Service
	Tags    *tagsuggest.Suggester
}

func NewBlockHandler(service Service, tags *tagsuggest.Suggester) *BlockHandler {
	return &BlockHandler{Service: service, Tags: tags}
}

type contentRequest struct {
	Content string `json:"content"`
}

type diffRequest struct {
	Old string `json:"old"`
	New string `json:"new"`
}

func (h *BlockHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.Service.CreateBlock(r.Context(), middleware.UserID(r), req)
	if err != nil {
		writeError(w, "create block", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *BlockHandler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	blockID := r.URL.Query().Get("blockId")
	if blockID == "" {
		http.Error(w, "Missing blockId parameter", http.StatusBadRequest)
		return
	}

	var req model.UpdateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.Service.UpdateBlock(r.Context(), middleware.UserID(r), blockID, req)
	if err != nil {
		writeError(w, "update block "+blockID, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BlockHandler) RemixBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.RemixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.Service.RemixBlock(r.Context(), middleware.UserID(r), req)
	if err != nil {
		writeError(w, "remix block "+req.ParentBlockID, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *BlockHandler) GetBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	blockID := r.URL.Query().Get("blockId")
	if blockID == "" {
		http.Error(w, "Missing blockId parameter", http.StatusBadRequest)
		return
	}

	b, err := h.Service.GetBlock(r.Context(), middleware.UserID(r), blockID)
	if err != nil {
		writeError(w, "get block "+blockID, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BlockHandler) ListDiffs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	blockID := r.URL.Query().Get("blockId")
	if blockID == "" {
		http.Error(w, "Missing blockId parameter", http.StatusBadRequest)
		return
	}

	diffs, err := h.Service.ListDiffs(r.Context(), middleware.UserID(r), blockID)
	if err != nil {
		writeError(w, "list diffs of "+blockID, err)
		return
	}
	writeJSON(w, http.StatusOK, diffs)
}

func (h *BlockHandler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := middleware.UserID(r)
	drafts, err := h.Service.ListDrafts(r.Context(), userID)
	if err != nil {
		writeError(w, "list drafts of "+userID, err)
		return
	}
	writeJSON(w, http.StatusOK, drafts)
}

// PreviewSkeleton skeletonizes arbitrary content without storing anything.
func (h *BlockHandler) PreviewSkeleton(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, skeleton.Build(req.Content))
}

func (h *BlockHandler) SuggestTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tags := []string{}
	if h.Tags != nil {
		tags = h.Tags.Suggest(skeleton.Build(req.Content).Text, req.Content)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"tags": tags})
}

func (h *BlockHandler) Diff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req diffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]linediff.Op{"ops": linediff.Diff(req.Old, req.New)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, action string, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Sugar.Errorf("Handler: Failed to %s: %v", action, err)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
