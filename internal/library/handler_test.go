package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigbio/internal/apperr"
	"bigbio/internal/library/model"
	"bigbio/middleware"
)

type stubService struct {
	gotPromote model.PromoteRequest
	gotLimit   int
	err        error
}

func (s *stubService) EvaluatePromotion(_ context.Context, req model.PromoteRequest) (*model.PromotionOutcome, error) {
	s.gotPromote = req
	if s.err != nil {
		return nil, s.err
	}
	score := 1.0
	return &model.PromotionOutcome{Outcome: model.OutcomeDuplicate, MatchedTemplateID: "blk-0", Score: &score, EventID: "ev-1"}, nil
}

func (s *stubService) CheckDuplicates(_ context.Context, _ model.CheckRequest) (*model.CheckResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.CheckResponse{SkeletonSig: "sig", Matches: model.MatchResult{Exact: []model.TemplateMatch{}, Fuzzy: []model.TemplateMatch{}}}, nil
}

func (s *stubService) ListPromotionEvents(_ context.Context, _ string) ([]model.PromotionEvent, error) {
	return []model.PromotionEvent{}, s.err
}

func (s *stubService) ListLibrary(_ context.Context, limit int) ([]model.LibraryItem, error) {
	s.gotLimit = limit
	return []model.LibraryItem{}, s.err
}

func withUser(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, id))
}

func TestPromote(t *testing.T) {
	svc := &stubService{}
	h := NewLibraryHandler(svc)

	body := `{"block_id":"b1","category_id":3,"title":"Top 5","force_override":false}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/library/promote", strings.NewReader(body)), "admin-1")
	rec := httptest.NewRecorder()
	h.Promote(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-1", svc.gotPromote.AdminUserID)
	assert.Equal(t, 3, svc.gotPromote.CategoryID)
	assert.JSONEq(t, `{"outcome":"duplicate","matched_template_id":"blk-0","score":1,"event_id":"ev-1"}`, rec.Body.String())
}

func TestPromoteSpoofedAdminIgnored(t *testing.T) {
	svc := &stubService{}
	h := NewLibraryHandler(svc)

	body := `{"block_id":"b1","category_id":3,"title":"t","AdminUserID":"someone-else"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/library/promote", strings.NewReader(body)), "admin-1")
	h.Promote(httptest.NewRecorder(), req)
	assert.Equal(t, "admin-1", svc.gotPromote.AdminUserID)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: b1", apperr.ErrBlockNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: 9", apperr.ErrInvalidCategory), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: title", apperr.ErrInvalidInput), http.StatusBadRequest},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := NewLibraryHandler(&stubService{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/library/promote", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()
			h.Promote(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "pq:")
			}
		})
	}
}

func TestMethodAndBodyChecks(t *testing.T) {
	h := NewLibraryHandler(&stubService{})

	rec := httptest.NewRecorder()
	h.Promote(rec, httptest.NewRequest(http.MethodGet, "/api/library/promote", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodPost, "/api/library/check", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Events(rec, httptest.NewRequest(http.MethodGet, "/api/library/events", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/library?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckAndList(t *testing.T) {
	svc := &stubService{}
	h := NewLibraryHandler(svc)

	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodPost, "/api/library/check", strings.NewReader(`{"content":"Top 5"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var res model.CheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "sig", res.SkeletonSig)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/library?limit=12", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12, svc.gotLimit)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
