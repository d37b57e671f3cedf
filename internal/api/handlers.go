package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/oscillatelabsllc/argoquery/internal/assistant"
	"github.com/oscillatelabsllc/argoquery/internal/intent"
	"github.com/oscillatelabsllc/argoquery/internal/logger"
	"github.com/oscillatelabsllc/argoquery/internal/models"
	"github.com/oscillatelabsllc/argoquery/internal/predict"
)

// IngestRequest is the request body for adding profiles
type IngestRequest struct {
	Profiles []models.Profile `json:"profiles"`
}

// QueryRequest is the request body for a structured query in plain language
type QueryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// QueryResponse shows what the query was translated into and its result
type QueryResponse struct {
	Intent intent.QueryIntent  `json:"intent"`
	Plan   string              `json:"store_query"`
	Result models.SearchResult `json:"result"`
}

// PredictRequest carries either raw features or a stored profile to derive them from
type PredictRequest struct {
	ProfileID string             `json:"profile_id,omitempty"`
	Features  map[string]float64 `json:"features,omitempty"`
}

// handleChat answers a chat message. Failures inside the pipeline come back as a fallback narrative.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx := assistant.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
	reply := s.assistant.Chat(ctx, req)

	w.Header().Set("X-Query-Mode", string(reply.Mode))
	successResponse(w, reply.Response)
}

// handleIngest stores and indexes profiles
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ids, err := s.catalog.Ingest(r.Context(), req.Profiles)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"ids":     ids,
		"count":   len(ids),
	})
}

// handleListProfiles returns the newest profiles
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errorResponse(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	profiles, err := s.catalog.List(r.Context(), limit)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	successResponse(w, map[string]any{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// handleGetProfile returns one profile
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	successResponse(w, p)
}

// handleDeleteProfile removes a profile and its embedding
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleError(w, r, err)
		return
	}
	successResponse(w, map[string]any{
		"success": true,
		"message": "Profile deleted successfully",
	})
}

// handleQuery translates plain language into a store query and runs it
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		errorResponse(w, http.StatusBadRequest, "query is required")
		return
	}

	q := s.extractor.Extract(req.Query)
	if req.Limit > 0 {
		q.Limit = min(req.Limit, intent.MaxLimit)
	}

	sq, res, err := s.catalog.Query(r.Context(), q)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	successResponse(w, QueryResponse{Intent: q, Plan: sq.Describe(), Result: res})
}

// handleSearch runs a semantic search
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		errorResponse(w, http.StatusBadRequest, "query is required")
		return
	}
	k := 10
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errorResponse(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		k = n
	}

	hits, err := s.catalog.Retrieve(r.Context(), query, k)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	successResponse(w, map[string]any{
		"results": hits,
		"count":   len(hits),
	})
}

// handleStats returns store statistics and index status
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.catalog.Status(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	successResponse(w, st)
}

// handlePredict forwards a feature record to the model server
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if s.predictor == nil {
		errorResponse(w, http.StatusServiceUnavailable, "model server is not configured")
		return
	}

	model, err := predict.ParseModelType(chi.URLParam(r, "model"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	features := req.Features
	if req.ProfileID != "" {
		p, err := s.catalog.Get(r.Context(), req.ProfileID)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		features = predict.Features(*p)
	}

	pred, err := s.predictor.Predict(r.Context(), model, features)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	successResponse(w, pred)
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidArgument), errors.Is(err, models.ErrInvalidIntent):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrIncompatibleIndex):
		return http.StatusConflict
	case errors.Is(err, models.ErrStoreUnavailable),
		errors.Is(err, models.ErrEmbeddingUnavailable),
		errors.Is(err, predict.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Warn("request rejected", zap.Error(err))
	}
	errorResponse(w, status, err.Error())
}
