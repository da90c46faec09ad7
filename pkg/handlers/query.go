package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/auth"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/repositories"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/services"
)

// GenerateRequest asks for SQL without executing it.
type GenerateRequest struct {
	ConnectionID uuid.UUID         `json:"connection_id"`
	Question     string            `json:"natural_language"`
	Parameters   map[string]string `json:"parameters,omitempty"`
}

// ExecuteRequest runs caller-supplied SQL through the safety gate.
type ExecuteRequest struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	SQL          string    `json:"sql"`
}

// HistoryListResponse pages through the audit trail.
type HistoryListResponse struct {
	Entries []*models.HistoryEntry `json:"entries"`
	Total   int                    `json:"total"`
}

// FavoriteResponse reports the new favorite state after a toggle.
type FavoriteResponse struct {
	IsFavorite bool `json:"is_favorite"`
}

// SuggestionsResponse lists proposed questions for a connection.
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// FeedbackListResponse lists recorded corrections.
type FeedbackListResponse struct {
	Feedback []*models.FeedbackRecord `json:"feedback"`
}

// QueryHandler handles the ask pipeline, raw execution, history, and
// feedback endpoints.
type QueryHandler struct {
	pipeline    services.PipelineService
	generator   services.GeneratorService
	params      services.ParameterService
	history     services.HistoryService
	suggestions services.SuggestionService
	logger      *zap.Logger
}

func NewQueryHandler(
	pipeline services.PipelineService,
	generator services.GeneratorService,
	params services.ParameterService,
	history services.HistoryService,
	suggestions services.SuggestionService,
	logger *zap.Logger,
) *QueryHandler {
	return &QueryHandler{
		pipeline:    pipeline,
		generator:   generator,
		params:      params,
		history:     history,
		suggestions: suggestions,
		logger:      logger,
	}
}

// RegisterRoutes registers the query routes on the given mux. All routes
// require authentication.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/query/ask", authMiddleware.RequireAuth(h.Ask))
	mux.HandleFunc("POST /api/query/generate", authMiddleware.RequireAuth(h.Generate))
	mux.HandleFunc("POST /api/query/detect-parameters", authMiddleware.RequireAuth(h.DetectParameters))
	mux.HandleFunc("POST /api/query/execute", authMiddleware.RequireAuth(h.Execute))
	mux.HandleFunc("GET /api/query/history", authMiddleware.RequireAuth(h.History))
	mux.HandleFunc("PUT /api/query/history/{id}/favorite", authMiddleware.RequireAuth(h.ToggleFavorite))
	mux.HandleFunc("GET /api/query/suggestions", authMiddleware.RequireAuth(h.Suggestions))
	mux.HandleFunc("POST /api/query/feedback", authMiddleware.RequireAuth(h.RecordFeedback))
	mux.HandleFunc("GET /api/query/feedback", authMiddleware.RequireAuth(h.ListFeedback))
}

// Ask handles POST /api/query/ask.
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req services.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w, h.logger)
		return
	}

	response, err := h.pipeline.Ask(r.Context(), userID, req)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Generate handles POST /api/query/generate.
func (h *QueryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w, h.logger)
		return
	}

	generated, err := h.generator.Generate(r.Context(), userID, req.ConnectionID, req.Question, req.Parameters)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, generated); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// DetectParameters handles POST /api/query/detect-parameters.
func (h *QueryHandler) DetectParameters(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w, h.logger)
		return
	}

	result, err := h.params.Detect(r.Context(), userID, req.ConnectionID, req.Question)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Execute handles POST /api/query/execute.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w, h.logger)
		return
	}

	result, err := h.pipeline.ExecuteSQL(r.Context(), userID, req.ConnectionID, req.SQL)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// History handles GET /api/query/history. Supports connection_id,
// favorites_only, limit, and offset query parameters.
func (h *QueryHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	filters := repositories.HistoryFilters{}
	query := r.URL.Query()

	if raw := query.Get("connection_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_connection_id", "Invalid connection ID format"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		filters.ConnectionID = &id
	}
	filters.FavoritesOnly = query.Get("favorites_only") == "true"
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			filters.Limit = parsed
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			filters.Offset = parsed
		}
	}

	entries, total, err := h.history.List(r.Context(), userID, filters)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*models.HistoryEntry{}
	}

	if err := WriteJSON(w, http.StatusOK, HistoryListResponse{Entries: entries, Total: total}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ToggleFavorite handles PUT /api/query/history/{id}/favorite.
func (h *QueryHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_history_id", "Invalid history entry ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	favorite, err := h.history.ToggleFavorite(r.Context(), userID, id)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, FavoriteResponse{IsFavorite: favorite}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Suggestions handles GET /api/query/suggestions?connection_id=...
func (h *QueryHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	connectionID, err := uuid.Parse(r.URL.Query().Get("connection_id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_connection_id", "connection_id query parameter is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	suggestions, err := h.suggestions.SuggestQueries(r.Context(), userID, connectionID)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	if err := WriteJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: suggestions}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RecordFeedback handles POST /api/query/feedback.
func (h *QueryHandler) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var input services.CorrectionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadBody(w, h.logger)
		return
	}

	record, err := h.history.RecordCorrection(r.Context(), userID, input)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, record); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListFeedback handles GET /api/query/feedback.
func (h *QueryHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var connectionID *uuid.UUID
	if raw := r.URL.Query().Get("connection_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_connection_id", "Invalid connection ID format"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		connectionID = &id
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	records, err := h.history.ListFeedback(r.Context(), userID, connectionID, limit)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	if records == nil {
		records = []*models.FeedbackRecord{}
	}

	if err := WriteJSON(w, http.StatusOK, FeedbackListResponse{Feedback: records}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
