package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/auth"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/services"
)

// VisualizationRequest carries a result set to chart.
type VisualizationRequest struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// VisualizationResponse lists chart suggestions for a result set.
type VisualizationResponse struct {
	Suggestions []models.VisualizationSuggestion `json:"suggestions"`
}

// VisualizationsHandler suggests chart types for query results.
type VisualizationsHandler struct {
	suggestions services.SuggestionService
	logger      *zap.Logger
}

func NewVisualizationsHandler(suggestions services.SuggestionService, logger *zap.Logger) *VisualizationsHandler {
	return &VisualizationsHandler{suggestions: suggestions, logger: logger}
}

// RegisterRoutes registers the visualization routes on the given mux.
func (h *VisualizationsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/visualizations/suggest", authMiddleware.RequireAuth(h.Suggest))
}

// Suggest handles POST /api/visualizations/suggest.
func (h *VisualizationsHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r, h.logger); !ok {
		return
	}

	var req VisualizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w, h.logger)
		return
	}

	suggestions, err := h.suggestions.SuggestVisualizations(r.Context(), req.Columns, req.Rows)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	if suggestions == nil {
		suggestions = []models.VisualizationSuggestion{}
	}

	if err := WriteJSON(w, http.StatusOK, VisualizationResponse{Suggestions: suggestions}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
