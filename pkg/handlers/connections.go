package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/auth"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/services"
)

const defaultPreviewLimit = 50

// ListConnectionsResponse wraps the array for frontend compatibility.
type ListConnectionsResponse struct {
	Connections []*models.Connection `json:"connections"`
}

// TestConnectionResponse reports a connectivity probe result.
type TestConnectionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SchemaResponse is a snapshot plus an optional partial-introspection warning.
type SchemaResponse struct {
	*models.SchemaSnapshot
	Warning      string   `json:"warning,omitempty"`
	FailedTables []string `json:"failed_tables,omitempty"`
}

// ConnectionsHandler handles the connection registry and schema endpoints.
type ConnectionsHandler struct {
	connections services.ConnectionService
	schemas     services.SchemaService
	logger      *zap.Logger
}

func NewConnectionsHandler(connections services.ConnectionService, schemas services.SchemaService, logger *zap.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{
		connections: connections,
		schemas:     schemas,
		logger:      logger,
	}
}

// RegisterRoutes registers the connection routes on the given mux. All routes
// require authentication.
func (h *ConnectionsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/connections", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/connections", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/connections/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/connections/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/connections/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("POST /api/connections/{id}/test", authMiddleware.RequireAuth(h.Test))
	mux.HandleFunc("GET /api/connections/{id}/schema", authMiddleware.RequireAuth(h.Schema))
	mux.HandleFunc("POST /api/connections/{id}/refresh-schema", authMiddleware.RequireAuth(h.RefreshSchema))
	mux.HandleFunc("GET /api/connections/{id}/tables/{table}/preview", authMiddleware.RequireAuth(h.Preview))
}

// Create handles POST /api/connections.
func (h *ConnectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var input services.ConnectionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadBody(w, h.logger)
		return
	}

	conn, err := h.connections.Register(r.Context(), userID, input)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, conn); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/connections.
func (h *ConnectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	conns, err := h.connections.List(r.Context(), userID)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	if conns == nil {
		conns = []*models.Connection{}
	}

	if err := WriteJSON(w, http.StatusOK, ListConnectionsResponse{Connections: conns}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/connections/{id}.
func (h *ConnectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := parseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	conn, err := h.connections.Get(r.Context(), userID, id)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, conn); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/connections/{id}.
func (h *ConnectionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := parseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	var input services.ConnectionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadBody(w, h.logger)
		return
	}

	conn, err := h.connections.Update(r.Context(), userID, id, input)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, conn); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/connections/{id}.
func (h *ConnectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := parseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.connections.Delete(r.Context(), userID, id); err != nil {
		WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test handles POST /api/connections/{id}/test.
func (h *ConnectionsHandler) Test(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := parseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.connections.Test(r.Context(), userID, id); err != nil {
		var connectivity *apperrors.ConnectivityError
		if errors.As(err, &connectivity) {
			// A failed probe is a valid outcome, not a transport error.
			response := TestConnectionResponse{Success: false, Message: "connection failed"}
			if writeErr := WriteJSON(w, http.StatusOK, response); writeErr != nil {
				h.logger.Error("Failed to write response", zap.Error(writeErr))
			}
			return
		}
		WriteError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, TestConnectionResponse{Success: true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Schema handles GET /api/connections/{id}/schema.
func (h *ConnectionsHandler) Schema(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := parseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	snapshot, err := h.schemas.GetCached(r.Context(), userID, id)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, SchemaResponse{SchemaSnapshot: snapshot}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RefreshSchema handles POST /api/connections/{id}/refresh-schema. A partial
// walk still returns the snapshot, with a warning naming the failed tables.
func (h *ConnectionsHandler) RefreshSchema(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := parseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	snapshot, err := h.schemas.Refresh(r.Context(), userID, id)
	response := SchemaResponse{SchemaSnapshot: snapshot}

	if err != nil {
		var partial *apperrors.PartialSchemaError
		if !errors.As(err, &partial) || snapshot == nil {
			WriteError(w, h.logger, err)
			return
		}
		response.Warning = "some tables could not be introspected"
		response.FailedTables = partial.FailedTables
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Preview handles GET /api/connections/{id}/tables/{table}/preview.
func (h *ConnectionsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := parseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	limit := defaultPreviewLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		limit = parsed
	}

	result, err := h.schemas.Preview(r.Context(), userID, id, r.PathValue("table"), limit)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// requireUser extracts the authenticated user from the request context. The
// auth middleware guarantees it is present on protected routes.
func requireUser(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "missing authentication"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return userID, true
}

func parseConnectionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_connection_id", "Invalid connection ID format"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

func writeBadBody(w http.ResponseWriter, logger *zap.Logger) {
	if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
