// Package handlers exposes the HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteError maps a service error onto the HTTP surface. Unclassified errors
// become an opaque 500; the details only go to the log, sanitized.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, code, message := classify(err)

	if status == http.StatusInternalServerError {
		logger.Error("Unhandled service error", zap.String("error", logging.SanitizeError(err)))
	}

	// Generation failures carry the rejected SQL and the model's explanation
	// so the caller can inspect or correct the statement.
	var generation *apperrors.GenerationError
	if errors.As(err, &generation) && (generation.SQL != "" || generation.Explanation != "") {
		payload := map[string]string{"error": code, "message": message}
		if generation.SQL != "" {
			payload["sql"] = generation.SQL
		}
		if generation.Explanation != "" {
			payload["explanation"] = generation.Explanation
		}
		if writeErr := WriteJSON(w, status, payload); writeErr != nil {
			logger.Error("Failed to write error response", zap.Error(writeErr))
		}
		return
	}

	if writeErr := ErrorResponse(w, status, code, message); writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}

func classify(err error) (status int, code, message string) {
	var (
		connectivity *apperrors.ConnectivityError
		partial      *apperrors.PartialSchemaError
		generation   *apperrors.GenerationError
		violation    *apperrors.SafetyViolation
		execution    *apperrors.ExecutionError
		timeout      *apperrors.TimeoutError
	)

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, "validation_error", err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, apperrors.ErrNotIntrospected):
		return http.StatusConflict, "not_introspected", "schema has not been introspected yet; refresh the schema first"
	case errors.Is(err, apperrors.ErrPoolExhausted):
		return http.StatusServiceUnavailable, "pool_exhausted", "no database connection available; retry shortly"
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout, "timeout", err.Error()
	case errors.As(err, &violation):
		return http.StatusForbidden, string(violation.Reason), violation.Message
	case errors.As(err, &generation):
		return http.StatusUnprocessableEntity, "generation_failed", generation.Message
	case errors.As(err, &execution):
		return http.StatusBadRequest, "execution_failed", execution.Message
	case errors.As(err, &connectivity):
		return http.StatusBadGateway, "connectivity_error", logging.SanitizeError(connectivity)
	case errors.As(err, &partial):
		// Callers that can serve partial results handle this before calling
		// WriteError; reaching here means the partial snapshot was unusable.
		return http.StatusBadGateway, "partial_schema", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}
