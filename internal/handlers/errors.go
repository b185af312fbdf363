package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"askgraph/internal/apperrors"
	"askgraph/internal/contextutil"
	"askgraph/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleServiceError maps service errors to appropriate HTTP status codes and responses.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "service error", "error", err)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %s", validationErr.Error()))
		return
	}

	var configErr *apperrors.ConfigError
	if errors.As(err, &configErr) {
		writeError(w, http.StatusBadRequest, configErr.Error())
		return
	}

	// Auth wins over collaborator failures so a rejected storage key is
	// reported as such. A collaborator failure wins over not-found: a missing
	// record behind a failing collaborator is not a missing index.
	switch {
	case errors.Is(err, apperrors.ErrAuth):
		writeError(w, http.StatusUnauthorized, "Storage credentials rejected")
	case errors.Is(err, apperrors.ErrCollaborator):
		writeError(w, http.StatusBadGateway, "External service error")
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "No index available, run indexing first")
	case errors.Is(err, apperrors.ErrBuildInProgress):
		writeError(w, http.StatusConflict, "Indexing already in progress")
	case errors.Is(err, apperrors.ErrEmptyInput):
		writeError(w, http.StatusUnprocessableEntity, "No indexable content")
	default:
		writeError(w, http.StatusInternalServerError, defaultMsg)
	}
}

// writeJSON writes v with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
