package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yourorg/communityhub/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeError translates domain errors into HTTP responses. Tagged domain
// errors carry enough context to pick the status; anything unrecognized is
// a 500 with a generic body so internals never leak to clients.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var eligErr *domain.EligibilityError
	var permErr *domain.PermissionError
	var stateErr *domain.StateError
	var syncErr *domain.ExternalSyncError

	switch {
	case errors.As(err, &eligErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: eligErr.Error()})
	case errors.As(err, &permErr):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: permErr.Error()})
	case errors.As(err, &stateErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: stateErr.Error()})
	case errors.As(err, &syncErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: syncErr.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrAlreadyLinked):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		logger.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
