package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/communityhub/internal/service"
)

// LoginRequest carries the platform identity asserted by the caller
type LoginRequest struct {
	ExternalID string `json:"externalId"`
	Username   string `json:"username"`
}

// LoginHandler handles external sign-in
type LoginHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(authService *service.AuthService, logger *slog.Logger) *LoginHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoginHandler{
		authService: authService,
		logger:      logger,
	}
}

// ServeHTTP handles POST /api/auth/login requests
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode login request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	if req.ExternalID == "" || req.Username == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "externalId and username required"})
		return
	}

	result, err := h.authService.SignInExternal(r.Context(), req.ExternalID, req.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("user signed in",
		slog.Int64("user_id", result.UserID),
		slog.String("username", result.Username),
	)

	writeJSON(w, http.StatusOK, result)
}
