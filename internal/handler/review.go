package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yourorg/communityhub/internal/security/middleware"
	"github.com/yourorg/communityhub/internal/service"
)

// ReviewRequest represents a reviewer's decision
type ReviewRequest struct {
	Action string `json:"action"`
	Note   string `json:"note,omitempty"`
}

// ReviewHandler handles review decisions on pending applications
type ReviewHandler struct {
	applicationService *service.ApplicationService
	logger             *slog.Logger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(applicationService *service.ApplicationService, logger *slog.Logger) *ReviewHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ReviewHandler{
		applicationService: applicationService,
		logger:             logger,
	}
}

// ServeHTTP handles POST /api/applications/{id}/review requests
func (h *ReviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid application id"})
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode review request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	action := service.ReviewAction(req.Action)
	if action != service.ReviewAccept && action != service.ReviewDeny {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "action must be accept or deny"})
		return
	}

	app, err := h.applicationService.Review(r.Context(), id, claims.UserID, action, req.Note)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("application reviewed",
		slog.Int64("application_id", id),
		slog.Int64("reviewer_id", claims.UserID),
		slog.String("action", req.Action),
	)

	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}
