package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yourorg/communityhub/internal/security/middleware"
	"github.com/yourorg/communityhub/internal/service"
)

// InterviewRequest represents a recorded interview outcome
type InterviewRequest struct {
	Result string `json:"result"`
	Note   string `json:"note,omitempty"`
}

// InterviewHandler handles interview outcome recording
type InterviewHandler struct {
	applicationService *service.ApplicationService
	logger             *slog.Logger
}

// NewInterviewHandler creates a new interview handler
func NewInterviewHandler(applicationService *service.ApplicationService, logger *slog.Logger) *InterviewHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &InterviewHandler{
		applicationService: applicationService,
		logger:             logger,
	}
}

// ServeHTTP handles POST /api/applications/{id}/interview requests
func (h *InterviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	var req InterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode interview request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	result := service.InterviewResult(req.Result)
	if result != service.InterviewPassed && result != service.InterviewFlunk {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "result must be completed or failed"})
		return
	}

	app, err := h.applicationService.RecordInterview(r.Context(), id, claims.UserID, result, req.Note)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("interview recorded",
		slog.Int64("application_id", id),
		slog.Int64("recorder_id", claims.UserID),
		slog.String("result", req.Result),
	)

	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}
