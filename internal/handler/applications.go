package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/security/middleware"
	"github.com/yourorg/communityhub/internal/service"
)

// SubmitRequest represents a new application submission
type SubmitRequest struct {
	TemplateID int64             `json:"templateId"`
	Responses  map[string]string `json:"responses"`
}

// ApplicationResponse represents an application on the wire
type ApplicationResponse struct {
	ID              int64             `json:"id"`
	UserID          int64             `json:"userId"`
	TemplateID      int64             `json:"templateId"`
	Department      string            `json:"department"`
	Status          string            `json:"status"`
	InterviewStatus string            `json:"interviewStatus,omitempty"`
	Responses       map[string]string `json:"responses,omitempty"`
	DenialCount     int               `json:"denialCount"`
	ReviewerID      *int64            `json:"reviewerId,omitempty"`
	CooldownUntil   *time.Time        `json:"cooldownUntil,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// NoteResponse represents an application note on the wire
type NoteResponse struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func toApplicationResponse(app *domain.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:              app.ID,
		UserID:          app.UserID,
		TemplateID:      app.TemplateID,
		Department:      string(app.Department),
		Status:          string(app.Status),
		InterviewStatus: string(app.InterviewStatus),
		Responses:       app.Responses,
		DenialCount:     app.DenialCount,
		ReviewerID:      app.ReviewerID,
		CooldownUntil:   app.CooldownUntil,
		CreatedAt:       app.CreatedAt,
		UpdatedAt:       app.UpdatedAt,
	}
}

func toApplicationResponses(apps []*domain.Application) []ApplicationResponse {
	out := make([]ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toApplicationResponse(app))
	}
	return out
}

// SubmitHandler handles new application submissions
type SubmitHandler struct {
	applicationService *service.ApplicationService
	logger             *slog.Logger
}

// NewSubmitHandler creates a new submit handler
func NewSubmitHandler(applicationService *service.ApplicationService, logger *slog.Logger) *SubmitHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &SubmitHandler{
		applicationService: applicationService,
		logger:             logger,
	}
}

// ServeHTTP handles POST /api/applications requests
func (h *SubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode submit request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	if req.TemplateID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "templateId is required"})
		return
	}

	app, err := h.applicationService.Submit(r.Context(), claims.UserID, req.TemplateID, req.Responses)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toApplicationResponse(app))
}

// ListApplicationsHandler lists the caller's own applications
type ListApplicationsHandler struct {
	applicationService *service.ApplicationService
	logger             *slog.Logger
}

// NewListApplicationsHandler creates a new list handler
func NewListApplicationsHandler(applicationService *service.ApplicationService, logger *slog.Logger) *ListApplicationsHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ListApplicationsHandler{
		applicationService: applicationService,
		logger:             logger,
	}
}

// ServeHTTP handles GET /api/applications requests
func (h *ListApplicationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	apps, err := h.applicationService.ListUserApplications(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponses(apps))
}

// GetApplicationHandler retrieves a single application with its notes
type GetApplicationHandler struct {
	applicationService *service.ApplicationService
	logger             *slog.Logger
}

// NewGetApplicationHandler creates a new get handler
func NewGetApplicationHandler(applicationService *service.ApplicationService, logger *slog.Logger) *GetApplicationHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &GetApplicationHandler{
		applicationService: applicationService,
		logger:             logger,
	}
}

// ApplicationDetailResponse bundles an application with its notes
type ApplicationDetailResponse struct {
	ApplicationResponse
	Notes []NoteResponse `json:"notes"`
}

// ServeHTTP handles GET /api/applications/{id} requests
func (h *GetApplicationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid application id"})
		return
	}

	app, notes, err := h.applicationService.GetApplication(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	detail := ApplicationDetailResponse{
		ApplicationResponse: toApplicationResponse(app),
		Notes:               make([]NoteResponse, 0, len(notes)),
	}
	for _, note := range notes {
		detail.Notes = append(detail.Notes, NoteResponse{
			ID:        note.ID,
			AuthorID:  note.AuthorID,
			Body:      note.Body,
			CreatedAt: note.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, detail)
}

// QueueHandler lists a department's pending review queue
type QueueHandler struct {
	applicationService *service.ApplicationService
	logger             *slog.Logger
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(applicationService *service.ApplicationService, logger *slog.Logger) *QueueHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &QueueHandler{
		applicationService: applicationService,
		logger:             logger,
	}
}

// ServeHTTP handles GET /api/departments/{department}/queue requests
func (h *QueueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	department := domain.Department(r.PathValue("department"))

	apps, err := h.applicationService.ListReviewQueue(r.Context(), claims.UserID, department)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponses(apps))
}

// TemplatesHandler lists a department's open application templates
type TemplatesHandler struct {
	applicationService *service.ApplicationService
	logger             *slog.Logger
}

// NewTemplatesHandler creates a new templates handler
func NewTemplatesHandler(applicationService *service.ApplicationService, logger *slog.Logger) *TemplatesHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &TemplatesHandler{
		applicationService: applicationService,
		logger:             logger,
	}
}

// TemplateResponse represents a template on the wire
type TemplateResponse struct {
	ID         int64     `json:"id"`
	Department string    `json:"department"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ServeHTTP handles GET /api/departments/{department}/templates requests
func (h *TemplatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	department := domain.Department(r.PathValue("department"))

	templates, err := h.applicationService.ListOpenTemplates(r.Context(), department)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]TemplateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, TemplateResponse{
			ID:         t.ID,
			Department: string(t.Department),
			Title:      t.Title,
			CreatedAt:  t.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}
