package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/hierarchy"
	"github.com/yourorg/communityhub/internal/security/middleware"
	"github.com/yourorg/communityhub/internal/service"
)

// UserResponse represents a user on the wire
type UserResponse struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
	Department string    `json:"department,omitempty"`
	IsBanned   bool      `json:"isBanned"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		Role:       string(user.Role),
		Department: string(user.Department),
		IsBanned:   user.IsBanned,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}

func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return 0, false
	}
	return id, true
}

func requireClaims(w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return 0, false
	}
	return claims.UserID, true
}

// AssignRoleHandler handles role assignment
type AssignRoleHandler struct {
	userService *service.UserService
	logger      *slog.Logger
}

// NewAssignRoleHandler creates a new role assignment handler
func NewAssignRoleHandler(userService *service.UserService, logger *slog.Logger) *AssignRoleHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AssignRoleHandler{
		userService: userService,
		logger:      logger,
	}
}

// ServeHTTP handles POST /api/users/{id}/role requests
func (h *AssignRoleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireClaims(w, r)
	if !ok {
		return
	}
	targetID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	user, err := h.userService.AssignRole(r.Context(), actorID, targetID, hierarchy.Role(req.Role))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ChangeDepartmentHandler handles department transfers
type ChangeDepartmentHandler struct {
	userService *service.UserService
	logger      *slog.Logger
}

// NewChangeDepartmentHandler creates a new department handler
func NewChangeDepartmentHandler(userService *service.UserService, logger *slog.Logger) *ChangeDepartmentHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ChangeDepartmentHandler{
		userService: userService,
		logger:      logger,
	}
}

// ServeHTTP handles POST /api/users/{id}/department requests
func (h *ChangeDepartmentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireClaims(w, r)
	if !ok {
		return
	}
	targetID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Department string `json:"department"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	user, err := h.userService.ChangeDepartment(r.Context(), actorID, targetID, domain.Department(req.Department))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// BanHandler handles banning and unbanning users
type BanHandler struct {
	userService *service.UserService
	logger      *slog.Logger
}

// NewBanHandler creates a new ban handler
func NewBanHandler(userService *service.UserService, logger *slog.Logger) *BanHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &BanHandler{
		userService: userService,
		logger:      logger,
	}
}

// ServeHTTP handles POST /api/users/{id}/ban requests
func (h *BanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireClaims(w, r)
	if !ok {
		return
	}
	targetID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Banned bool `json:"banned"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	user, err := h.userService.SetBanned(r.Context(), actorID, targetID, req.Banned)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// DeleteUserHandler handles user deletion
type DeleteUserHandler struct {
	userService *service.UserService
	logger      *slog.Logger
}

// NewDeleteUserHandler creates a new delete handler
func NewDeleteUserHandler(userService *service.UserService, logger *slog.Logger) *DeleteUserHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &DeleteUserHandler{
		userService: userService,
		logger:      logger,
	}
}

// ServeHTTP handles DELETE /api/users/{id} requests
func (h *DeleteUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireClaims(w, r)
	if !ok {
		return
	}
	targetID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(r.Context(), actorID, targetID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetUserHandler retrieves a single user
type GetUserHandler struct {
	userService *service.UserService
	logger      *slog.Logger
}

// NewGetUserHandler creates a new get-user handler
func NewGetUserHandler(userService *service.UserService, logger *slog.Logger) *GetUserHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &GetUserHandler{
		userService: userService,
		logger:      logger,
	}
}

// ServeHTTP handles GET /api/users/{id} requests
func (h *GetUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(r.Context(), targetID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// SyncRoleHandler triggers an on-demand role sync against the platform
type SyncRoleHandler struct {
	userService *service.UserService
	roleSync    *service.RoleSyncService
	logger      *slog.Logger
}

// NewSyncRoleHandler creates a new sync handler
func NewSyncRoleHandler(userService *service.UserService, roleSync *service.RoleSyncService, logger *slog.Logger) *SyncRoleHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &SyncRoleHandler{
		userService: userService,
		roleSync:    roleSync,
		logger:      logger,
	}
}

// SyncRoleResponse reports a sync outcome
type SyncRoleResponse struct {
	UserID       int64  `json:"userId"`
	Role         string `json:"role"`
	ResolvedRole string `json:"resolvedRole,omitempty"`
	Applied      bool   `json:"applied"`
}

// ServeHTTP handles POST /api/users/{id}/sync-role requests
func (h *SyncRoleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.roleSync == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "role sync not configured"})
		return
	}

	targetID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(r.Context(), targetID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if user.ExternalID == "" {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "user has no linked platform identity"})
		return
	}

	resolved, applied, err := h.roleSync.SyncUser(r.Context(), user)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, SyncRoleResponse{
		UserID:       user.ID,
		Role:         string(user.Role),
		ResolvedRole: string(resolved),
		Applied:      applied,
	})
}
