package test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/handler"
	"github.com/yourorg/communityhub/internal/hierarchy"
	"github.com/yourorg/communityhub/internal/security"
	"github.com/yourorg/communityhub/internal/security/audit"
	"github.com/yourorg/communityhub/internal/security/auth"
	"github.com/yourorg/communityhub/internal/security/middleware"
	"github.com/yourorg/communityhub/internal/service"
)

// TestServerHelper wires the real handlers, services, and JWT middleware
// over in-memory repositories so the full request path can be exercised
// without Postgres.
type TestServerHelper struct {
	Server    *httptest.Server
	Users     *MemoryUserRepo
	Templates *MemoryTemplateRepo
	Apps      *MemoryApplicationRepo
	tokens    *auth.TokenManager
	t         *testing.T
}

func NewTestServer(t *testing.T) *TestServerHelper {
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	users := NewMemoryUserRepo()
	templates := NewMemoryTemplateRepo()
	apps := NewMemoryApplicationRepo()

	perms := security.NewPermissionService(log)
	auditLogger := audit.NewLogger(log)
	tokens := auth.NewTokenManager("integration-secret", "communityhub-test")

	applicationService := service.NewApplicationService(users, templates, apps, perms, log)
	authService := service.NewAuthService(users, nil, tokens, log)
	userService := service.NewUserService(users, perms, auditLogger, log)

	mux := http.NewServeMux()
	mux.Handle("POST /api/auth/login", handler.NewLoginHandler(authService, log))
	mux.Handle("POST /api/applications", handler.NewSubmitHandler(applicationService, log))
	mux.Handle("GET /api/applications", handler.NewListApplicationsHandler(applicationService, log))
	mux.Handle("GET /api/applications/{id}", handler.NewGetApplicationHandler(applicationService, log))
	mux.Handle("POST /api/applications/{id}/review", handler.NewReviewHandler(applicationService, log))
	mux.Handle("POST /api/applications/{id}/interview", handler.NewInterviewHandler(applicationService, log))
	mux.Handle("GET /api/departments/{department}/queue", handler.NewQueueHandler(applicationService, log))
	mux.Handle("GET /api/departments/{department}/templates", handler.NewTemplatesHandler(applicationService, log))
	mux.Handle("GET /api/users/{id}", handler.NewGetUserHandler(userService, log))
	mux.Handle("POST /api/users/{id}/role", handler.NewAssignRoleHandler(userService, log))
	mux.Handle("POST /api/users/{id}/department", handler.NewChangeDepartmentHandler(userService, log))
	mux.Handle("POST /api/users/{id}/ban", handler.NewBanHandler(userService, log))
	mux.Handle("DELETE /api/users/{id}", handler.NewDeleteUserHandler(userService, log))

	root := middleware.JWTMiddleware(tokens, log)(mux)
	server := httptest.NewServer(root)

	return &TestServerHelper{
		Server:    server,
		Users:     users,
		Templates: templates,
		Apps:      apps,
		tokens:    tokens,
		t:         t,
	}
}

func (h *TestServerHelper) Close() {
	h.Server.Close()
}

func (h *TestServerHelper) URL() string {
	return h.Server.URL
}

// Seed inserts a user directly and returns it
func (h *TestServerHelper) Seed(username string, role hierarchy.Role) *domain.User {
	user := &domain.User{Username: username, Role: role, ExternalID: "ext-" + username}
	if err := h.Users.Create(user); err != nil {
		h.t.Fatalf("failed to seed user %s: %v", username, err)
	}
	return user
}

// SeedTemplate inserts an active template and returns it
func (h *TestServerHelper) SeedTemplate(department domain.Department) *domain.ApplicationTemplate {
	template := &domain.ApplicationTemplate{Department: department, Title: string(department) + " Application", Active: true}
	if err := h.Templates.Create(template); err != nil {
		h.t.Fatalf("failed to seed template: %v", err)
	}
	return template
}

// TokenFor mints a session token for a seeded user
func (h *TestServerHelper) TokenFor(user *domain.User) string {
	token, _, err := h.tokens.GenerateToken(user)
	if err != nil {
		h.t.Fatalf("failed to mint token: %v", err)
	}
	return token
}

// Do sends a JSON request with the given token and returns the response
func (h *TestServerHelper) Do(method, path, token string, payload any) *http.Response {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			h.t.Fatalf("failed to encode payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, h.Server.URL+path, body)
	if err != nil {
		h.t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("request failed: %v", err)
	}
	return resp
}

// Decode reads a JSON response body into a map and closes the body
func Decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

// AssertStatusCode fails the test when the response status differs
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}

// MemoryUserRepo is an in-memory domain.UserRepository
type MemoryUserRepo struct {
	users  map[int64]*domain.User
	nextID int64
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: map[int64]*domain.User{}, nextID: 1}
}

func (r *MemoryUserRepo) Create(user *domain.User) error {
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *MemoryUserRepo) GetByID(id int64) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *MemoryUserRepo) GetByUsername(username string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryUserRepo) GetByExternalID(externalID string) (*domain.User, error) {
	for _, user := range r.users {
		if user.ExternalID == externalID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryUserRepo) LinkExternalID(id int64, externalID string) error {
	user, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	if user.ExternalID != "" {
		return domain.ErrAlreadyLinked
	}
	user.ExternalID = externalID
	return nil
}

func (r *MemoryUserRepo) UpdateRole(id int64, role hierarchy.Role) error {
	user, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.Role = role
	return nil
}

func (r *MemoryUserRepo) UpdateDepartment(id int64, department domain.Department) error {
	user, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.Department = department
	return nil
}

func (r *MemoryUserRepo) SetBanned(id int64, banned bool) error {
	user, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.IsBanned = banned
	return nil
}

func (r *MemoryUserRepo) Delete(id int64) error {
	if _, ok := r.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// MemoryTemplateRepo is an in-memory domain.TemplateRepository
type MemoryTemplateRepo struct {
	templates map[int64]*domain.ApplicationTemplate
	nextID    int64
}

func NewMemoryTemplateRepo() *MemoryTemplateRepo {
	return &MemoryTemplateRepo{templates: map[int64]*domain.ApplicationTemplate{}, nextID: 1}
}

func (r *MemoryTemplateRepo) Create(template *domain.ApplicationTemplate) error {
	template.ID = r.nextID
	r.nextID++
	template.CreatedAt = time.Now()
	copied := *template
	r.templates[template.ID] = &copied
	return nil
}

func (r *MemoryTemplateRepo) GetByID(id int64) (*domain.ApplicationTemplate, error) {
	template, ok := r.templates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *template
	return &copied, nil
}

func (r *MemoryTemplateRepo) ListActiveByDepartment(department domain.Department) ([]*domain.ApplicationTemplate, error) {
	var out []*domain.ApplicationTemplate
	for _, template := range r.templates {
		if template.Department == department && template.Active {
			copied := *template
			out = append(out, &copied)
		}
	}
	return out, nil
}

// MemoryApplicationRepo is an in-memory domain.ApplicationRepository with
// the same pending-uniqueness and guarded-update behavior as the Postgres
// implementation
type MemoryApplicationRepo struct {
	apps   map[int64]*domain.Application
	notes  []*domain.ApplicationNote
	nextID int64
}

func NewMemoryApplicationRepo() *MemoryApplicationRepo {
	return &MemoryApplicationRepo{apps: map[int64]*domain.Application{}, nextID: 1}
}

func (r *MemoryApplicationRepo) Create(app *domain.Application) error {
	for _, existing := range r.apps {
		if existing.UserID == app.UserID && existing.Department == app.Department && existing.Status == domain.StatusPending {
			return domain.ErrPendingExists
		}
	}
	app.ID = r.nextID
	r.nextID++
	app.CreatedAt = time.Now()
	app.UpdatedAt = app.CreatedAt
	copied := *app
	r.apps[app.ID] = &copied
	return nil
}

func (r *MemoryApplicationRepo) GetByID(id int64) (*domain.Application, error) {
	app, ok := r.apps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *app
	return &copied, nil
}

func (r *MemoryApplicationRepo) FindPending(userID int64, department domain.Department) (*domain.Application, error) {
	for _, app := range r.apps {
		if app.UserID == userID && app.Department == department && app.Status == domain.StatusPending {
			copied := *app
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *MemoryApplicationRepo) LatestDenied(userID int64, department domain.Department) (*domain.Application, error) {
	var latest *domain.Application
	for _, app := range r.apps {
		if app.UserID == userID && app.Department == department && app.Status == domain.StatusDenied {
			if latest == nil || app.UpdatedAt.After(latest.UpdatedAt) {
				latest = app
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (r *MemoryApplicationRepo) ListByUser(userID int64) ([]*domain.Application, error) {
	var out []*domain.Application
	for _, app := range r.apps {
		if app.UserID == userID {
			copied := *app
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *MemoryApplicationRepo) ListPendingByDepartment(department domain.Department) ([]*domain.Application, error) {
	var out []*domain.Application
	for _, app := range r.apps {
		if app.Department == department && app.Status == domain.StatusPending {
			copied := *app
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *MemoryApplicationRepo) Update(app *domain.Application, prevStatus domain.Status, prevInterview domain.InterviewStatus) error {
	stored, ok := r.apps[app.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != prevStatus || stored.InterviewStatus != prevInterview {
		return domain.ErrStaleApplication
	}
	app.UpdatedAt = time.Now()
	copied := *app
	r.apps[app.ID] = &copied
	return nil
}

func (r *MemoryApplicationRepo) AppendNote(note *domain.ApplicationNote) error {
	note.ID = int64(len(r.notes) + 1)
	r.notes = append(r.notes, note)
	return nil
}

func (r *MemoryApplicationRepo) ListNotes(applicationID int64) ([]*domain.ApplicationNote, error) {
	var out []*domain.ApplicationNote
	for _, note := range r.notes {
		if note.ApplicationID == applicationID {
			out = append(out, note)
		}
	}
	return out, nil
}
