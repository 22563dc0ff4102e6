package service

import (
	"context"
	"time"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/hierarchy"
	"github.com/yourorg/communityhub/internal/infrastructure/platform"
)

// In-memory repositories backing the service tests. They honor the same
// guarantees the Postgres implementations do: the at-most-one-PENDING
// guard on Create and the guarded Update.

type fakeUserRepo struct {
	users  map[int64]*domain.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]*domain.User{}, nextID: 1}
}

func (r *fakeUserRepo) add(user *domain.User) *domain.User {
	if user.ID == 0 {
		user.ID = r.nextID
		r.nextID++
	} else if user.ID >= r.nextID {
		r.nextID = user.ID + 1
	}
	r.users[user.ID] = user
	return user
}

func (r *fakeUserRepo) Create(user *domain.User) error {
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.add(user)
	return nil
}

func (r *fakeUserRepo) GetByID(id int64) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(username string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeUserRepo) GetByExternalID(externalID string) (*domain.User, error) {
	for _, user := range r.users {
		if user.ExternalID == externalID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeUserRepo) LinkExternalID(id int64, externalID string) error {
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

func (r *fakeUserRepo) UpdateRole(id int64, role hierarchy.Role) error {
	user, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.Role = role
	return nil
}

func (r *fakeUserRepo) UpdateDepartment(id int64, department domain.Department) error {
	user, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.Department = department
	return nil
}

func (r *fakeUserRepo) SetBanned(id int64, banned bool) error {
	user, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.IsBanned = banned
	return nil
}

func (r *fakeUserRepo) Delete(id int64) error {
	if _, ok := r.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeTemplateRepo struct {
	templates map[int64]*domain.ApplicationTemplate
	nextID    int64
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: map[int64]*domain.ApplicationTemplate{}, nextID: 1}
}

func (r *fakeTemplateRepo) Create(template *domain.ApplicationTemplate) error {
	template.ID = r.nextID
	r.nextID++
	template.CreatedAt = time.Now()
	r.templates[template.ID] = template
	return nil
}

func (r *fakeTemplateRepo) GetByID(id int64) (*domain.ApplicationTemplate, error) {
	template, ok := r.templates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *template
	return &copied, nil
}

func (r *fakeTemplateRepo) ListActiveByDepartment(department domain.Department) ([]*domain.ApplicationTemplate, error) {
	var out []*domain.ApplicationTemplate
	for _, template := range r.templates {
		if template.Department == department && template.Active {
			copied := *template
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeApplicationRepo struct {
	apps   map[int64]*domain.Application
	notes  []*domain.ApplicationNote
	nextID int64
}

func newFakeApplicationRepo() *fakeApplicationRepo {
	return &fakeApplicationRepo{apps: map[int64]*domain.Application{}, nextID: 1}
}

func (r *fakeApplicationRepo) Create(app *domain.Application) error {
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

func (r *fakeApplicationRepo) GetByID(id int64) (*domain.Application, error) {
	app, ok := r.apps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *app
	return &copied, nil
}

func (r *fakeApplicationRepo) FindPending(userID int64, department domain.Department) (*domain.Application, error) {
	for _, app := range r.apps {
		if app.UserID == userID && app.Department == department && app.Status == domain.StatusPending {
			copied := *app
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeApplicationRepo) LatestDenied(userID int64, department domain.Department) (*domain.Application, error) {
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

func (r *fakeApplicationRepo) ListByUser(userID int64) ([]*domain.Application, error) {
	var out []*domain.Application
	for _, app := range r.apps {
		if app.UserID == userID {
			copied := *app
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeApplicationRepo) ListPendingByDepartment(department domain.Department) ([]*domain.Application, error) {
	var out []*domain.Application
	for _, app := range r.apps {
		if app.Department == department && app.Status == domain.StatusPending {
			copied := *app
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeApplicationRepo) Update(app *domain.Application, prevStatus domain.Status, prevInterview domain.InterviewStatus) error {
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

func (r *fakeApplicationRepo) AppendNote(note *domain.ApplicationNote) error {
	note.ID = int64(len(r.notes) + 1)
	r.notes = append(r.notes, note)
	return nil
}

func (r *fakeApplicationRepo) ListNotes(applicationID int64) ([]*domain.ApplicationNote, error) {
	var out []*domain.ApplicationNote
	for _, note := range r.notes {
		if note.ApplicationID == applicationID {
			out = append(out, note)
		}
	}
	return out, nil
}

// fakePlatform returns queued results in order, repeating the last one
type fakePlatform struct {
	results []platform.GroupsResult
	calls   int
}

func (p *fakePlatform) FetchGroupRoles(ctx context.Context, externalID string) platform.GroupsResult {
	p.calls++
	if len(p.results) == 0 {
		return platform.GroupsResult{Status: platform.StatusError}
	}
	res := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return res
}

type fakeSyncCache struct {
	values map[string]string
}

func newFakeSyncCache() *fakeSyncCache {
	return &fakeSyncCache{values: map[string]string{}}
}

func (c *fakeSyncCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *fakeSyncCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.values[key] = value
	return nil
}
