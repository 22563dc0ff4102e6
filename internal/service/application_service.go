package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/eligibility"
	"github.com/yourorg/communityhub/internal/observability/metrics"
	"github.com/yourorg/communityhub/internal/security"
	"github.com/yourorg/communityhub/pkg/cache"
)

// ReviewAction is a reviewer's decision on a pending application
type ReviewAction string

const (
	ReviewAccept ReviewAction = "accept"
	ReviewDeny   ReviewAction = "deny"
)

// InterviewResult is the recorded outcome of an interview
type InterviewResult string

const (
	InterviewPassed InterviewResult = "completed"
	InterviewFlunk  InterviewResult = "failed"
)

const templateCacheTTL = 5 * time.Minute

// ApplicationService owns the application lifecycle: submission through
// review and interview to a terminal state. All transitions run through
// here; repositories only persist them.
type ApplicationService struct {
	users         domain.UserRepository
	templates     domain.TemplateRepository
	applications  domain.ApplicationRepository
	perms         *security.PermissionService
	templateCache *cache.Cache
	logger        *slog.Logger
	now           func() time.Time
}

// NewApplicationService creates a new application service
func NewApplicationService(
	users domain.UserRepository,
	templates domain.TemplateRepository,
	applications domain.ApplicationRepository,
	perms *security.PermissionService,
	logger *slog.Logger,
) *ApplicationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApplicationService{
		users:         users,
		templates:     templates,
		applications:  applications,
		perms:         perms,
		templateCache: cache.New(),
		logger:        logger,
		now:           time.Now,
	}
}

// Submit creates a new PENDING application for the user against the given
// template, after the eligibility and cooldown gates pass
func (s *ApplicationService) Submit(ctx context.Context, userID, templateID int64, responses map[string]string) (*domain.Application, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.IsBanned {
		return nil, &domain.PermissionError{Action: "submit an application", ActorRole: user.Role}
	}

	template, err := s.templates.GetByID(templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	dept := template.Department

	if !template.Active {
		metrics.ObserveSubmission(string(dept), "template_inactive")
		return nil, &domain.EligibilityError{Reason: domain.EligibilityTemplateInactive, Department: dept}
	}

	if !eligibility.CanSubmit(user.Role, dept) {
		metrics.ObserveSubmission(string(dept), "role_restricted")
		return nil, &domain.EligibilityError{Reason: domain.EligibilityRoleRestricted, Department: dept}
	}

	pending, err := s.applications.FindPending(userID, dept)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending applications: %w", err)
	}
	if pending != nil {
		metrics.ObserveSubmission(string(dept), "pending_exists")
		return nil, &domain.EligibilityError{Reason: domain.EligibilityPendingExists, Department: dept}
	}

	denied, err := s.applications.LatestDenied(userID, dept)
	if err != nil {
		return nil, fmt.Errorf("failed to check denial history: %w", err)
	}
	if denied != nil && denied.CooldownUntil != nil && s.now().Before(*denied.CooldownUntil) {
		metrics.ObserveSubmission(string(dept), "cooldown_active")
		return nil, &domain.EligibilityError{
			Reason:        domain.EligibilityCooldownActive,
			Department:    dept,
			CooldownUntil: denied.CooldownUntil,
		}
	}

	app := &domain.Application{
		UserID:     userID,
		TemplateID: templateID,
		Department: dept,
		Status:     domain.StatusPending,
		Responses:  responses,
	}
	// Denial history travels with the user per department so repeated
	// denials keep escalating the cooldown ladder.
	if denied != nil {
		app.DenialCount = denied.DenialCount
	}
	if err := s.applications.Create(app); err != nil {
		// A concurrent submission can slip past the FindPending check; the
		// storage-level guard catches it.
		if errors.Is(err, domain.ErrPendingExists) {
			metrics.ObserveSubmission(string(dept), "pending_exists")
			return nil, &domain.EligibilityError{Reason: domain.EligibilityPendingExists, Department: dept}
		}
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	metrics.ObserveSubmission(string(dept), "created")
	s.logger.Info("application submitted",
		slog.Int64("application_id", app.ID),
		slog.Int64("user_id", userID),
		slog.String("department", string(dept)),
	)
	return app, nil
}

// Review applies a reviewer's accept/deny decision to a pending
// application. The reviewer is stamped on first review; a denial advances
// the cooldown ladder using the incremented denial count.
func (s *ApplicationService) Review(ctx context.Context, applicationID, reviewerID int64, action ReviewAction, note string) (*domain.Application, error) {
	reviewer, err := s.users.GetByID(reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviewer: %w", err)
	}
	if !s.perms.CanReviewApplications(reviewer.Role) {
		return nil, &domain.PermissionError{Action: "review applications", ActorRole: reviewer.Role}
	}

	app, err := s.applications.GetByID(applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	if app.Status != domain.StatusPending {
		return nil, &domain.StateError{Op: "review", Status: app.Status, InterviewStatus: app.InterviewStatus}
	}

	prevStatus, prevInterview := app.Status, app.InterviewStatus
	now := s.now()
	app.ReviewerID = &reviewerID

	switch action {
	case ReviewAccept:
		app.Status = domain.StatusAccepted
		app.InterviewStatus = domain.InterviewAwaiting
	case ReviewDeny:
		app.Status = domain.StatusDenied
		app.DenialCount++
		app.LastDeniedAt = &now
		if d, ok := eligibility.CooldownFor(app.DenialCount); ok {
			until := now.Add(d)
			app.CooldownUntil = &until
		}
	default:
		return nil, &domain.StateError{Op: "review action " + string(action), Status: app.Status}
	}

	if err := s.update(app, prevStatus, prevInterview, "review"); err != nil {
		return nil, err
	}
	s.appendNote(app.ID, reviewerID, note, now)

	metrics.ObserveReview(string(action))
	s.logger.Info("application reviewed",
		slog.Int64("application_id", app.ID),
		slog.Int64("reviewer_id", reviewerID),
		slog.String("action", string(action)),
		slog.Int("denial_count", app.DenialCount),
	)
	return app, nil
}

// RecordInterview records an interview outcome on an accepted application.
// A first failure schedules a retry after a cooldown; a second failure
// denies the application outright without touching the reapplication
// cooldown ladder.
func (s *ApplicationService) RecordInterview(ctx context.Context, applicationID, recorderID int64, result InterviewResult, note string) (*domain.Application, error) {
	recorder, err := s.users.GetByID(recorderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recorder: %w", err)
	}
	if !s.perms.CanReviewApplications(recorder.Role) {
		return nil, &domain.PermissionError{Action: "record interviews", ActorRole: recorder.Role}
	}

	app, err := s.applications.GetByID(applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}

	now := s.now()
	if !s.interviewable(app, now) {
		s.logger.Warn("interview recorded in invalid state",
			slog.Int64("application_id", app.ID),
			slog.String("status", string(app.Status)),
			slog.String("interview_status", string(app.InterviewStatus)),
		)
		return nil, &domain.StateError{Op: "record interview", Status: app.Status, InterviewStatus: app.InterviewStatus}
	}

	prevStatus, prevInterview := app.Status, app.InterviewStatus

	switch result {
	case InterviewPassed:
		app.Status = domain.StatusCompleted
		app.InterviewStatus = domain.InterviewCompleted
		app.InterviewCompletedAt = &now
	case InterviewFlunk:
		if app.InterviewFailedAt == nil {
			// First failure: one more attempt after the cooldown elapses.
			app.InterviewStatus = domain.InterviewFailed
			app.InterviewFailedAt = &now
			until := now.Add(eligibility.InterviewRetryCooldown)
			app.CooldownUntil = &until
		} else {
			// Second failure is final. The denial ladder is deliberately not
			// applied here; see the dedicated test before changing this.
			app.Status = domain.StatusDenied
			app.InterviewStatus = domain.InterviewNone
		}
	default:
		return nil, &domain.StateError{Op: "interview result " + string(result), Status: app.Status, InterviewStatus: app.InterviewStatus}
	}

	if err := s.update(app, prevStatus, prevInterview, "record interview"); err != nil {
		return nil, err
	}
	s.appendNote(app.ID, recorderID, note, now)

	metrics.ObserveInterview(string(result))
	s.logger.Info("interview recorded",
		slog.Int64("application_id", app.ID),
		slog.String("result", string(result)),
		slog.String("status", string(app.Status)),
	)
	return app, nil
}

// GetApplication returns a single application with its notes loaded
func (s *ApplicationService) GetApplication(ctx context.Context, applicationID int64) (*domain.Application, []*domain.ApplicationNote, error) {
	app, err := s.applications.GetByID(applicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load application: %w", err)
	}
	notes, err := s.applications.ListNotes(applicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load notes: %w", err)
	}
	return app, notes, nil
}

// ListUserApplications returns the user's applications, newest first
func (s *ApplicationService) ListUserApplications(ctx context.Context, userID int64) ([]*domain.Application, error) {
	return s.applications.ListByUser(userID)
}

// ListReviewQueue returns the pending applications for a department,
// visible to reviewers only
func (s *ApplicationService) ListReviewQueue(ctx context.Context, actorID int64, department domain.Department) ([]*domain.Application, error) {
	actor, err := s.users.GetByID(actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !s.perms.CanReviewApplications(actor.Role) {
		return nil, &domain.PermissionError{Action: "view the review queue", ActorRole: actor.Role}
	}
	return s.applications.ListPendingByDepartment(department)
}

// ListOpenTemplates returns the active templates for a department, served
// from a short-lived cache
func (s *ApplicationService) ListOpenTemplates(ctx context.Context, department domain.Department) ([]*domain.ApplicationTemplate, error) {
	key := "templates:" + string(department)
	if cached, ok := s.templateCache.Get(key); ok {
		return cached.([]*domain.ApplicationTemplate), nil
	}
	templates, err := s.templates.ListActiveByDepartment(department)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	s.templateCache.Set(key, templates, templateCacheTTL)
	return templates, nil
}

// interviewable reports whether an interview outcome may be recorded:
// the application is accepted and either awaiting its first interview or
// past the retry cooldown after a first failure
func (s *ApplicationService) interviewable(app *domain.Application, now time.Time) bool {
	if app.Status != domain.StatusAccepted {
		return false
	}
	switch app.InterviewStatus {
	case domain.InterviewAwaiting:
		return true
	case domain.InterviewFailed:
		return app.CooldownUntil == nil || !now.Before(*app.CooldownUntil)
	default:
		return false
	}
}

func (s *ApplicationService) update(app *domain.Application, prevStatus domain.Status, prevInterview domain.InterviewStatus, op string) error {
	err := s.applications.Update(app, prevStatus, prevInterview)
	if errors.Is(err, domain.ErrStaleApplication) {
		s.logger.Warn("lost update race",
			slog.Int64("application_id", app.ID),
			slog.String("op", op),
		)
		return &domain.StateError{Op: op, Status: prevStatus, InterviewStatus: prevInterview}
	}
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	return nil
}

func (s *ApplicationService) appendNote(applicationID, authorID int64, body string, at time.Time) {
	if body == "" {
		return
	}
	note := &domain.ApplicationNote{
		ApplicationID: applicationID,
		AuthorID:      authorID,
		Body:          body,
		CreatedAt:     at,
	}
	if err := s.applications.AppendNote(note); err != nil {
		s.logger.Error("failed to append note",
			slog.Int64("application_id", applicationID),
			slog.String("error", err.Error()),
		)
	}
}
