package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/hierarchy"
	"github.com/yourorg/communityhub/internal/security"
)

type appFixture struct {
	svc       *ApplicationService
	users     *fakeUserRepo
	templates *fakeTemplateRepo
	apps      *fakeApplicationRepo
	clock     time.Time
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	f := &appFixture{
		users:     newFakeUserRepo(),
		templates: newFakeTemplateRepo(),
		apps:      newFakeApplicationRepo(),
		clock:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewApplicationService(f.users, f.templates, f.apps, security.NewPermissionService(nil), nil)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *appFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *appFixture) addUser(role hierarchy.Role) *domain.User {
	return f.users.add(&domain.User{Username: "u", Role: role})
}

func (f *appFixture) addTemplate(dept domain.Department, active bool) *domain.ApplicationTemplate {
	template := &domain.ApplicationTemplate{Department: dept, Title: "Application", Active: active}
	f.templates.Create(template)
	return template
}

func TestSubmitCreatesPendingApplication(t *testing.T) {
	f := newAppFixture(t)
	applicant := f.addUser(hierarchy.RoleApplicant)
	template := f.addTemplate(domain.DepartmentCIV, true)

	app, err := f.svc.Submit(context.Background(), applicant.ID, template.ID, map[string]string{"age": "21"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if app.Status != domain.StatusPending {
		t.Errorf("expected PENDING, got %s", app.Status)
	}
	if app.Department != domain.DepartmentCIV {
		t.Errorf("expected department from template, got %s", app.Department)
	}
	if app.DenialCount != 0 {
		t.Errorf("expected zero denial count, got %d", app.DenialCount)
	}
}

func TestSubmitRejectsApplicantForReservedDepartment(t *testing.T) {
	f := newAppFixture(t)
	applicant := f.addUser(hierarchy.RoleApplicant)
	template := f.addTemplate(domain.DepartmentFHP, true)

	_, err := f.svc.Submit(context.Background(), applicant.ID, template.ID, nil)

	var eligErr *domain.EligibilityError
	if !errors.As(err, &eligErr) {
		t.Fatalf("expected EligibilityError, got %v", err)
	}
	if eligErr.Reason != domain.EligibilityRoleRestricted {
		t.Errorf("expected role_restricted, got %s", eligErr.Reason)
	}
}

func TestSubmitRejectsInactiveTemplate(t *testing.T) {
	f := newAppFixture(t)
	member := f.addUser(hierarchy.RoleMember)
	template := f.addTemplate(domain.DepartmentCIV, false)

	_, err := f.svc.Submit(context.Background(), member.ID, template.ID, nil)

	var eligErr *domain.EligibilityError
	if !errors.As(err, &eligErr) || eligErr.Reason != domain.EligibilityTemplateInactive {
		t.Fatalf("expected template_inactive eligibility error, got %v", err)
	}
}

func TestSubmitRejectsBannedUser(t *testing.T) {
	f := newAppFixture(t)
	banned := f.users.add(&domain.User{Username: "b", Role: hierarchy.RoleMember, IsBanned: true})
	template := f.addTemplate(domain.DepartmentCIV, true)

	_, err := f.svc.Submit(context.Background(), banned.ID, template.ID, nil)

	var permErr *domain.PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
}

func TestSubmitRejectsDuplicatePending(t *testing.T) {
	f := newAppFixture(t)
	member := f.addUser(hierarchy.RoleMember)
	template := f.addTemplate(domain.DepartmentCIV, true)

	if _, err := f.svc.Submit(context.Background(), member.ID, template.ID, nil); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}

	_, err := f.svc.Submit(context.Background(), member.ID, template.ID, nil)
	var eligErr *domain.EligibilityError
	if !errors.As(err, &eligErr) || eligErr.Reason != domain.EligibilityPendingExists {
		t.Fatalf("expected pending_exists eligibility error, got %v", err)
	}
}

func TestDenyStartsCooldownLadder(t *testing.T) {
	f := newAppFixture(t)
	member := f.addUser(hierarchy.RoleMember)
	admin := f.addUser(hierarchy.RoleAdmin)
	template := f.addTemplate(domain.DepartmentCIV, true)

	app, err := f.svc.Submit(context.Background(), member.ID, template.ID, nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	denied, err := f.svc.Review(context.Background(), app.ID, admin.ID, ReviewDeny, "not yet")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if denied.Status != domain.StatusDenied {
		t.Errorf("expected DENIED, got %s", denied.Status)
	}
	if denied.DenialCount != 1 {
		t.Errorf("expected denial count 1, got %d", denied.DenialCount)
	}
	if denied.CooldownUntil == nil {
		t.Fatal("expected cooldown to be set")
	}
	if want := f.clock.Add(24 * time.Hour); !denied.CooldownUntil.Equal(want) {
		t.Errorf("expected 24h cooldown until %v, got %v", want, denied.CooldownUntil)
	}

	// Resubmitting inside the window is rejected with the deadline attached.
	f.advance(time.Hour)
	_, err = f.svc.Submit(context.Background(), member.ID, template.ID, nil)
	var eligErr *domain.EligibilityError
	if !errors.As(err, &eligErr) || eligErr.Reason != domain.EligibilityCooldownActive {
		t.Fatalf("expected cooldown_active eligibility error, got %v", err)
	}
	if eligErr.CooldownUntil == nil || !eligErr.CooldownUntil.Equal(*denied.CooldownUntil) {
		t.Errorf("expected cooldown deadline in error, got %v", eligErr.CooldownUntil)
	}

	// After the window, resubmission works again.
	f.advance(24 * time.Hour)
	if _, err := f.svc.Submit(context.Background(), member.ID, template.ID, nil); err != nil {
		t.Fatalf("Submit after cooldown failed: %v", err)
	}
}

func TestRepeatedDenialsEscalateCooldown(t *testing.T) {
	f := newAppFixture(t)
	member := f.addUser(hierarchy.RoleMember)
	admin := f.addUser(hierarchy.RoleAdmin)
	template := f.addTemplate(domain.DepartmentCIV, true)

	wantCooldowns := []time.Duration{
		24 * time.Hour,
		7 * 24 * time.Hour,
		30 * 24 * time.Hour,
		30 * 24 * time.Hour, // clamped
	}

	for i, want := range wantCooldowns {
		app, err := f.svc.Submit(context.Background(), member.ID, template.ID, nil)
		if err != nil {
			t.Fatalf("Submit %d failed: %v", i+1, err)
		}
		if app.DenialCount != i {
			t.Fatalf("submission %d: expected carried denial count %d, got %d", i+1, i, app.DenialCount)
		}

		denied, err := f.svc.Review(context.Background(), app.ID, admin.ID, ReviewDeny, "")
		if err != nil {
			t.Fatalf("Review %d failed: %v", i+1, err)
		}
		if denied.DenialCount != i+1 {
			t.Errorf("denial %d: expected count %d, got %d", i+1, i+1, denied.DenialCount)
		}
		got := denied.CooldownUntil.Sub(f.clock)
		if got != want {
			t.Errorf("denial %d: expected cooldown %v, got %v", i+1, want, got)
		}

		f.advance(want + time.Minute)
	}
}

func TestAcceptMovesToAwaitingInterview(t *testing.T) {
	f := newAppFixture(t)
	member := f.addUser(hierarchy.RoleMember)
	admin := f.addUser(hierarchy.RoleAdmin)
	template := f.addTemplate(domain.DepartmentCIV, true)

	app, _ := f.svc.Submit(context.Background(), member.ID, template.ID, nil)

	accepted, err := f.svc.Review(context.Background(), app.ID, admin.ID, ReviewAccept, "welcome")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if accepted.Status != domain.StatusAccepted || accepted.InterviewStatus != domain.InterviewAwaiting {
		t.Fatalf("expected ACCEPTED/AWAITING_INTERVIEW, got %s/%s", accepted.Status, accepted.InterviewStatus)
	}
	if accepted.ReviewerID == nil || *accepted.ReviewerID != admin.ID {
		t.Errorf("expected reviewer %d stamped, got %v", admin.ID, accepted.ReviewerID)
	}

	notes, _ := f.apps.ListNotes(app.ID)
	if len(notes) != 1 || notes[0].Body != "welcome" {
		t.Errorf("expected one note, got %v", notes)
	}
}

func TestReviewRejectsNonPendingApplication(t *testing.T) {
	f := newAppFixture(t)
	member := f.addUser(hierarchy.RoleMember)
	admin := f.addUser(hierarchy.RoleAdmin)
	template := f.addTemplate(domain.DepartmentCIV, true)

	app, _ := f.svc.Submit(context.Background(), member.ID, template.ID, nil)
	if _, err := f.svc.Review(context.Background(), app.ID, admin.ID, ReviewAccept, ""); err != nil {
		t.Fatalf("Review failed: %v", err)
	}

	_, err := f.svc.Review(context.Background(), app.ID, admin.ID, ReviewDeny, "")
	var stateErr *domain.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %v", err)
	}
}

func TestReviewRequiresStaffRank(t *testing.T) {
	f := newAppFixture(t)
	member := f.addUser(hierarchy.RoleMember)
	other := f.addUser(hierarchy.RoleMember)
	template := f.addTemplate(domain.DepartmentCIV, true)

	app, _ := f.svc.Submit(context.Background(), member.ID, template.ID, nil)

	_, err := f.svc.Review(context.Background(), app.ID, other.ID, ReviewAccept, "")
	var permErr *domain.PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
}

func TestInterviewPassCompletesApplication(t *testing.T) {
	f := newAppFixture(t)
	member := f.addUser(hierarchy.RoleMember)
	admin := f.addUser(hierarchy.RoleAdmin)
	template := f.addTemplate(domain.DepartmentCIV, true)

	app, _ := f.svc.Submit(context.Background(), member.ID, template.ID, nil)
	f.svc.Review(context.Background(), app.ID, admin.ID, ReviewAccept, "")

	done, err := f.svc.RecordInterview(context.Background(), app.ID, admin.ID, InterviewPassed, "solid")
	if err != nil {
		t.Fatalf("RecordInterview failed: %v", err)
	}
	if done.Status != domain.StatusCompleted || done.InterviewStatus != domain.InterviewCompleted {
		t.Fatalf("expected COMPLETED/INTERVIEW_COMPLETED, got %s/%s", done.Status, done.InterviewStatus)
	}
	if done.InterviewCompletedAt == nil || !done.InterviewCompletedAt.Equal(f.clock) {
		t.Errorf("expected completion timestamp %v, got %v", f.clock, done.InterviewCompletedAt)
	}
}

func TestFirstInterviewFailureSchedulesRetry(t *testing.T) {
	f := newAppFixture(t)
	member := f.addUser(hierarchy.RoleMember)
	admin := f.addUser(hierarchy.RoleAdmin)
	template := f.addTemplate(domain.DepartmentCIV, true)

	app, _ := f.svc.Submit(context.Background(), member.ID, template.ID, nil)
	f.svc.Review(context.Background(), app.ID, admin.ID, ReviewAccept, "")

	failed, err := f.svc.RecordInterview(context.Background(), app.ID, admin.ID, InterviewFlunk, "")
	if err != nil {
		t.Fatalf("RecordInterview failed: %v", err)
	}
	if failed.Status != domain.StatusAccepted {
		t.Errorf("expected application to stay ACCEPTED, got %s", failed.Status)
	}
	if failed.InterviewStatus != domain.InterviewFailed {
		t.Errorf("expected INTERVIEW_FAILED, got %s", failed.InterviewStatus)
	}
	if failed.CooldownUntil == nil {
		t.Fatal("expected retry cooldown to be set")
	}
	if want := f.clock.Add(7 * 24 * time.Hour); !failed.CooldownUntil.Equal(want) {
		t.Errorf("expected retry at %v, got %v", want, failed.CooldownUntil)
	}

	// A retry attempt inside the cooldown is rejected.
	f.advance(time.Hour)
	_, err = f.svc.RecordInterview(context.Background(), app.ID, admin.ID, InterviewFlunk, "")
	var stateErr *domain.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError during retry cooldown, got %v", err)
	}
}

func TestSecondInterviewFailureDeniesWithoutLadder(t *testing.T) {
	f := newAppFixture(t)
	member := f.addUser(hierarchy.RoleMember)
	admin := f.addUser(hierarchy.RoleAdmin)
	template := f.addTemplate(domain.DepartmentCIV, true)

	app, _ := f.svc.Submit(context.Background(), member.ID, template.ID, nil)
	f.svc.Review(context.Background(), app.ID, admin.ID, ReviewAccept, "")
	first, err := f.svc.RecordInterview(context.Background(), app.ID, admin.ID, InterviewFlunk, "")
	if err != nil {
		t.Fatalf("first failure: %v", err)
	}
	retryCooldown := *first.CooldownUntil

	f.advance(7*24*time.Hour + time.Minute)
	second, err := f.svc.RecordInterview(context.Background(), app.ID, admin.ID, InterviewFlunk, "")
	if err != nil {
		t.Fatalf("second failure: %v", err)
	}

	if second.Status != domain.StatusDenied {
		t.Errorf("expected DENIED, got %s", second.Status)
	}
	if second.InterviewStatus != domain.InterviewNone {
		t.Errorf("expected interview status cleared, got %q", second.InterviewStatus)
	}
	// A terminal interview denial does not reach into the reapplication
	// ladder: denial count and cooldown stay as they were.
	if second.DenialCount != 0 {
		t.Errorf("expected denial count untouched, got %d", second.DenialCount)
	}
	if second.CooldownUntil == nil || !second.CooldownUntil.Equal(retryCooldown) {
		t.Errorf("expected cooldown untouched at %v, got %v", retryCooldown, second.CooldownUntil)
	}
}

func TestInterviewRejectsPendingApplication(t *testing.T) {
	f := newAppFixture(t)
	member := f.addUser(hierarchy.RoleMember)
	admin := f.addUser(hierarchy.RoleAdmin)
	template := f.addTemplate(domain.DepartmentCIV, true)

	app, _ := f.svc.Submit(context.Background(), member.ID, template.ID, nil)

	_, err := f.svc.RecordInterview(context.Background(), app.ID, admin.ID, InterviewPassed, "")
	var stateErr *domain.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %v", err)
	}
}

func TestReviewQueueVisibleToStaffOnly(t *testing.T) {
	f := newAppFixture(t)
	member := f.addUser(hierarchy.RoleMember)
	staff := f.addUser(hierarchy.RoleStaff)
	template := f.addTemplate(domain.DepartmentCIV, true)
	f.svc.Submit(context.Background(), member.ID, template.ID, nil)

	apps, err := f.svc.ListReviewQueue(context.Background(), staff.ID, domain.DepartmentCIV)
	if err != nil {
		t.Fatalf("ListReviewQueue failed: %v", err)
	}
	if len(apps) != 1 {
		t.Errorf("expected 1 pending application, got %d", len(apps))
	}

	_, err = f.svc.ListReviewQueue(context.Background(), member.ID, domain.DepartmentCIV)
	var permErr *domain.PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError for member, got %v", err)
	}
}

func TestOpenTemplatesServedFromCache(t *testing.T) {
	f := newAppFixture(t)
	f.addTemplate(domain.DepartmentCIV, true)

	first, err := f.svc.ListOpenTemplates(context.Background(), domain.DepartmentCIV)
	if err != nil {
		t.Fatalf("ListOpenTemplates failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 template, got %d", len(first))
	}

	// A template added after the first read is invisible until the cache
	// entry expires.
	f.addTemplate(domain.DepartmentCIV, true)
	second, err := f.svc.ListOpenTemplates(context.Background(), domain.DepartmentCIV)
	if err != nil {
		t.Fatalf("ListOpenTemplates failed: %v", err)
	}
	if len(second) != 1 {
		t.Errorf("expected cached result with 1 template, got %d", len(second))
	}
}
