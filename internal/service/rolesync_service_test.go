package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/hierarchy"
	"github.com/yourorg/communityhub/internal/infrastructure/platform"
)

func newSyncService(client *fakePlatform, users *fakeUserRepo, cache SyncCache) *RoleSyncService {
	svc := NewRoleSyncService(client, users, cache, nil)
	svc.sleep = func(time.Duration) {}
	return svc
}

func TestResolvePicksHighestAuthorityGroup(t *testing.T) {
	client := &fakePlatform{results: []platform.GroupsResult{{
		Status: platform.StatusOK,
		Groups: []string{"member", "moderator", "administrator"},
	}}}
	svc := newSyncService(client, newFakeUserRepo(), nil)

	role, ok, err := svc.Resolve(context.Background(), "ext-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !ok || role != hierarchy.RoleAdmin {
		t.Errorf("expected ADMIN, got %q (ok=%v)", role, ok)
	}
}

func TestResolveIgnoresUnknownGroups(t *testing.T) {
	client := &fakePlatform{results: []platform.GroupsResult{{
		Status: platform.StatusOK,
		Groups: []string{"vip-donor", "event-winner"},
	}}}
	svc := newSyncService(client, newFakeUserRepo(), nil)

	_, ok, err := svc.Resolve(context.Background(), "ext-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ok {
		t.Error("expected no mapping for unknown groups")
	}
}

func TestResolveNeverGrantsOwner(t *testing.T) {
	// Even a group literally named for the override tier maps to nothing.
	client := &fakePlatform{results: []platform.GroupsResult{{
		Status: platform.StatusOK,
		Groups: []string{"owner", "OWNER"},
	}}}
	svc := newSyncService(client, newFakeUserRepo(), nil)

	role, ok, _ := svc.Resolve(context.Background(), "ext-1")
	if ok || role == hierarchy.RoleOwner {
		t.Errorf("sync must never grant OWNER, got %q (ok=%v)", role, ok)
	}
}

func TestResolveTreatsNotFoundAsNoMapping(t *testing.T) {
	client := &fakePlatform{results: []platform.GroupsResult{{Status: platform.StatusNotFound}}}
	svc := newSyncService(client, newFakeUserRepo(), nil)

	_, ok, err := svc.Resolve(context.Background(), "ext-gone")
	if err != nil {
		t.Fatalf("expected 404 to be a clean no-mapping, got %v", err)
	}
	if ok {
		t.Error("expected no mapping for a non-member")
	}
}

func TestResolveRetriesOnceAfterRateLimit(t *testing.T) {
	client := &fakePlatform{results: []platform.GroupsResult{
		{Status: platform.StatusRateLimited, RetryAfter: 2 * time.Second},
		{Status: platform.StatusOK, Groups: []string{"staff"}},
	}}
	svc := newSyncService(client, newFakeUserRepo(), nil)

	var slept time.Duration
	svc.sleep = func(d time.Duration) { slept = d }

	role, ok, err := svc.Resolve(context.Background(), "ext-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !ok || role != hierarchy.RoleStaff {
		t.Errorf("expected STAFF after retry, got %q", role)
	}
	if client.calls != 2 {
		t.Errorf("expected exactly 2 fetches, got %d", client.calls)
	}
	if want := 2*time.Second + retryAfterMargin; slept != want {
		t.Errorf("expected sleep %v, got %v", want, slept)
	}
}

func TestResolveCapsRetryAfter(t *testing.T) {
	client := &fakePlatform{results: []platform.GroupsResult{
		{Status: platform.StatusRateLimited, RetryAfter: 10 * time.Minute},
		{Status: platform.StatusOK, Groups: []string{"member"}},
	}}
	svc := newSyncService(client, newFakeUserRepo(), nil)

	var slept time.Duration
	svc.sleep = func(d time.Duration) { slept = d }

	if _, _, err := svc.Resolve(context.Background(), "ext-1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if want := maxRetryAfter + retryAfterMargin; slept != want {
		t.Errorf("expected capped sleep %v, got %v", want, slept)
	}
}

func TestResolveFailsAfterSecondRateLimit(t *testing.T) {
	client := &fakePlatform{results: []platform.GroupsResult{
		{Status: platform.StatusRateLimited, RetryAfter: time.Second},
		{Status: platform.StatusRateLimited, RetryAfter: time.Second},
	}}
	svc := newSyncService(client, newFakeUserRepo(), nil)

	_, _, err := svc.Resolve(context.Background(), "ext-1")
	var syncErr *domain.ExternalSyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("expected ExternalSyncError, got %v", err)
	}
	if syncErr.Stage != "rate_limited" {
		t.Errorf("expected rate_limited stage, got %s", syncErr.Stage)
	}
	if client.calls != 2 {
		t.Errorf("expected exactly 2 fetches (single retry), got %d", client.calls)
	}
}

func TestResolveUsesCache(t *testing.T) {
	client := &fakePlatform{results: []platform.GroupsResult{{
		Status: platform.StatusOK,
		Groups: []string{"moderator"},
	}}}
	cache := newFakeSyncCache()
	svc := newSyncService(client, newFakeUserRepo(), cache)

	if _, _, err := svc.Resolve(context.Background(), "ext-1"); err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	role, ok, err := svc.Resolve(context.Background(), "ext-1")
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if !ok || role != hierarchy.RoleModerator {
		t.Errorf("expected cached MODERATOR, got %q", role)
	}
	if client.calls != 1 {
		t.Errorf("expected a single platform fetch, got %d", client.calls)
	}
}

func TestResolveCircuitOpensAfterRepeatedFailures(t *testing.T) {
	client := &fakePlatform{results: []platform.GroupsResult{{Status: platform.StatusError, Err: errors.New("boom")}}}
	svc := newSyncService(client, newFakeUserRepo(), nil)

	for i := 0; i < 5; i++ {
		if _, _, err := svc.Resolve(context.Background(), "ext-1"); err == nil {
			t.Fatalf("attempt %d: expected fetch error", i+1)
		}
	}

	_, _, err := svc.Resolve(context.Background(), "ext-1")
	var syncErr *domain.ExternalSyncError
	if !errors.As(err, &syncErr) || syncErr.Stage != "circuit_open" {
		t.Fatalf("expected circuit_open, got %v", err)
	}
	if client.calls != 5 {
		t.Errorf("expected fetches to stop at 5, got %d", client.calls)
	}
}

func TestSyncUserAppliesUpgrade(t *testing.T) {
	users := newFakeUserRepo()
	user := users.add(&domain.User{Username: "m", Role: hierarchy.RoleMember, ExternalID: "ext-1"})
	client := &fakePlatform{results: []platform.GroupsResult{{
		Status: platform.StatusOK,
		Groups: []string{"moderator"},
	}}}
	svc := newSyncService(client, users, nil)

	resolved, applied, err := svc.SyncUser(context.Background(), user)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if !applied || resolved != hierarchy.RoleModerator {
		t.Errorf("expected MODERATOR applied, got %q (applied=%v)", resolved, applied)
	}
	stored, _ := users.GetByID(user.ID)
	if stored.Role != hierarchy.RoleModerator {
		t.Errorf("expected stored role MODERATOR, got %s", stored.Role)
	}
}

func TestSyncUserNeverDowngradesAdministrativeRole(t *testing.T) {
	users := newFakeUserRepo()
	user := users.add(&domain.User{Username: "a", Role: hierarchy.RoleAdmin, ExternalID: "ext-1"})
	client := &fakePlatform{results: []platform.GroupsResult{{
		Status: platform.StatusOK,
		Groups: []string{"staff"},
	}}}
	svc := newSyncService(client, users, nil)

	resolved, applied, err := svc.SyncUser(context.Background(), user)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if applied {
		t.Error("expected administrative role to be preserved")
	}
	if resolved != hierarchy.RoleStaff {
		t.Errorf("expected resolved STAFF reported, got %q", resolved)
	}
	stored, _ := users.GetByID(user.ID)
	if stored.Role != hierarchy.RoleAdmin {
		t.Errorf("expected stored role untouched, got %s", stored.Role)
	}
}

func TestSyncUserUpgradesWithinAdministrativeBand(t *testing.T) {
	users := newFakeUserRepo()
	user := users.add(&domain.User{Username: "a", Role: hierarchy.RoleAdmin, ExternalID: "ext-1"})
	client := &fakePlatform{results: []platform.GroupsResult{{
		Status: platform.StatusOK,
		Groups: []string{"senior-administrator"},
	}}}
	svc := newSyncService(client, users, nil)

	_, applied, err := svc.SyncUser(context.Background(), user)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if !applied {
		t.Error("expected a higher administrative role to be applied")
	}
	stored, _ := users.GetByID(user.ID)
	if stored.Role != hierarchy.RoleSeniorAdmin {
		t.Errorf("expected SENIOR_ADMIN, got %s", stored.Role)
	}
}

func TestSyncUserDowngradesNonAdministrativeRole(t *testing.T) {
	// Non-downgrade only protects the administrative band; a staff member
	// who lost their platform group drops to what the platform says.
	users := newFakeUserRepo()
	user := users.add(&domain.User{Username: "s", Role: hierarchy.RoleStaff, ExternalID: "ext-1"})
	client := &fakePlatform{results: []platform.GroupsResult{{
		Status: platform.StatusOK,
		Groups: []string{"member"},
	}}}
	svc := newSyncService(client, users, nil)

	_, applied, err := svc.SyncUser(context.Background(), user)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if !applied {
		t.Error("expected downgrade outside the administrative band to apply")
	}
	stored, _ := users.GetByID(user.ID)
	if stored.Role != hierarchy.RoleMember {
		t.Errorf("expected MEMBER, got %s", stored.Role)
	}
}

func TestSyncUserKeepsRoleWhenNoMapping(t *testing.T) {
	users := newFakeUserRepo()
	user := users.add(&domain.User{Username: "m", Role: hierarchy.RoleMember, ExternalID: "ext-1"})
	client := &fakePlatform{results: []platform.GroupsResult{{Status: platform.StatusNotFound}}}
	svc := newSyncService(client, users, nil)

	_, applied, err := svc.SyncUser(context.Background(), user)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if applied {
		t.Error("expected no change when the platform has no mapping")
	}
	stored, _ := users.GetByID(user.ID)
	if stored.Role != hierarchy.RoleMember {
		t.Errorf("expected stored role untouched, got %s", stored.Role)
	}
}
