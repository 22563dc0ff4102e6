package security

import (
	"errors"
	"testing"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/hierarchy"
)

func TestRoleChangeTierRules(t *testing.T) {
	ps := NewPermissionService(nil)

	cases := []struct {
		name      string
		actor     hierarchy.Role
		override  bool
		current   hierarchy.Role
		requested hierarchy.Role
		want      bool
	}{
		{"senior admin cannot grant head admin", hierarchy.RoleSeniorAdmin, false, hierarchy.RoleAdmin, hierarchy.RoleHeadAdmin, false},
		{"head admin can grant head admin", hierarchy.RoleHeadAdmin, false, hierarchy.RoleAdmin, hierarchy.RoleHeadAdmin, true},
		{"override can grant head admin", hierarchy.RoleOwner, true, hierarchy.RoleAdmin, hierarchy.RoleHeadAdmin, true},
		{"only owner touches owner tier", hierarchy.RoleHeadAdmin, true, hierarchy.RoleOwner, hierarchy.RoleMember, false},
		{"owner may demote owner", hierarchy.RoleOwner, true, hierarchy.RoleOwner, hierarchy.RoleHeadAdmin, true},
		{"senior admin can grant admin", hierarchy.RoleSeniorAdmin, false, hierarchy.RoleStaff, hierarchy.RoleAdmin, true},
		{"admin cannot grant admin", hierarchy.RoleAdmin, false, hierarchy.RoleStaff, hierarchy.RoleAdmin, false},
		{"admin cannot demote an admin", hierarchy.RoleAdmin, false, hierarchy.RoleAdmin, hierarchy.RoleStaff, false},
		{"admin can grant staff", hierarchy.RoleAdmin, false, hierarchy.RoleMember, hierarchy.RoleStaff, true},
		{"staff cannot grant staff", hierarchy.RoleStaff, false, hierarchy.RoleApplicant, hierarchy.RoleStaff, false},
		{"staff can grant member", hierarchy.RoleStaff, false, hierarchy.RoleApplicant, hierarchy.RoleMember, true},
		{"override bypasses assignable set", hierarchy.RoleOwner, true, hierarchy.RoleMember, hierarchy.RoleStaff, true},
		{"unknown actor denied", hierarchy.Role("SUPERVISOR"), false, hierarchy.RoleMember, hierarchy.RoleStaff, false},
	}

	for _, tc := range cases {
		if got := ps.CanAssignRole(tc.actor, tc.override, tc.current, tc.requested); got != tc.want {
			t.Errorf("%s: CanAssignRole = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDepartmentChangeRules(t *testing.T) {
	ps := NewPermissionService(nil)

	if ps.CanChangeDepartment(hierarchy.RoleSeniorAdmin, false, domain.DepartmentLeadership) {
		t.Errorf("senior admin should not assign LEADERSHIP")
	}
	if !ps.CanChangeDepartment(hierarchy.RoleHeadAdmin, false, domain.DepartmentDevelopment) {
		t.Errorf("head admin should assign DEVELOPMENT")
	}
	if !ps.CanChangeDepartment(hierarchy.RoleOwner, true, domain.DepartmentLeadership) {
		t.Errorf("override should assign LEADERSHIP")
	}
	if !ps.CanChangeDepartment(hierarchy.RoleAdmin, false, domain.DepartmentFHP) {
		t.Errorf("admin should assign FHP")
	}
	if ps.CanChangeDepartment(hierarchy.RoleStaff, false, domain.DepartmentFHP) {
		t.Errorf("staff should not reassign departments")
	}
}

func TestBanAndDeleteRules(t *testing.T) {
	ps := NewPermissionService(nil)

	if !ps.CanBan(hierarchy.RoleAdmin) {
		t.Errorf("admin should be able to ban")
	}
	if ps.CanBan(hierarchy.RoleModerator) {
		t.Errorf("moderator should not be able to ban")
	}

	if !ps.CanDeleteUser(hierarchy.RoleHeadAdmin, false, hierarchy.RoleMember) {
		t.Errorf("head admin should delete a member")
	}
	if ps.CanDeleteUser(hierarchy.RoleSeniorAdmin, false, hierarchy.RoleMember) {
		t.Errorf("senior admin should not delete users")
	}
	if ps.CanDeleteUser(hierarchy.RoleHeadAdmin, false, hierarchy.RoleOwner) {
		t.Errorf("only an override holder may delete an override holder")
	}
	if !ps.CanDeleteUser(hierarchy.RoleOwner, true, hierarchy.RoleOwner) {
		t.Errorf("override holder should delete another override holder")
	}
}

func TestModerationAndReviewBands(t *testing.T) {
	ps := NewPermissionService(nil)

	for _, r := range []hierarchy.Role{hierarchy.RoleAdmin, hierarchy.RoleModerator, hierarchy.RoleStaff} {
		if !ps.CanModerateContent(r) {
			t.Errorf("role %s should moderate content", r)
		}
		if !ps.CanReviewApplications(r) {
			t.Errorf("role %s should review applications", r)
		}
	}
	for _, r := range []hierarchy.Role{hierarchy.RoleMember, hierarchy.RoleApplicant} {
		if ps.CanModerateContent(r) {
			t.Errorf("role %s should not moderate content", r)
		}
		if ps.CanReviewApplications(r) {
			t.Errorf("role %s should not review applications", r)
		}
	}
}

func TestValidateHelpersReturnTaggedErrors(t *testing.T) {
	ps := NewPermissionService(nil)

	err := ps.ValidateRoleChange(hierarchy.RoleSeniorAdmin, false, hierarchy.RoleAdmin, hierarchy.RoleHeadAdmin)
	if err == nil {
		t.Fatalf("expected permission error")
	}
	var perr *domain.PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *domain.PermissionError, got %T", err)
	}
	if perr.ActorRole != hierarchy.RoleSeniorAdmin {
		t.Errorf("expected actor role in error, got %s", perr.ActorRole)
	}

	if err := ps.ValidateRoleChange(hierarchy.RoleHeadAdmin, false, hierarchy.RoleAdmin, hierarchy.RoleHeadAdmin); err != nil {
		t.Errorf("expected allowed, got %v", err)
	}
}
