package security

import (
	"log/slog"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/hierarchy"
)

// reservedDepartments may only be assigned by override holders or
// head-administrative rank
var reservedDepartments = map[domain.Department]bool{
	domain.DepartmentLeadership:  true,
	domain.DepartmentDevelopment: true,
}

// PermissionService decides whether an actor may perform privileged
// mutations. Every check is a pure boolean over the actor's and target's
// roles; the service never mutates anything itself.
type PermissionService struct {
	logger *slog.Logger
}

// NewPermissionService creates a new permission service
func NewPermissionService(logger *slog.Logger) *PermissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionService{logger: logger}
}

// CanAssignRole decides whether the actor may move the target from its
// current role to the requested one. Rules are checked in order; the first
// matching rule wins:
//  1. Changes touching the full-override tier require the actor to hold
//     that tier.
//  2. Changes touching the head-administrative tier require override or
//     that tier.
//  3. Changes touching the administrative band require at least
//     senior-administrative rank (override always qualifies).
//  4. Otherwise the requested role must be in the actor's assignable set
//     (override always qualifies).
func (ps *PermissionService) CanAssignRole(actorRole hierarchy.Role, actorOverride bool, targetCurrent, targetRequested hierarchy.Role) bool {
	touches := func(tier hierarchy.Role) bool {
		return targetCurrent == tier || targetRequested == tier
	}

	if touches(hierarchy.RoleOwner) {
		return actorRole == hierarchy.RoleOwner
	}
	if touches(hierarchy.RoleHeadAdmin) {
		return actorOverride || actorRole == hierarchy.RoleHeadAdmin
	}
	if hierarchy.IsAdministrative(targetCurrent) || hierarchy.IsAdministrative(targetRequested) {
		if actorOverride {
			return true
		}
		actorRank, ok := hierarchy.Rank(actorRole)
		if !ok {
			return false
		}
		seniorRank, _ := hierarchy.Rank(hierarchy.RoleSeniorAdmin)
		return actorRank <= seniorRank
	}
	if actorOverride {
		return true
	}
	for _, r := range hierarchy.AssignableRoles(actorRole) {
		if r == targetRequested {
			return true
		}
	}
	return false
}

// CanChangeDepartment decides whether the actor may move a user into the
// given department. Reserved departments need override or
// head-administrative rank; any other department needs administrative rank.
func (ps *PermissionService) CanChangeDepartment(actorRole hierarchy.Role, actorOverride bool, target domain.Department) bool {
	if reservedDepartments[target] {
		if actorOverride {
			return true
		}
		actorRank, ok := hierarchy.Rank(actorRole)
		if !ok {
			return false
		}
		headRank, _ := hierarchy.Rank(hierarchy.RoleHeadAdmin)
		return actorRank <= headRank
	}
	return hierarchy.IsAdministrative(actorRole)
}

// CanBan decides whether the actor may ban or unban users
func (ps *PermissionService) CanBan(actorRole hierarchy.Role) bool {
	return hierarchy.IsAdministrative(actorRole)
}

// CanDeleteUser decides whether the actor may delete the target. Deletion
// needs override or head-administrative rank, and only an override holder
// may delete another override holder.
func (ps *PermissionService) CanDeleteUser(actorRole hierarchy.Role, actorOverride bool, targetRole hierarchy.Role) bool {
	if hierarchy.HasOverride(targetRole) && !actorOverride {
		return false
	}
	if actorOverride {
		return true
	}
	actorRank, ok := hierarchy.Rank(actorRole)
	if !ok {
		return false
	}
	headRank, _ := hierarchy.Rank(hierarchy.RoleHeadAdmin)
	return actorRank <= headRank
}

// CanModerateContent decides whether the actor may pin, lock or remove
// community content
func (ps *PermissionService) CanModerateContent(actorRole hierarchy.Role) bool {
	return hierarchy.IsAdministrative(actorRole) || hierarchy.IsStaff(actorRole)
}

// CanReviewApplications decides whether the actor may review applications
// and record interview outcomes
func (ps *PermissionService) CanReviewApplications(actorRole hierarchy.Role) bool {
	return hierarchy.IsAdministrative(actorRole) || hierarchy.IsStaff(actorRole)
}

// ValidateRoleChange returns a tagged PermissionError when the role change
// is not allowed
func (ps *PermissionService) ValidateRoleChange(actorRole hierarchy.Role, actorOverride bool, targetCurrent, targetRequested hierarchy.Role) error {
	if !ps.CanAssignRole(actorRole, actorOverride, targetCurrent, targetRequested) {
		ps.logger.Warn("role change denied",
			slog.String("actor_role", string(actorRole)),
			slog.String("target_current", string(targetCurrent)),
			slog.String("target_requested", string(targetRequested)),
		)
		return &domain.PermissionError{Action: "assign role " + string(targetRequested), ActorRole: actorRole}
	}
	return nil
}

// ValidateDepartmentChange returns a tagged PermissionError when the
// department change is not allowed
func (ps *PermissionService) ValidateDepartmentChange(actorRole hierarchy.Role, actorOverride bool, target domain.Department) error {
	if !ps.CanChangeDepartment(actorRole, actorOverride, target) {
		ps.logger.Warn("department change denied",
			slog.String("actor_role", string(actorRole)),
			slog.String("target_department", string(target)),
		)
		return &domain.PermissionError{Action: "assign department " + string(target), ActorRole: actorRole}
	}
	return nil
}
