package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/hierarchy"
	"github.com/yourorg/communityhub/internal/security"
	"github.com/yourorg/communityhub/internal/security/audit"
)

// UserService applies privileged user mutations behind the permission
// engine. The actor is always passed explicitly; nothing is read from
// ambient state.
type UserService struct {
	users  domain.UserRepository
	perms  *security.PermissionService
	audit  *audit.Logger
	logger *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(
	users domain.UserRepository,
	perms *security.PermissionService,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:  users,
		perms:  perms,
		audit:  auditLog,
		logger: logger,
	}
}

// AssignRole changes the target's role after the permission engine allows it
func (s *UserService) AssignRole(ctx context.Context, actorID, targetID int64, requested hierarchy.Role) (*domain.User, error) {
	if !hierarchy.Known(requested) {
		return nil, fmt.Errorf("unknown role %s", requested)
	}

	actor, target, err := s.loadPair(actorID, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.perms.ValidateRoleChange(actor.Role, hierarchy.HasOverride(actor.Role), target.Role, requested); err != nil {
		s.audit.LogRoleChange(ctx, itoa(actorID), itoa(targetID), string(target.Role), string(requested), "denied")
		return nil, err
	}

	if err := s.users.UpdateRole(targetID, requested); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	previous := target.Role
	target.Role = requested

	s.audit.LogRoleChange(ctx, itoa(actorID), itoa(targetID), string(previous), string(requested), "applied")
	return target, nil
}

// ChangeDepartment moves the target into a department after the permission
// engine allows it
func (s *UserService) ChangeDepartment(ctx context.Context, actorID, targetID int64, department domain.Department) (*domain.User, error) {
	actor, target, err := s.loadPair(actorID, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.perms.ValidateDepartmentChange(actor.Role, hierarchy.HasOverride(actor.Role), department); err != nil {
		s.audit.LogAction(ctx, itoa(actorID), "change_department", "user", itoa(targetID), "denied", string(department))
		return nil, err
	}

	if err := s.users.UpdateDepartment(targetID, department); err != nil {
		return nil, fmt.Errorf("failed to update department: %w", err)
	}
	target.Department = department

	s.audit.LogAction(ctx, itoa(actorID), "change_department", "user", itoa(targetID), "applied", string(department))
	return target, nil
}

// SetBanned bans or unbans the target
func (s *UserService) SetBanned(ctx context.Context, actorID, targetID int64, banned bool) (*domain.User, error) {
	actor, target, err := s.loadPair(actorID, targetID)
	if err != nil {
		return nil, err
	}

	if !s.perms.CanBan(actor.Role) {
		s.audit.LogBan(ctx, itoa(actorID), itoa(targetID), "denied")
		return nil, &domain.PermissionError{Action: "ban users", ActorRole: actor.Role}
	}

	if err := s.users.SetBanned(targetID, banned); err != nil {
		return nil, fmt.Errorf("failed to update ban flag: %w", err)
	}
	target.IsBanned = banned

	s.audit.LogBan(ctx, itoa(actorID), itoa(targetID), "applied")
	return target, nil
}

// DeleteUser removes the target account
func (s *UserService) DeleteUser(ctx context.Context, actorID, targetID int64) error {
	actor, target, err := s.loadPair(actorID, targetID)
	if err != nil {
		return err
	}

	if !s.perms.CanDeleteUser(actor.Role, hierarchy.HasOverride(actor.Role), target.Role) {
		s.audit.LogDeletion(ctx, itoa(actorID), itoa(targetID), "denied")
		return &domain.PermissionError{Action: "delete users", ActorRole: actor.Role}
	}

	if err := s.users.Delete(targetID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.audit.LogDeletion(ctx, itoa(actorID), itoa(targetID), "applied")
	return nil
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(id)
}

func (s *UserService) loadPair(actorID, targetID int64) (actor, target *domain.User, err error) {
	actor, err = s.users.GetByID(actorID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load actor: %w", err)
	}
	target, err = s.users.GetByID(targetID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load target: %w", err)
	}
	return actor, target, nil
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
