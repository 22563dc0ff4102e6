package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/hierarchy"
	"github.com/yourorg/communityhub/internal/infrastructure/platform"
	"github.com/yourorg/communityhub/internal/observability/metrics"
	"github.com/yourorg/communityhub/internal/reliability/circuitbreaker"
)

// PlatformClient fetches a member's group identifiers from the community
// platform
type PlatformClient interface {
	FetchGroupRoles(ctx context.Context, externalID string) platform.GroupsResult
}

// SyncCache caches resolved roles so repeated sign-ins don't hammer the
// platform API. Implemented by the redis client; nil disables caching.
type SyncCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Rate-limit retry policy: one retry, honoring the server's Retry-After up
// to a cap, plus a small margin so we don't land exactly on the window edge
const (
	maxRetryAfter    = 30 * time.Second
	retryAfterMargin = 250 * time.Millisecond
	syncCacheTTL     = 5 * time.Minute
)

// defaultGroupRoles maps external platform group identifiers to internal
// roles. When a member carries several mapped groups, the highest authority
// wins. The override tier is deliberately absent: sync never grants OWNER.
var defaultGroupRoles = map[string]hierarchy.Role{
	"head-administrator":   hierarchy.RoleHeadAdmin,
	"senior-administrator": hierarchy.RoleSeniorAdmin,
	"administrator":        hierarchy.RoleAdmin,
	"moderator":            hierarchy.RoleModerator,
	"staff":                hierarchy.RoleStaff,
	"member":               hierarchy.RoleMember,
}

// RoleSyncService maps external community-platform group memberships to an
// internal role and applies it to users, subject to a non-downgrade
// invariant for administrative roles
type RoleSyncService struct {
	client     PlatformClient
	users      domain.UserRepository
	cache      SyncCache
	breaker    *circuitbreaker.Breaker
	groupRoles map[string]hierarchy.Role
	logger     *slog.Logger
	sleep      func(time.Duration)
}

// NewRoleSyncService creates a new role synchronizer. cache may be nil.
func NewRoleSyncService(
	client PlatformClient,
	users domain.UserRepository,
	cache SyncCache,
	logger *slog.Logger,
) *RoleSyncService {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := circuitbreaker.New(5, 2, 30*time.Second)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warn("platform circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &RoleSyncService{
		client:     client,
		users:      users,
		cache:      cache,
		breaker:    breaker,
		groupRoles: defaultGroupRoles,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Resolve maps the external identity's group memberships to an internal
// role. The second return is false when no group maps to a role (including
// when the identity is not a platform member); the caller keeps the
// existing role in that case.
func (s *RoleSyncService) Resolve(ctx context.Context, externalID string) (hierarchy.Role, bool, error) {
	if externalID == "" {
		return "", false, nil
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, syncCacheKey(externalID))
		if err != nil {
			s.logger.Warn("sync cache read failed", slog.String("error", err.Error()))
		} else if ok {
			metrics.ObserveRoleSync("cached")
			return hierarchy.Role(cached), true, nil
		}
	}

	if !s.breaker.Allow() {
		metrics.ObserveRoleSync("error")
		return "", false, &domain.ExternalSyncError{Stage: "circuit_open", Err: errors.New("platform circuit breaker is open")}
	}

	res := s.client.FetchGroupRoles(ctx, externalID)
	if res.Status == platform.StatusRateLimited {
		wait := res.RetryAfter
		if wait > maxRetryAfter {
			wait = maxRetryAfter
		}
		wait += retryAfterMargin
		s.logger.Info("platform rate limited, retrying once",
			slog.String("external_id", externalID),
			slog.Duration("wait", wait),
		)
		// Single bounded retry; no lock is held during the wait.
		s.sleep(wait)
		res = s.client.FetchGroupRoles(ctx, externalID)
	}

	switch res.Status {
	case platform.StatusOK:
		s.breaker.RecordSuccess()
		role, ok := s.mapGroups(res.Groups)
		if !ok {
			metrics.ObserveRoleSync("no_mapping")
			return "", false, nil
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, syncCacheKey(externalID), string(role), syncCacheTTL); err != nil {
				s.logger.Warn("sync cache write failed", slog.String("error", err.Error()))
			}
		}
		return role, true, nil
	case platform.StatusNotFound:
		// Not a platform member: an empty membership, not a failure.
		s.breaker.RecordSuccess()
		metrics.ObserveRoleSync("no_mapping")
		return "", false, nil
	case platform.StatusRateLimited:
		s.breaker.RecordFailure()
		metrics.ObserveRoleSync("error")
		return "", false, &domain.ExternalSyncError{Stage: "rate_limited", Err: errors.New("still rate limited after retry")}
	default:
		s.breaker.RecordFailure()
		metrics.ObserveRoleSync("error")
		return "", false, &domain.ExternalSyncError{Stage: "fetch", Err: res.Err}
	}
}

// SyncUser resolves the user's external role and stores it, unless the
// non-downgrade invariant protects the current role: an administrative role
// is never replaced by a lower-authority mapping. Returns the resolved role
// and whether it was applied.
func (s *RoleSyncService) SyncUser(ctx context.Context, user *domain.User) (hierarchy.Role, bool, error) {
	resolved, ok, err := s.Resolve(ctx, user.ExternalID)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	if resolved == user.Role {
		metrics.ObserveRoleSync("unchanged")
		return resolved, false, nil
	}

	if hierarchy.IsAdministrative(user.Role) && !hierarchy.Outranks(resolved, user.Role) {
		metrics.ObserveRoleSync("preserved")
		s.logger.Info("role sync suppressed by non-downgrade rule",
			slog.Int64("user_id", user.ID),
			slog.String("current_role", string(user.Role)),
			slog.String("resolved_role", string(resolved)),
		)
		return resolved, false, nil
	}

	if err := s.users.UpdateRole(user.ID, resolved); err != nil {
		metrics.ObserveRoleSync("error")
		return resolved, false, &domain.ExternalSyncError{Stage: "store", Err: err}
	}
	previous := user.Role
	user.Role = resolved

	metrics.ObserveRoleSync("applied")
	s.logger.Info("role synchronized from platform",
		slog.Int64("user_id", user.ID),
		slog.String("previous_role", string(previous)),
		slog.String("new_role", string(resolved)),
	)
	return resolved, true, nil
}

// mapGroups picks the highest-authority internal role among the mapped
// groups. Unknown groups are ignored.
func (s *RoleSyncService) mapGroups(groups []string) (hierarchy.Role, bool) {
	var best hierarchy.Role
	found := false
	for _, g := range groups {
		role, ok := s.groupRoles[g]
		if !ok {
			continue
		}
		if !found || hierarchy.Outranks(role, best) {
			best = role
			found = true
		}
	}
	return best, found
}

func syncCacheKey(externalID string) string {
	return "rolesync:" + externalID
}
