package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/hierarchy"
	"github.com/yourorg/communityhub/internal/security/auth"
)

// AuthService handles external sign-in. There is no password path here:
// the community platform authenticates the identity upstream and hands us
// a stable external ID.
type AuthService struct {
	users    domain.UserRepository
	roleSync *RoleSyncService
	tokens   *auth.TokenManager
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service. roleSync may be nil
// when the platform integration is not configured.
func NewAuthService(
	users domain.UserRepository,
	roleSync *RoleSyncService,
	tokens *auth.TokenManager,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:    users,
		roleSync: roleSync,
		tokens:   tokens,
		logger:   logger,
	}
}

// SignInResult represents a successful sign-in
type SignInResult struct {
	UserID    int64          `json:"user_id"`
	Username  string         `json:"username"`
	Role      hierarchy.Role `json:"role"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// SignInExternal signs in a platform identity. A first sign-in either links
// the external ID to an existing unlinked account with the same username or
// creates a new applicant account; the external ID is immutable afterwards.
// Role sync is best-effort: a sync failure keeps the stored role and never
// blocks the sign-in.
func (s *AuthService) SignInExternal(ctx context.Context, externalID, username string) (*SignInResult, error) {
	if externalID == "" {
		return nil, errors.New("external id is required")
	}

	user, err := s.users.GetByExternalID(externalID)
	if errors.Is(err, domain.ErrNotFound) {
		user, err = s.firstSignIn(externalID, username)
	}
	if err != nil {
		return nil, err
	}

	if user.IsBanned {
		s.logger.Info("banned user sign-in rejected", slog.Int64("user_id", user.ID))
		return nil, &domain.PermissionError{Action: "sign in", ActorRole: user.Role}
	}

	if s.roleSync != nil {
		if _, _, err := s.roleSync.SyncUser(ctx, user); err != nil {
			// Best-effort enrichment only; keep the stored role.
			s.logger.Warn("role sync failed during sign-in, keeping existing role",
				slog.Int64("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	token, expiresAt, err := s.tokens.GenerateToken(user)
	if err != nil {
		s.logger.Error("failed to generate token", slog.String("error", err.Error()))
		return nil, errors.New("failed to sign in")
	}

	s.logger.Info("user signed in",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return &SignInResult{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// firstSignIn links the external identity to an existing unlinked account
// with the same username, or creates a fresh applicant account
func (s *AuthService) firstSignIn(externalID, username string) (*domain.User, error) {
	if username == "" {
		return nil, errors.New("username is required on first sign-in")
	}

	existing, err := s.users.GetByUsername(username)
	if err == nil && existing != nil {
		if existing.ExternalID != "" {
			// The username is taken by an account linked to another platform
			// identity.
			return nil, fmt.Errorf("username %s is already linked", username)
		}
		if err := s.users.LinkExternalID(existing.ID, externalID); err != nil {
			return nil, fmt.Errorf("failed to link external identity: %w", err)
		}
		existing.ExternalID = externalID
		s.logger.Info("linked external identity to existing account",
			slog.Int64("user_id", existing.ID),
		)
		return existing, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up username: %w", err)
	}

	user := &domain.User{
		Username:   username,
		Role:       hierarchy.RoleApplicant,
		ExternalID: externalID,
	}
	if err := s.users.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("created account at first external sign-in",
		slog.Int64("user_id", user.ID),
	)
	return user, nil
}
