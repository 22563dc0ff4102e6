package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/hierarchy"
)

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sql.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new user
func (r *PostgresUserRepository) Create(user *domain.User) error {
	query := `
		INSERT INTO users (username, role, department, external_id, is_banned)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		query,
		user.Username,
		string(user.Role),
		string(user.Department),
		nullString(user.ExternalID),
		user.IsBanned,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		r.logger.Error("failed to create user",
			slog.String("username", user.Username),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(id int64) (*domain.User, error) {
	query := `
		SELECT id, username, role, department, external_id, is_banned, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	return r.scanUser(r.db.QueryRow(query, id))
}

// GetByUsername retrieves a user by username
func (r *PostgresUserRepository) GetByUsername(username string) (*domain.User, error) {
	query := `
		SELECT id, username, role, department, external_id, is_banned, created_at, updated_at
		FROM users
		WHERE username = $1
	`

	return r.scanUser(r.db.QueryRow(query, username))
}

// GetByExternalID retrieves a user by their linked platform identity
func (r *PostgresUserRepository) GetByExternalID(externalID string) (*domain.User, error) {
	query := `
		SELECT id, username, role, department, external_id, is_banned, created_at, updated_at
		FROM users
		WHERE external_id = $1
	`

	return r.scanUser(r.db.QueryRow(query, externalID))
}

// LinkExternalID attaches a platform identity to a user. The WHERE clause
// only matches users without one, so a second link attempt affects zero
// rows and reports ErrAlreadyLinked.
func (r *PostgresUserRepository) LinkExternalID(id int64, externalID string) error {
	query := `
		UPDATE users
		SET external_id = $1, updated_at = NOW()
		WHERE id = $2 AND (external_id IS NULL OR external_id = '')
	`

	result, err := r.db.Exec(query, externalID, id)
	if err != nil {
		r.logger.Error("failed to link external id",
			slog.Int64("user_id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to link external id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to link external id: %w", err)
	}
	if rows == 0 {
		return domain.ErrAlreadyLinked
	}

	return nil
}

// UpdateRole updates a user's role
func (r *PostgresUserRepository) UpdateRole(id int64, role hierarchy.Role) error {
	query := `
		UPDATE users
		SET role = $1, updated_at = NOW()
		WHERE id = $2
	`

	return r.exec(query, "failed to update role", string(role), id)
}

// UpdateDepartment updates a user's department
func (r *PostgresUserRepository) UpdateDepartment(id int64, department domain.Department) error {
	query := `
		UPDATE users
		SET department = $1, updated_at = NOW()
		WHERE id = $2
	`

	return r.exec(query, "failed to update department", string(department), id)
}

// SetBanned updates a user's ban flag
func (r *PostgresUserRepository) SetBanned(id int64, banned bool) error {
	query := `
		UPDATE users
		SET is_banned = $1, updated_at = NOW()
		WHERE id = $2
	`

	return r.exec(query, "failed to set ban state", banned, id)
}

// Delete removes a user
func (r *PostgresUserRepository) Delete(id int64) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		r.logger.Error("failed to delete user",
			slog.Int64("user_id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *PostgresUserRepository) scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var role, department string
	var externalID sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Username,
		&role,
		&department,
		&externalID,
		&user.IsBanned,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("failed to get user",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Role = hierarchy.Role(role)
	user.Department = domain.Department(department)
	user.ExternalID = externalID.String

	return user, nil
}

func (r *PostgresUserRepository) exec(query, failMsg string, args ...any) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		r.logger.Error(failMsg, slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w", failMsg, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", failMsg, err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}
