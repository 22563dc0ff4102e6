package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/communityhub/internal/domain"
)

// PostgresApplicationRepository implements domain.ApplicationRepository using PostgreSQL
type PostgresApplicationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresApplicationRepository creates a new application repository
func NewPostgresApplicationRepository(db *sql.DB, logger *slog.Logger) *PostgresApplicationRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresApplicationRepository{
		db:     db,
		logger: logger,
	}
}

const applicationColumns = `
	id, user_id, template_id, department, status, interview_status,
	responses, denial_count, reviewer_id, last_denied_at, cooldown_until,
	interview_failed_at, interview_completed_at, created_at, updated_at
`

// Create inserts a new application. The INSERT only fires when the user has
// no PENDING application in the department, so two racing submissions cannot
// both land; the loser sees zero rows and gets ErrPendingExists.
func (r *PostgresApplicationRepository) Create(app *domain.Application) error {
	responses, err := json.Marshal(app.Responses)
	if err != nil {
		return fmt.Errorf("failed to encode responses: %w", err)
	}

	query := `
		INSERT INTO applications (user_id, template_id, department, status, interview_status, responses, denial_count)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM applications
			WHERE user_id = $1 AND department = $3 AND status = 'PENDING'
		)
		RETURNING id, created_at, updated_at
	`

	err = r.db.QueryRow(
		query,
		app.UserID,
		app.TemplateID,
		string(app.Department),
		string(app.Status),
		string(app.InterviewStatus),
		responses,
		app.DenialCount,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPendingExists
		}
		r.logger.Error("failed to create application",
			slog.Int64("user_id", app.UserID),
			slog.String("department", string(app.Department)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create application: %w", err)
	}

	return nil
}

// GetByID retrieves an application by ID
func (r *PostgresApplicationRepository) GetByID(id int64) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	app, err := r.scanApplication(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("failed to get application",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	return app, nil
}

// FindPending returns the user's pending application in a department, or nil
// when there is none
func (r *PostgresApplicationRepository) FindPending(userID int64, department domain.Department) (*domain.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE user_id = $1 AND department = $2 AND status = 'PENDING'
		LIMIT 1
	`

	app, err := r.scanApplication(r.db.QueryRow(query, userID, string(department)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pending application: %w", err)
	}

	return app, nil
}

// LatestDenied returns the user's most recently denied application in a
// department, or nil when there is none
func (r *PostgresApplicationRepository) LatestDenied(userID int64, department domain.Department) (*domain.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE user_id = $1 AND department = $2 AND status = 'DENIED'
		ORDER BY updated_at DESC
		LIMIT 1
	`

	app, err := r.scanApplication(r.db.QueryRow(query, userID, string(department)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find denied application: %w", err)
	}

	return app, nil
}

// ListByUser retrieves all applications submitted by a user, newest first
func (r *PostgresApplicationRepository) ListByUser(userID int64) ([]*domain.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	return r.list(query, userID)
}

// ListPendingByDepartment retrieves a department's review queue, oldest first
func (r *PostgresApplicationRepository) ListPendingByDepartment(department domain.Department) ([]*domain.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE department = $1 AND status = 'PENDING'
		ORDER BY created_at ASC
	`

	return r.list(query, string(department))
}

// Update writes an application's lifecycle fields, guarded on the status
// pair the caller last observed. When a concurrent writer has already moved
// the application, zero rows match and the caller gets ErrStaleApplication
// so it can re-read and re-decide.
func (r *PostgresApplicationRepository) Update(app *domain.Application, prevStatus domain.Status, prevInterview domain.InterviewStatus) error {
	query := `
		UPDATE applications
		SET status = $1, interview_status = $2, denial_count = $3, reviewer_id = $4,
		    last_denied_at = $5, cooldown_until = $6, interview_failed_at = $7,
		    interview_completed_at = $8, updated_at = NOW()
		WHERE id = $9 AND status = $10 AND interview_status = $11
		RETURNING updated_at
	`

	err := r.db.QueryRow(
		query,
		string(app.Status),
		string(app.InterviewStatus),
		app.DenialCount,
		nullInt64(app.ReviewerID),
		nullTime(app.LastDeniedAt),
		nullTime(app.CooldownUntil),
		nullTime(app.InterviewFailedAt),
		nullTime(app.InterviewCompletedAt),
		app.ID,
		string(prevStatus),
		string(prevInterview),
	).Scan(&app.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrStaleApplication
		}
		r.logger.Error("failed to update application",
			slog.Int64("id", app.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to update application: %w", err)
	}

	return nil
}

// AppendNote attaches a note to an application
func (r *PostgresApplicationRepository) AppendNote(note *domain.ApplicationNote) error {
	query := `
		INSERT INTO application_notes (application_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(query, note.ApplicationID, note.AuthorID, note.Body).
		Scan(&note.ID, &note.CreatedAt)
	if err != nil {
		r.logger.Error("failed to append note",
			slog.Int64("application_id", note.ApplicationID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to append note: %w", err)
	}

	return nil
}

// ListNotes retrieves an application's notes, oldest first
func (r *PostgresApplicationRepository) ListNotes(applicationID int64) ([]*domain.ApplicationNote, error) {
	query := `
		SELECT id, application_id, author_id, body, created_at
		FROM application_notes
		WHERE application_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.ApplicationNote
	for rows.Next() {
		note := &domain.ApplicationNote{}
		if err := rows.Scan(&note.ID, &note.ApplicationID, &note.AuthorID, &note.Body, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	return notes, rows.Err()
}

func (r *PostgresApplicationRepository) list(query string, args ...any) ([]*domain.Application, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*domain.Application
	for rows.Next() {
		app, err := r.scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}

	return apps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresApplicationRepository) scanApplication(row rowScanner) (*domain.Application, error) {
	app := &domain.Application{}
	var department, status, interviewStatus string
	var responses []byte
	var reviewerID sql.NullInt64
	var lastDeniedAt, cooldownUntil, interviewFailedAt, interviewCompletedAt sql.NullTime

	err := row.Scan(
		&app.ID,
		&app.UserID,
		&app.TemplateID,
		&department,
		&status,
		&interviewStatus,
		&responses,
		&app.DenialCount,
		&reviewerID,
		&lastDeniedAt,
		&cooldownUntil,
		&interviewFailedAt,
		&interviewCompletedAt,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Department = domain.Department(department)
	app.Status = domain.Status(status)
	app.InterviewStatus = domain.InterviewStatus(interviewStatus)

	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &app.Responses); err != nil {
			return nil, fmt.Errorf("failed to decode responses: %w", err)
		}
	}

	if reviewerID.Valid {
		app.ReviewerID = &reviewerID.Int64
	}
	app.LastDeniedAt = timePtr(lastDeniedAt)
	app.CooldownUntil = timePtr(cooldownUntil)
	app.InterviewFailedAt = timePtr(interviewFailedAt)
	app.InterviewCompletedAt = timePtr(interviewCompletedAt)

	return app, nil
}
