package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/communityhub/internal/domain"
)

// PostgresTemplateRepository implements domain.TemplateRepository using PostgreSQL
type PostgresTemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTemplateRepository creates a new template repository
func NewPostgresTemplateRepository(db *sql.DB, logger *slog.Logger) *PostgresTemplateRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTemplateRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new application template
func (r *PostgresTemplateRepository) Create(template *domain.ApplicationTemplate) error {
	query := `
		INSERT INTO application_templates (department, title, active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		query,
		string(template.Department),
		template.Title,
		template.Active,
	).Scan(&template.ID, &template.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create template",
			slog.String("department", string(template.Department)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create template: %w", err)
	}

	return nil
}

// GetByID retrieves a template by ID
func (r *PostgresTemplateRepository) GetByID(id int64) (*domain.ApplicationTemplate, error) {
	template := &domain.ApplicationTemplate{}
	var department string

	query := `
		SELECT id, department, title, active, created_at
		FROM application_templates
		WHERE id = $1
	`

	err := r.db.QueryRow(query, id).Scan(
		&template.ID,
		&department,
		&template.Title,
		&template.Active,
		&template.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("failed to get template",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	template.Department = domain.Department(department)

	return template, nil
}

// ListActiveByDepartment retrieves a department's open templates
func (r *PostgresTemplateRepository) ListActiveByDepartment(department domain.Department) ([]*domain.ApplicationTemplate, error) {
	query := `
		SELECT id, department, title, active, created_at
		FROM application_templates
		WHERE department = $1 AND active = true
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(query, string(department))
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.ApplicationTemplate
	for rows.Next() {
		template := &domain.ApplicationTemplate{}
		var dept string
		if err := rows.Scan(&template.ID, &dept, &template.Title, &template.Active, &template.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		template.Department = domain.Department(dept)
		templates = append(templates, template)
	}

	return templates, rows.Err()
}
