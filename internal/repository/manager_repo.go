package repository

import (
	"context"
	"database/sql"

	"github.com/deliverables-tracker/internal/database"
	"github.com/deliverables-tracker/internal/models"
)

// managerRepo is the concrete implementation of ManagerRepository
type managerRepo struct {
	db *database.DB
}

// NewManagerRepo creates a new manager repository
func NewManagerRepo(db *database.DB) ManagerRepository {
	return &managerRepo{db: db}
}

const managerColumns = `id, name, email, created_at, updated_at`

func scanManager(row interface{ Scan(...any) error }) (*models.Manager, error) {
	var m models.Manager
	var email sql.NullString
	if err := row.Scan(&m.ID, &m.Name, &email, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Email = email.String
	return &m, nil
}

// FindByName looks a manager up case-insensitively
func (r *managerRepo) FindByName(ctx context.Context, name string) (*models.Manager, error) {
	query := `SELECT ` + managerColumns + ` FROM managers WHERE LOWER(name) = LOWER($1)`
	m, err := scanManager(r.db.Conn(ctx).QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// Create inserts a new manager
func (r *managerRepo) Create(ctx context.Context, manager *models.Manager) error {
	query := `
		INSERT INTO managers (id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		manager.ID, manager.Name, nullString(manager.Email), manager.CreatedAt, manager.UpdatedAt,
	)
	return conflict(err)
}

// Update writes name and email. It reports false when no manager has the id.
func (r *managerRepo) Update(ctx context.Context, manager *models.Manager) (bool, error) {
	query := `UPDATE managers SET name = $1, email = $2, updated_at = $3 WHERE id = $4`
	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		manager.Name, nullString(manager.Email), manager.UpdatedAt, manager.ID,
	)
	if err != nil {
		return false, conflict(err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// GetByID retrieves a manager by ID
func (r *managerRepo) GetByID(ctx context.Context, id string) (*models.Manager, error) {
	query := `SELECT ` + managerColumns + ` FROM managers WHERE id = $1`
	m, err := scanManager(r.db.Conn(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// List returns all managers ordered by name
func (r *managerRepo) List(ctx context.Context) ([]*models.Manager, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `SELECT `+managerColumns+` FROM managers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var managers []*models.Manager
	for rows.Next() {
		m, err := scanManager(rows)
		if err != nil {
			return nil, err
		}
		managers = append(managers, m)
	}
	return managers, rows.Err()
}

// Stats returns managers with project and deliverable counts. An empty
// managerID selects every manager.
func (r *managerRepo) Stats(ctx context.Context, managerID string) ([]models.ManagerStats, error) {
	query := `
		SELECT m.id, m.name, m.email, m.created_at, m.updated_at,
			(SELECT COUNT(*) FROM projects p WHERE p.manager_id = m.id),
			(SELECT COUNT(*) FROM deliverables d JOIN projects p ON p.id = d.project_id WHERE p.manager_id = m.id)
		FROM managers m
		WHERE ($1 = '' OR m.id::text = $1)
		ORDER BY m.name
	`
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.ManagerStats
	for rows.Next() {
		var s models.ManagerStats
		var email sql.NullString
		err := rows.Scan(
			&s.ID, &s.Name, &email, &s.CreatedAt, &s.UpdatedAt,
			&s.ProjectCount, &s.DeliverableCount,
		)
		if err != nil {
			return nil, err
		}
		s.Email = email.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Count returns the total number of managers
func (r *managerRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Conn(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM managers").Scan(&count)
	return count, err
}
