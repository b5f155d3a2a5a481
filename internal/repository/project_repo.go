package repository

import (
	"context"
	"database/sql"

	"github.com/deliverables-tracker/internal/database"
	"github.com/deliverables-tracker/internal/models"
)

// projectRepo is the concrete implementation of ProjectRepository
type projectRepo struct {
	db *database.DB
}

// NewProjectRepo creates a new project repository
func NewProjectRepo(db *database.DB) ProjectRepository {
	return &projectRepo{db: db}
}

const projectSelect = `
	SELECT p.id, p.name, p.description, p.manager_id, m.name, p.created_at, p.updated_at
	FROM projects p
	JOIN managers m ON m.id = p.manager_id
`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	var p models.Project
	var description sql.NullString
	err := row.Scan(&p.ID, &p.Name, &description, &p.ManagerID, &p.ManagerName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	return &p, nil
}

// FindByName looks a project up case-insensitively
func (r *projectRepo) FindByName(ctx context.Context, name string) (*models.Project, error) {
	p, err := scanProject(r.db.Conn(ctx).QueryRowContext(ctx, projectSelect+` WHERE LOWER(p.name) = LOWER($1)`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// Create inserts a new project
func (r *projectRepo) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (id, name, description, manager_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		project.ID, project.Name, nullString(project.Description), project.ManagerID,
		project.CreatedAt, project.UpdatedAt,
	)
	return conflict(err)
}

// Update writes name, description and manager. It reports false when no
// project has the id.
func (r *projectRepo) Update(ctx context.Context, project *models.Project) (bool, error) {
	query := `
		UPDATE projects SET name = $1, description = $2, manager_id = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		project.Name, nullString(project.Description), project.ManagerID, project.UpdatedAt, project.ID,
	)
	if err != nil {
		return false, conflict(err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// GetByID retrieves a project by ID with its manager's name
func (r *projectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(r.db.Conn(ctx).QueryRowContext(ctx, projectSelect+` WHERE p.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// List returns projects ordered by name, optionally for one manager
func (r *projectRepo) List(ctx context.Context, managerID string) ([]*models.Project, error) {
	query := projectSelect + ` WHERE ($1 = '' OR p.manager_id::text = $1) ORDER BY p.name`
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Search finds projects whose name contains query, case-insensitively
func (r *projectRepo) Search(ctx context.Context, query string, limit int) ([]models.ProjectSearchResult, error) {
	sqlQuery := `
		SELECT p.id, p.name, m.name,
			(SELECT COUNT(*) FROM deliverables d WHERE d.project_id = p.id)
		FROM projects p
		JOIN managers m ON m.id = p.manager_id
		WHERE p.name ILIKE '%' || $1 || '%'
		ORDER BY p.name
		LIMIT $2
	`
	rows, err := r.db.Conn(ctx).QueryContext(ctx, sqlQuery, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.ProjectSearchResult
	for rows.Next() {
		var res models.ProjectSearchResult
		if err := rows.Scan(&res.ID, &res.Name, &res.ManagerName, &res.DeliverableCount); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// Stats returns projects with deliverable counts relative to today. An empty
// projectID selects every project.
func (r *projectRepo) Stats(ctx context.Context, projectID string, today models.Date) ([]models.ProjectStats, error) {
	query := `
		SELECT p.id, p.name, p.description, p.manager_id, m.name, p.created_at, p.updated_at,
			COUNT(d.id),
			COUNT(d.id) FILTER (WHERE d.status = 'pending'),
			COUNT(d.id) FILTER (WHERE d.status <> 'completed' AND d.due_date < $2),
			COUNT(d.id) FILTER (WHERE d.status <> 'completed' AND d.due_date >= $2 AND d.due_date <= $3)
		FROM projects p
		JOIN managers m ON m.id = p.manager_id
		LEFT JOIN deliverables d ON d.project_id = p.id
		WHERE ($1 = '' OR p.id::text = $1)
		GROUP BY p.id, m.name
		ORDER BY p.name
	`
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, projectID, today, today.AddDays(7))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.ProjectStats
	for rows.Next() {
		var s models.ProjectStats
		var description sql.NullString
		err := rows.Scan(
			&s.ID, &s.Name, &description, &s.ManagerID, &s.ManagerName, &s.CreatedAt, &s.UpdatedAt,
			&s.TotalDeliverables, &s.PendingDeliverables, &s.OverdueDeliverables, &s.Upcoming7Days,
		)
		if err != nil {
			return nil, err
		}
		s.Description = description.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Count returns the total number of projects
func (r *projectRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Conn(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&count)
	return count, err
}
