package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/deliverables-tracker/internal/database"
	"github.com/deliverables-tracker/internal/models"
)

// deliverableRepo is the concrete implementation of DeliverableRepository
type deliverableRepo struct {
	db *database.DB
}

// NewDeliverableRepo creates a new deliverable repository
func NewDeliverableRepo(db *database.DB) DeliverableRepository {
	return &deliverableRepo{db: db}
}

const deliverableSelect = `
	SELECT d.id, d.project_id, d.description, d.due_date, d.frequency, d.status, d.notes,
		d.completed_at, d.created_at, d.updated_at, p.name, m.id, m.name
	FROM deliverables d
	JOIN projects p ON p.id = d.project_id
	JOIN managers m ON m.id = p.manager_id
`

func scanDeliverable(row interface{ Scan(...any) error }) (*models.Deliverable, error) {
	var d models.Deliverable
	var notes sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&d.ID, &d.ProjectID, &d.Description, &d.DueDate, &d.Frequency, &d.Status, &notes,
		&completedAt, &d.CreatedAt, &d.UpdatedAt, &d.ProjectName, &d.ManagerID, &d.ManagerName,
	)
	if err != nil {
		return nil, err
	}
	d.Notes = notes.String
	if completedAt.Valid {
		d.CompletedAt = &completedAt.Time
	}
	return &d, nil
}

// Exists reports whether a deliverable with the dedup key is stored. The
// project part of the key is matched case-insensitively by name.
func (r *deliverableRepo) Exists(ctx context.Context, key models.DedupKey) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM deliverables d
			JOIN projects p ON p.id = d.project_id
			WHERE LOWER(p.name) = LOWER($1) AND d.due_date = $2 AND d.frequency = $3 AND d.description = $4
		)
	`
	var exists bool
	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		key.Project, key.DueDate, key.Frequency, key.Description,
	).Scan(&exists)
	return exists, err
}

// Create inserts a new deliverable. A dedup collision returns ErrConflict.
func (r *deliverableRepo) Create(ctx context.Context, d *models.Deliverable) error {
	query := `
		INSERT INTO deliverables (id, project_id, description, due_date, frequency, status, notes,
			completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		d.ID, d.ProjectID, d.Description, d.DueDate, d.Frequency, d.Status, nullString(d.Notes),
		d.CompletedAt, d.CreatedAt, d.UpdatedAt,
	)
	return conflict(err)
}

// GetByID retrieves a deliverable by ID with project and manager names
func (r *deliverableRepo) GetByID(ctx context.Context, id string) (*models.Deliverable, error) {
	d, err := scanDeliverable(r.db.Conn(ctx).QueryRowContext(ctx, deliverableSelect+` WHERE d.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// Query returns the deliverables matching filter ordered by due date, then id
func (r *deliverableRepo) Query(ctx context.Context, filter models.DeliverableFilter) ([]models.Deliverable, error) {
	var result []models.Deliverable
	err := r.StreamAll(ctx, filter, func(d *models.Deliverable) error {
		result = append(result, *d)
		return nil
	})
	return result, err
}

// StreamAll streams matching deliverables for export (memory efficient)
func (r *deliverableRepo) StreamAll(ctx context.Context, filter models.DeliverableFilter, callback func(*models.Deliverable) error) error {
	where, args := filterClause(filter)
	query := deliverableSelect + where + ` ORDER BY d.due_date, d.id`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDeliverable(rows)
		if err != nil {
			return err
		}
		if err := callback(d); err != nil {
			return err
		}
	}
	return rows.Err()
}

// filterClause builds the WHERE clause for a filter; zero fields add nothing
func filterClause(f models.DeliverableFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ProjectID != "" {
		add("d.project_id::text = $%d", f.ProjectID)
	}
	if f.ProjectName != "" {
		add("p.name ILIKE '%%' || $%d || '%%'", f.ProjectName)
	}
	if f.ManagerID != "" {
		add("p.manager_id::text = $%d", f.ManagerID)
	}
	if f.Status != "" {
		add("d.status = $%d", string(f.Status))
	}
	if f.Frequency != "" {
		add("d.frequency = $%d", f.Frequency)
	}
	if !f.DueFrom.IsZero() {
		add("d.due_date >= $%d", f.DueFrom)
	}
	if !f.DueTo.IsZero() {
		add("d.due_date <= $%d", f.DueTo)
	}
	if f.Search != "" {
		add("d.description ILIKE '%%' || $%d || '%%'", f.Search)
	}
	if !f.IncludeCompleted {
		conds = append(conds, "d.status <> 'completed'")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Summary counts open deliverables by urgency relative to today
func (r *deliverableRepo) Summary(ctx context.Context, projectID, managerID string, today models.Date) (*models.DeliverableSummary, error) {
	query := `
		SELECT
			COUNT(d.id),
			COUNT(d.id) FILTER (WHERE d.due_date < $3),
			COUNT(d.id) FILTER (WHERE d.due_date = $3),
			COUNT(d.id) FILTER (WHERE d.due_date >= $3 AND d.due_date <= $4),
			COUNT(d.id) FILTER (WHERE d.due_date >= $3 AND d.due_date <= $5)
		FROM deliverables d
		JOIN projects p ON p.id = d.project_id
		WHERE d.status <> 'completed'
			AND ($1 = '' OR d.project_id::text = $1)
			AND ($2 = '' OR p.manager_id::text = $2)
	`
	var s models.DeliverableSummary
	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		projectID, managerID, today, today.AddDays(7), today.AddDays(30),
	).Scan(&s.Total, &s.Overdue, &s.DueToday, &s.DueThisWeek, &s.DueThisMonth)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// MarkComplete sets a deliverable completed. It reports false when no
// deliverable has the id.
func (r *deliverableRepo) MarkComplete(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE deliverables SET status = 'completed', completed_at = $1, updated_at = $1
		WHERE id = $2
	`
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Update writes the editable fields of d. It reports false when no
// deliverable has the id; a dedup collision returns ErrConflict.
func (r *deliverableRepo) Update(ctx context.Context, d *models.Deliverable) (bool, error) {
	query := `
		UPDATE deliverables
		SET description = $1, due_date = $2, frequency = $3, status = $4, notes = $5,
			completed_at = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		d.Description, d.DueDate, d.Frequency, d.Status, nullString(d.Notes),
		d.CompletedAt, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return false, conflict(err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Count returns the total number of deliverables
func (r *deliverableRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Conn(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM deliverables").Scan(&count)
	return count, err
}
