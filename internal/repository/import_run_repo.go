package repository

import (
	"context"
	"database/sql"

	"github.com/deliverables-tracker/internal/database"
	"github.com/deliverables-tracker/internal/models"
	"github.com/lib/pq"
)

// importRunRepo is the concrete implementation of ImportRunRepository
type importRunRepo struct {
	db *database.DB
}

// NewImportRunRepo creates a new import run repository
func NewImportRunRepo(db *database.DB) ImportRunRepository {
	return &importRunRepo{db: db}
}

const importRunColumns = `
	id, filename, idempotency_key, skip_invalid, success, total_rows, imported_rows, skipped_rows,
	managers_created, projects_created, deliverables_created, fatal_error, archive_path,
	duration_ms, created_at
`

func scanImportRun(row *sql.Row) (*models.ImportRun, error) {
	var run models.ImportRun
	var idempotencyKey, fatalError, archivePath sql.NullString

	err := row.Scan(
		&run.ID, &run.Filename, &idempotencyKey, &run.SkipInvalid, &run.Success,
		&run.TotalRows, &run.ImportedRows, &run.SkippedRows,
		&run.ManagersCreated, &run.ProjectsCreated, &run.DeliverablesCreated,
		&fatalError, &archivePath, &run.DurationMs, &run.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.IdempotencyKey = idempotencyKey.String
	run.FatalError = fatalError.String
	run.ArchivePath = archivePath.String
	return &run, nil
}

// Create inserts a finished import run. A reused idempotency key returns
// ErrConflict.
func (r *importRunRepo) Create(ctx context.Context, run *models.ImportRun) error {
	query := `
		INSERT INTO import_runs (` + importRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		run.ID, run.Filename, nullString(run.IdempotencyKey), run.SkipInvalid, run.Success,
		run.TotalRows, run.ImportedRows, run.SkippedRows,
		run.ManagersCreated, run.ProjectsCreated, run.DeliverablesCreated,
		nullString(run.FatalError), nullString(run.ArchivePath), run.DurationMs, run.CreatedAt,
	)
	return conflict(err)
}

// GetByID retrieves an import run by ID
func (r *importRunRepo) GetByID(ctx context.Context, id string) (*models.ImportRun, error) {
	query := `SELECT ` + importRunColumns + ` FROM import_runs WHERE id = $1`
	return scanImportRun(r.db.Conn(ctx).QueryRowContext(ctx, query, id))
}

// GetByIdempotencyKey retrieves an import run by idempotency key
func (r *importRunRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.ImportRun, error) {
	query := `SELECT ` + importRunColumns + ` FROM import_runs WHERE idempotency_key = $1`
	return scanImportRun(r.db.Conn(ctx).QueryRowContext(ctx, query, key))
}

// AddErrors stores row errors using the COPY protocol. A file with thousands
// of bad rows produces thousands of error rows in one round trip.
func (r *importRunRepo) AddErrors(ctx context.Context, runID string, errors []models.RowError) error {
	if len(errors) == 0 {
		return nil
	}

	return r.db.InTx(ctx, func(ctx context.Context) error {
		stmt, err := r.db.Conn(ctx).PrepareContext(ctx, pq.CopyIn("import_run_errors",
			"run_id", "row_number", "column_name", "value", "message", "kind",
		))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range errors {
			var value sql.NullString
			if e.Value != nil {
				value = sql.NullString{String: *e.Value, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, runID, e.Row, e.Column, value, e.Error, string(e.Kind)); err != nil {
				return err
			}
		}

		// Flush the COPY buffer
		_, err = stmt.ExecContext(ctx)
		return err
	})
}

// GetErrors retrieves the row errors of a run in row order. A limit of zero
// returns all of them.
func (r *importRunRepo) GetErrors(ctx context.Context, runID string, limit int) ([]models.RowError, error) {
	query := `
		SELECT row_number, column_name, value, message, kind
		FROM import_run_errors WHERE run_id = $1
		ORDER BY row_number, id
	`
	args := []any{runID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errors []models.RowError
	for rows.Next() {
		var e models.RowError
		var value sql.NullString
		if err := rows.Scan(&e.Row, &e.Column, &value, &e.Error, &e.Kind); err != nil {
			return nil, err
		}
		if value.Valid {
			v := value.String
			e.Value = &v
		}
		errors = append(errors, e)
	}
	return errors, rows.Err()
}

// CountErrors returns the number of row errors stored for a run
func (r *importRunRepo) CountErrors(ctx context.Context, runID string) (int, error) {
	var count int
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM import_run_errors WHERE run_id = $1", runID,
	).Scan(&count)
	return count, err
}
