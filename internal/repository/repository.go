package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/deliverables-tracker/internal/database"
	"github.com/deliverables-tracker/internal/models"
	"github.com/lib/pq"
)

// ErrConflict is returned when an insert hits a unique index
var ErrConflict = errors.New("record already exists")

// Transactor runs fn in a single storage transaction. Repository calls made
// with the context handed to fn take part in it.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ManagerRepository defines the interface for manager data operations.
// Lookups return nil, nil when nothing matches.
type ManagerRepository interface {
	FindByName(ctx context.Context, name string) (*models.Manager, error)
	Create(ctx context.Context, manager *models.Manager) error
	Update(ctx context.Context, manager *models.Manager) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Manager, error)
	List(ctx context.Context) ([]*models.Manager, error)
	Stats(ctx context.Context, managerID string) ([]models.ManagerStats, error)
	Count(ctx context.Context) (int, error)
}

// ProjectRepository defines the interface for project data operations
type ProjectRepository interface {
	FindByName(ctx context.Context, name string) (*models.Project, error)
	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, project *models.Project) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Project, error)
	List(ctx context.Context, managerID string) ([]*models.Project, error)
	Search(ctx context.Context, query string, limit int) ([]models.ProjectSearchResult, error)
	Stats(ctx context.Context, projectID string, today models.Date) ([]models.ProjectStats, error)
	Count(ctx context.Context) (int, error)
}

// DeliverableRepository defines the interface for deliverable data operations
type DeliverableRepository interface {
	Exists(ctx context.Context, key models.DedupKey) (bool, error)
	Create(ctx context.Context, deliverable *models.Deliverable) error
	GetByID(ctx context.Context, id string) (*models.Deliverable, error)
	Query(ctx context.Context, filter models.DeliverableFilter) ([]models.Deliverable, error)
	Summary(ctx context.Context, projectID, managerID string, today models.Date) (*models.DeliverableSummary, error)
	MarkComplete(ctx context.Context, id string, at time.Time) (bool, error)
	Update(ctx context.Context, deliverable *models.Deliverable) (bool, error)
	StreamAll(ctx context.Context, filter models.DeliverableFilter, callback func(*models.Deliverable) error) error
	Count(ctx context.Context) (int, error)
}

// ImportRunRepository defines the interface for import run history
type ImportRunRepository interface {
	Create(ctx context.Context, run *models.ImportRun) error
	GetByID(ctx context.Context, id string) (*models.ImportRun, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.ImportRun, error)
	AddErrors(ctx context.Context, runID string, errors []models.RowError) error
	GetErrors(ctx context.Context, runID string, limit int) ([]models.RowError, error)
	CountErrors(ctx context.Context, runID string) (int, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Tx          Transactor
	Manager     ManagerRepository
	Project     ProjectRepository
	Deliverable DeliverableRepository
	ImportRun   ImportRunRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Tx:          db,
		Manager:     NewManagerRepo(db),
		Project:     NewProjectRepo(db),
		Deliverable: NewDeliverableRepo(db),
		ImportRun:   NewImportRunRepo(db),
	}
}

// uniqueViolation is the PostgreSQL error code for unique_violation
const uniqueViolation = "23505"

// conflict maps a unique index violation to ErrConflict
func conflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

// helper to convert empty string to NULL
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
