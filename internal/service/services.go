package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/deliverables-tracker/internal/config"
	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/repository"
	"github.com/deliverables-tracker/internal/spreadsheet"
	"github.com/deliverables-tracker/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for query or request values out of bounds
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicate is returned when a record collides on a unique key
	ErrDuplicate = errors.New("already exists")
)

// Clock returns the current instant. Services derive "today" from it in UTC.
type Clock func() time.Time

func today(clock Clock) models.Date {
	return models.DateOf(clock().UTC())
}

// isUUID guards storage lookups; ids are UUID columns
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ImportService defines the interface for spreadsheet imports
type ImportService interface {
	Preview(ctx context.Context, filename string, sheet *spreadsheet.Sheet) (*models.PreviewResult, error)
	Import(ctx context.Context, filename string, sheet *spreadsheet.Sheet, opts models.ImportOptions) (*models.ImportResult, error)
	GetRun(ctx context.Context, id string) (*models.ImportRunResponse, error)
	GetRunByIdempotencyKey(ctx context.Context, key string) (*models.ImportResult, error)
	GetRunErrors(ctx context.Context, id string) ([]models.RowError, error)
	Template() *models.ImportTemplate
}

// DeliverableService defines the interface for deliverable queries and updates
type DeliverableService interface {
	List(ctx context.Context, filter models.DeliverableFilter) ([]models.DeliverableView, error)
	Upcoming(ctx context.Context, q models.UpcomingQuery) ([]models.DeliverableView, error)
	Overdue(ctx context.Context, projectID, managerID string) ([]models.DeliverableView, error)
	Summary(ctx context.Context, projectID, managerID string) (*models.DeliverableSummary, error)
	Get(ctx context.Context, id string) (*models.DeliverableView, error)
	Create(ctx context.Context, req *models.CreateDeliverableRequest) (*models.DeliverableView, error)
	Update(ctx context.Context, id string, req *models.UpdateDeliverableRequest) (*models.DeliverableView, error)
	Complete(ctx context.Context, id string) (*models.DeliverableView, error)
}

// ProjectService defines the interface for project operations
type ProjectService interface {
	List(ctx context.Context, managerID string) ([]models.ProjectStats, error)
	Search(ctx context.Context, query string, limit int) ([]models.ProjectSearchResult, error)
	Get(ctx context.Context, id string) (*models.ProjectStats, error)
	Create(ctx context.Context, req *models.CreateProjectRequest) (*models.Project, error)
	Update(ctx context.Context, id string, req *models.UpdateProjectRequest) (*models.Project, error)
}

// ManagerService defines the interface for manager operations
type ManagerService interface {
	List(ctx context.Context) ([]models.ManagerStats, error)
	Get(ctx context.Context, id string) (*models.ManagerStats, error)
	Create(ctx context.Context, req *models.CreateManagerRequest) (*models.Manager, error)
	Update(ctx context.Context, id string, req *models.UpdateManagerRequest) (*models.Manager, error)
}

// ExportService defines the interface for export operations
type ExportService interface {
	StreamDeliverables(ctx context.Context, w io.Writer, format string, filter models.DeliverableFilter) (int, error)
	ContentType(format string) (string, error)
	GetCount(ctx context.Context, resource string) (int, error)
}

// Services holds all service interfaces
type Services struct {
	Import      ImportService
	Deliverable DeliverableService
	Project     ProjectService
	Manager     ManagerService
	Export      ExportService
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, cfg *config.Config, clock Clock, log zerolog.Logger) (*Services, error) {
	if clock == nil {
		clock = time.Now
	}

	normalizer, err := validation.NewNormalizer(cfg.Import.Aliases)
	if err != nil {
		return nil, err
	}

	return &Services{
		Import:      newImportService(repos, normalizer, cfg, clock, log),
		Deliverable: newDeliverableService(repos, cfg.Upcoming, clock, log),
		Project:     newProjectService(repos, clock, log),
		Manager:     newManagerService(repos, clock, log),
		Export:      newExportService(repos, log),
	}, nil
}
