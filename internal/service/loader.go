package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/repository"
	"github.com/deliverables-tracker/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// loadCounts reports what a load created
type loadCounts struct {
	Managers     int
	Projects     int
	Deliverables int
}

// loader persists accepted rows. One loader serves one import call.
type loader struct {
	repos    *repository.Repositories
	clock    Clock
	log      zerolog.Logger
	managers map[string]*models.Manager
	projects map[string]*models.Project
	counts   loadCounts
}

func newLoader(repos *repository.Repositories, clock Clock, log zerolog.Logger) *loader {
	return &loader{
		repos:    repos,
		clock:    clock,
		log:      log,
		managers: make(map[string]*models.Manager),
		projects: make(map[string]*models.Project),
	}
}

// Load writes every row in a single transaction. Any failure rolls back the
// whole batch and the returned counts are zero.
func (l *loader) Load(ctx context.Context, rows []validation.CleanRow) (loadCounts, error) {
	err := l.repos.Tx.InTx(ctx, func(ctx context.Context) error {
		for _, row := range rows {
			if err := l.loadRow(ctx, row); err != nil {
				return fmt.Errorf("row %d: %w", row.Number, err)
			}
		}
		return nil
	})
	if err != nil {
		return loadCounts{}, err
	}
	return l.counts, nil
}

func (l *loader) loadRow(ctx context.Context, row validation.CleanRow) error {
	manager, err := l.manager(ctx, row.ProjectManager)
	if err != nil {
		return err
	}

	project, err := l.project(ctx, row.Project, manager)
	if err != nil {
		return err
	}

	now := l.clock().UTC()
	d := &models.Deliverable{
		ID:          uuid.New().String(),
		ProjectID:   project.ID,
		Description: row.Description,
		DueDate:     row.DueDate,
		Frequency:   row.Frequency,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.repos.Deliverable.Create(ctx, d); err != nil {
		return fmt.Errorf("failed to create deliverable: %w", err)
	}
	l.counts.Deliverables++
	return nil
}

func (l *loader) manager(ctx context.Context, name string) (*models.Manager, error) {
	key := strings.ToLower(name)
	if m, ok := l.managers[key]; ok {
		return m, nil
	}

	m, created, err := resolveManager(ctx, l.repos.Manager, name, l.clock)
	if err != nil {
		return nil, err
	}
	if created {
		l.counts.Managers++
		l.log.Debug().Str("manager", m.Name).Msg("Manager created")
	}
	l.managers[key] = m
	return m, nil
}

func (l *loader) project(ctx context.Context, name string, manager *models.Manager) (*models.Project, error) {
	key := strings.ToLower(name)
	if p, ok := l.projects[key]; ok {
		return p, nil
	}

	p, created, err := resolveProject(ctx, l.repos.Project, name, manager, l.clock)
	if err != nil {
		return nil, err
	}
	if created {
		l.counts.Projects++
		l.log.Debug().Str("project", p.Name).Str("manager", manager.Name).Msg("Project created")
	}
	l.projects[key] = p
	return p, nil
}

// resolveManager returns the manager with name (case-insensitive), creating
// it when missing
func resolveManager(ctx context.Context, repo repository.ManagerRepository, name string, clock Clock) (*models.Manager, bool, error) {
	m, err := repo.FindByName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up manager %q: %w", name, err)
	}
	if m != nil {
		return m, false, nil
	}

	now := clock().UTC()
	m = &models.Manager{ID: uuid.New().String(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(ctx, m); err != nil {
		return nil, false, fmt.Errorf("failed to create manager %q: %w", name, err)
	}
	return m, true, nil
}

// resolveProject returns the project with name (case-insensitive), creating
// it under manager when missing. An existing project keeps its manager.
func resolveProject(ctx context.Context, repo repository.ProjectRepository, name string, manager *models.Manager, clock Clock) (*models.Project, bool, error) {
	p, err := repo.FindByName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up project %q: %w", name, err)
	}
	if p != nil {
		return p, false, nil
	}

	now := clock().UTC()
	p = &models.Project{
		ID:          uuid.New().String(),
		Name:        name,
		ManagerID:   manager.ID,
		ManagerName: manager.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Create(ctx, p); err != nil {
		return nil, false, fmt.Errorf("failed to create project %q: %w", name, err)
	}
	return p, true, nil
}
