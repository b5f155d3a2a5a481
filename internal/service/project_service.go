package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/repository"
	"github.com/deliverables-tracker/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// projectService is the concrete implementation of ProjectService
type projectService struct {
	repos *repository.Repositories
	clock Clock
	log   zerolog.Logger
}

// newProjectService creates a new ProjectService
func newProjectService(repos *repository.Repositories, clock Clock, log zerolog.Logger) *projectService {
	return &projectService{
		repos: repos,
		clock: clock,
		log:   log.With().Str("service", "project").Logger(),
	}
}

// List returns projects with deliverable statistics
func (s *projectService) List(ctx context.Context, managerID string) ([]models.ProjectStats, error) {
	stats, err := s.repos.Project.Stats(ctx, "", today(s.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if managerID == "" {
		return stats, nil
	}

	filtered := stats[:0]
	for _, p := range stats {
		if p.ManagerID == managerID {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// Search finds projects by partial name
func (s *projectService) Search(ctx context.Context, query string, limit int) ([]models.ProjectSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results, err := s.repos.Project.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search projects: %w", err)
	}
	if results == nil {
		results = []models.ProjectSearchResult{}
	}
	return results, nil
}

// Get retrieves a project with deliverable statistics
func (s *projectService) Get(ctx context.Context, id string) (*models.ProjectStats, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	stats, err := s.repos.Project.Stats(ctx, id, today(s.clock))
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, ErrNotFound
	}
	return &stats[0], nil
}

// Create adds a project. The manager is taken by id, or resolved by name and
// created when missing.
func (s *projectService) Create(ctx context.Context, req *models.CreateProjectRequest) (*models.Project, error) {
	name := validation.CleanString(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	var project *models.Project
	err := s.repos.Tx.InTx(ctx, func(ctx context.Context) error {
		manager, err := s.manager(ctx, req)
		if err != nil {
			return err
		}

		now := s.clock().UTC()
		project = &models.Project{
			ID:          uuid.New().String(),
			Name:        name,
			Description: strings.TrimSpace(req.Description),
			ManagerID:   manager.ID,
			ManagerName: manager.Name,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return s.repos.Project.Create(ctx, project)
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("%w: project %q", ErrDuplicate, name)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("project_id", project.ID).Str("name", project.Name).Msg("Project created")
	return project, nil
}

// Update applies the non-nil fields of req. The project keeps its manager
// unless ManagerID is set; a rename onto another project's name returns
// ErrDuplicate.
func (s *projectService) Update(ctx context.Context, id string, req *models.UpdateProjectRequest) (*models.Project, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}

	var project *models.Project
	err := s.repos.Tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repos.Project.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrNotFound
		}

		if req.Name != nil {
			name := validation.CleanString(*req.Name)
			if name == "" {
				return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
			}
			if utf8.RuneCountInString(name) > models.MaxNameLength {
				return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, models.MaxNameLength)
			}
			p.Name = name
		}
		if req.Description != nil {
			p.Description = strings.TrimSpace(*req.Description)
		}
		if req.ManagerID != nil {
			manager, err := s.manager(ctx, &models.CreateProjectRequest{ManagerID: *req.ManagerID})
			if err != nil {
				return err
			}
			p.ManagerID, p.ManagerName = manager.ID, manager.Name
		}

		p.UpdatedAt = s.clock().UTC()
		project = p
		ok, err := s.repos.Project.Update(ctx, p)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return nil
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("%w: project %q", ErrDuplicate, project.Name)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("project_id", project.ID).Str("name", project.Name).Msg("Project updated")
	return project, nil
}

func (s *projectService) manager(ctx context.Context, req *models.CreateProjectRequest) (*models.Manager, error) {
	if req.ManagerID != "" {
		if !isUUID(req.ManagerID) {
			return nil, fmt.Errorf("%w: manager_id %q is not a UUID", ErrInvalidInput, req.ManagerID)
		}
		m, err := s.repos.Manager.GetByID(ctx, req.ManagerID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, fmt.Errorf("%w: manager %s does not exist", ErrInvalidInput, req.ManagerID)
		}
		return m, nil
	}

	name := validation.CleanString(req.ManagerName)
	if name == "" {
		return nil, fmt.Errorf("%w: manager_id or manager_name is required", ErrInvalidInput)
	}
	m, created, err := resolveManager(ctx, s.repos.Manager, name, s.clock)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info().Str("manager_id", m.ID).Str("name", m.Name).Msg("Manager created")
	}
	return m, nil
}
