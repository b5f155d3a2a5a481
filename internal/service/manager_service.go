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

// managerService is the concrete implementation of ManagerService
type managerService struct {
	repos *repository.Repositories
	clock Clock
	log   zerolog.Logger
}

// newManagerService creates a new ManagerService
func newManagerService(repos *repository.Repositories, clock Clock, log zerolog.Logger) *managerService {
	return &managerService{
		repos: repos,
		clock: clock,
		log:   log.With().Str("service", "manager").Logger(),
	}
}

// List returns managers with project and deliverable counts
func (s *managerService) List(ctx context.Context) ([]models.ManagerStats, error) {
	stats, err := s.repos.Manager.Stats(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list managers: %w", err)
	}
	return stats, nil
}

// Get retrieves a manager with project and deliverable counts
func (s *managerService) Get(ctx context.Context, id string) (*models.ManagerStats, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	stats, err := s.repos.Manager.Stats(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, ErrNotFound
	}
	return &stats[0], nil
}

// Create adds a manager. Names and emails are unique.
func (s *managerService) Create(ctx context.Context, req *models.CreateManagerRequest) (*models.Manager, error) {
	name := validation.CleanString(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	now := s.clock().UTC()
	m := &models.Manager{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Manager.Create(ctx, m); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: manager %q or its email", ErrDuplicate, name)
		}
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}

	s.log.Info().Str("manager_id", m.ID).Str("name", m.Name).Msg("Manager created")
	return m, nil
}

// Update applies the non-nil fields of req. An empty email clears it.
func (s *managerService) Update(ctx context.Context, id string, req *models.UpdateManagerRequest) (*models.Manager, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	m, err := s.repos.Manager.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}

	if req.Name != nil {
		name := validation.CleanString(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		if utf8.RuneCountInString(name) > models.MaxNameLength {
			return nil, fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, models.MaxNameLength)
		}
		m.Name = name
	}
	if req.Email != nil {
		m.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}

	m.UpdatedAt = s.clock().UTC()
	ok, err := s.repos.Manager.Update(ctx, m)
	if errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("%w: manager %q or its email", ErrDuplicate, m.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update manager: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	s.log.Info().Str("manager_id", m.ID).Str("name", m.Name).Msg("Manager updated")
	return m, nil
}
