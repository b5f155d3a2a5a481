package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/deliverables-tracker/internal/config"
	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/repository"
	"github.com/deliverables-tracker/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// deliverableService is the concrete implementation of DeliverableService
type deliverableService struct {
	repos    *repository.Repositories
	upcoming config.UpcomingConfig
	clock    Clock
	log      zerolog.Logger
}

// newDeliverableService creates a new DeliverableService
func newDeliverableService(repos *repository.Repositories, upcoming config.UpcomingConfig, clock Clock, log zerolog.Logger) *deliverableService {
	return &deliverableService{
		repos:    repos,
		upcoming: upcoming,
		clock:    clock,
		log:      log.With().Str("service", "deliverable").Logger(),
	}
}

// List returns deliverables matching filter
func (s *deliverableService) List(ctx context.Context, filter models.DeliverableFilter) ([]models.DeliverableView, error) {
	if filter.Status != "" && !models.ValidStatuses[filter.Status] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	if filter.Frequency != "" {
		filter.Frequency = strings.ToUpper(filter.Frequency)
		if !models.IsValidFrequency(filter.Frequency) {
			return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, filter.Frequency)
		}
	}
	if !filter.DueFrom.IsZero() && !filter.DueTo.IsZero() && filter.DueTo.Before(filter.DueFrom) {
		return nil, fmt.Errorf("%w: due_before is earlier than due_after", ErrInvalidInput)
	}

	return s.query(ctx, filter, today(s.clock))
}

// Upcoming returns open deliverables due within q.Days of today. With
// IncludeOverdue and a project, that project's overdue items are included.
func (s *deliverableService) Upcoming(ctx context.Context, q models.UpcomingQuery) ([]models.DeliverableView, error) {
	if q.Days < s.upcoming.MinDays || q.Days > s.upcoming.MaxDays {
		return nil, fmt.Errorf("%w: days must be between %d and %d, got %d",
			ErrInvalidInput, s.upcoming.MinDays, s.upcoming.MaxDays, q.Days)
	}
	if err := s.checkScope(ctx, q.ProjectID, q.ManagerID); err != nil {
		return nil, err
	}

	now := today(s.clock)
	filter := models.DeliverableFilter{
		ProjectID: q.ProjectID,
		ManagerID: q.ManagerID,
		DueTo:     now.AddDays(q.Days),
	}
	if !(q.IncludeOverdue && q.ProjectID != "") {
		filter.DueFrom = now
	}

	return s.query(ctx, filter, now)
}

// Overdue returns open deliverables due before today
func (s *deliverableService) Overdue(ctx context.Context, projectID, managerID string) ([]models.DeliverableView, error) {
	if err := s.checkScope(ctx, projectID, managerID); err != nil {
		return nil, err
	}

	now := today(s.clock)
	return s.query(ctx, models.DeliverableFilter{
		ProjectID: projectID,
		ManagerID: managerID,
		DueTo:     now.AddDays(-1),
	}, now)
}

// Summary counts open deliverables by urgency
func (s *deliverableService) Summary(ctx context.Context, projectID, managerID string) (*models.DeliverableSummary, error) {
	if err := s.checkScope(ctx, projectID, managerID); err != nil {
		return nil, err
	}
	return s.repos.Deliverable.Summary(ctx, projectID, managerID, today(s.clock))
}

// Get retrieves one deliverable
func (s *deliverableService) Get(ctx context.Context, id string) (*models.DeliverableView, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	d, err := s.repos.Deliverable.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	view := models.NewDeliverableView(*d, today(s.clock))
	return &view, nil
}

// Create adds a single deliverable to an existing project. A deliverable with
// the same dedup key returns ErrDuplicate.
func (s *deliverableService) Create(ctx context.Context, req *models.CreateDeliverableRequest) (*models.DeliverableView, error) {
	project, err := s.project(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due_date is required", ErrInvalidInput)
	}

	frequency := validation.CleanFrequency(req.Frequency)
	if !models.IsValidFrequency(frequency) {
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, req.Frequency)
	}
	description := validation.CleanString(req.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}

	key := models.DedupKey{
		Project:     strings.ToLower(project.Name),
		DueDate:     req.DueDate,
		Frequency:   frequency,
		Description: description,
	}
	exists, err := s.repos.Deliverable.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicate
	}

	now := s.clock().UTC()
	d := &models.Deliverable{
		ID:          uuid.New().String(),
		ProjectID:   project.ID,
		Description: description,
		DueDate:     req.DueDate,
		Frequency:   frequency,
		Status:      models.StatusPending,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repos.Deliverable.Create(ctx, d); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create deliverable: %w", err)
	}

	s.log.Info().Str("deliverable_id", d.ID).Str("project", project.Name).Msg("Deliverable created")
	return s.Get(ctx, d.ID)
}

func (s *deliverableService) project(ctx context.Context, req *models.CreateDeliverableRequest) (*models.Project, error) {
	var (
		project *models.Project
		err     error
	)
	switch {
	case req.ProjectID != "":
		if !isUUID(req.ProjectID) {
			return nil, fmt.Errorf("%w: project_id %q is not a UUID", ErrInvalidInput, req.ProjectID)
		}
		project, err = s.repos.Project.GetByID(ctx, req.ProjectID)
	case strings.TrimSpace(req.ProjectName) != "":
		project, err = s.repos.Project.FindByName(ctx, validation.CleanString(req.ProjectName))
	default:
		return nil, fmt.Errorf("%w: project_id or project_name is required", ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project does not exist", ErrInvalidInput)
	}
	return project, nil
}

// Complete marks a deliverable completed now
func (s *deliverableService) Complete(ctx context.Context, id string) (*models.DeliverableView, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	ok, err := s.repos.Deliverable.MarkComplete(ctx, id, s.clock().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to complete deliverable: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Update applies the non-nil fields of req. A change to description, due
// date or frequency is checked against the dedup key of every other
// deliverable. Moving to completed stamps completed_at; moving away clears it.
func (s *deliverableService) Update(ctx context.Context, id string, req *models.UpdateDeliverableRequest) (*models.DeliverableView, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	d, err := s.repos.Deliverable.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}

	keyChanged := false
	if req.Description != nil {
		description := validation.CleanString(*req.Description)
		if description == "" {
			return nil, fmt.Errorf("%w: description must not be empty", ErrInvalidInput)
		}
		if utf8.RuneCountInString(description) > models.MaxDescriptionLength {
			return nil, fmt.Errorf("%w: description exceeds %d characters", ErrInvalidInput, models.MaxDescriptionLength)
		}
		keyChanged = keyChanged || description != d.Description
		d.Description = description
	}
	if req.DueDate != nil {
		if req.DueDate.IsZero() {
			return nil, fmt.Errorf("%w: due_date must not be empty", ErrInvalidInput)
		}
		keyChanged = keyChanged || !req.DueDate.Equal(d.DueDate)
		d.DueDate = *req.DueDate
	}
	if req.Frequency != nil {
		frequency := validation.CleanFrequency(*req.Frequency)
		if !models.IsValidFrequency(frequency) {
			return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, *req.Frequency)
		}
		keyChanged = keyChanged || frequency != d.Frequency
		d.Frequency = frequency
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		if utf8.RuneCountInString(notes) > models.MaxNotesLength {
			return nil, fmt.Errorf("%w: notes exceed %d characters", ErrInvalidInput, models.MaxNotesLength)
		}
		d.Notes = notes
	}

	now := s.clock().UTC()
	if req.Status != nil {
		if !models.ValidStatuses[*req.Status] {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *req.Status)
		}
		switch {
		case *req.Status != models.StatusCompleted:
			d.CompletedAt = nil
		case d.Status != models.StatusCompleted:
			d.CompletedAt = &now
		}
		d.Status = *req.Status
	}

	if keyChanged {
		exists, err := s.repos.Deliverable.Exists(ctx, models.DedupKey{
			Project:     strings.ToLower(d.ProjectName),
			DueDate:     d.DueDate,
			Frequency:   d.Frequency,
			Description: d.Description,
		})
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrDuplicate
		}
	}

	d.UpdatedAt = now
	ok, err := s.repos.Deliverable.Update(ctx, d)
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update deliverable: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	s.log.Info().Str("deliverable_id", d.ID).Bool("key_changed", keyChanged).Msg("Deliverable updated")
	return s.Get(ctx, d.ID)
}

// checkScope rejects project and manager ids that do not exist
func (s *deliverableService) checkScope(ctx context.Context, projectID, managerID string) error {
	if projectID != "" {
		if !isUUID(projectID) {
			return fmt.Errorf("%w: project_id %q is not a UUID", ErrInvalidInput, projectID)
		}
		p, err := s.repos.Project.GetByID(ctx, projectID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: project %s does not exist", ErrInvalidInput, projectID)
		}
	}
	if managerID != "" {
		if !isUUID(managerID) {
			return fmt.Errorf("%w: manager_id %q is not a UUID", ErrInvalidInput, managerID)
		}
		m, err := s.repos.Manager.GetByID(ctx, managerID)
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("%w: manager %s does not exist", ErrInvalidInput, managerID)
		}
	}
	return nil
}

func (s *deliverableService) query(ctx context.Context, filter models.DeliverableFilter, now models.Date) ([]models.DeliverableView, error) {
	ds, err := s.repos.Deliverable.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliverables: %w", err)
	}

	views := make([]models.DeliverableView, 0, len(ds))
	for _, d := range ds {
		views = append(views, models.NewDeliverableView(d, now))
	}
	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].DueDate.Equal(views[j].DueDate) {
			return views[i].DueDate.Before(views[j].DueDate)
		}
		return views[i].ID < views[j].ID
	})
	return views, nil
}
