package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/repository"
)

// Store is an in-memory, transactional backing store shared by the mock
// repositories. InTx snapshots the state and restores it when fn fails, so
// tests observe the same all-or-nothing behaviour as PostgreSQL.
type Store struct {
	mu           sync.Mutex
	managers     map[string]models.Manager
	projects     map[string]models.Project
	deliverables map[string]models.Deliverable
	runs         map[string]models.ImportRun
	runErrors    map[string][]models.RowError

	TxCalls     int
	Rollbacks   int
	ExistsCalls int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		managers:     make(map[string]models.Manager),
		projects:     make(map[string]models.Project),
		deliverables: make(map[string]models.Deliverable),
		runs:         make(map[string]models.ImportRun),
		runErrors:    make(map[string][]models.RowError),
	}
}

type storeSnapshot struct {
	managers     map[string]models.Manager
	projects     map[string]models.Project
	deliverables map[string]models.Deliverable
}

func (s *Store) snapshot() storeSnapshot {
	snap := storeSnapshot{
		managers:     make(map[string]models.Manager, len(s.managers)),
		projects:     make(map[string]models.Project, len(s.projects)),
		deliverables: make(map[string]models.Deliverable, len(s.deliverables)),
	}
	for k, v := range s.managers {
		snap.managers[k] = v
	}
	for k, v := range s.projects {
		snap.projects[k] = v
	}
	for k, v := range s.deliverables {
		snap.deliverables[k] = v
	}
	return snap
}

func (s *Store) restore(snap storeSnapshot) {
	s.managers = snap.managers
	s.projects = snap.projects
	s.deliverables = snap.deliverables
}

type txKey struct{}

// InTx implements repository.Transactor
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	s.TxCalls++
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.Rollbacks++
		s.mu.Unlock()
		return err
	}
	return nil
}

// Repositories returns repository interfaces backed by this store
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Tx:          s,
		Manager:     &MockManagerRepository{store: s},
		Project:     &MockProjectRepository{store: s},
		Deliverable: &MockDeliverableRepository{store: s},
		ImportRun:   &MockImportRunRepository{store: s},
	}
}

// Managers returns stored managers ordered by name
func (s *Store) Managers() []models.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Manager, 0, len(s.managers))
	for _, m := range s.managers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Projects returns stored projects ordered by name
func (s *Store) Projects() []models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Deliverables returns stored deliverables ordered by due date, then id
func (s *Store) Deliverables() []models.Deliverable {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Deliverable, 0, len(s.deliverables))
	for _, d := range s.deliverables {
		out = append(out, s.join(d))
	}
	sortDeliverables(out)
	return out
}

// Seed stores a manager, project and deliverable without going through the
// repositories. Zero timestamps are filled in.
func (s *Store) Seed(m *models.Manager, p *models.Project, d *models.Deliverable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if m != nil {
		if m.CreatedAt.IsZero() {
			m.CreatedAt, m.UpdatedAt = now, now
		}
		s.managers[m.ID] = *m
	}
	if p != nil {
		if p.CreatedAt.IsZero() {
			p.CreatedAt, p.UpdatedAt = now, now
		}
		s.projects[p.ID] = *p
	}
	if d != nil {
		if d.CreatedAt.IsZero() {
			d.CreatedAt, d.UpdatedAt = now, now
		}
		if d.Status == "" {
			d.Status = models.StatusPending
		}
		s.deliverables[d.ID] = *d
	}
}

func (s *Store) join(d models.Deliverable) models.Deliverable {
	if p, ok := s.projects[d.ProjectID]; ok {
		d.ProjectName = p.Name
		d.ManagerID = p.ManagerID
		if m, ok := s.managers[p.ManagerID]; ok {
			d.ManagerName = m.Name
		}
	}
	return d
}

func sortDeliverables(ds []models.Deliverable) {
	sort.SliceStable(ds, func(i, j int) bool {
		if !ds[i].DueDate.Equal(ds[j].DueDate) {
			return ds[i].DueDate.Before(ds[j].DueDate)
		}
		return ds[i].ID < ds[j].ID
	})
}

// MockManagerRepository is a mock implementation of ManagerRepository
type MockManagerRepository struct {
	store       *Store
	CreateError error
	CreateCalls int
}

var _ repository.ManagerRepository = (*MockManagerRepository)(nil)

func (m *MockManagerRepository) FindByName(ctx context.Context, name string) (*models.Manager, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, mgr := range m.store.managers {
		if strings.EqualFold(mgr.Name, name) {
			found := mgr
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MockManagerRepository) Create(ctx context.Context, manager *models.Manager) error {
	m.CreateCalls++
	if m.CreateError != nil {
		return m.CreateError
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, existing := range m.store.managers {
		if strings.EqualFold(existing.Name, manager.Name) {
			return repository.ErrConflict
		}
		if manager.Email != "" && existing.Email == manager.Email {
			return repository.ErrConflict
		}
	}
	m.store.managers[manager.ID] = *manager
	return nil
}

func (m *MockManagerRepository) Update(ctx context.Context, manager *models.Manager) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	stored, ok := m.store.managers[manager.ID]
	if !ok {
		return false, nil
	}
	for id, existing := range m.store.managers {
		if id == manager.ID {
			continue
		}
		if strings.EqualFold(existing.Name, manager.Name) {
			return false, repository.ErrConflict
		}
		if manager.Email != "" && existing.Email == manager.Email {
			return false, repository.ErrConflict
		}
	}
	stored.Name, stored.Email, stored.UpdatedAt = manager.Name, manager.Email, manager.UpdatedAt
	m.store.managers[manager.ID] = stored
	return true, nil
}

func (m *MockManagerRepository) GetByID(ctx context.Context, id string) (*models.Manager, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	mgr, ok := m.store.managers[id]
	if !ok {
		return nil, nil
	}
	return &mgr, nil
}

func (m *MockManagerRepository) List(ctx context.Context) ([]*models.Manager, error) {
	var out []*models.Manager
	for _, mgr := range m.store.Managers() {
		mgr := mgr
		out = append(out, &mgr)
	}
	return out, nil
}

func (m *MockManagerRepository) Stats(ctx context.Context, managerID string) ([]models.ManagerStats, error) {
	managers := m.store.Managers()
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	var out []models.ManagerStats
	for _, mgr := range managers {
		if managerID != "" && mgr.ID != managerID {
			continue
		}
		s := models.ManagerStats{Manager: mgr}
		for _, p := range m.store.projects {
			if p.ManagerID != mgr.ID {
				continue
			}
			s.ProjectCount++
			for _, d := range m.store.deliverables {
				if d.ProjectID == p.ID {
					s.DeliverableCount++
				}
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *MockManagerRepository) Count(ctx context.Context) (int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return len(m.store.managers), nil
}

// MockProjectRepository is a mock implementation of ProjectRepository
type MockProjectRepository struct {
	store       *Store
	CreateError error
	CreateCalls int
}

var _ repository.ProjectRepository = (*MockProjectRepository)(nil)

func (m *MockProjectRepository) withManager(p models.Project) *models.Project {
	if mgr, ok := m.store.managers[p.ManagerID]; ok {
		p.ManagerName = mgr.Name
	}
	return &p
}

func (m *MockProjectRepository) FindByName(ctx context.Context, name string) (*models.Project, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, p := range m.store.projects {
		if strings.EqualFold(p.Name, name) {
			return m.withManager(p), nil
		}
	}
	return nil, nil
}

func (m *MockProjectRepository) Create(ctx context.Context, project *models.Project) error {
	m.CreateCalls++
	if m.CreateError != nil {
		return m.CreateError
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, existing := range m.store.projects {
		if strings.EqualFold(existing.Name, project.Name) {
			return repository.ErrConflict
		}
	}
	m.store.projects[project.ID] = *project
	return nil
}

func (m *MockProjectRepository) Update(ctx context.Context, project *models.Project) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	stored, ok := m.store.projects[project.ID]
	if !ok {
		return false, nil
	}
	for id, existing := range m.store.projects {
		if id != project.ID && strings.EqualFold(existing.Name, project.Name) {
			return false, repository.ErrConflict
		}
	}
	stored.Name, stored.Description = project.Name, project.Description
	stored.ManagerID, stored.UpdatedAt = project.ManagerID, project.UpdatedAt
	m.store.projects[project.ID] = stored
	return true, nil
}

func (m *MockProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	p, ok := m.store.projects[id]
	if !ok {
		return nil, nil
	}
	return m.withManager(p), nil
}

func (m *MockProjectRepository) List(ctx context.Context, managerID string) ([]*models.Project, error) {
	projects := m.store.Projects()
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	var out []*models.Project
	for _, p := range projects {
		if managerID != "" && p.ManagerID != managerID {
			continue
		}
		out = append(out, m.withManager(p))
	}
	return out, nil
}

func (m *MockProjectRepository) Search(ctx context.Context, query string, limit int) ([]models.ProjectSearchResult, error) {
	projects := m.store.Projects()
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	var out []models.ProjectSearchResult
	for _, p := range projects {
		if !strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			continue
		}
		res := models.ProjectSearchResult{ID: p.ID, Name: p.Name, ManagerName: m.withManager(p).ManagerName}
		for _, d := range m.store.deliverables {
			if d.ProjectID == p.ID {
				res.DeliverableCount++
			}
		}
		out = append(out, res)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockProjectRepository) Stats(ctx context.Context, projectID string, today models.Date) ([]models.ProjectStats, error) {
	projects := m.store.Projects()
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	weekEnd := today.AddDays(7)
	var out []models.ProjectStats
	for _, p := range projects {
		if projectID != "" && p.ID != projectID {
			continue
		}
		s := models.ProjectStats{Project: *m.withManager(p)}
		for _, d := range m.store.deliverables {
			if d.ProjectID != p.ID {
				continue
			}
			s.TotalDeliverables++
			if d.Status == models.StatusPending {
				s.PendingDeliverables++
			}
			if d.Status == models.StatusCompleted {
				continue
			}
			if d.DueDate.Before(today) {
				s.OverdueDeliverables++
			} else if !d.DueDate.After(weekEnd) {
				s.Upcoming7Days++
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *MockProjectRepository) Count(ctx context.Context) (int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return len(m.store.projects), nil
}

// MockDeliverableRepository is a mock implementation of DeliverableRepository.
// CreateFunc, when set, runs before every insert and can fail it.
type MockDeliverableRepository struct {
	store       *Store
	CreateFunc  func(d *models.Deliverable) error
	ExistsError error
	QueryError  error
	CreateCalls int
}

var _ repository.DeliverableRepository = (*MockDeliverableRepository)(nil)

func (m *MockDeliverableRepository) key(d models.Deliverable) models.DedupKey {
	name := ""
	if p, ok := m.store.projects[d.ProjectID]; ok {
		name = strings.ToLower(p.Name)
	}
	return models.DedupKey{Project: name, DueDate: d.DueDate, Frequency: d.Frequency, Description: d.Description}
}

func (m *MockDeliverableRepository) Exists(ctx context.Context, key models.DedupKey) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.ExistsCalls++
	if m.ExistsError != nil {
		return false, m.ExistsError
	}
	key.Project = strings.ToLower(key.Project)
	for _, d := range m.store.deliverables {
		if m.key(d) == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockDeliverableRepository) Create(ctx context.Context, d *models.Deliverable) error {
	m.CreateCalls++
	if m.CreateFunc != nil {
		if err := m.CreateFunc(d); err != nil {
			return err
		}
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	key := m.key(*d)
	for _, existing := range m.store.deliverables {
		if m.key(existing) == key {
			return repository.ErrConflict
		}
	}
	m.store.deliverables[d.ID] = *d
	return nil
}

func (m *MockDeliverableRepository) GetByID(ctx context.Context, id string) (*models.Deliverable, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	d, ok := m.store.deliverables[id]
	if !ok {
		return nil, nil
	}
	joined := m.store.join(d)
	return &joined, nil
}

func (m *MockDeliverableRepository) Query(ctx context.Context, filter models.DeliverableFilter) ([]models.Deliverable, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	var out []models.Deliverable
	for _, d := range m.store.Deliverables() {
		if matches(d, filter) {
			out = append(out, d)
		}
	}
	return out, nil
}

func matches(d models.Deliverable, f models.DeliverableFilter) bool {
	switch {
	case f.ProjectID != "" && d.ProjectID != f.ProjectID:
		return false
	case f.ProjectName != "" && !strings.Contains(strings.ToLower(d.ProjectName), strings.ToLower(f.ProjectName)):
		return false
	case f.ManagerID != "" && d.ManagerID != f.ManagerID:
		return false
	case f.Status != "" && d.Status != f.Status:
		return false
	case f.Frequency != "" && d.Frequency != f.Frequency:
		return false
	case !f.DueFrom.IsZero() && d.DueDate.Before(f.DueFrom):
		return false
	case !f.DueTo.IsZero() && d.DueDate.After(f.DueTo):
		return false
	case f.Search != "" && !strings.Contains(strings.ToLower(d.Description), strings.ToLower(f.Search)):
		return false
	case !f.IncludeCompleted && d.Status == models.StatusCompleted:
		return false
	}
	return true
}

func (m *MockDeliverableRepository) Summary(ctx context.Context, projectID, managerID string, today models.Date) (*models.DeliverableSummary, error) {
	open, err := m.Query(ctx, models.DeliverableFilter{ProjectID: projectID, ManagerID: managerID})
	if err != nil {
		return nil, err
	}

	var s models.DeliverableSummary
	for _, d := range open {
		days := d.DueDate.DaysSince(today)
		s.Total++
		switch {
		case days < 0:
			s.Overdue++
		case days == 0:
			s.DueToday++
		}
		if days >= 0 && days <= 7 {
			s.DueThisWeek++
		}
		if days >= 0 && days <= 30 {
			s.DueThisMonth++
		}
	}
	return &s, nil
}

func (m *MockDeliverableRepository) MarkComplete(ctx context.Context, id string, at time.Time) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	d, ok := m.store.deliverables[id]
	if !ok {
		return false, nil
	}
	d.Status = models.StatusCompleted
	d.CompletedAt = &at
	d.UpdatedAt = at
	m.store.deliverables[id] = d
	return true, nil
}

func (m *MockDeliverableRepository) Update(ctx context.Context, d *models.Deliverable) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	stored, ok := m.store.deliverables[d.ID]
	if !ok {
		return false, nil
	}
	stored.Description, stored.DueDate, stored.Frequency = d.Description, d.DueDate, d.Frequency
	stored.Status, stored.Notes, stored.CompletedAt, stored.UpdatedAt = d.Status, d.Notes, d.CompletedAt, d.UpdatedAt
	key := m.key(stored)
	for id, existing := range m.store.deliverables {
		if id != d.ID && m.key(existing) == key {
			return false, repository.ErrConflict
		}
	}
	m.store.deliverables[d.ID] = stored
	return true, nil
}

func (m *MockDeliverableRepository) StreamAll(ctx context.Context, filter models.DeliverableFilter, callback func(*models.Deliverable) error) error {
	ds, err := m.Query(ctx, filter)
	if err != nil {
		return err
	}
	for i := range ds {
		if err := callback(&ds[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockDeliverableRepository) Count(ctx context.Context) (int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return len(m.store.deliverables), nil
}

// MockImportRunRepository is a mock implementation of ImportRunRepository
type MockImportRunRepository struct {
	store       *Store
	CreateError error
}

var _ repository.ImportRunRepository = (*MockImportRunRepository)(nil)

func (m *MockImportRunRepository) Create(ctx context.Context, run *models.ImportRun) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if run.IdempotencyKey != "" {
		for _, existing := range m.store.runs {
			if existing.IdempotencyKey == run.IdempotencyKey {
				return repository.ErrConflict
			}
		}
	}
	m.store.runs[run.ID] = *run
	return nil
}

func (m *MockImportRunRepository) GetByID(ctx context.Context, id string) (*models.ImportRun, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	run, ok := m.store.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (m *MockImportRunRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.ImportRun, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, run := range m.store.runs {
		if run.IdempotencyKey == key {
			found := run
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MockImportRunRepository) AddErrors(ctx context.Context, runID string, errors []models.RowError) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.runErrors[runID] = append(m.store.runErrors[runID], errors...)
	return nil
}

func (m *MockImportRunRepository) GetErrors(ctx context.Context, runID string, limit int) ([]models.RowError, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	errs := append([]models.RowError{}, m.store.runErrors[runID]...)
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Row < errs[j].Row })
	if limit > 0 && len(errs) > limit {
		errs = errs[:limit]
	}
	return errs, nil
}

func (m *MockImportRunRepository) CountErrors(ctx context.Context, runID string) (int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return len(m.store.runErrors[runID]), nil
}
