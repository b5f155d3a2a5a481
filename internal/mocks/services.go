package mocks

import (
	"context"
	"io"

	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/service"
	"github.com/deliverables-tracker/internal/spreadsheet"
)

// MockImportService is a mock implementation of ImportService. Unset funcs
// return empty successful results.
type MockImportService struct {
	PreviewFunc   func(ctx context.Context, filename string, sheet *spreadsheet.Sheet) (*models.PreviewResult, error)
	ImportFunc    func(ctx context.Context, filename string, sheet *spreadsheet.Sheet, opts models.ImportOptions) (*models.ImportResult, error)
	GetRunFunc    func(ctx context.Context, id string) (*models.ImportRunResponse, error)
	RunErrorsFunc func(ctx context.Context, id string) ([]models.RowError, error)
	Runs          map[string]*models.ImportResult // by idempotency key
	Imports       []models.ImportOptions
}

// Verify interface compliance
var _ service.ImportService = (*MockImportService)(nil)

func NewMockImportService() *MockImportService {
	return &MockImportService{Runs: make(map[string]*models.ImportResult)}
}

func (m *MockImportService) Preview(ctx context.Context, filename string, sheet *spreadsheet.Sheet) (*models.PreviewResult, error) {
	if m.PreviewFunc != nil {
		return m.PreviewFunc(ctx, filename, sheet)
	}
	return &models.PreviewResult{Filename: filename, TotalRows: len(sheet.Rows)}, nil
}

func (m *MockImportService) Import(ctx context.Context, filename string, sheet *spreadsheet.Sheet, opts models.ImportOptions) (*models.ImportResult, error) {
	m.Imports = append(m.Imports, opts)
	if m.ImportFunc != nil {
		return m.ImportFunc(ctx, filename, sheet, opts)
	}
	result := &models.ImportResult{
		ImportID:     "test-import-id",
		Success:      true,
		Filename:     filename,
		TotalRows:    len(sheet.Rows),
		ImportedRows: len(sheet.Rows),
		Errors:       []models.RowError{},
	}
	if opts.IdempotencyKey != "" {
		m.Runs[opts.IdempotencyKey] = result
	}
	return result, nil
}

func (m *MockImportService) GetRun(ctx context.Context, id string) (*models.ImportRunResponse, error) {
	if m.GetRunFunc != nil {
		return m.GetRunFunc(ctx, id)
	}
	return nil, service.ErrNotFound
}

func (m *MockImportService) GetRunByIdempotencyKey(ctx context.Context, key string) (*models.ImportResult, error) {
	if r, ok := m.Runs[key]; ok {
		return r, nil
	}
	return nil, service.ErrNotFound
}

func (m *MockImportService) GetRunErrors(ctx context.Context, id string) ([]models.RowError, error) {
	if m.RunErrorsFunc != nil {
		return m.RunErrorsFunc(ctx, id)
	}
	return nil, service.ErrNotFound
}

func (m *MockImportService) Template() *models.ImportTemplate {
	return &models.ImportTemplate{DefaultFrequency: models.DefaultFrequency}
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	StreamFunc func(ctx context.Context, w io.Writer, format string, filter models.DeliverableFilter) (int, error)
	Counts     map[string]int
	CountError error
	Filters    []models.DeliverableFilter
}

// Verify interface compliance
var _ service.ExportService = (*MockExportService)(nil)

func NewMockExportService() *MockExportService {
	return &MockExportService{Counts: make(map[string]int)}
}

func (m *MockExportService) StreamDeliverables(ctx context.Context, w io.Writer, format string, filter models.DeliverableFilter) (int, error) {
	m.Filters = append(m.Filters, filter)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, w, format, filter)
	}
	_, err := io.WriteString(w, "[]")
	return 0, err
}

func (m *MockExportService) ContentType(format string) (string, error) {
	switch format {
	case "csv":
		return "text/csv", nil
	case "ndjson":
		return "application/x-ndjson", nil
	case "json":
		return "application/json", nil
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	}
	return "", service.ErrInvalidInput
}

func (m *MockExportService) GetCount(ctx context.Context, resource string) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	return m.Counts[resource], nil
}
