package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/deliverables-tracker/internal/config"
	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/repository"
	"github.com/deliverables-tracker/internal/spreadsheet"
	"github.com/deliverables-tracker/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// errorPreviewLimit caps the row errors embedded in an import run response
const errorPreviewLimit = 100

// outcomeKind tags what happened to one row
type outcomeKind string

const (
	outcomeAccepted          outcomeKind = "accepted"
	outcomeInvalid           outcomeKind = "invalid"
	outcomeDuplicateExisting outcomeKind = "duplicate_existing"
	outcomeDuplicateInBatch  outcomeKind = "duplicate_in_batch"
)

// rowOutcome is the result of running one row through the pipeline
type rowOutcome struct {
	kind   outcomeKind
	row    validation.CleanRow
	errors []models.RowError
}

// importService is the concrete implementation of ImportService
type importService struct {
	repos      *repository.Repositories
	normalizer *validation.Normalizer
	validator  *validation.Validator
	cfg        *config.Config
	clock      Clock
	log        zerolog.Logger
}

// newImportService creates a new ImportService
func newImportService(repos *repository.Repositories, normalizer *validation.Normalizer, cfg *config.Config, clock Clock, log zerolog.Logger) *importService {
	return &importService{
		repos:      repos,
		normalizer: normalizer,
		validator:  validation.NewValidator(),
		cfg:        cfg,
		clock:      clock,
		log:        log.With().Str("service", "import").Logger(),
	}
}

// Preview runs normalization, validation, cleaning and the storage duplicate
// check without writing anything
func (s *importService) Preview(ctx context.Context, filename string, sheet *spreadsheet.Sheet) (*models.PreviewResult, error) {
	mapping := s.normalizer.ColumnMapping(sheet.Headers)

	result := &models.PreviewResult{
		Filename:      filename,
		TotalRows:     len(sheet.Rows),
		PreviewData:   make([]models.PreviewRow, 0, len(sheet.Rows)),
		ColumnMapping: mapping,
	}

	for _, raw := range sheet.Rows {
		normalized := s.normalizer.Normalize(raw, mapping)
		valid, rowErrors := s.validator.ValidateRow(normalized)
		clean := validation.Clean(normalized)

		preview := models.PreviewRow{
			RowNumber:        raw.Number,
			Project:          clean.Project,
			Deliverable:      clean.Description,
			DueDate:          clean.DueDate.String(),
			Frequency:        clean.Frequency,
			ProjectManager:   clean.ProjectManager,
			IsValid:          valid,
			ValidationErrors: make([]string, 0, len(rowErrors)),
		}
		for _, e := range rowErrors {
			preview.ValidationErrors = append(preview.ValidationErrors, e.Error)
		}

		if valid {
			result.ValidRows++
			exists, err := s.repos.Deliverable.Exists(ctx, clean.Key())
			if err != nil {
				return nil, fmt.Errorf("failed to check duplicates for row %d: %w", raw.Number, err)
			}
			preview.IsDuplicate = exists
		} else {
			result.InvalidRows++
		}

		result.PreviewData = append(result.PreviewData, preview)
	}

	s.log.Info().
		Str("filename", filename).
		Int("total", result.TotalRows).
		Int("valid", result.ValidRows).
		Int("invalid", result.InvalidRows).
		Msg("Import preview completed")

	return result, nil
}

// Import runs the full pipeline and loads accepted rows in one transaction.
// A stored run with the same idempotency key is replayed instead.
func (s *importService) Import(ctx context.Context, filename string, sheet *spreadsheet.Sheet, opts models.ImportOptions) (*models.ImportResult, error) {
	if opts.IdempotencyKey != "" {
		if replay, err := s.GetRunByIdempotencyKey(ctx, opts.IdempotencyKey); err == nil {
			s.log.Info().Str("idempotency_key", opts.IdempotencyKey).Str("import_id", replay.ImportID).Msg("Replaying stored import")
			return replay, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	startTime := s.clock()

	outcomes, err := s.evaluate(ctx, sheet)
	if err != nil {
		return nil, err
	}

	result := &models.ImportResult{
		Filename:  filename,
		TotalRows: len(outcomes),
		Errors:    []models.RowError{},
	}

	var accepted []validation.CleanRow
	invalid := 0
	for _, o := range outcomes {
		result.Errors = append(result.Errors, o.errors...)
		switch o.kind {
		case outcomeAccepted:
			accepted = append(accepted, o.row)
		case outcomeInvalid:
			invalid++
		}
	}

	switch {
	case invalid > 0 && !opts.SkipInvalid:
		result.SkippedRows = result.TotalRows
		s.log.Warn().
			Str("filename", filename).
			Int("invalid", invalid).
			Msg("Import aborted, invalid rows present and skip_invalid is off")

	default:
		counts, err := newLoader(s.repos, s.clock, s.log).Load(ctx, accepted)
		if err != nil {
			result.SkippedRows = result.TotalRows
			result.Error = fmt.Sprintf("Failed to load deliverables: %v", err)
			s.log.Error().Err(err).Str("filename", filename).Msg("Import load failed, transaction rolled back")
			break
		}

		result.Success = true
		result.ImportedRows = len(accepted)
		result.SkippedRows = result.TotalRows - result.ImportedRows
		result.ManagersCreated = counts.Managers
		result.ProjectsCreated = counts.Projects
		result.DeliverablesCreated = counts.Deliverables
	}

	run := &models.ImportRun{
		ID:                  uuid.New().String(),
		Filename:            filename,
		IdempotencyKey:      opts.IdempotencyKey,
		SkipInvalid:         opts.SkipInvalid,
		Success:             result.Success,
		TotalRows:           result.TotalRows,
		ImportedRows:        result.ImportedRows,
		SkippedRows:         result.SkippedRows,
		ManagersCreated:     result.ManagersCreated,
		ProjectsCreated:     result.ProjectsCreated,
		DeliverablesCreated: result.DeliverablesCreated,
		FatalError:          result.Error,
		ArchivePath:         opts.ArchivePath,
		DurationMs:          s.clock().Sub(startTime).Milliseconds(),
		CreatedAt:           s.clock().UTC(),
	}
	s.recordRun(ctx, run, result.Errors)
	result.ImportID = run.ID

	s.log.Info().
		Str("import_id", run.ID).
		Str("filename", filename).
		Bool("success", result.Success).
		Int("total", result.TotalRows).
		Int("imported", result.ImportedRows).
		Int("skipped", result.SkippedRows).
		Int("managers_created", result.ManagersCreated).
		Int("projects_created", result.ProjectsCreated).
		Int64("duration_ms", run.DurationMs).
		Msg("Import completed")

	return result, nil
}

// evaluate runs every row through normalization, validation, cleaning and
// both duplicate checks. Batch state lives only for this call.
func (s *importService) evaluate(ctx context.Context, sheet *spreadsheet.Sheet) ([]rowOutcome, error) {
	mapping := s.normalizer.ColumnMapping(sheet.Headers)
	tracker := validation.NewBatchTracker()
	outcomes := make([]rowOutcome, 0, len(sheet.Rows))

	for _, raw := range sheet.Rows {
		normalized := s.normalizer.Normalize(raw, mapping)
		valid, rowErrors := s.validator.ValidateRow(normalized)
		clean := validation.Clean(normalized)

		if !valid {
			outcomes = append(outcomes, rowOutcome{kind: outcomeInvalid, row: clean, errors: rowErrors})
			continue
		}

		key := clean.Key()
		exists, err := s.repos.Deliverable.Exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check duplicates for row %d: %w", raw.Number, err)
		}
		if exists {
			outcomes = append(outcomes, rowOutcome{
				kind:   outcomeDuplicateExisting,
				row:    clean,
				errors: []models.RowError{duplicateError(clean, models.ErrorKindDuplicateExisting, "Duplicate of existing record")},
			})
			continue
		}

		if first, seen := tracker.Seen(key); seen {
			outcomes = append(outcomes, rowOutcome{
				kind: outcomeDuplicateInBatch,
				row:  clean,
				errors: []models.RowError{duplicateError(clean, models.ErrorKindDuplicateInBatch,
					fmt.Sprintf("Duplicate within batch (first seen at row %d)", first))},
			})
			continue
		}

		tracker.Add(key, clean.Number)
		outcomes = append(outcomes, rowOutcome{kind: outcomeAccepted, row: clean})
	}

	return outcomes, nil
}

func duplicateError(row validation.CleanRow, kind models.RowErrorKind, msg string) models.RowError {
	value := row.Description
	return models.RowError{
		Row:    row.Number,
		Column: validation.FieldDescription,
		Value:  &value,
		Error:  msg,
		Kind:   kind,
	}
}

// recordRun stores the run and its errors. The import outcome stands even
// when history cannot be written.
func (s *importService) recordRun(ctx context.Context, run *models.ImportRun, rowErrors []models.RowError) {
	if err := s.repos.ImportRun.Create(ctx, run); err != nil {
		s.log.Error().Err(err).Str("import_id", run.ID).Msg("Failed to record import run")
		return
	}
	if err := s.repos.ImportRun.AddErrors(ctx, run.ID, rowErrors); err != nil {
		s.log.Error().Err(err).Str("import_id", run.ID).Int("errors", len(rowErrors)).Msg("Failed to record import errors")
	}
}

// GetRun retrieves a stored import run with its first errors
func (s *importService) GetRun(ctx context.Context, id string) (*models.ImportRunResponse, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	run, err := s.repos.ImportRun.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNotFound
	}

	rowErrors, err := s.repos.ImportRun.GetErrors(ctx, id, errorPreviewLimit)
	if err != nil {
		s.log.Error().Err(err).Str("import_id", id).Msg("Failed to get import errors")
	}
	count, err := s.repos.ImportRun.CountErrors(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Str("import_id", id).Msg("Failed to count import errors")
		count = len(rowErrors)
	}

	response := &models.ImportRunResponse{
		ImportRun:  *run,
		Errors:     rowErrors,
		ErrorCount: count,
	}
	if count > 0 {
		response.ErrorReport = s.cfg.Server.APIPrefix + "/imports/" + run.ID + "/errors"
	}
	return response, nil
}

// GetRunByIdempotencyKey rebuilds the result of the run stored under key
func (s *importService) GetRunByIdempotencyKey(ctx context.Context, key string) (*models.ImportResult, error) {
	run, err := s.repos.ImportRun.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNotFound
	}

	rowErrors, err := s.repos.ImportRun.GetErrors(ctx, run.ID, 0)
	if err != nil {
		return nil, err
	}
	return run.Result(rowErrors), nil
}

// GetRunErrors retrieves every row error of a run
func (s *importService) GetRunErrors(ctx context.Context, id string) ([]models.RowError, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	run, err := s.repos.ImportRun.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNotFound
	}
	return s.repos.ImportRun.GetErrors(ctx, id, 0)
}

// Template documents the accepted spreadsheet layout
func (s *importService) Template() *models.ImportTemplate {
	descriptions := map[string]string{
		validation.FieldProject:        "Project name; matched case-insensitively, created when missing",
		validation.FieldDescription:    "What is due",
		validation.FieldDueDate:        "Due date as YYYY-MM-DD, a common textual form, or an Excel date cell",
		validation.FieldFrequency:      "M, Q, SA, A or OT; long forms such as Quarterly are accepted",
		validation.FieldProjectManager: "Manager name; matched case-insensitively, created when missing",
	}

	tmpl := &models.ImportTemplate{
		FrequencyAliases: s.normalizer.FrequencyAliases(),
		DefaultFrequency: models.DefaultFrequency,
		AllowedFormats:   s.cfg.Import.AllowedExtensions,
		MaxUploadSizeMB:  s.cfg.Import.MaxUploadSize / (1 << 20),
		Notes: []string{
			"The first row must contain column headers",
			"Only the first worksheet is read",
			"A blank or missing frequency defaults to OT (One-Time)",
			"Rows matching an existing deliverable on project, due date, frequency and description are skipped",
			"Within one file the first occurrence of a duplicate wins",
		},
	}

	for _, field := range validation.Fields {
		aliases := s.normalizer.Aliases(field)
		tmpl.Columns = append(tmpl.Columns, models.TemplateColumn{
			Name:        aliases[0],
			Field:       field,
			Required:    field != validation.FieldFrequency,
			Aliases:     aliases,
			Description: descriptions[field],
		})
	}
	for _, code := range models.FrequencyCodes {
		tmpl.FrequencyValues = append(tmpl.FrequencyValues, models.FrequencyOption{
			Code:  code,
			Label: models.FrequencyLabels[code],
		})
	}

	return tmpl
}
