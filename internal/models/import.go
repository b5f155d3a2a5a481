package models

import (
	"time"
)

// RowErrorKind classifies a row-level problem
type RowErrorKind string

const (
	ErrorKindNormalization     RowErrorKind = "normalization"
	ErrorKindValidation        RowErrorKind = "validation"
	ErrorKindDuplicateExisting RowErrorKind = "duplicate_existing"
	ErrorKindDuplicateInBatch  RowErrorKind = "duplicate_in_batch"
)

// RowError is a single problem found on one spreadsheet row
type RowError struct {
	Row    int          `json:"row"`
	Column string       `json:"column"`
	Value  *string      `json:"value"`
	Error  string       `json:"error"`
	Kind   RowErrorKind `json:"kind"`
}

// ImportResult summarises a commit-mode import
type ImportResult struct {
	ImportID            string     `json:"import_id,omitempty"`
	Success             bool       `json:"success"`
	Filename            string     `json:"filename"`
	TotalRows           int        `json:"total_rows"`
	ImportedRows        int        `json:"imported_rows"`
	SkippedRows         int        `json:"skipped_rows"`
	Errors              []RowError `json:"errors"`
	ManagersCreated     int        `json:"managers_created"`
	ProjectsCreated     int        `json:"projects_created"`
	DeliverablesCreated int        `json:"deliverables_created"`
	Error               string     `json:"error,omitempty"`
}

// PreviewRow is one row of a dry run, with cleaned values for display
type PreviewRow struct {
	RowNumber        int      `json:"row_number"`
	Project          string   `json:"project"`
	Deliverable      string   `json:"deliverable"`
	DueDate          string   `json:"due_date"`
	Frequency        string   `json:"frequency"`
	ProjectManager   string   `json:"project_manager"`
	IsValid          bool     `json:"is_valid"`
	IsDuplicate      bool     `json:"is_duplicate"`
	ValidationErrors []string `json:"validation_errors"`
}

// PreviewResult summarises a dry run
type PreviewResult struct {
	Filename      string            `json:"filename"`
	TotalRows     int               `json:"total_rows"`
	ValidRows     int               `json:"valid_rows"`
	InvalidRows   int               `json:"invalid_rows"`
	PreviewData   []PreviewRow      `json:"preview_data"`
	ColumnMapping map[string]string `json:"column_mapping"`
}

// ImportOptions tunes a commit-mode import
type ImportOptions struct {
	SkipInvalid    bool
	IdempotencyKey string
	ArchivePath    string
}

// ImportRun is the stored record of one commit-mode import
type ImportRun struct {
	ID                  string    `json:"import_id" db:"id"`
	Filename            string    `json:"filename" db:"filename"`
	IdempotencyKey      string    `json:"idempotency_key,omitempty" db:"idempotency_key"`
	SkipInvalid         bool      `json:"skip_invalid" db:"skip_invalid"`
	Success             bool      `json:"success" db:"success"`
	TotalRows           int       `json:"total_rows" db:"total_rows"`
	ImportedRows        int       `json:"imported_rows" db:"imported_rows"`
	SkippedRows         int       `json:"skipped_rows" db:"skipped_rows"`
	ManagersCreated     int       `json:"managers_created" db:"managers_created"`
	ProjectsCreated     int       `json:"projects_created" db:"projects_created"`
	DeliverablesCreated int       `json:"deliverables_created" db:"deliverables_created"`
	FatalError          string    `json:"error,omitempty" db:"fatal_error"`
	ArchivePath         string    `json:"-" db:"archive_path"`
	DurationMs          int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

// ImportRunResponse is the API response for a stored import run
type ImportRunResponse struct {
	ImportRun
	Errors      []RowError `json:"errors,omitempty"`
	ErrorCount  int        `json:"error_count"`
	ErrorReport string     `json:"error_report_url,omitempty"`
}

// Result rebuilds the import result a run was recorded from
func (r *ImportRun) Result(errors []RowError) *ImportResult {
	if errors == nil {
		errors = []RowError{}
	}
	return &ImportResult{
		ImportID:            r.ID,
		Success:             r.Success,
		Filename:            r.Filename,
		TotalRows:           r.TotalRows,
		ImportedRows:        r.ImportedRows,
		SkippedRows:         r.SkippedRows,
		Errors:              errors,
		ManagersCreated:     r.ManagersCreated,
		ProjectsCreated:     r.ProjectsCreated,
		DeliverablesCreated: r.DeliverablesCreated,
		Error:               r.FatalError,
	}
}

// TemplateColumn describes one expected spreadsheet column
type TemplateColumn struct {
	Name        string   `json:"name"`
	Field       string   `json:"field"`
	Required    bool     `json:"required"`
	Aliases     []string `json:"aliases"`
	Description string   `json:"description"`
}

// FrequencyOption is one accepted frequency code
type FrequencyOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// ImportTemplate documents the accepted spreadsheet layout
type ImportTemplate struct {
	Columns          []TemplateColumn  `json:"columns"`
	FrequencyValues  []FrequencyOption `json:"frequency_values"`
	FrequencyAliases map[string]string `json:"frequency_aliases"`
	DefaultFrequency string            `json:"default_frequency"`
	AllowedFormats   []string          `json:"allowed_formats"`
	MaxUploadSizeMB  int64             `json:"max_upload_size_mb"`
	Notes            []string          `json:"notes"`
}
