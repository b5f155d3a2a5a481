package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/deliverables-tracker/internal/models"
)

// Validator applies the row rules to normalized rows. It holds no state
// between rows.
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateRow checks one normalized row. Every failing rule produces its own
// error; normalization failures come first.
func (v *Validator) ValidateRow(row NormalizedRow) (bool, []models.RowError) {
	errors := append([]models.RowError{}, row.Errors...)

	// text checks a required free-text field against its column width
	text := func(field, value string, limit int) {
		if row.failed(field) {
			return
		}
		cleaned := CleanString(value)
		if cleaned == "" {
			errors = append(errors, rowError(row, field, fmt.Sprintf("Required field '%s' is empty", field)))
			return
		}
		if n := utf8.RuneCountInString(cleaned); n > limit {
			errors = append(errors, rowError(row, field, fmt.Sprintf(
				"Field '%s' is %d characters long, maximum is %d", field, n, limit,
			)))
		}
	}

	text(FieldProject, row.Project, models.MaxNameLength)
	text(FieldDescription, row.Description, models.MaxDescriptionLength)

	if !row.failed(FieldDueDate) {
		if strings.TrimSpace(row.DueDate) == "" {
			errors = append(errors, rowError(row, FieldDueDate, fmt.Sprintf("Required field '%s' is empty", FieldDueDate)))
		} else if _, err := ParseDueDate(row.DueDate); err != nil {
			raw, _ := row.Raw(FieldDueDate)
			errors = append(errors, rowError(row, FieldDueDate, fmt.Sprintf("Invalid date format: '%s'", raw)))
		}
	}

	if freq := strings.ToUpper(strings.TrimSpace(row.Frequency)); freq != "" && !models.IsValidFrequency(freq) {
		raw, _ := row.Raw(FieldFrequency)
		errors = append(errors, rowError(row, FieldFrequency, fmt.Sprintf(
			"Invalid frequency '%s'. Must be one of: %s", raw, strings.Join(models.FrequencyCodes, ", "),
		)))
	}

	text(FieldProjectManager, row.ProjectManager, models.MaxNameLength)

	return len(errors) == 0, errors
}

func rowError(row NormalizedRow, field, msg string) models.RowError {
	e := models.RowError{
		Row:    row.Number,
		Column: field,
		Error:  msg,
		Kind:   models.ErrorKindValidation,
	}
	if raw, ok := row.Raw(field); ok && raw != "" {
		e.Value = &raw
	}
	return e
}
