package validation

import (
	"strings"

	"github.com/deliverables-tracker/internal/models"
)

// CleanRow is a row ready for duplicate detection and persistence
type CleanRow struct {
	Number         int
	Project        string
	Description    string
	DueDate        models.Date
	Frequency      string
	ProjectManager string
}

// Key returns the row's duplicate detection key
func (r CleanRow) Key() models.DedupKey {
	return models.DedupKey{
		Project:     strings.ToLower(r.Project),
		DueDate:     r.DueDate,
		Frequency:   r.Frequency,
		Description: r.Description,
	}
}

// CleanString trims s and collapses internal whitespace runs to one space.
// Casing is preserved.
func CleanString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanFrequency returns the upper-case code, defaulting a blank value
func CleanFrequency(s string) string {
	s = strings.ToUpper(CleanString(s))
	if s == "" {
		return models.DefaultFrequency
	}
	return s
}

// Clean produces the cleaned form of row. It never fails: an unparsable due
// date stays zero and the row is expected to have been rejected by the
// validator already.
func Clean(row NormalizedRow) CleanRow {
	due, _ := ParseDueDate(row.DueDate)
	return CleanRow{
		Number:         row.Number,
		Project:        CleanString(row.Project),
		Description:    CleanString(row.Description),
		DueDate:        due,
		Frequency:      CleanFrequency(row.Frequency),
		ProjectManager: CleanString(row.ProjectManager),
	}
}

// Normalized turns a clean row back into normalized form, so cleaning can be
// applied again
func (r CleanRow) Normalized() NormalizedRow {
	return NormalizedRow{
		Number:         r.Number,
		Project:        r.Project,
		Description:    r.Description,
		DueDate:        r.DueDate.String(),
		Frequency:      r.Frequency,
		ProjectManager: r.ProjectManager,
	}
}
