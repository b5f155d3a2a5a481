package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/deliverables-tracker/internal/config"
	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/spreadsheet"
)

// Canonical row fields
const (
	FieldProject        = "project"
	FieldDescription    = "description"
	FieldDueDate        = "due_date"
	FieldFrequency      = "frequency"
	FieldProjectManager = "project_manager"
)

// Fields lists the canonical fields in sheet order
var Fields = []string{FieldProject, FieldDescription, FieldDueDate, FieldFrequency, FieldProjectManager}

// RequiredFields must be mapped to a column and non-empty on every row
var RequiredFields = []string{FieldProject, FieldDescription, FieldDueDate, FieldProjectManager}

// DefaultColumnAliases lists the accepted headers per canonical field.
// Earlier aliases win when a sheet carries more than one of them.
var DefaultColumnAliases = map[string][]string{
	FieldProject:        {"Project", "Project Name", "project_name"},
	FieldDescription:    {"Deliverable", "Description", "Deliverable Description"},
	FieldDueDate:        {"Due Date", "DueDate", "Deadline", "due_date"},
	FieldFrequency:      {"Frequency", "Freq"},
	FieldProjectManager: {"Project Manager", "Manager", "PM", "project_manager"},
}

// DefaultFrequencyAliases maps long-form frequency names to codes
var DefaultFrequencyAliases = map[string]string{
	"MONTHLY":     models.FrequencyMonthly,
	"QUARTERLY":   models.FrequencyQuarterly,
	"SEMI-ANNUAL": models.FrequencySemiAnnual,
	"SEMIANNUAL":  models.FrequencySemiAnnual,
	"SEMI ANNUAL": models.FrequencySemiAnnual,
	"ANNUAL":      models.FrequencyAnnual,
	"ANNUALLY":    models.FrequencyAnnual,
	"YEARLY":      models.FrequencyAnnual,
	"ONE-TIME":    models.FrequencyOneTime,
	"ONETIME":     models.FrequencyOneTime,
	"ONE TIME":    models.FrequencyOneTime,
}

// Excel serial day numbers: day 1 is 1899-12-31, 2958465 is 9999-12-31
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// NormalizedRow holds a row's canonical fields as text. DueDate is already
// canonical (YYYY-MM-DD) when it could be converted, otherwise the raw text.
type NormalizedRow struct {
	Number         int
	Project        string
	Description    string
	DueDate        string
	Frequency      string
	ProjectManager string

	// raw holds the source text of each mapped field for error reporting
	raw    map[string]string
	mapped map[string]bool
	Errors []models.RowError
}

// Raw returns the source text of field and whether its column was present
func (r NormalizedRow) Raw(field string) (string, bool) {
	v, ok := r.raw[field]
	return v, ok
}

// Mapped reports whether the sheet carried a column for field
func (r NormalizedRow) Mapped(field string) bool {
	return r.mapped[field]
}

func (r NormalizedRow) failed(field string) bool {
	for _, e := range r.Errors {
		if e.Column == field {
			return true
		}
	}
	return false
}

// Normalizer maps raw sheet rows onto canonical fields using a declarative
// alias table
type Normalizer struct {
	columns     map[string][]string
	frequencies map[string]string
}

// NewNormalizer builds a normalizer from the defaults extended by cfg
func NewNormalizer(cfg config.AliasConfig) (*Normalizer, error) {
	n := &Normalizer{
		columns:     make(map[string][]string, len(DefaultColumnAliases)),
		frequencies: make(map[string]string, len(DefaultFrequencyAliases)),
	}
	for field, aliases := range DefaultColumnAliases {
		n.columns[field] = append([]string{}, aliases...)
	}
	for alias, code := range DefaultFrequencyAliases {
		n.frequencies[alias] = code
	}

	for field, aliases := range cfg.Columns {
		if _, ok := n.columns[field]; !ok {
			return nil, fmt.Errorf("unknown column field %q in alias table", field)
		}
		for _, alias := range aliases {
			if !containsFolded(n.columns[field], alias) {
				n.columns[field] = append(n.columns[field], alias)
			}
		}
	}
	for alias, code := range cfg.Frequencies {
		code = strings.ToUpper(strings.TrimSpace(code))
		if !models.IsValidFrequency(code) {
			return nil, fmt.Errorf("frequency alias %q maps to unknown code %q", alias, code)
		}
		n.frequencies[foldFrequency(alias)] = code
	}

	return n, nil
}

// Aliases returns the accepted headers for field in priority order
func (n *Normalizer) Aliases(field string) []string {
	return append([]string{}, n.columns[field]...)
}

// FrequencyAliases returns a copy of the long-form frequency table
func (n *Normalizer) FrequencyAliases() map[string]string {
	out := make(map[string]string, len(n.frequencies))
	for k, v := range n.frequencies {
		out[k] = v
	}
	return out
}

// ColumnMapping resolves sheet headers to canonical fields. The result maps
// each canonical field to the header it was read from; unmapped headers are
// ignored.
func (n *Normalizer) ColumnMapping(headers []string) map[string]string {
	folded := make(map[string]string, len(headers))
	for _, h := range headers {
		key := foldHeader(h)
		if _, seen := folded[key]; !seen {
			folded[key] = h
		}
	}

	mapping := make(map[string]string, len(Fields))
	for _, field := range Fields {
		for _, alias := range n.columns[field] {
			if h, ok := folded[foldHeader(alias)]; ok {
				mapping[field] = h
				break
			}
		}
	}
	return mapping
}

// Normalize extracts the canonical fields of row using mapping from
// ColumnMapping
func (n *Normalizer) Normalize(row spreadsheet.Row, mapping map[string]string) NormalizedRow {
	out := NormalizedRow{
		Number: row.Number,
		raw:    make(map[string]string, len(Fields)),
		mapped: make(map[string]bool, len(Fields)),
	}

	for _, field := range Fields {
		header, ok := mapping[field]
		if !ok {
			if isRequired(field) {
				out.Errors = append(out.Errors, models.RowError{
					Row:    row.Number,
					Column: field,
					Error:  fmt.Sprintf("Missing required column '%s'", field),
					Kind:   models.ErrorKindNormalization,
				})
			}
			continue
		}
		out.mapped[field] = true

		value, _ := row.Get(header)
		text := cellText(value)
		out.raw[field] = text

		switch field {
		case FieldProject:
			out.Project = text
		case FieldDescription:
			out.Description = text
		case FieldDueDate:
			out.DueDate = n.normalizeDate(value, text)
		case FieldFrequency:
			out.Frequency = n.normalizeFrequency(text)
		case FieldProjectManager:
			out.ProjectManager = text
		}
	}

	if !out.mapped[FieldFrequency] {
		out.Frequency = models.DefaultFrequency
	}

	return out
}

func (n *Normalizer) normalizeDate(value any, text string) string {
	if f, ok := value.(float64); ok {
		if d, ok := FromExcelSerial(f); ok {
			return d.String()
		}
		return text
	}
	if d, err := ParseDueDate(text); err == nil {
		return d.String()
	}
	return text
}

func (n *Normalizer) normalizeFrequency(text string) string {
	key := foldFrequency(text)
	if key == "" {
		return models.DefaultFrequency
	}
	if code, ok := n.frequencies[key]; ok {
		return code
	}
	return text
}

// FromExcelSerial converts an Excel serial day number to a date. Fractional
// parts (time of day) are dropped.
func FromExcelSerial(serial float64) (models.Date, bool) {
	if math.IsNaN(serial) || serial < minExcelSerial || serial >= maxExcelSerial+1 {
		return models.Date{}, false
	}
	return models.DateOf(excelEpoch.AddDate(0, 0, int(serial))), true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"2.1.2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"20060102",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseDueDate parses the textual date forms found in spreadsheets, falling
// back to an Excel serial number of at least five digits. Numeric cells read
// from XLSX bypass this and go straight to FromExcelSerial.
func ParseDueDate(s string) (models.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Date{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t), nil
		}
	}
	if isSerialText(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if d, ok := FromExcelSerial(f); ok {
				return d, nil
			}
		}
	}
	return models.Date{}, fmt.Errorf("unrecognized date %q", s)
}

// minSerialDigits keeps year-only text such as "2026" from reading as a
// serial in 1905. Serials from 10000 (1927-05-18) onward have five digits.
const minSerialDigits = 5

// isSerialText reports whether s looks like a serial day number written as
// text: digits with an optional fractional part.
func isSerialText(s string) bool {
	whole, frac, _ := strings.Cut(s, ".")
	if len(whole) < minSerialDigits {
		return false
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

func cellText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func isRequired(field string) bool {
	for _, f := range RequiredFields {
		if f == field {
			return true
		}
	}
	return false
}

// foldHeader lowercases h and collapses whitespace, underscores and dashes
// into single spaces
func foldHeader(h string) string {
	fields := strings.FieldsFunc(strings.ToLower(h), func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})
	return strings.Join(fields, " ")
}

func foldFrequency(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

func containsFolded(list []string, s string) bool {
	key := foldHeader(s)
	for _, v := range list {
		if foldHeader(v) == key {
			return true
		}
	}
	return false
}
