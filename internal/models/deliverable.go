package models

import (
	"time"
)

// Frequency codes for recurring deliverables
const (
	FrequencyMonthly    = "M"
	FrequencyQuarterly  = "Q"
	FrequencySemiAnnual = "SA"
	FrequencyAnnual     = "A"
	FrequencyOneTime    = "OT"
)

// DefaultFrequency applies when a row carries no frequency at all
const DefaultFrequency = FrequencyOneTime

// Column widths of the text fields, counted in characters. The binding tags
// on the request structs carry the same numbers.
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 500
	MaxNotesLength       = 1000
)

// FrequencyCodes lists the accepted codes in display order
var FrequencyCodes = []string{
	FrequencyMonthly,
	FrequencyQuarterly,
	FrequencySemiAnnual,
	FrequencyAnnual,
	FrequencyOneTime,
}

// FrequencyLabels maps each code to its human-readable name
var FrequencyLabels = map[string]string{
	FrequencyMonthly:    "Monthly",
	FrequencyQuarterly:  "Quarterly",
	FrequencySemiAnnual: "Semi-Annual",
	FrequencyAnnual:     "Annual",
	FrequencyOneTime:    "One-Time",
}

// IsValidFrequency reports whether code is one of FrequencyCodes
func IsValidFrequency(code string) bool {
	_, ok := FrequencyLabels[code]
	return ok
}

// FrequencyDisplay returns the label for code, or code itself if unknown
func FrequencyDisplay(code string) string {
	if label, ok := FrequencyLabels[code]; ok {
		return label
	}
	return code
}

// DeliverableStatus tracks progress on a deliverable
type DeliverableStatus string

const (
	StatusPending    DeliverableStatus = "pending"
	StatusInProgress DeliverableStatus = "in_progress"
	StatusCompleted  DeliverableStatus = "completed"
	StatusOverdue    DeliverableStatus = "overdue"
)

// ValidStatuses defines allowed deliverable statuses
var ValidStatuses = map[DeliverableStatus]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusOverdue:    true,
}

// Deliverable is an obligation due on a project
type Deliverable struct {
	ID          string            `json:"id" db:"id"`
	ProjectID   string            `json:"project_id" db:"project_id"`
	Description string            `json:"description" db:"description"`
	DueDate     Date              `json:"due_date" db:"due_date"`
	Frequency   string            `json:"frequency" db:"frequency"`
	Status      DeliverableStatus `json:"status" db:"status"`
	Notes       string            `json:"notes,omitempty" db:"notes"`
	CompletedAt *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`

	// Joined from the owning project and its manager
	ProjectName string `json:"project_name" db:"-"`
	ManagerID   string `json:"manager_id" db:"-"`
	ManagerName string `json:"manager_name" db:"-"`
}

// DeliverableView is a deliverable annotated relative to a reference day
type DeliverableView struct {
	Deliverable
	FrequencyDisplay string `json:"frequency_display"`
	DaysUntilDue     int    `json:"days_until_due"`
	IsOverdue        bool   `json:"is_overdue"`
}

// NewDeliverableView annotates d relative to today
func NewDeliverableView(d Deliverable, today Date) DeliverableView {
	days := d.DueDate.DaysSince(today)
	return DeliverableView{
		Deliverable:      d,
		FrequencyDisplay: FrequencyDisplay(d.Frequency),
		DaysUntilDue:     days,
		IsOverdue:        days < 0 && d.Status != StatusCompleted,
	}
}

// DedupKey identifies a deliverable for exact-match duplicate detection.
// Project is the project's lookup name (case-folded, since projects resolve
// case-insensitively); the other parts compare exactly.
type DedupKey struct {
	Project     string
	DueDate     Date
	Frequency   string
	Description string
}

// DeliverableFilter selects deliverables from storage. Zero values mean "no
// constraint".
type DeliverableFilter struct {
	ProjectID        string
	ProjectName      string // case-insensitive substring
	ManagerID        string
	Status           DeliverableStatus
	Frequency        string
	DueFrom          Date // inclusive
	DueTo            Date // inclusive
	Search           string
	IncludeCompleted bool
}

// DeliverableSummary counts open deliverables by urgency
type DeliverableSummary struct {
	Total        int `json:"total"`
	Overdue      int `json:"overdue"`
	DueToday     int `json:"due_today"`
	DueThisWeek  int `json:"due_this_week"`
	DueThisMonth int `json:"due_this_month"`
}

// CreateDeliverableRequest is the body of POST /deliverables. Either
// ProjectID or ProjectName must be set.
type CreateDeliverableRequest struct {
	ProjectID   string `json:"project_id" binding:"omitempty,uuid"`
	ProjectName string `json:"project_name" binding:"max=255"`
	Description string `json:"description" binding:"required,max=500"`
	DueDate     Date   `json:"due_date"`
	Frequency   string `json:"frequency" binding:"omitempty,frequency"`
	Notes       string `json:"notes" binding:"max=1000"`
}

// UpdateDeliverableRequest is the body of PUT /deliverables/:id. Nil fields
// are left unchanged; an empty Notes clears the notes.
type UpdateDeliverableRequest struct {
	Description *string            `json:"description" binding:"omitempty,min=1,max=500"`
	DueDate     *Date              `json:"due_date"`
	Frequency   *string            `json:"frequency" binding:"omitempty,frequency"`
	Status      *DeliverableStatus `json:"status" binding:"omitempty,oneof=pending in_progress completed overdue"`
	Notes       *string            `json:"notes" binding:"omitempty,max=1000"`
}

// UpcomingQuery is the input of the upcoming deliverables query
type UpcomingQuery struct {
	Days           int
	ProjectID      string
	ManagerID      string
	IncludeOverdue bool
}
