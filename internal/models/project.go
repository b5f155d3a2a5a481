package models

import (
	"time"
)

// Project is an infrastructure project owned by exactly one manager
type Project struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	ManagerID   string    `json:"manager_id" db:"manager_id"`
	ManagerName string    `json:"manager_name,omitempty" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectStats is a project with deliverable counts
type ProjectStats struct {
	Project
	TotalDeliverables   int `json:"total_deliverables"`
	PendingDeliverables int `json:"pending_deliverables"`
	OverdueDeliverables int `json:"overdue_deliverables"`
	Upcoming7Days       int `json:"upcoming_7_days"`
}

// ProjectSearchResult is a compact project row for search suggestions
type ProjectSearchResult struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ManagerName      string `json:"manager_name"`
	DeliverableCount int    `json:"deliverable_count"`
}

// CreateProjectRequest is the body of POST /projects. Either ManagerID or
// ManagerName must be set; a ManagerName that does not exist is created.
type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description" binding:"max=1000"`
	ManagerID   string `json:"manager_id" binding:"omitempty,uuid"`
	ManagerName string `json:"manager_name" binding:"max=255"`
}

// UpdateProjectRequest is the body of PUT /projects/:id. Nil fields are left
// unchanged, so the project keeps its manager unless ManagerID is sent.
type UpdateProjectRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	ManagerID   *string `json:"manager_id" binding:"omitempty,uuid"`
}
