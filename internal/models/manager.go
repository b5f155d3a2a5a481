package models

import (
	"time"
)

// Manager is a project manager responsible for one or more projects
type Manager struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ManagerStats is a manager with project and deliverable counts
type ManagerStats struct {
	Manager
	ProjectCount     int `json:"project_count"`
	DeliverableCount int `json:"deliverable_count"`
}

// CreateManagerRequest is the body of POST /managers
type CreateManagerRequest struct {
	Name  string `json:"name" binding:"required,max=255"`
	Email string `json:"email" binding:"omitempty,email,max=255"`
}

// UpdateManagerRequest is the body of PUT /managers/:id. Nil fields are left
// unchanged.
type UpdateManagerRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=255"`
	Email *string `json:"email" binding:"omitempty,email,max=255"`
}
