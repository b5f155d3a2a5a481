package api

import (
	"net/http"
	"strconv"

	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ProjectHandler handles project endpoints
type ProjectHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(services *service.Services, log zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		services: services,
		log:      log.With().Str("handler", "project").Logger(),
	}
}

// List handles GET /projects?manager_id=
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.services.Project.List(c.Request.Context(), c.Query("manager_id"))
	if err != nil {
		respondError(c, h.log, err, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []models.ProjectStats{}
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects, "total": len(projects)})
}

// Search handles GET /projects/search?q=&limit=
func (h *ProjectHandler) Search(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	results, err := h.services.Project.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		respondError(c, h.log, err, "failed to search projects")
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": results, "total": len(results)})
}

// Get handles GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.services.Project.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "failed to get project")
		return
	}
	c.JSON(http.StatusOK, project)
}

// Create handles POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.services.Project.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err, "failed to create project")
		return
	}
	c.JSON(http.StatusCreated, project)
}

// Update handles PUT /projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var req models.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.services.Project.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.log, err, "failed to update project")
		return
	}
	c.JSON(http.StatusOK, project)
}
