package api

import (
	"net/http"

	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ManagerHandler handles project manager endpoints
type ManagerHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewManagerHandler creates a new ManagerHandler
func NewManagerHandler(services *service.Services, log zerolog.Logger) *ManagerHandler {
	return &ManagerHandler{
		services: services,
		log:      log.With().Str("handler", "manager").Logger(),
	}
}

// List handles GET /managers
func (h *ManagerHandler) List(c *gin.Context) {
	managers, err := h.services.Manager.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "failed to list managers")
		return
	}
	if managers == nil {
		managers = []models.ManagerStats{}
	}
	c.JSON(http.StatusOK, gin.H{"managers": managers, "total": len(managers)})
}

// Get handles GET /managers/:id
func (h *ManagerHandler) Get(c *gin.Context) {
	manager, err := h.services.Manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "failed to get manager")
		return
	}
	c.JSON(http.StatusOK, manager)
}

// Create handles POST /managers
func (h *ManagerHandler) Create(c *gin.Context) {
	var req models.CreateManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	manager, err := h.services.Manager.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err, "failed to create manager")
		return
	}
	c.JSON(http.StatusCreated, manager)
}

// Update handles PUT /managers/:id
func (h *ManagerHandler) Update(c *gin.Context) {
	var req models.UpdateManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	manager, err := h.services.Manager.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.log, err, "failed to update manager")
		return
	}
	c.JSON(http.StatusOK, manager)
}
