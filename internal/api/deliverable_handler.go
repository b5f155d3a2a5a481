package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/deliverables-tracker/internal/config"
	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// DeliverableHandler handles deliverable query and update endpoints
type DeliverableHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewDeliverableHandler creates a new DeliverableHandler
func NewDeliverableHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *DeliverableHandler {
	return &DeliverableHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "deliverable").Logger(),
	}
}

// parseFilter reads the shared deliverable filter query parameters
func parseFilter(c *gin.Context) (models.DeliverableFilter, error) {
	filter := models.DeliverableFilter{
		ProjectID:   c.Query("project_id"),
		ProjectName: strings.TrimSpace(c.Query("project")),
		ManagerID:   c.Query("manager_id"),
		Status:      models.DeliverableStatus(strings.ToLower(c.Query("status"))),
		Frequency:   strings.TrimSpace(c.Query("frequency")),
		Search:      strings.TrimSpace(c.DefaultQuery("search", c.Query("q"))),
	}

	var err error
	if filter.DueFrom, err = dateQuery(c, "due_after"); err != nil {
		return filter, err
	}
	if filter.DueTo, err = dateQuery(c, "due_before"); err != nil {
		return filter, err
	}
	if filter.IncludeCompleted, err = boolQuery(c, "include_completed", false); err != nil {
		return filter, err
	}
	return filter, nil
}

func dateQuery(c *gin.Context, name string) (models.Date, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, fmt.Errorf("%s must be a date (YYYY-MM-DD), got %q", name, raw)
	}
	return d, nil
}

func boolQuery(c *gin.Context, name string, def bool) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", name)
	}
	return v, nil
}

func respondDeliverables(c *gin.Context, deliverables []models.DeliverableView) {
	if deliverables == nil {
		deliverables = []models.DeliverableView{}
	}
	c.JSON(http.StatusOK, gin.H{
		"deliverables": deliverables,
		"total":        len(deliverables),
	})
}

// List handles GET /deliverables
func (h *DeliverableHandler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deliverables, err := h.services.Deliverable.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err, "failed to list deliverables")
		return
	}
	respondDeliverables(c, deliverables)
}

// Upcoming handles GET /deliverables/upcoming?days=&project_id=&manager_id=
func (h *DeliverableHandler) Upcoming(c *gin.Context) {
	q := models.UpcomingQuery{
		Days:      h.cfg.Upcoming.DefaultDays,
		ProjectID: c.Query("project_id"),
		ManagerID: c.Query("manager_id"),
	}

	if raw := c.Query("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
			return
		}
		q.Days = days
	}

	var err error
	if q.IncludeOverdue, err = boolQuery(c, "include_overdue", false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deliverables, err := h.services.Deliverable.Upcoming(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.log, err, "failed to get upcoming deliverables")
		return
	}
	respondDeliverables(c, deliverables)
}

// Overdue handles GET /deliverables/overdue
func (h *DeliverableHandler) Overdue(c *gin.Context) {
	deliverables, err := h.services.Deliverable.Overdue(c.Request.Context(), c.Query("project_id"), c.Query("manager_id"))
	if err != nil {
		respondError(c, h.log, err, "failed to get overdue deliverables")
		return
	}
	respondDeliverables(c, deliverables)
}

// Summary handles GET /deliverables/summary
func (h *DeliverableHandler) Summary(c *gin.Context) {
	summary, err := h.services.Deliverable.Summary(c.Request.Context(), c.Query("project_id"), c.Query("manager_id"))
	if err != nil {
		respondError(c, h.log, err, "failed to summarize deliverables")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Get handles GET /deliverables/:id
func (h *DeliverableHandler) Get(c *gin.Context) {
	d, err := h.services.Deliverable.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "failed to get deliverable")
		return
	}
	c.JSON(http.StatusOK, d)
}

// Create handles POST /deliverables
func (h *DeliverableHandler) Create(c *gin.Context) {
	var req models.CreateDeliverableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.services.Deliverable.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err, "failed to create deliverable")
		return
	}
	c.JSON(http.StatusCreated, d)
}

// Update handles PUT /deliverables/:id
func (h *DeliverableHandler) Update(c *gin.Context) {
	var req models.UpdateDeliverableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.services.Deliverable.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.log, err, "failed to update deliverable")
		return
	}
	c.JSON(http.StatusOK, d)
}

// Complete handles POST /deliverables/:id/complete
func (h *DeliverableHandler) Complete(c *gin.Context) {
	d, err := h.services.Deliverable.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "failed to complete deliverable")
		return
	}
	c.JSON(http.StatusOK, d)
}
