package api

import (
	"fmt"
	"net/http"

	"github.com/deliverables-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ExportHandler handles export endpoints
type ExportHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

// StreamExport handles GET /deliverables/export?format=csv|ndjson|json|xlsx
// Accepts the same filters as the list endpoint and streams the export
// directly to the response.
func (h *ExportHandler) StreamExport(c *gin.Context) {
	ctx := c.Request.Context()

	format := c.DefaultQuery("format", service.FormatCSV)
	contentType, err := h.services.Export.ContentType(format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of: csv, ndjson, json, xlsx"})
		return
	}

	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.log.Info().Str("format", format).Msg("Starting streaming export")

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=deliverables.%s", format))
	c.Status(http.StatusOK)

	count, err := h.services.Export.StreamDeliverables(ctx, c.Writer, format, filter)
	if err != nil {
		if !c.Writer.Written() {
			c.Header("Content-Type", "")
			c.Header("Content-Disposition", "")
			respondError(c, h.log, err, "failed to export deliverables")
			return
		}
		// Can't return error JSON after streaming has started
		h.log.Error().Err(err).Int("count", count).Msg("Export failed mid-stream")
	}
}
