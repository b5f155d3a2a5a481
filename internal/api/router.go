package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/deliverables-tracker/internal/config"
	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const serviceName = "deliverables-tracker"

// Pinger reports whether the backing store is reachable
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter creates and configures the Gin router. db may be nil, in which
// case /health skips the storage check.
func NewRouter(services *service.Services, db Pinger, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	registerValidators(log)

	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware(cfg.Server.CORSOrigins))

	// Handlers
	importHandler := NewImportHandler(services, cfg, log)
	deliverableHandler := NewDeliverableHandler(services, cfg, log)
	exportHandler := NewExportHandler(services, log)
	projectHandler := NewProjectHandler(services, log)
	managerHandler := NewManagerHandler(services, log)

	// Health check
	router.GET("/health", healthCheck(db))
	router.GET("/metrics", metricsHandler(services))

	v1 := router.Group(cfg.Server.APIPrefix)
	{
		upload := v1.Group("/upload")
		{
			upload.POST("/preview", importHandler.Preview)
			upload.POST("/import", importHandler.Import)
			upload.GET("/template", importHandler.Template)
		}

		imports := v1.Group("/imports")
		{
			imports.GET("/:id", importHandler.GetImport)
			imports.GET("/:id/errors", importHandler.GetImportErrors)
		}

		deliverables := v1.Group("/deliverables")
		{
			deliverables.GET("", deliverableHandler.List)
			deliverables.POST("", deliverableHandler.Create)
			deliverables.GET("/upcoming", deliverableHandler.Upcoming)
			deliverables.GET("/overdue", deliverableHandler.Overdue)
			deliverables.GET("/summary", deliverableHandler.Summary)
			deliverables.GET("/export", exportHandler.StreamExport)
			deliverables.GET("/:id", deliverableHandler.Get)
			deliverables.PUT("/:id", deliverableHandler.Update)
			deliverables.POST("/:id/complete", deliverableHandler.Complete)
		}

		projects := v1.Group("/projects")
		{
			projects.GET("", projectHandler.List)
			projects.POST("", projectHandler.Create)
			projects.GET("/search", projectHandler.Search)
			projects.GET("/:id", projectHandler.Get)
			projects.PUT("/:id", projectHandler.Update)
		}

		managers := v1.Group("/managers")
		{
			managers.GET("", managerHandler.List)
			managers.POST("", managerHandler.Create)
			managers.GET("/:id", managerHandler.Get)
			managers.PUT("/:id", managerHandler.Update)
		}
	}

	return router
}

// registerValidators adds the custom binding rules used by request models
func registerValidators(log zerolog.Logger) {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	err := v.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
		return models.IsValidFrequency(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to register frequency validator")
	}
}

// healthCheck returns the health status
func healthCheck(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   serviceName,
		}

		if db != nil {
			ctx, cancel := contextWithTimeout(c, 2*time.Second)
			defer cancel()
			if err := db.HealthCheck(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "unhealthy"
				body["database"] = err.Error()
			} else {
				body["database"] = "ok"
			}
		}

		c.JSON(status, body)
	}
}

// metricsHandler returns stored record counts
func metricsHandler(services *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		deliverables, _ := services.Export.GetCount(ctx, "deliverables")
		projects, _ := services.Export.GetCount(ctx, "projects")
		managers, _ := services.Export.GetCount(ctx, "managers")

		c.JSON(http.StatusOK, gin.H{
			"database": gin.H{
				"deliverables": deliverables,
				"projects":     projects,
				"managers":     managers,
			},
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// respondError maps service errors to status codes. Unexpected errors are
// logged and hidden behind msg.
func respondError(c *gin.Context, log zerolog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware allows the configured browser origins
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" && (allowed[origin] || allowed["*"]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Idempotency-Key")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// contextWithTimeout creates a context with timeout for handlers
func contextWithTimeout(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), timeout)
}
