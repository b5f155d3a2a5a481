package api

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/deliverables-tracker/internal/config"
	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/service"
	"github.com/deliverables-tracker/internal/spreadsheet"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// multipartOverhead leaves room for form boundaries around the file part
const multipartOverhead = 1 << 20

// ImportHandler handles spreadsheet upload endpoints
type ImportHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "import").Logger(),
	}
}

// upload is a received spreadsheet, parsed and kept in memory
type upload struct {
	filename string
	data     []byte
	sheet    *spreadsheet.Sheet
}

// readUpload enforces the size limit before parsing and writes the error
// response itself when it returns false
func (h *ImportHandler) readUpload(c *gin.Context) (*upload, bool) {
	limit := h.cfg.Import.MaxUploadSize
	tooLarge := func() {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file too large, max size is %d MB", limit/(1024*1024)),
		})
	}

	if c.Request.ContentLength > limit+multipartOverhead {
		tooLarge()
		return nil, false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			tooLarge()
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required (multipart field 'file')"})
		return nil, false
	}
	defer file.Close()

	// Validate file size
	if header.Size > limit {
		tooLarge()
		return nil, false
	}

	ext := filepath.Ext(header.Filename)
	if !h.cfg.Import.IsAllowedExtension(ext) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unsupported file type %q, allowed: %v", ext, h.cfg.Import.AllowedExtensions),
		})
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		h.log.Error().Err(err).Str("file", header.Filename).Msg("Failed to read upload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return nil, false
	}
	if int64(len(data)) > limit {
		tooLarge()
		return nil, false
	}

	sheet, err := spreadsheet.Read(header.Filename, bytes.NewReader(data))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to parse spreadsheet: %v", err)})
		return nil, false
	}

	return &upload{filename: header.Filename, data: data, sheet: sheet}, true
}

// Preview handles POST /upload/preview
func (h *ImportHandler) Preview(c *gin.Context) {
	up, ok := h.readUpload(c)
	if !ok {
		return
	}

	result, err := h.services.Import.Preview(c.Request.Context(), up.filename, up.sheet)
	if err != nil {
		respondError(c, h.log, err, "failed to preview import")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Import handles POST /upload/import?skip_invalid=
// A repeated Idempotency-Key returns the stored result without re-importing.
func (h *ImportHandler) Import(c *gin.Context) {
	ctx := c.Request.Context()

	skipInvalid := h.cfg.Import.SkipInvalid
	if raw := c.Query("skip_invalid"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "skip_invalid must be true or false"})
			return
		}
		skipInvalid = v
	}

	// Get idempotency key from header
	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey != "" {
		existing, err := h.services.Import.GetRunByIdempotencyKey(ctx, idempotencyKey)
		if err != nil && !errors.Is(err, service.ErrNotFound) {
			h.log.Error().Err(err).Msg("Failed to check idempotency key")
		}
		if existing != nil {
			h.log.Info().Str("import_id", existing.ImportID).Msg("Returning existing import for idempotency key")
			c.JSON(http.StatusOK, existing)
			return
		}
	}

	up, ok := h.readUpload(c)
	if !ok {
		return
	}

	result, err := h.services.Import.Import(ctx, up.filename, up.sheet, models.ImportOptions{
		SkipInvalid:    skipInvalid,
		IdempotencyKey: idempotencyKey,
		ArchivePath:    h.archive(up),
	})
	if err != nil {
		respondError(c, h.log, err, "failed to import spreadsheet")
		return
	}

	h.log.Info().
		Str("import_id", result.ImportID).
		Str("file", up.filename).
		Int("size_bytes", len(up.data)).
		Bool("success", result.Success).
		Msg("Import request completed")

	c.JSON(http.StatusOK, result)
}

// archive keeps a copy of the upload. Failures are logged and the import
// goes ahead without an archive path.
func (h *ImportHandler) archive(up *upload) string {
	uploadDir := h.cfg.Import.UploadDir
	if uploadDir == "" {
		return ""
	}
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		h.log.Error().Err(err).Msg("Failed to create upload directory")
		return ""
	}

	path := filepath.Join(uploadDir, fmt.Sprintf("%s_%s", uuid.New().String()[:8], filepath.Base(up.filename)))
	if err := os.WriteFile(path, up.data, 0644); err != nil {
		h.log.Error().Err(err).Str("path", path).Msg("Failed to archive upload")
		return ""
	}
	return path
}

// Template handles GET /upload/template
func (h *ImportHandler) Template(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Import.Template())
}

// GetImport handles GET /imports/:id
func (h *ImportHandler) GetImport(c *gin.Context) {
	run, err := h.services.Import.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "failed to get import")
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetImportErrors handles GET /imports/:id/errors?format=json|csv
func (h *ImportHandler) GetImportErrors(c *gin.Context) {
	id := c.Param("id")

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of: json, csv"})
		return
	}

	rowErrors, err := h.services.Import.GetRunErrors(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err, "failed to get import errors")
		return
	}

	if format == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=import_errors_%s.csv", id))
		writer := csv.NewWriter(c.Writer)
		writer.Write([]string{"row", "column", "value", "error", "kind"})
		for _, e := range rowErrors {
			value := ""
			if e.Value != nil {
				value = *e.Value
			}
			writer.Write([]string{strconv.Itoa(e.Row), e.Column, value, e.Error, string(e.Kind)})
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			h.log.Error().Err(err).Str("import_id", id).Msg("Failed to write error report")
		}
		return
	}

	if rowErrors == nil {
		rowErrors = []models.RowError{}
	}
	c.JSON(http.StatusOK, gin.H{
		"import_id":   id,
		"error_count": len(rowErrors),
		"errors":      rowErrors,
	})
}
