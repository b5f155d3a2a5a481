package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/repository"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Export formats
const (
	FormatCSV    = "csv"
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
	FormatXLSX   = "xlsx"
)

var contentTypes = map[string]string{
	FormatCSV:    "text/csv",
	FormatNDJSON: "application/x-ndjson",
	FormatJSON:   "application/json",
	FormatXLSX:   "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// exportColumns leads with the import template headers so an export can be
// uploaded again.
var exportColumns = []string{
	"Project", "Deliverable", "Due Date", "Frequency", "Project Manager",
	"Status", "Notes", "Completed At", "ID",
}

const flushEvery = 100

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, log zerolog.Logger) *exportService {
	return &exportService{
		repos: repos,
		log:   log.With().Str("service", "export").Logger(),
	}
}

// ContentType returns the MIME type for format
func (s *exportService) ContentType(format string) (string, error) {
	ct, ok := contentTypes[format]
	if !ok {
		return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidInput, format)
	}
	return ct, nil
}

// StreamDeliverables writes deliverables matching filter to w and returns how
// many were written
func (s *exportService) StreamDeliverables(ctx context.Context, w io.Writer, format string, filter models.DeliverableFilter) (int, error) {
	if _, err := s.ContentType(format); err != nil {
		return 0, err
	}
	s.log.Info().Str("format", format).Msg("Starting deliverables export")

	var (
		count int
		err   error
	)
	switch format {
	case FormatNDJSON:
		count, err = s.streamNDJSON(ctx, w, filter)
	case FormatJSON:
		count, err = s.streamJSON(ctx, w, filter)
	case FormatCSV:
		count, err = s.streamCSV(ctx, w, filter)
	case FormatXLSX:
		count, err = s.streamXLSX(ctx, w, filter)
	}
	if err != nil {
		s.log.Error().Err(err).Int("count", count).Msg("Deliverables export failed")
		return count, err
	}

	s.log.Info().Int("count", count).Msg("Deliverables export completed")
	return count, nil
}

func (s *exportService) streamNDJSON(ctx context.Context, w io.Writer, filter models.DeliverableFilter) (int, error) {
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	count := 0

	err := s.repos.Deliverable.StreamAll(ctx, filter, func(d *models.Deliverable) error {
		if err := enc.Encode(d); err != nil {
			return err
		}
		count++
		if count%flushEvery == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	return count, err
}

func (s *exportService) streamJSON(ctx context.Context, w io.Writer, filter models.DeliverableFilter) (int, error) {
	if _, err := io.WriteString(w, "["); err != nil {
		return 0, err
	}
	count := 0

	err := s.repos.Deliverable.StreamAll(ctx, filter, func(d *models.Deliverable) error {
		if count > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	_, err = io.WriteString(w, "]")
	return count, err
}

func (s *exportService) streamCSV(ctx context.Context, w io.Writer, filter models.DeliverableFilter) (int, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportColumns); err != nil {
		return 0, err
	}
	count := 0

	err := s.repos.Deliverable.StreamAll(ctx, filter, func(d *models.Deliverable) error {
		if err := writer.Write(exportRecord(d)); err != nil {
			return err
		}
		count++
		if count%flushEvery == 0 {
			writer.Flush()
		}
		return writer.Error()
	})
	writer.Flush()
	if err != nil {
		return count, err
	}
	return count, writer.Error()
}

func (s *exportService) streamXLSX(ctx context.Context, w io.Writer, filter models.DeliverableFilter) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Deliverables"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return 0, err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return 0, err
	}

	header := make([]interface{}, len(exportColumns))
	for i, c := range exportColumns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return 0, err
	}

	count := 0
	err = s.repos.Deliverable.StreamAll(ctx, filter, func(d *models.Deliverable) error {
		record := exportRecord(d)
		row := make([]interface{}, len(record))
		for i, v := range record {
			row[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, count+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	if err := sw.Flush(); err != nil {
		return count, err
	}

	_, err = f.WriteTo(w)
	return count, err
}

func exportRecord(d *models.Deliverable) []string {
	completedAt := ""
	if d.CompletedAt != nil {
		completedAt = d.CompletedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		d.ProjectName,
		d.Description,
		d.DueDate.String(),
		d.Frequency,
		d.ManagerName,
		string(d.Status),
		d.Notes,
		completedAt,
		d.ID,
	}
}

// GetCount returns count for a resource
func (s *exportService) GetCount(ctx context.Context, resource string) (int, error) {
	switch resource {
	case "deliverables":
		return s.repos.Deliverable.Count(ctx)
	case "projects":
		return s.repos.Project.Count(ctx)
	case "managers":
		return s.repos.Manager.Count(ctx)
	default:
		return 0, fmt.Errorf("%w: unknown resource %q", ErrInvalidInput, resource)
	}
}
