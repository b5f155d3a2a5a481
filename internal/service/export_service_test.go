package service_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/service"
	"github.com/deliverables-tracker/internal/spreadsheet"
	"github.com/xuri/excelize/v2"
)

func TestStreamDeliverables_CSV(t *testing.T) {
	h := newHarness(t)
	f := seedFixture(t, h)

	var buf bytes.Buffer
	count, err := h.services.Export.StreamDeliverables(context.Background(), &buf, service.FormatCSV,
		models.DeliverableFilter{})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4 open deliverables, got %d", count)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header and 4 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Project,Deliverable,Due Date,Frequency,Project Manager,") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Harbor Bridge,Safety audit,2026-02-05,Q,Jane Doe,pending,") ||
		!strings.HasSuffix(lines[1], f.overdue.ID) {
		t.Errorf("unexpected first row %q", lines[1])
	}
}

func TestStreamDeliverables_CSVReimportsAsDuplicates(t *testing.T) {
	h := newHarness(t)
	seedFixture(t, h)
	ctx := context.Background()

	var buf bytes.Buffer
	if _, err := h.services.Export.StreamDeliverables(ctx, &buf, service.FormatCSV,
		models.DeliverableFilter{IncludeCompleted: true}); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	sheet, err := spreadsheet.ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	preview, err := h.services.Import.Preview(ctx, "export.csv", sheet)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if preview.ValidRows != 5 {
		t.Errorf("expected every exported row to validate, got %d of %d", preview.ValidRows, preview.TotalRows)
	}
	for _, row := range preview.PreviewData {
		if !row.IsDuplicate {
			t.Errorf("row %d: expected duplicate of existing record", row.RowNumber)
		}
	}
}

func TestStreamDeliverables_NDJSON(t *testing.T) {
	h := newHarness(t)
	f := seedFixture(t, h)

	var buf bytes.Buffer
	count, err := h.services.Export.StreamDeliverables(context.Background(), &buf, service.FormatNDJSON,
		models.DeliverableFilter{ProjectID: f.project.ID, Frequency: "M"})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 monthly deliverables, got %d", count)
	}

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var d models.Deliverable
		if err := json.Unmarshal(scanner.Bytes(), &d); err != nil {
			t.Fatalf("line %d is not JSON: %v", lines+1, err)
		}
		if d.Frequency != "M" || d.ProjectName != "Harbor Bridge" {
			t.Errorf("unexpected record %+v", d)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("expected 2 lines, got %d", lines)
	}
}

func TestStreamDeliverables_JSON(t *testing.T) {
	h := newHarness(t)

	var buf bytes.Buffer
	count, err := h.services.Export.StreamDeliverables(context.Background(), &buf, service.FormatJSON,
		models.DeliverableFilter{})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if count != 0 || buf.String() != "[]" {
		t.Errorf("expected empty array, got %d %q", count, buf.String())
	}

	seedFixture(t, h)
	buf.Reset()
	if _, err := h.services.Export.StreamDeliverables(context.Background(), &buf, service.FormatJSON,
		models.DeliverableFilter{}); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var out []models.Deliverable
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(out) != 4 || out[0].DueDate.String() != "2026-02-05" {
		t.Errorf("unexpected export %+v", out)
	}
}

func TestStreamDeliverables_XLSX(t *testing.T) {
	h := newHarness(t)
	seedFixture(t, h)

	var buf bytes.Buffer
	count, err := h.services.Export.StreamDeliverables(context.Background(), &buf, service.FormatXLSX,
		models.DeliverableFilter{})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	wb, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("export is not a workbook: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows("Deliverables")
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != count+1 {
		t.Errorf("expected %d rows, got %d", count+1, len(rows))
	}
	if rows[0][1] != "Deliverable" || rows[1][1] != "Safety audit" {
		t.Errorf("unexpected cells %v / %v", rows[0], rows[1])
	}
}

func TestStreamDeliverables_UnsupportedFormat(t *testing.T) {
	h := newHarness(t)

	var buf bytes.Buffer
	_, err := h.services.Export.StreamDeliverables(context.Background(), &buf, "xml", models.DeliverableFilter{})
	if !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("expected nothing written")
	}

	if ct, err := h.services.Export.ContentType(service.FormatNDJSON); err != nil || ct != "application/x-ndjson" {
		t.Errorf("unexpected content type %q (%v)", ct, err)
	}
}

func TestGetCount(t *testing.T) {
	h := newHarness(t)
	seedFixture(t, h)
	ctx := context.Background()

	tests := map[string]int{"deliverables": 5, "projects": 1, "managers": 1}
	for resource, want := range tests {
		got, err := h.services.Export.GetCount(ctx, resource)
		if err != nil {
			t.Fatalf("GetCount(%s) failed: %v", resource, err)
		}
		if got != want {
			t.Errorf("%s: expected %d, got %d", resource, want, got)
		}
	}

	if _, err := h.services.Export.GetCount(ctx, "users"); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
