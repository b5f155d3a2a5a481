package service_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/spreadsheet"
	"github.com/xuri/excelize/v2"
)

// testdataPath returns the absolute path to a file in the testdata directory.
func testdataPath(t testing.TB, filename string) string {
	t.Helper()
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(currentFile)))
	path := filepath.Join(projectRoot, "testdata", filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skipf("testdata file not found: %s", path)
	}
	return path
}

func readTestdata(t testing.TB, filename string) *spreadsheet.Sheet {
	t.Helper()
	f, err := os.Open(testdataPath(t, filename))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()

	sheet, err := spreadsheet.Read(filename, f)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return sheet
}

// --- Sample CSV ---

func TestImport_SampleCSV(t *testing.T) {
	h := newHarness(t)
	sheet := readTestdata(t, "deliverables_sample.csv")

	result, err := h.services.Import.Import(context.Background(), "deliverables_sample.csv", sheet,
		models.ImportOptions{SkipInvalid: true})
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}

	if result.TotalRows != 12 {
		t.Errorf("Expected 12 total rows, got %d", result.TotalRows)
	}
	if result.ImportedRows != 7 || result.SkippedRows != 5 {
		t.Errorf("Expected 7 imported and 5 skipped, got %d/%d", result.ImportedRows, result.SkippedRows)
	}
	if result.ManagersCreated != 3 || result.ProjectsCreated != 3 || result.DeliverablesCreated != 7 {
		t.Errorf("Expected 3/3/7 created, got %d/%d/%d",
			result.ManagersCreated, result.ProjectsCreated, result.DeliverablesCreated)
	}

	// One error per rejected row, keyed by sheet row number
	wantErrors := map[int]string{
		4:  "duplicate_in_batch",
		8:  "due_date",
		9:  "description",
		11: "frequency",
		12: "project",
	}
	if len(result.Errors) != len(wantErrors) {
		t.Fatalf("Expected %d errors, got %d: %+v", len(wantErrors), len(result.Errors), result.Errors)
	}
	for _, e := range result.Errors {
		want, ok := wantErrors[e.Row]
		if !ok {
			t.Errorf("Unexpected error on row %d: %s", e.Row, e.Error)
			continue
		}
		if want != e.Column && want != string(e.Kind) {
			t.Errorf("Row %d: expected %s, got column=%s kind=%s", e.Row, want, e.Column, e.Kind)
		}
	}

	got := map[string]models.Deliverable{}
	for _, d := range h.store.Deliverables() {
		got[d.Description] = d
	}
	checks := []struct {
		description string
		due         string
		frequency   string
	}{
		{"Monthly inspection report", "2026-03-01", "M"},
		{"Quarterly safety audit", "2026-03-31", "Q"},
		{"Environmental permit renewal", "2026-04-15", "A"},
		{"Traffic management plan", "2026-04-30", "OT"},
		{"Progress photos", "2026-03-31", "M"},
		{"Land survey", "2026-05-05", "SA"},
		{"Final handover", "2026-12-31", "OT"},
	}
	for _, c := range checks {
		d, ok := got[c.description]
		if !ok {
			t.Errorf("%q was not imported", c.description)
			continue
		}
		if d.DueDate.String() != c.due || d.Frequency != c.frequency {
			t.Errorf("%q: expected %s/%s, got %s/%s", c.description, c.due, c.frequency, d.DueDate, d.Frequency)
		}
	}
}

func TestImport_SampleCSV_SecondRunSkipsEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.services.Import.Import(ctx, "first.csv", readTestdata(t, "deliverables_sample.csv"),
		models.ImportOptions{SkipInvalid: true}); err != nil {
		t.Fatalf("first import failed: %v", err)
	}

	result, err := h.services.Import.Import(ctx, "second.csv", readTestdata(t, "deliverables_sample.csv"),
		models.ImportOptions{SkipInvalid: true})
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}

	if result.ImportedRows != 0 || result.SkippedRows != 12 {
		t.Errorf("Expected nothing imported on re-run, got %d/%d", result.ImportedRows, result.SkippedRows)
	}
	existing := 0
	for _, e := range result.Errors {
		if e.Kind == models.ErrorKindDuplicateExisting {
			existing++
		}
	}
	// row 4 duplicates row 2, which is itself already stored
	if existing != 8 {
		t.Errorf("Expected 8 duplicate_existing errors, got %d", existing)
	}
	if len(h.store.Deliverables()) != 7 {
		t.Errorf("Expected 7 deliverables, got %d", len(h.store.Deliverables()))
	}
}

// --- XLSX ---

func buildWorkbook(t testing.TB, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow failed: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer failed: %v", err)
	}
	return buf
}

func TestImport_XLSXDateCells(t *testing.T) {
	h := newHarness(t)
	buf := buildWorkbook(t, [][]any{
		{"Project", "Deliverable", "Due Date", "Frequency", "Project Manager"},
		{"ProjectA", "Submit compliance report", 46073, "M", "Jane Doe"},
		{"ProjectA", "Submit compliance report", "2026-02-20", "M", "Jane Doe"},
		{"ProjectA", "Site visit", "not-a-date", "Quarterly", "Jane Doe"},
		{"ProjectA", "Close-out", 46100, nil, "Jane Doe"},
	})

	sheet, err := spreadsheet.Read("tracker.xlsx", buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	preview, err := h.services.Import.Preview(context.Background(), "tracker.xlsx", sheet)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if preview.PreviewData[0].DueDate != "2026-02-20" {
		t.Errorf("Expected serial cell to become 2026-02-20, got %q", preview.PreviewData[0].DueDate)
	}
	if preview.ValidRows != 3 || preview.InvalidRows != 1 {
		t.Errorf("Expected 3 valid and 1 invalid, got %d/%d", preview.ValidRows, preview.InvalidRows)
	}

	result, err := h.services.Import.Import(context.Background(), "tracker.xlsx", sheet,
		models.ImportOptions{SkipInvalid: true})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.ImportedRows != 2 || result.SkippedRows != 2 {
		t.Errorf("Expected 2 imported and 2 skipped, got %d/%d", result.ImportedRows, result.SkippedRows)
	}
	for _, d := range h.store.Deliverables() {
		if d.Description == "Close-out" && (d.Frequency != "OT" || d.DueDate.String() != "2026-03-19") {
			t.Errorf("Unexpected close-out deliverable: %s %s", d.Frequency, d.DueDate)
		}
	}
}
