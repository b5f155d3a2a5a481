package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/deliverables-tracker/internal/api"
	"github.com/deliverables-tracker/internal/config"
	"github.com/deliverables-tracker/internal/mocks"
	"github.com/deliverables-tracker/internal/models"
	"github.com/deliverables-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var fixedNow = time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)

const sampleCSV = `Project,Deliverable,Due Date,Frequency,Project Manager
Harbor Bridge,Monthly inspection report,2026-02-20,Monthly,Jane Doe
Harbor Bridge,Quarterly safety audit,2026-03-31,Q,Jane Doe
Harbor Bridge,Broken date,someday,M,Jane Doe
`

type stubPinger struct{ err error }

func (p stubPinger) HealthCheck(ctx context.Context) error { return p.err }

type testEnv struct {
	router *gin.Engine
	store  *mocks.Store
	cfg    *config.Config
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:        "8080",
			APIPrefix:   "/api/v1",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Import: config.ImportConfig{
			MaxUploadSize:     10 * 1024 * 1024,
			UploadDir:         t.TempDir(),
			AllowedExtensions: []string{".csv", ".xlsx", ".xlsm"},
			SkipInvalid:       true,
		},
		Upcoming: config.DefaultUpcoming(),
	}
}

// setupTestRouter wires real services over the in-memory store
func setupTestRouter(t *testing.T, tweak ...func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig(t)
	for _, fn := range tweak {
		fn(cfg)
	}

	store := mocks.NewStore()
	services, err := service.NewServices(store.Repositories(), cfg, func() time.Time { return fixedNow }, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServices failed: %v", err)
	}

	return &testEnv{
		router: api.NewRouter(services, nil, cfg, zerolog.Nop()),
		store:  store,
		cfg:    cfg,
	}
}

// setupMockRouter swaps in mock import and export services
func setupMockRouter(t *testing.T) (*gin.Engine, *mocks.MockImportService, *mocks.MockExportService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig(t)
	mockImport := mocks.NewMockImportService()
	mockExport := mocks.NewMockExportService()

	services, err := service.NewServices(mocks.NewStore().Repositories(), cfg, func() time.Time { return fixedNow }, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServices failed: %v", err)
	}
	services.Import = mockImport
	services.Export = mockExport

	return api.NewRouter(services, nil, cfg, zerolog.Nop()), mockImport, mockExport
}

func (e *testEnv) do(method, url string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write([]byte(content))
	writer.Close()
	return body, writer.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, url, filename, content string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, content)
	return e.do(http.MethodPost, url, body, append([]string{"Content-Type", contentType}, headers...)...)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func (e *testEnv) seed(t *testing.T) (*models.Project, *models.Deliverable) {
	t.Helper()
	m := &models.Manager{ID: uuid.NewString(), Name: "Jane Doe"}
	p := &models.Project{ID: uuid.NewString(), Name: "Harbor Bridge", ManagerID: m.ID}
	due, _ := models.ParseDate("2026-02-20")
	d := &models.Deliverable{
		ID: uuid.NewString(), ProjectID: p.ID, Description: "Submit compliance report",
		DueDate: due, Frequency: models.FrequencyMonthly,
	}
	e.store.Seed(m, p, d)
	return p, d
}

// --- Health and metrics ---

func TestHealthEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	decode(t, w, &response)
	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", response["status"])
	}
	if response["service"] != "deliverables-tracker" {
		t.Errorf("Expected service name, got %v", response["service"])
	}
}

func TestHealthEndpoint_DatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	services, _ := service.NewServices(mocks.NewStore().Repositories(), cfg, nil, zerolog.Nop())
	router := api.NewRouter(services, stubPinger{err: errors.New("connection refused")}, cfg, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "connection refused") {
		t.Errorf("Expected database error in body, got %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _, mockExport := setupMockRouter(t)
	mockExport.Counts["deliverables"] = 120
	mockExport.Counts["projects"] = 12
	mockExport.Counts["managers"] = 4

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	db := response["database"].(map[string]interface{})
	if db["deliverables"].(float64) != 120 || db["managers"].(float64) != 4 {
		t.Errorf("Unexpected counts: %v", db)
	}
}

// --- Upload ---

func TestPreviewEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	w := env.upload(t, "/api/v1/upload/preview", "tracker.csv", sampleCSV)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var preview models.PreviewResult
	decode(t, w, &preview)
	if preview.TotalRows != 3 || preview.ValidRows != 2 || preview.InvalidRows != 1 {
		t.Errorf("Expected 3/2/1, got %d/%d/%d", preview.TotalRows, preview.ValidRows, preview.InvalidRows)
	}
	if len(env.store.Deliverables()) != 0 {
		t.Error("Preview must not write deliverables")
	}
}

func TestImportEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	w := env.upload(t, "/api/v1/upload/import", "tracker.csv", sampleCSV)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var result models.ImportResult
	decode(t, w, &result)
	if !result.Success || result.ImportedRows != 2 || result.SkippedRows != 1 {
		t.Errorf("Expected 2 imported and 1 skipped, got %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 4 || result.Errors[0].Column != "due_date" {
		t.Errorf("Expected a due_date error on row 4, got %+v", result.Errors)
	}
	if len(env.store.Deliverables()) != 2 {
		t.Errorf("Expected 2 stored deliverables, got %d", len(env.store.Deliverables()))
	}

	entries, _ := os.ReadDir(env.cfg.Import.UploadDir)
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), "_tracker.csv") {
		t.Errorf("Expected the upload to be archived, got %v", entries)
	}

	// The run is queryable afterwards
	w = env.do(http.MethodGet, "/api/v1/imports/"+result.ImportID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for the run, got %d", w.Code)
	}
	var run models.ImportRunResponse
	decode(t, w, &run)
	if run.ErrorCount != 1 {
		t.Errorf("Expected 1 stored error, got %d", run.ErrorCount)
	}
}

func TestImportEndpoint_SkipInvalidFalse(t *testing.T) {
	env := setupTestRouter(t)

	w := env.upload(t, "/api/v1/upload/import?skip_invalid=false", "tracker.csv", sampleCSV)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var result models.ImportResult
	decode(t, w, &result)
	if result.Success || result.ImportedRows != 0 {
		t.Errorf("Expected nothing imported, got %+v", result)
	}
	if len(env.store.Deliverables()) != 0 {
		t.Error("Expected no deliverables to be written")
	}
}

func TestImportEndpoint_Idempotency(t *testing.T) {
	env := setupTestRouter(t)

	first := env.upload(t, "/api/v1/upload/import", "tracker.csv", sampleCSV, "Idempotency-Key", "upload-42")
	second := env.upload(t, "/api/v1/upload/import", "tracker.csv", sampleCSV, "Idempotency-Key", "upload-42")
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("Expected 200 twice, got %d and %d", first.Code, second.Code)
	}

	var a, b models.ImportResult
	decode(t, first, &a)
	decode(t, second, &b)
	if a.ImportID == "" || a.ImportID != b.ImportID {
		t.Errorf("Expected the replay to return import %q, got %q", a.ImportID, b.ImportID)
	}
	if b.ImportedRows != 2 {
		t.Errorf("Expected the replay to carry the original totals, got %+v", b)
	}
	if len(env.store.Deliverables()) != 2 {
		t.Errorf("Expected a single import, got %d deliverables", len(env.store.Deliverables()))
	}
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		filename       string
		content        string
		maxSize        int64
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "unsupported extension",
			url:            "/api/v1/upload/import",
			filename:       "tracker.pdf",
			content:        sampleCSV,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "unsupported file type",
		},
		{
			name:           "file too large",
			url:            "/api/v1/upload/preview",
			filename:       "tracker.csv",
			content:        sampleCSV,
			maxSize:        64,
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedError:  "file too large",
		},
		{
			name:           "unparseable workbook",
			url:            "/api/v1/upload/preview",
			filename:       "tracker.xlsx",
			content:        "not a zip archive",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "failed to parse spreadsheet",
		},
		{
			name:           "bad skip_invalid",
			url:            "/api/v1/upload/import?skip_invalid=maybe",
			filename:       "tracker.csv",
			content:        sampleCSV,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "skip_invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter(t, func(cfg *config.Config) {
				if tt.maxSize > 0 {
					cfg.Import.MaxUploadSize = tt.maxSize
				}
			})

			w := env.upload(t, tt.url, tt.filename, tt.content)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.expectedError) {
				t.Errorf("Expected error containing %q, got %s", tt.expectedError, w.Body.String())
			}
			if len(env.store.Deliverables()) != 0 {
				t.Error("Rejected uploads must not write")
			}
		})
	}
}

func TestUploadMissingFile(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodPost, "/api/v1/upload/preview", strings.NewReader(""))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestTemplateEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodGet, "/api/v1/upload/template", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var tmpl models.ImportTemplate
	decode(t, w, &tmpl)
	if tmpl.DefaultFrequency != models.FrequencyOneTime || len(tmpl.Columns) == 0 {
		t.Errorf("Unexpected template: %+v", tmpl)
	}
}

// --- Import runs ---

func TestGetImport_NotFound(t *testing.T) {
	env := setupTestRouter(t)

	for _, id := range []string{"nonexistent-run", uuid.NewString()} {
		w := env.do(http.MethodGet, "/api/v1/imports/"+id, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", id, w.Code)
		}
	}
}

func TestGetImportErrors(t *testing.T) {
	router, mockImport, _ := setupMockRouter(t)
	value := "someday"
	mockImport.RunErrorsFunc = func(ctx context.Context, id string) ([]models.RowError, error) {
		return []models.RowError{
			{Row: 4, Column: "due_date", Value: &value, Error: "Invalid date format: 'someday'", Kind: models.ErrorKindValidation},
			{Row: 9, Column: "description", Error: "Required field 'description' is empty", Kind: models.ErrorKindValidation},
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/run-1/errors", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	if response["error_count"].(float64) != 2 {
		t.Errorf("Expected 2 errors, got %v", response["error_count"])
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/imports/run-1/errors?format=csv", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if contentType := w.Header().Get("Content-Type"); contentType != "text/csv" {
		t.Errorf("Expected text/csv, got %s", contentType)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("row,column,value,error,kind")) {
		t.Error("CSV should contain header row")
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("4,due_date,someday,")) {
		t.Errorf("CSV should contain error data, got: %s", w.Body.String())
	}
}

func TestGetImportErrors_BadFormat(t *testing.T) {
	router, _, _ := setupMockRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/run-1/errors?format=xml", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

// --- Deliverables ---

func TestUpcomingEndpoint(t *testing.T) {
	env := setupTestRouter(t)
	_, d := env.seed(t)

	w := env.do(http.MethodGet, "/api/v1/deliverables/upcoming?days=14", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Deliverables []models.DeliverableView `json:"deliverables"`
		Total        int                      `json:"total"`
	}
	decode(t, w, &response)
	if response.Total != 1 || response.Deliverables[0].ID != d.ID {
		t.Fatalf("Expected the seeded deliverable, got %+v", response)
	}
	if response.Deliverables[0].DaysUntilDue != 10 || response.Deliverables[0].FrequencyDisplay != "Monthly" {
		t.Errorf("Unexpected annotations: %+v", response.Deliverables[0])
	}

	w = env.do(http.MethodGet, "/api/v1/deliverables/upcoming?days=5", nil)
	decode(t, w, &response)
	if response.Total != 0 {
		t.Errorf("Expected nothing within 5 days, got %d", response.Total)
	}
}

func TestUpcomingEndpoint_InvalidInput(t *testing.T) {
	env := setupTestRouter(t)

	for _, url := range []string{
		"/api/v1/deliverables/upcoming?days=abc",
		"/api/v1/deliverables/upcoming?days=0",
		"/api/v1/deliverables/upcoming?days=366",
		"/api/v1/deliverables/upcoming?project_id=not-a-uuid",
		"/api/v1/deliverables/upcoming?include_overdue=perhaps",
	} {
		w := env.do(http.MethodGet, url, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", url, w.Code)
		}
	}
}

func TestListEndpoint_InvalidFilter(t *testing.T) {
	env := setupTestRouter(t)

	for _, url := range []string{
		"/api/v1/deliverables?due_after=tomorrow",
		"/api/v1/deliverables?status=lost",
		"/api/v1/deliverables?frequency=weekly",
	} {
		w := env.do(http.MethodGet, url, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", url, w.Code)
		}
	}
}

func TestSummaryEndpoint(t *testing.T) {
	env := setupTestRouter(t)
	env.seed(t)

	w := env.do(http.MethodGet, "/api/v1/deliverables/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var summary models.DeliverableSummary
	decode(t, w, &summary)
	if summary.Total != 1 || summary.DueThisMonth != 1 || summary.Overdue != 0 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestCreateDeliverableEndpoint(t *testing.T) {
	env := setupTestRouter(t)
	p, _ := env.seed(t)

	body := `{"project_id":"` + p.ID + `","description":"Site visit","due_date":"2026-03-01","frequency":"q"}`
	w := env.do(http.MethodPost, "/api/v1/deliverables", strings.NewReader(body), "Content-Type", "application/json")
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var created models.DeliverableView
	decode(t, w, &created)
	if created.Frequency != models.FrequencyQuarterly || created.ProjectName != "Harbor Bridge" {
		t.Errorf("Unexpected deliverable: %+v", created)
	}

	w = env.do(http.MethodPost, "/api/v1/deliverables", strings.NewReader(body), "Content-Type", "application/json")
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for a duplicate, got %d", w.Code)
	}

	bad := `{"project_id":"` + p.ID + `","description":"Site visit","due_date":"2026-03-01","frequency":"weekly"}`
	w = env.do(http.MethodPost, "/api/v1/deliverables", strings.NewReader(bad), "Content-Type", "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a bad frequency, got %d", w.Code)
	}
}

func TestGetAndCompleteEndpoints(t *testing.T) {
	env := setupTestRouter(t)
	_, d := env.seed(t)

	w := env.do(http.MethodGet, "/api/v1/deliverables/not-a-uuid", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	w = env.do(http.MethodPost, "/api/v1/deliverables/"+d.ID+"/complete", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var completed models.DeliverableView
	decode(t, w, &completed)
	if completed.Status != models.StatusCompleted || completed.CompletedAt == nil {
		t.Errorf("Expected a completed deliverable, got %+v", completed)
	}

	w = env.do(http.MethodPost, "/api/v1/deliverables/"+uuid.NewString()+"/complete", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestUpdateDeliverableEndpoint(t *testing.T) {
	env := setupTestRouter(t)
	p, d := env.seed(t)
	due, _ := models.ParseDate("2026-03-01")
	other := &models.Deliverable{ID: uuid.NewString(), ProjectID: p.ID, Description: "Site visit",
		DueDate: due, Frequency: models.FrequencyQuarterly}
	env.store.Seed(nil, nil, other)
	url := "/api/v1/deliverables/" + d.ID

	body := `{"status":"in_progress","notes":"survey booked","due_date":"2026-02-24"}`
	w := env.do(http.MethodPut, url, strings.NewReader(body), "Content-Type", "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated models.DeliverableView
	decode(t, w, &updated)
	if updated.Status != models.StatusInProgress || updated.Notes != "survey booked" ||
		updated.DaysUntilDue != 14 || updated.Description != d.Description {
		t.Errorf("Unexpected update result: %+v", updated)
	}

	w = env.do(http.MethodPut, url, strings.NewReader(`{"status":"completed"}`), "Content-Type", "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var completed models.DeliverableView
	decode(t, w, &completed)
	if completed.CompletedAt == nil || !completed.CompletedAt.Equal(fixedNow) {
		t.Errorf("Expected completed_at %v, got %v", fixedNow, completed.CompletedAt)
	}

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"duplicate key", d.ID, `{"description":"Site visit","due_date":"2026-03-01","frequency":"q"}`, http.StatusConflict},
		{"unknown status", d.ID, `{"status":"archived"}`, http.StatusBadRequest},
		{"unknown frequency", d.ID, `{"frequency":"Weekly"}`, http.StatusBadRequest},
		{"empty description", d.ID, `{"description":""}`, http.StatusBadRequest},
		{"description too long", d.ID, `{"description":"` + strings.Repeat("x", 501) + `"}`, http.StatusBadRequest},
		{"malformed json", d.ID, `{"status":`, http.StatusBadRequest},
		{"unknown id", uuid.NewString(), `{"notes":"x"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPut, "/api/v1/deliverables/"+tt.id, strings.NewReader(tt.body), "Content-Type", "application/json")
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

// --- Export ---

func TestExportEndpoint_CSV(t *testing.T) {
	env := setupTestRouter(t)
	env.seed(t)

	w := env.do(http.MethodGet, "/api/v1/deliverables/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename=deliverables.csv" {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}
	if !strings.Contains(w.Body.String(), "Submit compliance report") {
		t.Errorf("Expected the seeded deliverable in the export, got %s", w.Body.String())
	}
}

func TestExportEndpoint_Validation(t *testing.T) {
	router, _, mockExport := setupMockRouter(t)

	tests := []struct {
		name           string
		url            string
		expectedStatus int
	}{
		{"unknown format", "/api/v1/deliverables/export?format=pdf", http.StatusBadRequest},
		{"bad date filter", "/api/v1/deliverables/export?due_before=soon", http.StatusBadRequest},
		{"ndjson", "/api/v1/deliverables/export?format=ndjson&project=harbor", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}

	if len(mockExport.Filters) != 1 || mockExport.Filters[0].ProjectName != "harbor" {
		t.Errorf("Expected one streamed export filtered by project, got %+v", mockExport.Filters)
	}
}

// --- Projects and managers ---

func TestProjectEndpoints(t *testing.T) {
	env := setupTestRouter(t)
	p, _ := env.seed(t)

	w := env.do(http.MethodGet, "/api/v1/projects/search?q=harb", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), p.ID) {
		t.Errorf("Expected search to find the project, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodGet, "/api/v1/projects/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an empty query, got %d", w.Code)
	}

	w = env.do(http.MethodGet, "/api/v1/projects/"+p.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var stats models.ProjectStats
	decode(t, w, &stats)
	if stats.TotalDeliverables != 1 || stats.PendingDeliverables != 1 {
		t.Errorf("Unexpected project stats: %+v", stats)
	}

	body := `{"name":"harbor bridge","manager_name":"Jane Doe"}`
	w = env.do(http.MethodPost, "/api/v1/projects", strings.NewReader(body), "Content-Type", "application/json")
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for an existing project, got %d", w.Code)
	}

	body = `{"name":"Ring Road","manager_name":"Sam Lee"}`
	w = env.do(http.MethodPost, "/api/v1/projects", strings.NewReader(body), "Content-Type", "application/json")
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(env.store.Managers()) != 2 {
		t.Errorf("Expected the new manager to be created, got %d managers", len(env.store.Managers()))
	}
}

func TestUpdateProjectEndpoint(t *testing.T) {
	env := setupTestRouter(t)
	p, _ := env.seed(t)
	url := "/api/v1/projects/" + p.ID

	w := env.do(http.MethodPut, url, strings.NewReader(`{"description":"Deck replacement"}`), "Content-Type", "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated models.Project
	decode(t, w, &updated)
	if updated.Description != "Deck replacement" || updated.ManagerID != p.ManagerID || updated.Name != "Harbor Bridge" {
		t.Errorf("Unexpected project: %+v", updated)
	}

	body := `{"name":"Ring Road","manager_name":"Sam Lee"}`
	if w := env.do(http.MethodPost, "/api/v1/projects", strings.NewReader(body), "Content-Type", "application/json"); w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"rename onto another project", p.ID, `{"name":"RING ROAD"}`, http.StatusConflict},
		{"manager id not a uuid", p.ID, `{"manager_id":"42"}`, http.StatusBadRequest},
		{"unknown manager", p.ID, `{"manager_id":"` + uuid.NewString() + `"}`, http.StatusBadRequest},
		{"unknown project", uuid.NewString(), `{}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPut, "/api/v1/projects/"+tt.id, strings.NewReader(tt.body), "Content-Type", "application/json")
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestUpdateManagerEndpoint(t *testing.T) {
	env := setupTestRouter(t)
	p, _ := env.seed(t)
	url := "/api/v1/managers/" + p.ManagerID

	w := env.do(http.MethodPut, url, strings.NewReader(`{"email":"Jane@Example.com"}`), "Content-Type", "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var m models.Manager
	decode(t, w, &m)
	if m.Email != "jane@example.com" || m.Name != "Jane Doe" {
		t.Errorf("Unexpected manager: %+v", m)
	}

	body := `{"name":"Sam Lee"}`
	if w := env.do(http.MethodPost, "/api/v1/managers", strings.NewReader(body), "Content-Type", "application/json"); w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"name taken", p.ManagerID, `{"name":"sam lee"}`, http.StatusConflict},
		{"bad email", p.ManagerID, `{"email":"nope"}`, http.StatusBadRequest},
		{"empty name", p.ManagerID, `{"name":""}`, http.StatusBadRequest},
		{"malformed id", "nope", `{}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPut, "/api/v1/managers/"+tt.id, strings.NewReader(tt.body), "Content-Type", "application/json")
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestManagerEndpoints(t *testing.T) {
	env := setupTestRouter(t)

	body := `{"name":"Sam Lee","email":"Sam@Example.com"}`
	w := env.do(http.MethodPost, "/api/v1/managers", strings.NewReader(body), "Content-Type", "application/json")
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var m models.Manager
	decode(t, w, &m)
	if m.Email != "sam@example.com" {
		t.Errorf("Expected a normalized email, got %q", m.Email)
	}

	w = env.do(http.MethodPost, "/api/v1/managers", strings.NewReader(body), "Content-Type", "application/json")
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}

	w = env.do(http.MethodPost, "/api/v1/managers", strings.NewReader(`{"name":"X","email":"nope"}`), "Content-Type", "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a bad email, got %d", w.Code)
	}

	w = env.do(http.MethodGet, "/api/v1/managers/"+m.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	w = env.do(http.MethodGet, "/api/v1/managers", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total":1`) {
		t.Errorf("Expected one manager, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Middleware ---

func TestCORS(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodOptions, "/api/v1/deliverables", nil, "Origin", "http://localhost:3000")
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Expected allowed origin, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "PUT") {
		t.Errorf("Expected PUT among allowed methods, got %q", got)
	}

	w = env.do(http.MethodGet, "/health", nil, "Origin", "http://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no CORS header for an unknown origin, got %q", got)
	}
}
