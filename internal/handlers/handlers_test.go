package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"rusle-platform/internal/cache"
	"rusle-platform/internal/config"
	"rusle-platform/internal/models"
	"rusle-platform/internal/repository"
	"rusle-platform/internal/rusle"
	"rusle-platform/internal/services"
	"rusle-platform/pkg/logging"
	"rusle-platform/pkg/metrics"
)

var (
	testLogger  = logging.NewStructuredLogger("handlers-test", "test", logging.InfoLevel)
	testMetrics = metrics.NewCollector("handlers_test")
)

// stubRepo satisfies JobRepository without a database.
type stubRepo struct{}

func (stubRepo) CreateJob(ctx context.Context, job *models.Job) error { return nil }
func (stubRepo) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return nil, &repository.NotFoundError{Resource: "job", ID: jobID}
}
func (stubRepo) ListJobs(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	return nil, nil
}
func (stubRepo) CreateExportTask(ctx context.Context, task *models.ExportTask) error { return nil }
func (stubRepo) ListExportTasks(ctx context.Context, jobID string) ([]*models.ExportTask, error) {
	return nil, nil
}
func (stubRepo) HealthCheck(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	cfg := config.ProcessingConfig{
		DefaultScale:     90,
		PixelSize:        30,
		MaxAOIAreaKm2:    50000,
		StatsMaxPixels:   1e9,
		ExportMaxPixels:  1e13,
		PracticeFallback: 1.0,
		ExportFolder:     "RUSLE_exports",
	}

	store := cache.NewMemoryStore()
	repo := stubRepo{}
	calculator := rusle.NewCalculator(nil, testLogger, testMetrics, cfg.StatsMaxPixels, cfg.ExportMaxPixels)

	processService := services.NewProcessService(nil, calculator, store, repo, cfg, testLogger, testMetrics)
	statsService := services.NewStatisticsService(calculator, store, testLogger)
	exportService := services.NewExportService(calculator, store, repo, cfg, testLogger)

	processHandler := NewProcessHandler(processService, statsService, exportService, repo, testLogger, testMetrics)
	visualizeHandler := NewVisualizeHandler(processService, testLogger, testMetrics)

	router := mux.NewRouter()
	processHandler.RegisterRoutes(router)
	visualizeHandler.RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestProcessEndpointValidation(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "malformed JSON",
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no area selector",
			body:       `{"date_from":"2023-01-01","date_to":"2023-12-31"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "reversed window",
			body:       `{"admin_region":"Tuscany","date_from":"2023-12-31","date_to":"2023-01-01"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "admin level out of range",
			body:       `{"admin_region":"Tuscany","admin_level":5,"date_from":"2023-01-01","date_to":"2023-12-31"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := doRequest(t, router, http.MethodPost, "/api/process", tt.body)

			if recorder.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", recorder.Code, tt.wantStatus, recorder.Body.String())
			}

			var errResp ErrorResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("response is not an ErrorResponse: %v", err)
			}
			if errResp.Code != tt.wantStatus {
				t.Errorf("error code = %d, want %d", errResp.Code, tt.wantStatus)
			}
			if errResp.Message == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestUnknownJobEndpoints(t *testing.T) {
	router := newTestRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/process/no-such-job/statistics"},
		{http.MethodPost, "/api/process/no-such-job/export"},
		{http.MethodGet, "/api/visualize/no-such-job"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			recorder := doRequest(t, router, p.method, p.path, "")
			if recorder.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404; body: %s", recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestLegendEndpoint(t *testing.T) {
	router := newTestRouter(t)

	recorder := doRequest(t, router, http.MethodGet, "/api/legend", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	var resp struct {
		Title   string              `json:"title"`
		Classes []rusle.LegendClass `json:"classes"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode legend: %v", err)
	}

	if len(resp.Classes) != 7 {
		t.Errorf("legend has %d classes, want 7", len(resp.Classes))
	}
	if resp.Classes[0].Label != "Very Low" || resp.Classes[6].Label != "Very Severe" {
		t.Errorf("legend labels = %q..%q, want Very Low..Very Severe",
			resp.Classes[0].Label, resp.Classes[6].Label)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	recorder := doRequest(t, router, http.MethodGet, "/health", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	var status map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if status["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", status["status"])
	}
}
