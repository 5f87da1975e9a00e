package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rusle-platform/internal/cache"
	"rusle-platform/internal/config"
	"rusle-platform/internal/engine"
	"rusle-platform/internal/models"
	"rusle-platform/internal/repository"
	"rusle-platform/internal/rusle"
	"rusle-platform/pkg/logging"
	"rusle-platform/pkg/metrics"
)

var (
	testLogger  = logging.NewStructuredLogger("services-test", "test", logging.InfoLevel)
	testMetrics = metrics.NewCollector("services_test")
)

// fakeJobRepo is an in-memory JobRepository for service tests.
type fakeJobRepo struct {
	mu      sync.Mutex
	jobs    map[string]*models.Job
	exports []*models.ExportTask
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*models.Job)}
}

func (r *fakeJobRepo) CreateJob(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.JobID] = job
	return nil
}

func (r *fakeJobRepo) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "job", ID: jobID}
	}
	return job, nil
}

func (r *fakeJobRepo) ListJobs(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]*models.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *fakeJobRepo) CreateExportTask(ctx context.Context, task *models.ExportTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports = append(r.exports, task)
	return nil
}

func (r *fakeJobRepo) ListExportTasks(ctx context.Context, jobID string) ([]*models.ExportTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var tasks []*models.ExportTask
	for _, task := range r.exports {
		if task.JobID == jobID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (r *fakeJobRepo) HealthCheck(ctx context.Context) error { return nil }

// fakeEngine serves the raster engine endpoints the services touch.
func fakeEngine(t *testing.T) *engine.Session {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/maps"):
			w.Write([]byte(`{"tileUrl":"https://tiles.example.com/{z}/{x}/{y}"}`))
		case strings.HasSuffix(r.URL.Path, "/value:compute"):
			w.Write([]byte(`{"values":{"mean":4.2,"min":0,"max":51.7,"stdDev":3.1}}`))
		case strings.HasSuffix(r.URL.Path, "/image:export"):
			w.Write([]byte(`{"taskId":"TASK42"}`))
		case strings.HasSuffix(r.URL.Path, "/table:compute"):
			var req struct {
				Filter struct {
					Contains string `json:"contains"`
				} `json:"filter"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			if req.Filter.Contains == "Nowhere" {
				w.Write([]byte(`{"featureCount":0}`))
				return
			}
			w.Write([]byte(`{"geometry":{"type":"Polygon","coordinates":[[[10.0,45.0],[10.5,45.0],[10.5,45.5],[10.0,45.5],[10.0,45.0]]]},"featureCount":1}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	return engine.NewSession(engine.Config{
		BaseURL: server.URL,
		Project: "test-project",
	}, testLogger, testMetrics)
}

func testProcessingConfig() config.ProcessingConfig {
	return config.ProcessingConfig{
		DefaultScale:     90,
		PixelSize:        30,
		MaxAOIAreaKm2:    50000,
		StatsMaxPixels:   1e9,
		ExportMaxPixels:  1e13,
		PracticeFallback: 1.0,
		ExportFolder:     "RUSLE_exports",
	}
}

type testEnv struct {
	process *ProcessService
	stats   *StatisticsService
	export  *ExportService
	store   cache.ResultStore
	repo    *fakeJobRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	session := fakeEngine(t)
	cfg := testProcessingConfig()
	store := cache.NewMemoryStore()
	repo := newFakeJobRepo()
	calculator := rusle.NewCalculator(session, testLogger, testMetrics, cfg.StatsMaxPixels, cfg.ExportMaxPixels)

	return &testEnv{
		process: NewProcessService(session, calculator, store, repo, cfg, testLogger, testMetrics),
		stats:   NewStatisticsService(calculator, store, testLogger),
		export:  NewExportService(calculator, store, repo, cfg, testLogger),
		store:   store,
		repo:    repo,
	}
}

func inlineGeometryRequest() ProcessRequest {
	return ProcessRequest{
		Geometry: &engine.Geometry{
			Type:        "Polygon",
			Coordinates: json.RawMessage(`[[[10.0,45.0],[10.5,45.0],[10.5,45.5],[10.0,45.5],[10.0,45.0]]]`),
		},
		DateFrom:    "2023-01-01",
		DateTo:      "2023-12-31",
		ExportScale: 30,
	}
}

func TestProcessService_Process(t *testing.T) {
	t.Run("inline geometry", func(t *testing.T) {
		env := newTestEnv(t)

		resp, err := env.process.Process(context.Background(), inlineGeometryRequest())
		require.NoError(t, err)

		assert.NotEmpty(t, resp.JobID)
		assert.Equal(t, models.JobStatusCompleted, resp.Status)
		assert.NotEmpty(t, resp.SoilLossTileURL)
		assert.Len(t, resp.Factors, 6)
		for _, letter := range []string{"R", "K", "L", "S", "C", "P"} {
			assert.NotEmpty(t, resp.Factors[letter].TileURL, "factor %s missing tile URL", letter)
		}

		// ~2200 km² at the default region level coarsens 30m to 90m.
		assert.Equal(t, 90, resp.ExportScaleUsed)
		assert.True(t, resp.ScaleAdjusted)
		assert.Greater(t, resp.AreaKm2, 1000.0)

		// Result is cached and the job row persisted.
		_, ok := env.store.Get(resp.JobID)
		assert.True(t, ok)
		job, err := env.repo.GetJob(context.Background(), resp.JobID)
		require.NoError(t, err)
		assert.Equal(t, 90, job.EffectiveScale)
		assert.Equal(t, "SRTM", job.DEMSource)
	})

	t.Run("admin region resolves through the engine", func(t *testing.T) {
		env := newTestEnv(t)

		level := 1
		resp, err := env.process.Process(context.Background(), ProcessRequest{
			AdminRegion: "Tuscany",
			AdminLevel:  &level,
			DateFrom:    "2023-01-01",
			DateTo:      "2023-12-31",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.JobID)

		job, err := env.repo.GetJob(context.Background(), resp.JobID)
		require.NoError(t, err)
		require.NotNil(t, job.AdminRegion)
		assert.Equal(t, "Tuscany", *job.AdminRegion)
	})

	t.Run("unknown admin region", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.process.Process(context.Background(), ProcessRequest{
			AdminRegion: "Nowhere",
			DateFrom:    "2023-01-01",
			DateTo:      "2023-12-31",
		})
		require.Error(t, err)

		var notFound *engine.NotFoundError
		assert.True(t, errors.As(err, &notFound))
	})

	t.Run("validation failures", func(t *testing.T) {
		env := newTestEnv(t)

		tests := []struct {
			name   string
			mutate func(*ProcessRequest)
		}{
			{"no area selector", func(r *ProcessRequest) { r.Geometry = nil }},
			{"reversed window", func(r *ProcessRequest) { r.DateFrom, r.DateTo = r.DateTo, r.DateFrom }},
			{"malformed date", func(r *ProcessRequest) { r.DateFrom = "yesterday" }},
			{"admin level out of range", func(r *ProcessRequest) { lvl := 3; r.AdminLevel = &lvl }},
			{"scale too fine", func(r *ProcessRequest) { r.ExportScale = 5 }},
			{"scale too coarse", func(r *ProcessRequest) { r.ExportScale = 5000 }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := inlineGeometryRequest()
				tt.mutate(&req)

				_, err := env.process.Process(context.Background(), req)
				require.Error(t, err)

				var validationErr *models.ValidationError
				assert.True(t, errors.As(err, &validationErr), "error type = %T", err)
			})
		}
	})

	t.Run("oversized area is rejected", func(t *testing.T) {
		env := newTestEnv(t)

		req := inlineGeometryRequest()
		req.Geometry = &engine.Geometry{
			Type:        "Polygon",
			Coordinates: json.RawMessage(`[[[0.0,0.0],[20.0,0.0],[20.0,20.0],[0.0,20.0],[0.0,0.0]]]`),
		}

		_, err := env.process.Process(context.Background(), req)
		require.Error(t, err)

		var validationErr *models.ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "geometry", validationErr.Field)
	})
}

func TestProcessService_MapConfig(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.process.Process(context.Background(), inlineGeometryRequest())
	require.NoError(t, err)

	cfg, err := env.process.MapConfig(context.Background(), resp.JobID)
	require.NoError(t, err)

	assert.Len(t, cfg.Layers, 7)
	assert.True(t, cfg.Layers[0].Visible, "soil loss layer should be visible by default")
	for _, layer := range cfg.Layers[1:] {
		assert.False(t, layer.Visible, "factor layer %q should start hidden", layer.Name)
	}
	assert.InDelta(t, 10.25, cfg.CenterLng, 1e-9)
	assert.InDelta(t, 45.25, cfg.CenterLat, 1e-9)

	t.Run("unknown job", func(t *testing.T) {
		_, err := env.process.MapConfig(context.Background(), "no-such-job")
		var notFound *repository.NotFoundError
		assert.True(t, errors.As(err, &notFound))
	})
}

func TestStatisticsService(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.process.Process(context.Background(), inlineGeometryRequest())
	require.NoError(t, err)

	t.Run("reduces the cached layer", func(t *testing.T) {
		report, err := env.stats.Statistics(context.Background(), resp.JobID)
		require.NoError(t, err)

		assert.Equal(t, 4.2, report["mean"])
		assert.Equal(t, 51.7, report["max"])
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := env.stats.Statistics(context.Background(), "no-such-job")
		require.Error(t, err)

		var notFound *repository.NotFoundError
		assert.True(t, errors.As(err, &notFound))
	})
}

func TestExportService(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.process.Process(context.Background(), inlineGeometryRequest())
	require.NoError(t, err)

	t.Run("submits and records the task", func(t *testing.T) {
		task, err := env.export.Export(context.Background(), resp.JobID, "")
		require.NoError(t, err)

		assert.Equal(t, "TASK42", task.TaskID)
		assert.Equal(t, resp.JobID, task.JobID)
		assert.Equal(t, "RUSLE_exports", task.Folder)
		assert.Equal(t, "RUSLE_soil_loss_2023-01-01_to_2023-12-31", task.Description)
		assert.Equal(t, resp.ExportScaleUsed, task.Scale)

		recorded, err := env.export.ListExports(context.Background(), resp.JobID)
		require.NoError(t, err)
		require.Len(t, recorded, 1)
		assert.Equal(t, "TASK42", recorded[0].TaskID)
	})

	t.Run("custom folder", func(t *testing.T) {
		task, err := env.export.Export(context.Background(), resp.JobID, "MyFolder")
		require.NoError(t, err)
		assert.Equal(t, "MyFolder", task.Folder)
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := env.export.Export(context.Background(), "no-such-job", "")
		require.Error(t, err)

		var notFound *repository.NotFoundError
		assert.True(t, errors.As(err, &notFound))
	})
}
