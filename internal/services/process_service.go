package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rusle-platform/internal/cache"
	"rusle-platform/internal/config"
	"rusle-platform/internal/datasets"
	"rusle-platform/internal/engine"
	"rusle-platform/internal/models"
	"rusle-platform/internal/repository"
	"rusle-platform/internal/rusle"
	"rusle-platform/pkg/logging"
	"rusle-platform/pkg/metrics"
)

// factorOrder fixes the iteration order of factor layers in responses.
var factorOrder = []string{"R", "K", "L", "S", "C", "P"}

// ProcessRequest is a request for a RUSLE calculation. Exactly one of
// Geometry (inline GeoJSON polygon/multipolygon in WGS84) or AdminRegion (a
// FAO GAUL boundary name) selects the area.
type ProcessRequest struct {
	Geometry    *engine.Geometry `json:"geometry,omitempty"`
	AdminRegion string           `json:"admin_region,omitempty"`
	AdminLevel  *int             `json:"admin_level,omitempty"` // 0=country, 1=region, 2=province; default 1
	DateFrom    string           `json:"date_from"`
	DateTo      string           `json:"date_to"`
	DEMSource   string           `json:"dem_source,omitempty"`   // SRTM (default) or MERIT
	ExportScale int              `json:"export_scale,omitempty"` // meters; defaults from config
}

// ProcessResponse summarizes a completed calculation.
type ProcessResponse struct {
	JobID           string                      `json:"job_id"`
	Status          string                      `json:"status"`
	Message         string                      `json:"message"`
	ComputationTime float64                     `json:"computation_time"`
	Factors         map[string]rusle.FactorInfo `json:"factors"`
	SoilLossTileURL string                      `json:"soil_loss_tile_url"`
	AreaKm2         float64                     `json:"area_km2"`
	ExportScaleUsed int                         `json:"export_scale_used"`
	ScaleAdjusted   bool                        `json:"scale_adjusted"`
}

// MapLayer is one tile layer in a map configuration.
type MapLayer struct {
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	URL     string  `json:"url"`
	Visible bool    `json:"visible"`
	Opacity float64 `json:"opacity"`
}

// MapConfig centers a web map over the AOI and lists its tile layers.
type MapConfig struct {
	CenterLat float64    `json:"center_lat"`
	CenterLng float64    `json:"center_lng"`
	Zoom      int        `json:"zoom"`
	Layers    []MapLayer `json:"layers"`
}

// ProcessService orchestrates RUSLE calculations: request validation, AOI
// resolution, scale selection, calculation, tiling, caching, and persistence.
type ProcessService struct {
	session    *engine.Session
	calculator *rusle.Calculator
	store      cache.ResultStore
	repo       repository.JobRepository
	cfg        config.ProcessingConfig
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewProcessService creates a new process service
func NewProcessService(
	session *engine.Session,
	calculator *rusle.Calculator,
	store cache.ResultStore,
	repo repository.JobRepository,
	cfg config.ProcessingConfig,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ProcessService {
	return &ProcessService{
		session:    session,
		calculator: calculator,
		store:      store,
		repo:       repo,
		cfg:        cfg,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// Process runs a full RUSLE calculation and returns tile URLs for every layer.
func (s *ProcessService) Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error) {
	window := models.TemporalWindow{From: req.DateFrom, To: req.DateTo}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	if req.Geometry == nil && req.AdminRegion == "" {
		return nil, &models.ValidationError{
			Field:   "geometry",
			Message: "either geometry or admin_region must be provided",
		}
	}

	adminLevel := 1
	if req.AdminLevel != nil {
		adminLevel = *req.AdminLevel
	}
	if adminLevel < 0 || adminLevel > 2 {
		return nil, &models.ValidationError{
			Field:   "admin_level",
			Value:   fmt.Sprintf("%d", adminLevel),
			Message: "admin_level must be 0, 1, or 2",
		}
	}

	requestedScale := req.ExportScale
	if requestedScale == 0 {
		requestedScale = s.cfg.DefaultScale
	}
	if requestedScale < 10 || requestedScale > 1000 {
		return nil, &models.ValidationError{
			Field:   "export_scale",
			Value:   fmt.Sprintf("%d", requestedScale),
			Message: "export_scale must be between 10 and 1000 meters",
		}
	}

	demSource := datasets.DEMSource(req.DEMSource)
	if demSource == "" {
		demSource = datasets.SRTM
	}

	aoi, err := s.resolveAOI(ctx, req, adminLevel)
	if err != nil {
		return nil, err
	}

	if aoi.AreaKm2 > s.cfg.MaxAOIAreaKm2 {
		return nil, &models.ValidationError{
			Field:   "geometry",
			Value:   fmt.Sprintf("%.0f km²", aoi.AreaKm2),
			Message: fmt.Sprintf("area exceeds the maximum of %.0f km²", s.cfg.MaxAOIAreaKm2),
		}
	}
	s.metrics.AOIAreaKm2.Observe(aoi.AreaKm2)

	decision := rusle.SelectScale(requestedScale, aoi.AreaKm2, adminLevel)
	if decision.Adjusted {
		s.metrics.ScaleAdjustedTotal.Inc()
	}

	jobID := uuid.NewString()
	ctx = logging.WithJobID(ctx, jobID)

	s.logger.Info(ctx, "[PROCESS_START] Processing RUSLE request", logging.Fields{
		"area_km2":        aoi.AreaKm2,
		"requested_scale": decision.Requested,
		"minimum_scale":   decision.Minimum,
		"effective_scale": decision.Effective,
	})

	result, err := s.calculator.Calculate(ctx, rusle.Input{
		AOI:              aoi,
		Window:           window,
		DEMSource:        demSource,
		PixelSize:        s.cfg.PixelSize,
		PracticeFallback: s.cfg.PracticeFallback,
	})
	if err != nil {
		return nil, err
	}

	soilLossTileURL, err := s.calculator.TileURL(ctx, result.SoilLoss, rusle.SoilLossVis, decision.Effective)
	if err != nil {
		return nil, err
	}

	factorInfos := make(map[string]rusle.FactorInfo, len(factorOrder))
	for _, letter := range factorOrder {
		preset := rusle.FactorPresets[letter]
		layer := factorLayer(result.Factors, letter)

		tileURL, err := s.calculator.TileURL(ctx, layer, preset.Vis, decision.Effective)
		if err != nil {
			return nil, err
		}

		info := preset.Info
		info.TileURL = tileURL
		factorInfos[letter] = info
	}

	s.store.Put(jobID, cache.Entry{
		Result: result,
		AOI:    aoi,
		Scale:  decision,
	})
	s.metrics.CachedResults.Set(float64(s.store.Len()))

	job := &models.Job{
		JobID:          jobID,
		Status:         models.JobStatusCompleted,
		AdminLevel:     adminLevel,
		DateFrom:       window.From,
		DateTo:         window.To,
		DEMSource:      string(demSource),
		RequestedScale: decision.Requested,
		EffectiveScale: decision.Effective,
		ScaleAdjusted:  decision.Adjusted,
		AreaKm2:        aoi.AreaKm2,
		ComputationMS:  result.Duration.Milliseconds(),
		CreatedAt:      time.Now().UTC(),
	}
	if req.AdminRegion != "" {
		region := req.AdminRegion
		job.AdminRegion = &region
	}

	// The in-memory entry is authoritative for follow-up calls; a failed
	// metadata write is logged but does not fail the request.
	if err := s.repo.CreateJob(ctx, job); err != nil {
		s.logger.Error(ctx, "[PROCESS_PERSIST_ERROR] Failed to persist job metadata", logging.Fields{}, err)
	}

	message := "RUSLE calculation completed successfully"
	if decision.Adjusted {
		message += fmt.Sprintf(
			" (export scale auto-adjusted from %dm to %dm for large area)",
			decision.Requested, decision.Effective)
	}

	return &ProcessResponse{
		JobID:           jobID,
		Status:          models.JobStatusCompleted,
		Message:         message,
		ComputationTime: result.Duration.Seconds(),
		Factors:         factorInfos,
		SoilLossTileURL: soilLossTileURL,
		AreaKm2:         aoi.AreaKm2,
		ExportScaleUsed: decision.Effective,
		ScaleAdjusted:   decision.Adjusted,
	}, nil
}

// resolveAOI turns the request's area selector into an AreaOfInterest.
func (s *ProcessService) resolveAOI(ctx context.Context, req ProcessRequest, adminLevel int) (*models.AreaOfInterest, error) {
	if req.Geometry != nil {
		return models.NewAreaOfInterest(req.Geometry)
	}

	dataset, nameField := datasets.AdminCollection(adminLevel)
	geometry, count, err := s.session.FilterFeatures(ctx, dataset, nameField, req.AdminRegion)
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "[PROCESS_ADMIN_RESOLVED] Administrative region resolved", logging.Fields{
		"admin_region":  req.AdminRegion,
		"admin_level":   adminLevel,
		"feature_count": count,
	})

	return models.NewAreaOfInterest(geometry)
}

// MapConfig builds the layer set for visualizing a completed job.
func (s *ProcessService) MapConfig(ctx context.Context, jobID string) (*MapConfig, error) {
	entry, ok := s.store.Get(jobID)
	if !ok {
		return nil, &repository.NotFoundError{Resource: "job", ID: jobID}
	}

	soilLossURL, err := s.calculator.TileURL(ctx, entry.Result.SoilLoss, rusle.SoilLossVis, entry.Scale.Effective)
	if err != nil {
		return nil, err
	}

	layers := []MapLayer{
		{
			Name:    "Soil Loss (ton/ha/yr)",
			Type:    "tile",
			URL:     soilLossURL,
			Visible: true,
			Opacity: 0.8,
		},
	}

	for _, letter := range factorOrder {
		preset := rusle.FactorPresets[letter]
		layer := factorLayer(entry.Result.Factors, letter)

		tileURL, err := s.calculator.TileURL(ctx, layer, preset.Vis, entry.Scale.Effective)
		if err != nil {
			return nil, err
		}

		layers = append(layers, MapLayer{
			Name:    fmt.Sprintf("%s Factor (%s)", letter, preset.Info.Name),
			Type:    "tile",
			URL:     tileURL,
			Visible: false,
			Opacity: 0.8,
		})
	}

	return &MapConfig{
		CenterLat: entry.AOI.CenterLat,
		CenterLng: entry.AOI.CenterLng,
		Zoom:      9,
		Layers:    layers,
	}, nil
}

// ListJobs returns recent job metadata from persistence.
func (s *ProcessService) ListJobs(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	return s.repo.ListJobs(ctx, limit, offset)
}

func factorLayer(set models.FactorSet, letter string) *engine.Expr {
	switch letter {
	case "R":
		return set.R
	case "K":
		return set.K
	case "L":
		return set.L
	case "S":
		return set.S
	case "C":
		return set.C
	default:
		return set.P
	}
}
