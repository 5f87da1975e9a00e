// Package rusle composes the factor layers into the soil-loss estimate and
// exposes the materializing operations (statistics, tiles, exports) over it.
package rusle

import (
	"context"
	"time"

	"rusle-platform/internal/datasets"
	"rusle-platform/internal/engine"
	"rusle-platform/internal/factors"
	"rusle-platform/internal/models"
	"rusle-platform/pkg/logging"
	"rusle-platform/pkg/metrics"
)

// Input carries the parameters of one RUSLE calculation. Custom factor layers
// override the derived ones when set; a custom LS layer replaces L and forces
// S to 1 so the product stays A = R*K*LS*C*P.
type Input struct {
	AOI              *models.AreaOfInterest
	Window           models.TemporalWindow
	DEMSource        datasets.DEMSource
	PixelSize        float64
	PracticeFallback float64

	CustomK  *engine.Expr
	CustomR  *engine.Expr
	CustomLS *engine.Expr
	CustomC  *engine.Expr
	CustomP  *engine.Expr
}

// Calculator builds soil-loss expressions and materializes them through an
// engine session. Expression building is pure and safe to run concurrently;
// the session carries all remote state.
type Calculator struct {
	session         *engine.Session
	logger          *logging.StructuredLogger
	metrics         *metrics.Collector
	statsMaxPixels  int64
	exportMaxPixels int64
}

// NewCalculator creates a calculator bound to an engine session.
func NewCalculator(session *engine.Session, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, statsMaxPixels, exportMaxPixels int64) *Calculator {
	return &Calculator{
		session:         session,
		logger:          logger,
		metrics:         metricsCollector,
		statsMaxPixels:  statsMaxPixels,
		exportMaxPixels: exportMaxPixels,
	}
}

// Calculate performs the full RUSLE composition:
//
//	soil_loss = R * K * L * S * C * P * pixel_area_ha
//
// The result and every factor are clipped to the AOI. Building the expression
// graph is deterministic: identical inputs produce structurally identical
// graphs, and nothing is materialized here.
func (c *Calculator) Calculate(ctx context.Context, in Input) (*models.SoilLossResult, error) {
	start := time.Now()
	aoi := in.AOI.Geometry

	c.logger.Info(ctx, "[RUSLE_CALC_START] Starting RUSLE calculation", logging.Fields{
		"date_from":  in.Window.From,
		"date_to":    in.Window.To,
		"dem_source": string(in.DEMSource),
		"area_km2":   in.AOI.AreaKm2,
	})

	kFactor := in.CustomK
	if kFactor == nil {
		kFactor = factors.K(aoi)
	}

	rFactor := in.CustomR
	if rFactor == nil {
		rFactor = factors.R(aoi, in.Window)
	}

	lFactor, sFactor, err := factors.LS(aoi, in.DEMSource, in.PixelSize)
	if err != nil {
		c.metrics.CalculationsTotal.WithLabelValues("failed").Inc()
		return nil, &models.ValidationError{
			Field:   "dem_source",
			Value:   string(in.DEMSource),
			Message: err.Error(),
		}
	}
	if in.CustomLS != nil {
		lFactor = in.CustomLS
		sFactor = engine.Constant(1)
	}

	cFactor := in.CustomC
	if cFactor == nil {
		cFactor = factors.C(aoi, in.Window)
	}

	pFactor := in.CustomP
	if pFactor == nil {
		fallback := in.PracticeFallback
		if fallback == 0 {
			fallback = factors.DefaultPracticeFallback
		}
		pFactor = factors.P(aoi, fallback)
	}

	pixelAreaHa := in.PixelSize * in.PixelSize / 10000

	soilLoss := rFactor.
		Multiply(kFactor).
		Multiply(lFactor).
		Multiply(sFactor).
		Multiply(cFactor).
		Multiply(pFactor).
		Multiply(engine.Constant(pixelAreaHa)).
		Rename("soil_loss").
		Unmask(0).
		Clip(aoi)

	// The builders already clip; re-clipping keeps downstream visualization
	// consistent even for custom-supplied factor layers.
	factorSet := models.FactorSet{
		R: rFactor.Clip(aoi),
		K: kFactor.Clip(aoi),
		L: lFactor.Clip(aoi),
		S: sFactor.Clip(aoi),
		C: cFactor.Clip(aoi),
		P: pFactor.Clip(aoi),
	}

	duration := time.Since(start)
	c.metrics.CalculationDuration.Observe(duration.Seconds())
	c.metrics.CalculationsTotal.WithLabelValues("completed").Inc()

	c.logger.Info(ctx, "[RUSLE_CALC_COMPLETE] RUSLE calculation completed", logging.Fields{
		"duration_ms": duration.Milliseconds(),
	})

	return &models.SoilLossResult{
		SoilLoss: soilLoss,
		Factors:  factorSet,
		Window:   in.Window,
		Duration: duration,
	}, nil
}

// statisticsReducers are the descriptive statistics requested per reduction.
var statisticsReducers = []string{"mean", "min", "max", "stdDev"}

// Statistics reduces a layer over the AOI at the given scale. Requests whose
// estimated pixel count exceeds the configured budget fail with a
// *engine.LimitError before any remote work is paid for; the remote engine
// enforces the same ceiling on its side. Callers choose whether to retry with
// a coarser scale.
func (c *Calculator) Statistics(ctx context.Context, layer *engine.Expr, aoi *models.AreaOfInterest, scale int) (models.StatisticsReport, error) {
	timer := c.metrics.NewTimer(c.metrics.StatisticsDuration)
	defer timer.ObserveDuration()

	estimated := int64(aoi.AreaKm2 * 1e6 / float64(scale*scale))
	if estimated > c.statsMaxPixels {
		return nil, &engine.LimitError{
			MaxPixels: c.statsMaxPixels,
			Estimated: estimated,
			Scale:     scale,
		}
	}

	values, err := c.session.ReduceRegion(ctx, layer, aoi.Geometry, statisticsReducers, scale, c.statsMaxPixels)
	if err != nil {
		return nil, err
	}

	return models.StatisticsReport(values), nil
}

// tileReprojectThreshold is the scale in meters above which layers are
// resampled before tiling. Coarsening first keeps tile computation inside the
// remote engine's limits for large areas; the resolution loss is deliberate.
const tileReprojectThreshold = 100

// TileURL returns a map tile URL template for the layer.
func (c *Calculator) TileURL(ctx context.Context, layer *engine.Expr, vis engine.VisParams, scale int) (string, error) {
	if scale > tileReprojectThreshold {
		layer = layer.Reproject("EPSG:4326", float64(scale))
	}

	name := layer.Name()
	if name == "" {
		name = "layer"
	}
	c.metrics.TileRequestsTotal.WithLabelValues(name).Inc()

	return c.session.MapTiles(ctx, layer, vis)
}

// ExportToDrive submits an asynchronous export of the layer to remote storage
// and returns the task handle immediately. Completion is the remote engine's
// concern; nothing here polls.
func (c *Calculator) ExportToDrive(ctx context.Context, layer *engine.Expr, description string, aoi *models.AreaOfInterest, scale int, folder string) (*models.ExportTask, error) {
	taskID, err := c.session.StartExport(ctx, layer, description, folder, aoi.Geometry, scale, c.exportMaxPixels)
	if err != nil {
		c.metrics.ExportsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	c.metrics.ExportsTotal.WithLabelValues("submitted").Inc()

	return &models.ExportTask{
		TaskID:      taskID,
		Description: description,
		Folder:      folder,
		Scale:       scale,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
