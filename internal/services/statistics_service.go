package services

import (
	"context"

	"rusle-platform/internal/cache"
	"rusle-platform/internal/models"
	"rusle-platform/internal/repository"
	"rusle-platform/internal/rusle"
	"rusle-platform/pkg/logging"
)

// StatisticsService reduces cached soil-loss layers to descriptive statistics.
type StatisticsService struct {
	calculator *rusle.Calculator
	store      cache.ResultStore
	logger     *logging.StructuredLogger
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(calculator *rusle.Calculator, store cache.ResultStore, logger *logging.StructuredLogger) *StatisticsService {
	return &StatisticsService{
		calculator: calculator,
		store:      store,
		logger:     logger,
	}
}

// Statistics computes mean, min, max, and stdDev of a job's soil-loss layer
// over its AOI at the job's effective scale. Statistics are recomputed on
// every call; only the lazy layers are cached.
func (s *StatisticsService) Statistics(ctx context.Context, jobID string) (models.StatisticsReport, error) {
	entry, ok := s.store.Get(jobID)
	if !ok {
		return nil, &repository.NotFoundError{Resource: "job", ID: jobID}
	}

	ctx = logging.WithJobID(ctx, jobID)

	s.logger.Info(ctx, "[STATS_START] Computing soil loss statistics", logging.Fields{
		"scale":    entry.Scale.Effective,
		"area_km2": entry.AOI.AreaKm2,
	})

	report, err := s.calculator.Statistics(ctx, entry.Result.SoilLoss, entry.AOI, entry.Scale.Effective)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[STATS_COMPLETE] Statistics computed", logging.Fields{
		"statistics": len(report),
	})

	return report, nil
}
