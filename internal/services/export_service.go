package services

import (
	"context"
	"fmt"

	"rusle-platform/internal/cache"
	"rusle-platform/internal/config"
	"rusle-platform/internal/models"
	"rusle-platform/internal/repository"
	"rusle-platform/internal/rusle"
	"rusle-platform/pkg/logging"
)

// ExportService submits asynchronous GeoTIFF exports of cached soil-loss
// layers and records the task handles.
type ExportService struct {
	calculator *rusle.Calculator
	store      cache.ResultStore
	repo       repository.JobRepository
	cfg        config.ProcessingConfig
	logger     *logging.StructuredLogger
}

// NewExportService creates a new export service
func NewExportService(calculator *rusle.Calculator, store cache.ResultStore, repo repository.JobRepository, cfg config.ProcessingConfig, logger *logging.StructuredLogger) *ExportService {
	return &ExportService{
		calculator: calculator,
		store:      store,
		repo:       repo,
		cfg:        cfg,
		logger:     logger,
	}
}

// Export submits the job's soil-loss layer for export at the job's effective
// scale. The call returns as soon as the remote engine accepts the task;
// completion is tracked on the engine side, not here.
func (s *ExportService) Export(ctx context.Context, jobID, folder string) (*models.ExportTask, error) {
	entry, ok := s.store.Get(jobID)
	if !ok {
		return nil, &repository.NotFoundError{Resource: "job", ID: jobID}
	}

	ctx = logging.WithJobID(ctx, jobID)

	if folder == "" {
		folder = s.cfg.ExportFolder
	}
	description := fmt.Sprintf("RUSLE_soil_loss_%s_to_%s", entry.Result.Window.From, entry.Result.Window.To)

	s.logger.Info(ctx, "[EXPORT_START] Submitting soil loss export", logging.Fields{
		"description": description,
		"folder":      folder,
		"scale":       entry.Scale.Effective,
	})

	task, err := s.calculator.ExportToDrive(ctx, entry.Result.SoilLoss, description, entry.AOI, entry.Scale.Effective, folder)
	if err != nil {
		return nil, err
	}
	task.JobID = jobID

	// The export is already running remotely; a failed metadata write is
	// logged but does not invalidate the submission.
	if err := s.repo.CreateExportTask(ctx, task); err != nil {
		s.logger.Error(ctx, "[EXPORT_PERSIST_ERROR] Failed to persist export task", logging.Fields{
			"task_id": task.TaskID,
		}, err)
	}

	s.logger.Info(ctx, "[EXPORT_SUBMITTED] Export task submitted", logging.Fields{
		"task_id": task.TaskID,
	})

	return task, nil
}

// ListExports returns the recorded export submissions for a job.
func (s *ExportService) ListExports(ctx context.Context, jobID string) ([]*models.ExportTask, error) {
	return s.repo.ListExportTasks(ctx, jobID)
}
