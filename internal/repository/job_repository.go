package repository

import (
	"context"
	"database/sql"
	"fmt"

	"rusle-platform/internal/models"
	"rusle-platform/pkg/database"
	"rusle-platform/pkg/logging"
	"rusle-platform/pkg/metrics"
)

// JobRepository provides data access for calculation jobs and export tasks
type JobRepository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*models.Job, error)

	CreateExportTask(ctx context.Context, task *models.ExportTask) error
	ListExportTasks(ctx context.Context, jobID string) ([]*models.ExportTask, error)

	HealthCheck(ctx context.Context) error
}

// jobRepository implements JobRepository
type jobRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) JobRepository {
	return &jobRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateJob persists the metadata of a completed calculation
func (r *jobRepository) CreateJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO rusle_jobs (
			job_id, status, admin_region, admin_level,
			date_from, date_to, dem_source,
			requested_scale, effective_scale, scale_adjusted,
			area_km2, computation_ms, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, "insert_job", query,
		job.JobID,
		job.Status,
		job.AdminRegion,
		job.AdminLevel,
		job.DateFrom,
		job.DateTo,
		job.DEMSource,
		job.RequestedScale,
		job.EffectiveScale,
		job.ScaleAdjusted,
		job.AreaKm2,
		job.ComputationMS,
		job.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_JOB] Job persisted", logging.Fields{
		"job_id": job.JobID,
		"status": job.Status,
	})

	return nil
}

// GetJob retrieves a job by identifier
func (r *jobRepository) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	query := `
		SELECT job_id, status, admin_region, admin_level,
		       date_from, date_to, dem_source,
		       requested_scale, effective_scale, scale_adjusted,
		       area_km2, computation_ms, created_at
		FROM rusle_jobs
		WHERE job_id = $1
	`

	var job models.Job
	err := r.db.GetContext(ctx, "get_job", &job, query, jobID)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "job",
			ID:       jobID,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ListJobs retrieves recent jobs with pagination
func (r *jobRepository) ListJobs(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	query := `
		SELECT job_id, status, admin_region, admin_level,
		       date_from, date_to, dem_source,
		       requested_scale, effective_scale, scale_adjusted,
		       area_km2, computation_ms, created_at
		FROM rusle_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var jobs []*models.Job
	err := r.db.SelectContext(ctx, "list_jobs", &jobs, query, limit, offset)

	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// CreateExportTask persists the handle of a submitted export
func (r *jobRepository) CreateExportTask(ctx context.Context, task *models.ExportTask) error {
	query := `
		INSERT INTO rusle_export_tasks (
			task_id, job_id, description, folder, scale, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, "insert_export_task", query,
		task.TaskID,
		task.JobID,
		task.Description,
		task.Folder,
		task.Scale,
		task.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create export task: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_EXPORT] Export task persisted", logging.Fields{
		"task_id": task.TaskID,
		"job_id":  task.JobID,
	})

	return nil
}

// ListExportTasks retrieves all export submissions for a job
func (r *jobRepository) ListExportTasks(ctx context.Context, jobID string) ([]*models.ExportTask, error) {
	query := `
		SELECT task_id, job_id, description, folder, scale, created_at
		FROM rusle_export_tasks
		WHERE job_id = $1
		ORDER BY created_at DESC
	`

	var tasks []*models.ExportTask
	err := r.db.SelectContext(ctx, "list_export_tasks", &tasks, query, jobID)

	if err != nil {
		return nil, fmt.Errorf("failed to list export tasks: %w", err)
	}

	return tasks, nil
}

// HealthCheck performs a repository health check
func (r *jobRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
