package models

import "time"

// Job statuses.
const (
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is the persisted record of one calculation request. The lazy result
// layers live in the in-memory result store; this row carries the metadata
// that survives a restart.
type Job struct {
	JobID          string    `json:"job_id" db:"job_id"`
	Status         string    `json:"status" db:"status"`
	AdminRegion    *string   `json:"admin_region,omitempty" db:"admin_region"`
	AdminLevel     int       `json:"admin_level" db:"admin_level"`
	DateFrom       string    `json:"date_from" db:"date_from"`
	DateTo         string    `json:"date_to" db:"date_to"`
	DEMSource      string    `json:"dem_source" db:"dem_source"`
	RequestedScale int       `json:"requested_scale" db:"requested_scale"`
	EffectiveScale int       `json:"effective_scale" db:"effective_scale"`
	ScaleAdjusted  bool      `json:"scale_adjusted" db:"scale_adjusted"`
	AreaKm2        float64   `json:"area_km2" db:"area_km2"`
	ComputationMS  int64     `json:"computation_ms" db:"computation_ms"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ExportTask is the persisted handle of an asynchronous export submission.
// Progress tracking belongs to the remote engine; this record only proves the
// submission happened.
type ExportTask struct {
	TaskID      string    `json:"task_id" db:"task_id"`
	JobID       string    `json:"job_id" db:"job_id"`
	Description string    `json:"description" db:"description"`
	Folder      string    `json:"folder" db:"folder"`
	Scale       int       `json:"scale" db:"scale"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
