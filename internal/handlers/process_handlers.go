package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"rusle-platform/internal/engine"
	"rusle-platform/internal/models"
	"rusle-platform/internal/repository"
	"rusle-platform/internal/services"
	"rusle-platform/pkg/logging"
	"rusle-platform/pkg/metrics"
)

// ProcessHandler handles RUSLE processing API endpoints
type ProcessHandler struct {
	processService *services.ProcessService
	statsService   *services.StatisticsService
	exportService  *services.ExportService
	repo           repository.JobRepository
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
}

// NewProcessHandler creates a new process handler
func NewProcessHandler(
	processService *services.ProcessService,
	statsService *services.StatisticsService,
	exportService *services.ExportService,
	repo repository.JobRepository,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ProcessHandler {
	return &ProcessHandler{
		processService: processService,
		statsService:   statsService,
		exportService:  exportService,
		repo:           repo,
		logger:         logger,
		metrics:        metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Process handles POST /api/process
func (h *ProcessHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/process").Observe(duration.Seconds())
	}()

	var req services.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, "invalid JSON request body", http.StatusBadRequest)
		return
	}

	response, err := h.processService.Process(ctx, req)
	if err != nil {
		h.handleServiceError(w, r, "/api/process", "[API_PROCESS_ERROR] Failed to process RUSLE request", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/process", "POST", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetStatistics handles GET /api/process/{job_id}/statistics
func (h *ProcessHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/process/statistics").Observe(duration.Seconds())
	}()

	jobID := mux.Vars(r)["job_id"]

	report, err := h.statsService.Statistics(ctx, jobID)
	if err != nil {
		h.handleServiceError(w, r, "/api/process/statistics", "[API_STATISTICS_ERROR] Failed to compute statistics", err)
		return
	}

	response := map[string]interface{}{
		"job_id":     jobID,
		"statistics": report,
		"unit":       "ton/ha/year",
	}

	h.metrics.RecordAPIRequest("/api/process/statistics", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// ExportRequest carries the optional parameters of an export submission.
type ExportRequest struct {
	Folder string `json:"folder,omitempty"`
}

// Export handles POST /api/process/{job_id}/export
func (h *ProcessHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/process/export").Observe(duration.Seconds())
	}()

	jobID := mux.Vars(r)["job_id"]

	var req ExportRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.sendError(w, r, "invalid JSON request body", http.StatusBadRequest)
			return
		}
	}

	task, err := h.exportService.Export(ctx, jobID, req.Folder)
	if err != nil {
		h.handleServiceError(w, r, "/api/process/export", "[API_EXPORT_ERROR] Failed to submit export", err)
		return
	}

	response := map[string]interface{}{
		"task_id":     task.TaskID,
		"job_id":      task.JobID,
		"description": task.Description,
		"folder":      task.Folder,
		"scale":       task.Scale,
		"message":     "export submitted, check the configured Drive folder for results",
	}

	h.metrics.RecordAPIRequest("/api/process/export", "POST", "202")
	h.sendJSON(w, response, http.StatusAccepted)
}

// ListExports handles GET /api/process/{job_id}/exports
func (h *ProcessHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := mux.Vars(r)["job_id"]

	tasks, err := h.exportService.ListExports(ctx, jobID)
	if err != nil {
		h.handleServiceError(w, r, "/api/process/exports", "[API_LIST_EXPORTS_ERROR] Failed to list exports", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/process/exports", "GET", "200")
	h.sendJSON(w, map[string]interface{}{
		"job_id":  jobID,
		"exports": tasks,
	}, http.StatusOK)
}

// ListJobs handles GET /api/jobs
func (h *ProcessHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page := 1
	limit := 50

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}
	offset := (page - 1) * limit

	jobs, err := h.processService.ListJobs(ctx, limit, offset)
	if err != nil {
		h.handleServiceError(w, r, "/api/jobs", "[API_LIST_JOBS_ERROR] Failed to list jobs", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/jobs", "GET", "200")
	h.sendJSON(w, map[string]interface{}{
		"data":  jobs,
		"page":  page,
		"limit": limit,
	}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *ProcessHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.repo.HealthCheck(ctx); err != nil {
		h.logger.Error(ctx, "[HEALTH_CHECK_ERROR] Database health check failed", logging.Fields{}, err)
		status["status"] = "degraded"
		status["database"] = "unreachable"
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// handleServiceError maps domain error types to HTTP responses.
func (h *ProcessHandler) handleServiceError(w http.ResponseWriter, r *http.Request, endpoint, logTag string, err error) {
	ctx := r.Context()

	var validationErr *models.ValidationError
	var authErr *engine.AuthError
	var limitErr *engine.LimitError
	var engineNotFound *engine.NotFoundError
	var repoNotFound *repository.NotFoundError
	var exportErr *engine.ExportError

	switch {
	case errors.As(err, &validationErr):
		h.metrics.RecordAPIError("validation", endpoint)
		h.sendError(w, r, validationErr.Message, http.StatusBadRequest)

	case errors.As(err, &authErr):
		h.logger.Error(ctx, logTag, logging.Fields{"endpoint": endpoint}, err)
		h.metrics.RecordAPIError("engine_auth", endpoint)
		h.sendError(w, r, "raster engine authentication failed", http.StatusBadGateway)

	case errors.As(err, &limitErr):
		h.metrics.RecordAPIError("pixel_limit", endpoint)
		h.sendError(w, r, limitErr.Error(), http.StatusUnprocessableEntity)

	case errors.As(err, &engineNotFound):
		h.metrics.RecordAPIError("not_found", endpoint)
		h.sendError(w, r, engineNotFound.Error(), http.StatusNotFound)

	case errors.As(err, &repoNotFound):
		h.metrics.RecordAPIError("not_found", endpoint)
		h.sendError(w, r, repoNotFound.Error(), http.StatusNotFound)

	case errors.As(err, &exportErr):
		h.logger.Error(ctx, logTag, logging.Fields{"endpoint": endpoint}, err)
		h.metrics.RecordAPIError("export", endpoint)
		h.sendError(w, r, "export submission failed", http.StatusBadGateway)

	default:
		h.logger.Error(ctx, logTag, logging.Fields{"endpoint": endpoint}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, "internal server error", http.StatusInternalServerError)
	}
}

// sendJSON sends a JSON response
func (h *ProcessHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *ProcessHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all processing API routes
func (h *ProcessHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/process", h.Process).Methods("POST")
	router.HandleFunc("/api/process/{job_id}/statistics", h.GetStatistics).Methods("GET")
	router.HandleFunc("/api/process/{job_id}/export", h.Export).Methods("POST")
	router.HandleFunc("/api/process/{job_id}/exports", h.ListExports).Methods("GET")
	router.HandleFunc("/api/jobs", h.ListJobs).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
