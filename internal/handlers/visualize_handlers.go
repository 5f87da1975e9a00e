package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"rusle-platform/internal/repository"
	"rusle-platform/internal/rusle"
	"rusle-platform/internal/services"
	"rusle-platform/pkg/logging"
	"rusle-platform/pkg/metrics"
)

// VisualizeHandler serves map configurations and legends for completed jobs
type VisualizeHandler struct {
	processService *services.ProcessService
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
}

// NewVisualizeHandler creates a new visualize handler
func NewVisualizeHandler(processService *services.ProcessService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *VisualizeHandler {
	return &VisualizeHandler{
		processService: processService,
		logger:         logger,
		metrics:        metricsCollector,
	}
}

// GetMapConfig handles GET /api/visualize/{job_id}
func (h *VisualizeHandler) GetMapConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/visualize").Observe(duration.Seconds())
	}()

	jobID := mux.Vars(r)["job_id"]

	config, err := h.processService.MapConfig(ctx, jobID)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			h.metrics.RecordAPIError("not_found", "/api/visualize")
			h.sendError(w, r, notFound.Error(), http.StatusNotFound)
			return
		}

		h.logger.Error(ctx, "[API_VISUALIZE_ERROR] Failed to build map config", logging.Fields{
			"job_id": jobID,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/visualize")
		h.sendError(w, r, "failed to build map configuration", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/visualize", "GET", "200")
	h.sendJSON(w, config, http.StatusOK)
}

// GetLegend handles GET /api/legend
func (h *VisualizeHandler) GetLegend(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"title":   "Soil Loss (ton/ha/year)",
		"classes": rusle.SoilLossLegend,
	}

	h.metrics.RecordAPIRequest("/api/legend", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// sendJSON sends a JSON response
func (h *VisualizeHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *VisualizeHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	h.sendJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// RegisterRoutes registers all visualization API routes
func (h *VisualizeHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/visualize/{job_id}", h.GetMapConfig).Methods("GET")
	router.HandleFunc("/api/legend", h.GetLegend).Methods("GET")
}
