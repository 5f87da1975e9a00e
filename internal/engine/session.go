package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rusle-platform/pkg/logging"
	"rusle-platform/pkg/metrics"
)

// Config holds remote raster engine connection settings.
type Config struct {
	BaseURL string
	Project string
	Token   string
	Timeout time.Duration
}

// VisParams controls layer rendering for tile generation.
type VisParams struct {
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Palette []string `json:"palette,omitempty"`
	Bands   []string `json:"bands,omitempty"`
}

// Session is an authenticated connection to the remote raster engine. All
// expression materialization (reductions, tiles, exports, feature lookups)
// goes through it; expression construction never does.
type Session struct {
	cfg     Config
	client  *http.Client
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSession creates a session. Call Initialize before first use to verify
// credentials and project registration.
func NewSession(cfg Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Session {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Session{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Initialize verifies the session by computing a trivial constant reduction.
func (s *Session) Initialize(ctx context.Context) error {
	req := computeRequest{
		Expression: Constant(1),
		Reducers:   []string{"mean"},
		Scale:      1000,
		MaxPixels:  1,
	}

	var resp computeResponse
	if err := s.do(ctx, "initialize", "value:compute", req, &resp); err != nil {
		return err
	}

	s.logger.Info(ctx, "[ENGINE_INIT] Remote raster engine session verified", logging.Fields{
		"project": s.cfg.Project,
	})
	return nil
}

type computeRequest struct {
	Expression *Expr     `json:"expression"`
	Geometry   *Geometry `json:"geometry,omitempty"`
	Reducers   []string  `json:"reducers"`
	Scale      int       `json:"scale"`
	MaxPixels  int64     `json:"maxPixels"`
}

type computeResponse struct {
	Values map[string]float64 `json:"values"`
}

// ReduceRegion computes the named statistics of a layer over a geometry at the
// given scale. The remote engine fails the call when the region/scale pair
// would exceed maxPixels; that failure surfaces as a *LimitError.
func (s *Session) ReduceRegion(ctx context.Context, layer *Expr, geom *Geometry, reducers []string, scale int, maxPixels int64) (map[string]float64, error) {
	req := computeRequest{
		Expression: layer,
		Geometry:   geom,
		Reducers:   reducers,
		Scale:      scale,
		MaxPixels:  maxPixels,
	}

	var resp computeResponse
	if err := s.do(ctx, "reduce_region", "value:compute", req, &resp); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

type mapRequest struct {
	Expression *Expr     `json:"expression"`
	VisParams  VisParams `json:"visParams"`
}

type mapResponse struct {
	TileURL string `json:"tileUrl"`
}

// MapTiles registers the layer for rendering and returns a tile URL template.
func (s *Session) MapTiles(ctx context.Context, layer *Expr, vis VisParams) (string, error) {
	req := mapRequest{Expression: layer, VisParams: vis}

	var resp mapResponse
	if err := s.do(ctx, "map_tiles", "maps", req, &resp); err != nil {
		return "", err
	}
	return resp.TileURL, nil
}

type exportRequest struct {
	Expression  *Expr     `json:"expression"`
	Description string    `json:"description"`
	Folder      string    `json:"folder"`
	Region      *Geometry `json:"region"`
	Scale       int       `json:"scale"`
	MaxPixels   int64     `json:"maxPixels"`
}

type exportResponse struct {
	TaskID string `json:"taskId"`
}

// StartExport submits an asynchronous export of the layer to remote storage
// and returns the opaque task identifier. The session never polls the task.
func (s *Session) StartExport(ctx context.Context, layer *Expr, description, folder string, region *Geometry, scale int, maxPixels int64) (string, error) {
	req := exportRequest{
		Expression:  layer,
		Description: description,
		Folder:      folder,
		Region:      region,
		Scale:       scale,
		MaxPixels:   maxPixels,
	}

	var resp exportResponse
	if err := s.do(ctx, "export", "image:export", req, &resp); err != nil {
		return "", &ExportError{Description: description, Err: err}
	}
	if resp.TaskID == "" {
		return "", &ExportError{Description: description, Err: fmt.Errorf("engine returned no task id")}
	}

	s.logger.Info(ctx, "[ENGINE_EXPORT] Export task submitted", logging.Fields{
		"task_id":     resp.TaskID,
		"description": description,
		"folder":      folder,
	})
	return resp.TaskID, nil
}

type tableRequest struct {
	Dataset string      `json:"dataset"`
	Filter  tableFilter `json:"filter"`
}

type tableFilter struct {
	Field    string `json:"field"`
	Contains string `json:"contains"`
}

type tableResponse struct {
	Geometry     *Geometry `json:"geometry"`
	FeatureCount int       `json:"featureCount"`
}

// FilterFeatures filters a named feature collection by a substring match on a
// property and returns the merged geometry with the matched feature count.
// Zero matches yield a *NotFoundError.
func (s *Session) FilterFeatures(ctx context.Context, dataset, field, contains string) (*Geometry, int, error) {
	req := tableRequest{
		Dataset: dataset,
		Filter:  tableFilter{Field: field, Contains: contains},
	}

	var resp tableResponse
	if err := s.do(ctx, "filter_features", "table:compute", req, &resp); err != nil {
		return nil, 0, err
	}
	if resp.FeatureCount == 0 || resp.Geometry == nil {
		return nil, 0, &NotFoundError{Resource: "feature", Name: contains}
	}
	return resp.Geometry, resp.FeatureCount, nil
}

// do executes one JSON request against the engine and maps failures onto the
// session error taxonomy.
func (s *Session) do(ctx context.Context, operation, endpoint string, reqBody, respDest interface{}) error {
	timer := s.metrics.NewTimer(s.metrics.EngineRequestDuration.WithLabelValues(operation))
	defer timer.ObserveDuration()

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/%s", strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.Project, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.RecordEngineError("transport")
		return fmt.Errorf("engine %s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return s.mapHTTPError(ctx, operation, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(respDest); err != nil {
		s.metrics.RecordEngineError("decode")
		return fmt.Errorf("failed to decode engine %s response: %w", operation, err)
	}
	return nil
}

func (s *Session) mapHTTPError(ctx context.Context, operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(raw))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		s.metrics.RecordEngineError("auth")
		authErr := &AuthError{Project: s.cfg.Project, Reason: message}
		if strings.Contains(message, "not registered") {
			s.logger.Error(ctx, "[ENGINE_AUTH_ERROR] Project is not registered for the raster engine", logging.Fields{
				"project": s.cfg.Project,
			}, authErr)
		}
		return authErr

	case resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "pixels"):
		s.metrics.RecordEngineError("pixel_limit")
		return &LimitError{MaxPixels: 0}

	default:
		s.metrics.RecordEngineError("remote")
		return fmt.Errorf("engine %s returned status %d: %s", operation, resp.StatusCode, message)
	}
}
