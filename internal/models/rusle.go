package models

import (
	"time"

	"rusle-platform/internal/engine"
)

// TemporalWindow is a calendar date range [From, To) used by the factors that
// aggregate over time. An empty window (From == To) is valid and aggregates
// over zero observations.
type TemporalWindow struct {
	From string `json:"date_from"`
	To   string `json:"date_to"`
}

const dateLayout = "2006-01-02"

// Validate checks date formats and ordering.
func (w TemporalWindow) Validate() error {
	from, err := time.Parse(dateLayout, w.From)
	if err != nil {
		return &ValidationError{
			Field:   "date_from",
			Value:   w.From,
			Message: "invalid date format, expected YYYY-MM-DD",
		}
	}

	to, err := time.Parse(dateLayout, w.To)
	if err != nil {
		return &ValidationError{
			Field:   "date_to",
			Value:   w.To,
			Message: "invalid date format, expected YYYY-MM-DD",
		}
	}

	if to.Before(from) {
		return &ValidationError{
			Field:   "date_to",
			Value:   w.To,
			Message: "date_to must not be before date_from",
		}
	}

	return nil
}

// IsEmpty reports whether the window covers zero days.
func (w TemporalWindow) IsEmpty() bool {
	return w.From == w.To
}

// FactorSet holds the six factor layers produced for one AOI and window. Every
// layer is clipped to the same AOI and carries its builder's gap-fill default.
type FactorSet struct {
	R *engine.Expr
	K *engine.Expr
	L *engine.Expr
	S *engine.Expr
	C *engine.Expr
	P *engine.Expr
}

// SoilLossResult is the outcome of one RUSLE calculation. Immutable once built.
type SoilLossResult struct {
	SoilLoss *engine.Expr
	Factors  FactorSet
	Window   TemporalWindow
	Duration time.Duration
}

// ScaleDecision records how the requested computation scale was reconciled
// with the area-derived and admin-level minimums.
type ScaleDecision struct {
	Requested int  `json:"requested_scale"`
	Minimum   int  `json:"minimum_scale"`
	Effective int  `json:"effective_scale"`
	Adjusted  bool `json:"adjusted"`
}

// StatisticsReport maps statistic names (mean, min, max, stdDev) to values for
// one layer/AOI/scale triple. Recomputed on every request, never cached here.
type StatisticsReport map[string]float64

// ValidationError represents a request validation failure, surfaced
// immediately and never retried.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
