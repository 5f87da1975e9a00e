package factors

import (
	"rusle-platform/internal/datasets"
	"rusle-platform/internal/engine"
	"rusle-platform/internal/models"
)

// RGapFill treats missing precipitation as zero rainfall erosivity.
const RGapFill = 0

// R builds the rainfall erosivity factor from summed precipitation over the
// window:
//
//	R = 0.0483 * P^1.610
//
// An empty window sums zero images; the resulting masked layer gap-fills to
// zero rather than erroring.
func R(aoi *engine.Geometry, window models.TemporalWindow) *engine.Expr {
	pcpSum := datasets.Precipitation(aoi).
		FilterDate(window.From, window.To).
		Sum().
		Clip(aoi)

	return pcpSum.Pow(engine.Constant(1.610)).Multiply(engine.Constant(0.0483)).
		Rename("R_factor").
		Unmask(RGapFill)
}
