package factors

import (
	"rusle-platform/internal/datasets"
	"rusle-platform/internal/engine"
	"rusle-platform/internal/models"
)

// CGapFill assumes moderate vegetation cover where reflectance is missing.
const CGapFill = 0.15

// C builds the vegetation cover factor with the De Jong (1994) relation over
// a per-pixel median composite of the window:
//
//	C = 0.431 - 0.805 * NDVI
func C(aoi *engine.Geometry, window models.TemporalWindow) *engine.Expr {
	composite := datasets.Reflectance().
		FilterDate(window.From, window.To).
		FilterBounds(aoi).
		Median().
		Clip(aoi)

	nir := datasets.ScaleOptical(composite.Select(datasets.NIRBand))
	red := datasets.ScaleOptical(composite.Select(datasets.RedBand))
	ndvi := engine.NormalizedDifference(nir, red).Rename("NDVI")

	return engine.Constant(0.431).Subtract(ndvi.Multiply(engine.Constant(0.805))).
		Rename("C_factor").
		Unmask(CGapFill).
		Clip(aoi)
}
