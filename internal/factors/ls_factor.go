package factors

import (
	"math"

	"rusle-platform/internal/datasets"
	"rusle-platform/internal/engine"
)

// Gap fills: neutral slope length, flat-terrain steepness.
const (
	LGapFill = 1
	SGapFill = 0.065
)

// standardPlotLength is the unit plot length in meters the L factor is
// normalized against.
const standardPlotLength = 22.13

// LS builds the slope length (L) and slope steepness (S) factors from the
// selected elevation model.
//
//	L = (pixel_size / 22.13)^m
//	S = (0.43 + 0.3*slope% + 0.043*slope%^2) / 6.613
//
// The exponent m is piecewise by slope percent; pixels outside every range
// keep the initial value 1.
func LS(aoi *engine.Geometry, demSource datasets.DEMSource, pixelSize float64) (l, s *engine.Expr, err error) {
	dem, err := datasets.Elevation(demSource)
	if err != nil {
		return nil, nil, err
	}

	slopeDeg := engine.TerrainSlope(dem).Clip(aoi)
	slopePerc := slopeDeg.
		Divide(engine.Constant(180)).
		Multiply(engine.Constant(math.Pi)).
		Tan().
		Multiply(engine.Constant(100))

	m := engine.Constant(1).
		Where(slopePerc.Gt(engine.Constant(-1)).And(slopePerc.Lte(engine.Constant(1))), 0.2).
		Where(slopePerc.Gt(engine.Constant(1)).And(slopePerc.Lte(engine.Constant(3))), 0.3).
		Where(slopePerc.Gt(engine.Constant(3)).And(slopePerc.Lte(engine.Constant(4.5))), 0.4).
		Where(slopePerc.Gt(engine.Constant(4.5)).And(slopePerc.Lte(engine.Constant(100))), 0.5)

	l = engine.Constant(pixelSize).Divide(engine.Constant(standardPlotLength)).Pow(m).
		Rename("L_factor").
		Unmask(LGapFill).
		Clip(aoi)

	s = slopePerc.Pow(engine.Constant(2)).Multiply(engine.Constant(0.043)).
		Add(slopePerc.Multiply(engine.Constant(0.30))).
		Add(engine.Constant(0.43)).
		Divide(engine.Constant(6.613)).
		Rename("S_factor").
		Unmask(SGapFill).
		Clip(aoi)

	return l, s, nil
}
