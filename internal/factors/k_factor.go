// Package factors builds the six RUSLE factor layers as lazy raster
// expressions. Builders are pure functions from inputs to expressions: they
// never touch the network, and every layer leaves clipped to the AOI with its
// documented gap-fill default applied.
package factors

import (
	"rusle-platform/internal/datasets"
	"rusle-platform/internal/engine"
)

// KGapFill is the average erodibility substituted for missing soil pixels.
const KGapFill = 0.04

// K builds the soil erodibility factor with the Williams (1995) method:
//
//	K = f_csand * f_cl_si * f_orgc * f_hisand
func K(aoi *engine.Geometry) *engine.Expr {
	organicCarbon, clay, sand, silt := datasets.SoilTexture(aoi)

	// f_csand: coarse sand content factor
	fCsand := engine.Constant(0.2).Add(
		engine.Constant(0.3).Multiply(
			engine.Constant(-0.256).
				Multiply(silt.Divide(engine.Constant(100)).Subtract(engine.Constant(1))).
				Exp(),
		),
	)

	// f_cl_si: clay-silt ratio factor
	fClSi := silt.Divide(clay.Add(silt)).Pow(engine.Constant(0.3))

	// f_orgc: organic carbon factor
	fOrgc := engine.Constant(1).Subtract(
		engine.Constant(0.25).Multiply(organicCarbon).Divide(
			organicCarbon.Add(
				engine.Constant(3.72).
					Subtract(engine.Constant(2.95).Multiply(organicCarbon)).
					Exp(),
			),
		),
	)

	// f_hisand: high sand content factor
	sandFraction := engine.Constant(1).Subtract(sand.Divide(engine.Constant(100)))
	fHisand := engine.Constant(1).Subtract(
		engine.Constant(0.7).Multiply(sandFraction).Divide(
			sandFraction.Add(
				engine.Constant(-5.51).
					Add(engine.Constant(22.9).Multiply(sandFraction)).
					Exp(),
			),
		),
	)

	return fCsand.Multiply(fClSi).Multiply(fOrgc).Multiply(fHisand).
		Rename("K_factor").
		Unmask(KGapFill).
		Clip(aoi)
}
