package factors

import (
	"rusle-platform/internal/datasets"
	"rusle-platform/internal/engine"
)

// PGapFill assumes no conservation practice where land cover is missing.
const PGapFill = 1.0

// DefaultPracticeFallback is the practice value for land-cover classes outside
// the table. It must stay neutral: a sentinel like 9999 would poison the
// soil-loss product for every unmapped class.
const DefaultPracticeFallback = 1.0

// practiceValue pairs a MODIS land-cover class with its conservation practice
// factor (Chuenchum et al., 2019). Evaluated in order; classes are disjoint so
// order does not change the result.
type practiceValue struct {
	Class int
	Value float64
}

var practiceTable = []practiceValue{
	{1, 0.8},  // Evergreen Needleleaf Forests
	{2, 0.8},  // Evergreen Broadleaf Forests
	{3, 0.8},  // Deciduous Needleleaf Forests
	{4, 0.8},  // Deciduous Broadleaf Forests
	{5, 0.8},  // Mixed Forests
	{6, 0.8},  // Closed Shrublands
	{7, 0.8},  // Open Shrublands
	{8, 0.8},  // Woody Savannas
	{9, 0.8},  // Savannas
	{10, 0.8}, // Grasslands
	{11, 1.0}, // Permanent Wetlands
	{12, 0.5}, // Croplands
	{13, 1.0}, // Urban and Built-up Lands
	{14, 0.5}, // Cropland/Natural Vegetation Mosaics
	{15, 1.0}, // Permanent Snow and Ice
	{16, 1.0}, // Barren
	{17, 1.0}, // Water Bodies
}

// P builds the conservation practice factor by reclassifying the most recent
// land-cover layer through the practice table. Unmatched classes take the
// fallback value; pass DefaultPracticeFallback unless configured otherwise.
func P(aoi *engine.Geometry, fallback float64) *engine.Expr {
	lulc := datasets.LandCover(aoi)

	p := engine.Constant(fallback)
	for _, pv := range practiceTable {
		p = p.Where(lulc.Eq(engine.Constant(float64(pv.Class))), pv.Value)
	}

	return p.Rename("P_factor").
		Unmask(PGapFill).
		Clip(aoi)
}
