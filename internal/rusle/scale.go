package rusle

import "rusle-platform/internal/models"

// minScaleByAdminLevel enforces a floor on computation resolution by boundary
// granularity, preventing country-sized areas from being computed at field
// resolution.
var minScaleByAdminLevel = map[int]int{
	0: 250, // country
	1: 90,  // region/state
	2: 30,  // province/county
}

// defaultAdminMinScale applies when the admin level is unknown.
const defaultAdminMinScale = 90

// areaScaleThreshold maps area sizes to the finest allowed scale. Evaluated
// largest-first; the first matching threshold wins.
type areaScaleThreshold struct {
	AreaKm2 float64
	Scale   int
}

var areaScaleThresholds = []areaScaleThreshold{
	{500_000, 500},
	{100_000, 250},
	{10_000, 90},
	{1_000, 30},
	{0, 10},
}

// SelectScale reconciles the requested computation scale with the minimums
// derived from area size and administrative level. The coarser of the two
// bounds wins, and the requested scale is only ever adjusted upward. Pure
// function; run it before any materializing operation so computation cost is
// bounded deterministically.
func SelectScale(requested int, areaKm2 float64, adminLevel int) models.ScaleDecision {
	levelMin, ok := minScaleByAdminLevel[adminLevel]
	if !ok {
		levelMin = defaultAdminMinScale
	}

	areaMin := 10
	for _, t := range areaScaleThresholds {
		if areaKm2 > t.AreaKm2 {
			areaMin = t.Scale
			break
		}
	}

	minimum := levelMin
	if areaMin > minimum {
		minimum = areaMin
	}

	effective := requested
	if minimum > effective {
		effective = minimum
	}

	return models.ScaleDecision{
		Requested: requested,
		Minimum:   minimum,
		Effective: effective,
		Adjusted:  effective != requested,
	}
}
