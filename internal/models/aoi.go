package models

import (
	"math"

	"rusle-platform/internal/engine"
)

// meanEarthRadiusM is the mean Earth radius used for geodesic ring area.
const meanEarthRadiusM = 6371008.8

// AreaOfInterest is the WGS84 polygon or multipolygon an analysis runs over.
// It is built once and never mutated; derived attributes are computed at
// construction time.
type AreaOfInterest struct {
	Geometry  *engine.Geometry
	AreaKm2   float64
	CenterLng float64
	CenterLat float64
}

// NewAreaOfInterest validates the geometry and derives its area and center.
// Coordinates must already be in WGS84 longitude/latitude.
func NewAreaOfInterest(g *engine.Geometry) (*AreaOfInterest, error) {
	if g == nil {
		return nil, &ValidationError{
			Field:   "geometry",
			Message: "area of interest geometry is required",
		}
	}

	rings, err := g.Rings()
	if err != nil {
		return nil, &ValidationError{
			Field:   "geometry",
			Message: err.Error(),
		}
	}
	if len(rings) == 0 {
		return nil, &ValidationError{
			Field:   "geometry",
			Message: "geometry has no rings",
		}
	}

	area := 0.0
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	minLat, maxLat := math.Inf(1), math.Inf(-1)

	for _, ring := range rings {
		if len(ring) < 4 {
			return nil, &ValidationError{
				Field:   "geometry",
				Message: "ring has fewer than four positions",
			}
		}
		area += sphericalRingArea(ring)

		for _, pos := range ring {
			if len(pos) < 2 {
				return nil, &ValidationError{
					Field:   "geometry",
					Message: "position has fewer than two coordinates",
				}
			}
			minLng = math.Min(minLng, pos[0])
			maxLng = math.Max(maxLng, pos[0])
			minLat = math.Min(minLat, pos[1])
			maxLat = math.Max(maxLat, pos[1])
		}
	}

	return &AreaOfInterest{
		Geometry:  g,
		AreaKm2:   math.Abs(area) / 1e6,
		CenterLng: (minLng + maxLng) / 2,
		CenterLat: (minLat + maxLat) / 2,
	}, nil
}

// sphericalRingArea returns the signed area of a linear ring in square meters.
// GeoJSON winds exterior rings counterclockwise and holes clockwise, so
// summing signed ring areas subtracts holes from their shells.
func sphericalRingArea(ring [][]float64) float64 {
	if len(ring) < 3 {
		return 0
	}

	total := 0.0
	for i := 0; i < len(ring); i++ {
		p1 := ring[i]
		p2 := ring[(i+1)%len(ring)]

		lng1 := p1[0] * math.Pi / 180
		lng2 := p2[0] * math.Pi / 180
		lat1 := p1[1] * math.Pi / 180
		lat2 := p2[1] * math.Pi / 180

		total += (lng2 - lng1) * (2 + math.Sin(lat1) + math.Sin(lat2))
	}

	return total * meanEarthRadiusM * meanEarthRadiusM / 2
}
