// Package datasets names the remote catalog assets the RUSLE pipeline reads
// and builds the base expressions over them. Everything here is lazy; no call
// leaves the process.
package datasets

import (
	"fmt"
	"strings"

	"rusle-platform/internal/engine"
)

// Remote catalog identifiers.
const (
	PrecipitationDataset = "UCSB-CHG/CHIRPS/DAILY"
	PrecipitationBand    = "precipitation"

	OrganicCarbonDataset = "OpenLandMap/SOL/SOL_ORGANIC-CARBON_USDA-6A1C_M/v02"
	ClayDataset          = "OpenLandMap/SOL/SOL_CLAY-WFRACTION_USDA-3A1A1A_M/v02"
	SandDataset          = "OpenLandMap/SOL/SOL_SAND-WFRACTION_USDA-3A1A1A_M/v02"
	SoilBand             = "b0"

	SRTMDataset  = "USGS/SRTMGL1_003"
	SRTMBand     = "elevation"
	MERITDataset = "MERIT/DEM/v1_0_3"
	MERITBand    = "dem"

	ReflectanceDataset = "LANDSAT/LC08/C02/T1_L2"
	NIRBand            = "SR_B5"
	RedBand            = "SR_B4"

	LandCoverDataset = "MODIS/061/MCD12Q1"
	LandCoverBand    = "LC_Type1"
)

// DEMSource selects the elevation provider.
type DEMSource string

const (
	SRTM  DEMSource = "SRTM"
	MERIT DEMSource = "MERIT"
)

// Precipitation returns the daily precipitation series restricted to the AOI.
func Precipitation(aoi *engine.Geometry) engine.ImageCollection {
	return engine.Collection(PrecipitationDataset, PrecipitationBand).FilterBounds(aoi)
}

// SoilTexture loads the surface-layer soil rasters clipped to the AOI. Silt has
// no direct dataset and is derived as 100 - clay - sand.
func SoilTexture(aoi *engine.Geometry) (organicCarbon, clay, sand, silt *engine.Expr) {
	organicCarbon = engine.Image(OrganicCarbonDataset, SoilBand).Clip(aoi)
	clay = engine.Image(ClayDataset, SoilBand).Clip(aoi)
	sand = engine.Image(SandDataset, SoilBand).Clip(aoi)

	silt = engine.Constant(100).
		Subtract(engine.Image(ClayDataset, SoilBand)).
		Subtract(engine.Image(SandDataset, SoilBand)).
		Rename("silt").
		Clip(aoi)

	return organicCarbon, clay, sand, silt
}

// Elevation loads the digital elevation model for the given source.
func Elevation(source DEMSource) (*engine.Expr, error) {
	switch DEMSource(strings.ToUpper(string(source))) {
	case SRTM:
		return engine.Image(SRTMDataset, SRTMBand), nil
	case MERIT:
		return engine.Image(MERITDataset, MERITBand), nil
	default:
		return nil, fmt.Errorf("unknown DEM source: %s", source)
	}
}

// Reflectance returns the Landsat 8 surface reflectance series. Band values
// are raw digital numbers; apply ScaleOptical before deriving indices.
func Reflectance() engine.ImageCollection {
	return engine.Collection(ReflectanceDataset, "")
}

// ScaleOptical converts a raw optical surface-reflectance band to reflectance.
// The transform is monotone, so applying it after a median composite is
// identical to compositing scaled images.
func ScaleOptical(band *engine.Expr) *engine.Expr {
	return band.Multiply(engine.Constant(0.0000275)).Add(engine.Constant(-0.2))
}

// ScaleThermal converts a raw Landsat thermal band (ST_B10) to kelvin.
func ScaleThermal(band *engine.Expr) *engine.Expr {
	return band.Multiply(engine.Constant(0.00341802)).Add(engine.Constant(149.0))
}

// LandCover returns the most recent land-cover classification clipped to the AOI.
func LandCover(aoi *engine.Geometry) *engine.Expr {
	return engine.Collection(LandCoverDataset, LandCoverBand).
		MostRecent().
		Clip(aoi).
		Rename("lulc")
}

// AdminCollection maps an administrative level to the boundary collection and
// the name property to filter on. Levels: 0=country, 1=region/state,
// 2=province/county. Unknown levels fall back to level 2, matching how lookups
// behaved in the batch tooling this derives from.
func AdminCollection(level int) (dataset, nameField string) {
	switch level {
	case 0:
		return "FAO/GAUL/2015/level0", "ADM0_NAME"
	case 1:
		return "FAO/GAUL/2015/level1", "ADM1_NAME"
	default:
		return "FAO/GAUL/2015/level2", "ADM2_NAME"
	}
}
