package rusle

import "rusle-platform/internal/engine"

// SoilLossVis renders soil loss from green (stable) to dark red (severe).
var SoilLossVis = engine.VisParams{
	Min:     0,
	Max:     50,
	Palette: []string{"00ff00", "7fff00", "ffff00", "ffa500", "ff4500", "ff0000", "8b0000"},
}

var factorPalette = []string{"blue", "green", "yellow", "orange", "red"}

// FactorInfo describes one factor layer for API consumers.
type FactorInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	TileURL     string `json:"tile_url,omitempty"`
}

// factorPreset couples a factor's display metadata with its rendering range.
type factorPreset struct {
	Info FactorInfo
	Vis  engine.VisParams
}

// FactorPresets keys display metadata and visualization ranges by factor
// letter. There is exactly one table; every surface (API, map config) renders
// from it.
var FactorPresets = map[string]factorPreset{
	"R": {
		Info: FactorInfo{
			Name:        "Rainfall Erosivity",
			Description: "Effect of rainfall intensity and duration",
			Unit:        "MJ·mm/(ha·h·yr)",
		},
		Vis: engine.VisParams{Min: 0, Max: 5000, Palette: factorPalette},
	},
	"K": {
		Info: FactorInfo{
			Name:        "Soil Erodibility",
			Description: "Susceptibility of soil to erosion",
			Unit:        "t·ha·h/(ha·MJ·mm)",
		},
		Vis: engine.VisParams{Min: 0.3, Max: 0.5, Palette: factorPalette},
	},
	"L": {
		Info: FactorInfo{
			Name:        "Slope Length",
			Description: "Effect of slope length on erosion",
			Unit:        "dimensionless",
		},
		Vis: engine.VisParams{Min: 1, Max: 1.2, Palette: factorPalette},
	},
	"S": {
		Info: FactorInfo{
			Name:        "Slope Steepness",
			Description: "Effect of slope gradient on erosion",
			Unit:        "dimensionless",
		},
		Vis: engine.VisParams{Min: 0, Max: 45, Palette: factorPalette},
	},
	"C": {
		Info: FactorInfo{
			Name:        "Vegetation Cover",
			Description: "Effect of vegetation on reducing erosion",
			Unit:        "dimensionless",
		},
		Vis: engine.VisParams{Min: 0, Max: 0.5, Palette: factorPalette},
	},
	"P": {
		Info: FactorInfo{
			Name:        "Erosion Control Practices",
			Description: "Effect of conservation practices",
			Unit:        "dimensionless",
		},
		Vis: engine.VisParams{Min: 0, Max: 1, Palette: factorPalette},
	},
}

// LegendClass is one soil-loss severity band for map legends.
type LegendClass struct {
	Range string `json:"range"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// SoilLossLegend bands soil loss in ton/ha/year.
var SoilLossLegend = []LegendClass{
	{Range: "0-5", Label: "Very Low", Color: "#00ff00"},
	{Range: "5-10", Label: "Low", Color: "#7fff00"},
	{Range: "10-20", Label: "Moderate", Color: "#ffff00"},
	{Range: "20-30", Label: "High", Color: "#ffa500"},
	{Range: "30-40", Label: "Very High", Color: "#ff4500"},
	{Range: "40-50", Label: "Severe", Color: "#ff0000"},
	{Range: ">50", Label: "Very Severe", Color: "#8b0000"},
}
