package factors

import (
	"encoding/json"
	"math"
	"testing"

	"rusle-platform/internal/datasets"
	"rusle-platform/internal/engine"
	"rusle-platform/internal/models"
)

func testAOI() *engine.Geometry {
	return &engine.Geometry{
		Type:        "Polygon",
		Coordinates: json.RawMessage(`[[[10.0,45.0],[10.5,45.0],[10.5,45.5],[10.0,45.5],[10.0,45.0]]]`),
	}
}

func testWindow() models.TemporalWindow {
	return models.TemporalWindow{From: "2023-01-01", To: "2023-12-31"}
}

func soilSample(organicCarbon, clay, sand float64) engine.Sample {
	return engine.Sample{Values: map[string]float64{
		engine.ImageKey(datasets.OrganicCarbonDataset, datasets.SoilBand): organicCarbon,
		engine.ImageKey(datasets.ClayDataset, datasets.SoilBand):          clay,
		engine.ImageKey(datasets.SandDataset, datasets.SoilBand):          sand,
	}}
}

// williamsK replicates the erodibility chain in plain arithmetic so the test
// checks the expression graph against an independent rendering of the formula.
func williamsK(organicCarbon, clay, sand float64) float64 {
	silt := 100 - clay - sand

	fCsand := 0.2 + 0.3*math.Exp(-0.256*(silt/100-1))
	fClSi := math.Pow(silt/(clay+silt), 0.3)
	fOrgc := 1 - 0.25*organicCarbon/(organicCarbon+math.Exp(3.72-2.95*organicCarbon))
	sandFraction := 1 - sand/100
	fHisand := 1 - 0.7*sandFraction/(sandFraction+math.Exp(-5.51+22.9*sandFraction))

	return fCsand * fClSi * fOrgc * fHisand
}

func TestKFactor(t *testing.T) {
	k := K(testAOI())

	tests := []struct {
		name                      string
		organicCarbon, clay, sand float64
	}{
		{"loam", 2, 30, 30},
		{"sandy soil", 1, 10, 80},
		{"clay soil", 3, 60, 15},
		{"low organic carbon", 0.2, 25, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := k.Eval(soilSample(tt.organicCarbon, tt.clay, tt.sand))
			want := williamsK(tt.organicCarbon, tt.clay, tt.sand)
			if math.Abs(got-want) > 1e-9 {
				t.Errorf("K = %v, want %v", got, want)
			}
		})
	}

	t.Run("missing soil data gap-fills", func(t *testing.T) {
		if got := k.Eval(engine.Sample{}); got != KGapFill {
			t.Errorf("K over masked soil = %v, want %v", got, KGapFill)
		}
	})

	t.Run("layer is named", func(t *testing.T) {
		if got := k.Name(); got != "K_factor" {
			t.Errorf("Name() = %q, want %q", got, "K_factor")
		}
	})
}

func TestRFactor(t *testing.T) {
	r := R(testAOI(), testWindow())
	precipKey := engine.CollectionKey("sum", datasets.PrecipitationDataset, datasets.PrecipitationBand)

	tests := []struct {
		name   string
		precip float64
	}{
		{"moderate rainfall", 100},
		{"heavy rainfall", 2400},
		{"trace rainfall", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := engine.Sample{Values: map[string]float64{precipKey: tt.precip}}
			got := r.Eval(s)
			want := 0.0483 * math.Pow(tt.precip, 1.610)
			if math.Abs(got-want) > 1e-9 {
				t.Errorf("R(%v) = %v, want %v", tt.precip, got, want)
			}
		})
	}

	t.Run("empty window yields zero erosivity", func(t *testing.T) {
		// Summing zero images leaves the layer fully masked, which the
		// builder gap-fills to zero instead of failing.
		empty := R(testAOI(), models.TemporalWindow{From: "2023-01-01", To: "2023-01-01"})
		if got := empty.Eval(engine.Sample{}); got != 0 {
			t.Errorf("R over empty window = %v, want 0", got)
		}
	})
}

func TestLSFactor(t *testing.T) {
	const pixelSize = 30.0

	l, s, err := LS(testAOI(), datasets.SRTM, pixelSize)
	if err != nil {
		t.Fatalf("LS() error = %v", err)
	}

	slopeSample := func(deg float64) engine.Sample {
		return engine.Sample{Values: map[string]float64{engine.SlopeKey: deg}}
	}

	t.Run("exponent is piecewise by slope percent", func(t *testing.T) {
		tests := []struct {
			name     string
			slopeDeg float64
			wantM    float64
		}{
			{"flat", 0.3, 0.2},         // ~0.52% -> (-1,1]
			{"gentle", 1.2, 0.3},       // ~2.09% -> (1,3]
			{"moderate", 2.0, 0.4},     // ~3.49% -> (3,4.5]
			{"steep", 5.0, 0.5},        // ~8.75% -> (4.5,100]
			{"cliff", 46.0, 1.0},       // ~103.6% -> outside every range
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := l.Eval(slopeSample(tt.slopeDeg))
				want := math.Pow(pixelSize/22.13, tt.wantM)
				if math.Abs(got-want) > 1e-9 {
					t.Errorf("L(slope=%v°) = %v, want %v (m=%v)", tt.slopeDeg, got, want, tt.wantM)
				}
			})
		}
	})

	t.Run("steepness follows the quadratic relation", func(t *testing.T) {
		for _, deg := range []float64{0.5, 2, 5, 15, 30} {
			slopePerc := math.Tan(deg/180*math.Pi) * 100
			want := (math.Pow(slopePerc, 2)*0.043 + slopePerc*0.30 + 0.43) / 6.613

			got := s.Eval(slopeSample(deg))
			if math.Abs(got-want) > 1e-9 {
				t.Errorf("S(slope=%v°) = %v, want %v", deg, got, want)
			}
		}
	})

	t.Run("missing terrain gap-fills steepness", func(t *testing.T) {
		if got := s.Eval(engine.Sample{}); got != SGapFill {
			t.Errorf("S over masked terrain = %v, want %v", got, SGapFill)
		}
	})

	t.Run("unknown DEM source fails", func(t *testing.T) {
		if _, _, err := LS(testAOI(), "ASTER", pixelSize); err == nil {
			t.Error("LS() expected error for unknown DEM source")
		}
	})
}

func TestCFactor(t *testing.T) {
	c := C(testAOI(), testWindow())

	compositeKey := engine.CollectionKey("median", datasets.ReflectanceDataset, "")
	reflectanceSample := func(nirDN, redDN float64) engine.Sample {
		return engine.Sample{Values: map[string]float64{
			compositeKey + ":" + datasets.NIRBand: nirDN,
			compositeKey + ":" + datasets.RedBand: redDN,
		}}
	}

	t.Run("cover factor from scaled NDVI", func(t *testing.T) {
		tests := []struct {
			name         string
			nirDN, redDN float64
		}{
			{"dense vegetation", 22000, 9000},
			{"sparse vegetation", 14000, 12000},
			{"bare ground", 11000, 10500},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				nir := tt.nirDN*0.0000275 + -0.2
				red := tt.redDN*0.0000275 + -0.2
				ndvi := (nir - red) / (nir + red)
				want := 0.431 - ndvi*0.805

				got := c.Eval(reflectanceSample(tt.nirDN, tt.redDN))
				if math.Abs(got-want) > 1e-9 {
					t.Errorf("C = %v, want %v", got, want)
				}
			})
		}
	})

	t.Run("missing reflectance gap-fills", func(t *testing.T) {
		if got := c.Eval(engine.Sample{}); got != CGapFill {
			t.Errorf("C over masked reflectance = %v, want %v", got, CGapFill)
		}
	})
}

func TestPFactor(t *testing.T) {
	p := P(testAOI(), DefaultPracticeFallback)
	landCoverKey := engine.CollectionKey("first", datasets.LandCoverDataset, datasets.LandCoverBand)

	classSample := func(class float64) engine.Sample {
		return engine.Sample{Values: map[string]float64{landCoverKey: class}}
	}

	tests := []struct {
		name  string
		class float64
		want  float64
	}{
		{"evergreen needleleaf forest", 1, 0.8},
		{"grassland", 10, 0.8},
		{"permanent wetland", 11, 1.0},
		{"cropland", 12, 0.5},
		{"urban", 13, 1.0},
		{"cropland mosaic", 14, 0.5},
		{"water", 17, 1.0},
		{"unmapped class takes fallback", 255, DefaultPracticeFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Eval(classSample(tt.class)); got != tt.want {
				t.Errorf("P(class=%v) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}

	t.Run("missing land cover gap-fills", func(t *testing.T) {
		if got := p.Eval(engine.Sample{}); got != PGapFill {
			t.Errorf("P over masked land cover = %v, want %v", got, PGapFill)
		}
	})

	t.Run("custom fallback applies to unmapped classes only", func(t *testing.T) {
		custom := P(testAOI(), 0.9)
		if got := custom.Eval(classSample(255)); got != 0.9 {
			t.Errorf("P(class=255, fallback=0.9) = %v, want 0.9", got)
		}
		if got := custom.Eval(classSample(12)); got != 0.5 {
			t.Errorf("P(class=12, fallback=0.9) = %v, want 0.5", got)
		}
	})
}
