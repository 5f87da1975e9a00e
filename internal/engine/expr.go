package engine

import (
	"encoding/json"
	"fmt"
)

// Op identifies the operation of a raster expression node.
type Op string

const (
	OpConstant   Op = "constant"
	OpImage      Op = "image"
	OpCollection Op = "collection"
	OpSlope      Op = "slope"
	OpSelect     Op = "select"
	OpAdd        Op = "add"
	OpSubtract   Op = "subtract"
	OpMultiply   Op = "multiply"
	OpDivide     Op = "divide"
	OpPow        Op = "pow"
	OpExp        Op = "exp"
	OpTan        Op = "tan"
	OpGt         Op = "gt"
	OpLte        Op = "lte"
	OpEq         Op = "eq"
	OpAnd        Op = "and"
	OpWhere      Op = "where"
	OpUnmask     Op = "unmask"
	OpClip       Op = "clip"
	OpRename     Op = "rename"
	OpNormDiff   Op = "normalized_difference"
	OpReproject  Op = "reproject"
)

// Geometry is a GeoJSON geometry in WGS84. Coordinates are kept raw so the
// payload sent to the remote engine is exactly what the caller supplied.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Rings returns the linear rings of the geometry. For a MultiPolygon the rings
// of all member polygons are concatenated.
func (g *Geometry) Rings() ([][][]float64, error) {
	switch g.Type {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("invalid polygon coordinates: %w", err)
		}
		return rings, nil
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("invalid multipolygon coordinates: %w", err)
		}
		var rings [][][]float64
		for _, p := range polys {
			rings = append(rings, p...)
		}
		return rings, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}
}

// Expr is an immutable, lazily evaluated raster expression. Composing
// expressions builds a new graph node; nothing touches the network until the
// graph is handed to a Session reduction, tiling, or export call.
type Expr struct {
	Op       Op       `json:"op"`
	Value    float64  `json:"value,omitempty"`
	Dataset  string   `json:"dataset,omitempty"`
	Band     string   `json:"band,omitempty"`
	Reducer  string   `json:"reducer,omitempty"`
	Start    string   `json:"start,omitempty"`
	End      string   `json:"end,omitempty"`
	CRS      string   `json:"crs,omitempty"`
	Scale    float64  `json:"scale,omitempty"`
	Geometry *Geometry `json:"geometry,omitempty"`
	Inputs   []*Expr  `json:"inputs,omitempty"`
}

// Constant builds a uniform-valued layer.
func Constant(v float64) *Expr {
	return &Expr{Op: OpConstant, Value: v}
}

// Image loads a named single-band dataset.
func Image(dataset, band string) *Expr {
	return &Expr{Op: OpImage, Dataset: dataset, Band: band}
}

// TerrainSlope derives slope in degrees from an elevation layer.
func TerrainSlope(dem *Expr) *Expr {
	return &Expr{Op: OpSlope, Inputs: []*Expr{dem}}
}

// NormalizedDifference computes (a-b)/(a+b).
func NormalizedDifference(a, b *Expr) *Expr {
	return &Expr{Op: OpNormDiff, Inputs: []*Expr{a, b}}
}

func binary(op Op, a, b *Expr) *Expr {
	return &Expr{Op: op, Inputs: []*Expr{a, b}}
}

// Add returns e + o.
func (e *Expr) Add(o *Expr) *Expr { return binary(OpAdd, e, o) }

// Subtract returns e - o.
func (e *Expr) Subtract(o *Expr) *Expr { return binary(OpSubtract, e, o) }

// Multiply returns e * o.
func (e *Expr) Multiply(o *Expr) *Expr { return binary(OpMultiply, e, o) }

// Divide returns e / o.
func (e *Expr) Divide(o *Expr) *Expr { return binary(OpDivide, e, o) }

// Pow returns e raised elementwise to o.
func (e *Expr) Pow(o *Expr) *Expr { return binary(OpPow, e, o) }

// Exp returns exp(e).
func (e *Expr) Exp() *Expr { return &Expr{Op: OpExp, Inputs: []*Expr{e}} }

// Tan returns tan(e), with e in radians.
func (e *Expr) Tan() *Expr { return &Expr{Op: OpTan, Inputs: []*Expr{e}} }

// Gt returns a 0/1 mask of e > o.
func (e *Expr) Gt(o *Expr) *Expr { return binary(OpGt, e, o) }

// Lte returns a 0/1 mask of e <= o.
func (e *Expr) Lte(o *Expr) *Expr { return binary(OpLte, e, o) }

// Eq returns a 0/1 mask of e == o.
func (e *Expr) Eq(o *Expr) *Expr { return binary(OpEq, e, o) }

// And returns a 0/1 mask of both operands being nonzero.
func (e *Expr) And(o *Expr) *Expr { return binary(OpAnd, e, o) }

// Where overwrites pixels of e with value wherever cond is nonzero.
func (e *Expr) Where(cond *Expr, value float64) *Expr {
	return &Expr{Op: OpWhere, Value: value, Inputs: []*Expr{e, cond}}
}

// Unmask fills masked pixels with a constant.
func (e *Expr) Unmask(fill float64) *Expr {
	return &Expr{Op: OpUnmask, Value: fill, Inputs: []*Expr{e}}
}

// Clip restricts the layer to a geometry.
func (e *Expr) Clip(g *Geometry) *Expr {
	return &Expr{Op: OpClip, Geometry: g, Inputs: []*Expr{e}}
}

// Rename tags the layer with a semantic band name.
func (e *Expr) Rename(band string) *Expr {
	return &Expr{Op: OpRename, Band: band, Inputs: []*Expr{e}}
}

// Select picks a band from a composite layer.
func (e *Expr) Select(band string) *Expr {
	return &Expr{Op: OpSelect, Band: band, Inputs: []*Expr{e}}
}

// Reproject resamples the layer to the given CRS and scale in meters.
func (e *Expr) Reproject(crs string, scale float64) *Expr {
	return &Expr{Op: OpReproject, CRS: crs, Scale: scale, Inputs: []*Expr{e}}
}

// Name returns the outermost band name assigned via Rename, or "" when the
// layer was never renamed.
func (e *Expr) Name() string {
	for n := e; n != nil; {
		if n.Op == OpRename {
			return n.Band
		}
		if len(n.Inputs) == 0 {
			return ""
		}
		n = n.Inputs[0]
	}
	return ""
}

// ImageCollection describes a filtered view over a named image series. It is a
// value type: filters return modified copies.
type ImageCollection struct {
	Dataset string
	Band    string
	Start   string
	End     string
	Bounds  *Geometry
}

// Collection references a named image series, optionally pre-selecting a band.
func Collection(dataset, band string) ImageCollection {
	return ImageCollection{Dataset: dataset, Band: band}
}

// FilterDate restricts the collection to [start, end). An empty window
// (start == end) is legal and reduces over zero images.
func (c ImageCollection) FilterDate(start, end string) ImageCollection {
	c.Start = start
	c.End = end
	return c
}

// FilterBounds restricts the collection to images intersecting the geometry.
func (c ImageCollection) FilterBounds(g *Geometry) ImageCollection {
	c.Bounds = g
	return c
}

func (c ImageCollection) reduce(reducer string) *Expr {
	return &Expr{
		Op:       OpCollection,
		Dataset:  c.Dataset,
		Band:     c.Band,
		Reducer:  reducer,
		Start:    c.Start,
		End:      c.End,
		Geometry: c.Bounds,
	}
}

// Sum reduces the collection to a per-pixel sum. Reducing an empty collection
// yields a fully masked layer, not an error.
func (c ImageCollection) Sum() *Expr { return c.reduce("sum") }

// Median reduces the collection to a per-pixel median composite.
func (c ImageCollection) Median() *Expr { return c.reduce("median") }

// MostRecent picks the newest image in the collection.
func (c ImageCollection) MostRecent() *Expr { return c.reduce("first") }
