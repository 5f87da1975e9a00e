package engine

import (
	"fmt"
	"math"
)

// SlopeKey binds terrain-slope nodes during pointwise evaluation.
const SlopeKey = "slope"

// ImageKey returns the binding key for a dataset image leaf.
func ImageKey(dataset, band string) string {
	return dataset + ":" + band
}

// CollectionKey returns the binding key for a collection reduction leaf.
// The band is omitted from the key when the collection selects none.
func CollectionKey(reducer, dataset, band string) string {
	if band == "" {
		return fmt.Sprintf("%s(%s)", reducer, dataset)
	}
	return fmt.Sprintf("%s(%s:%s)", reducer, dataset, band)
}

// Sample binds leaf values for pointwise evaluation of an expression at a
// single pixel. Leaves without a binding evaluate as masked. Evaluation is
// local arithmetic only; the remote engine is never involved.
type Sample struct {
	Values map[string]float64
}

// Eval evaluates the expression at the sampled pixel. Masked pixels are
// represented as NaN until an Unmask node substitutes its fill value,
// mirroring the remote engine's gap-fill semantics.
func (e *Expr) Eval(s Sample) float64 {
	switch e.Op {
	case OpConstant:
		return e.Value

	case OpImage:
		return s.lookup(ImageKey(e.Dataset, e.Band))

	case OpCollection:
		return s.lookup(CollectionKey(e.Reducer, e.Dataset, e.Band))

	case OpSlope:
		return s.lookup(SlopeKey)

	case OpSelect:
		// Band selection over a composite resolves against the composite's
		// leaf key, seeing through pointwise-identity wrappers; anywhere else
		// it is itself a pointwise identity.
		in := e.Inputs[0]
		for in.Op == OpClip || in.Op == OpRename || in.Op == OpReproject {
			in = in.Inputs[0]
		}
		if in.Op == OpCollection {
			return s.lookup(CollectionKey(in.Reducer, in.Dataset, in.Band) + ":" + e.Band)
		}
		return e.Inputs[0].Eval(s)

	case OpAdd:
		return e.Inputs[0].Eval(s) + e.Inputs[1].Eval(s)
	case OpSubtract:
		return e.Inputs[0].Eval(s) - e.Inputs[1].Eval(s)
	case OpMultiply:
		return e.Inputs[0].Eval(s) * e.Inputs[1].Eval(s)
	case OpDivide:
		return e.Inputs[0].Eval(s) / e.Inputs[1].Eval(s)
	case OpPow:
		return math.Pow(e.Inputs[0].Eval(s), e.Inputs[1].Eval(s))
	case OpExp:
		return math.Exp(e.Inputs[0].Eval(s))
	case OpTan:
		return math.Tan(e.Inputs[0].Eval(s))

	case OpGt:
		return compare(e.Inputs[0].Eval(s), e.Inputs[1].Eval(s), func(a, b float64) bool { return a > b })
	case OpLte:
		return compare(e.Inputs[0].Eval(s), e.Inputs[1].Eval(s), func(a, b float64) bool { return a <= b })
	case OpEq:
		return compare(e.Inputs[0].Eval(s), e.Inputs[1].Eval(s), func(a, b float64) bool { return a == b })
	case OpAnd:
		return compare(e.Inputs[0].Eval(s), e.Inputs[1].Eval(s), func(a, b float64) bool { return a != 0 && b != 0 })

	case OpWhere:
		in := e.Inputs[0].Eval(s)
		cond := e.Inputs[1].Eval(s)
		if !math.IsNaN(cond) && cond != 0 {
			return e.Value
		}
		return in

	case OpUnmask:
		v := e.Inputs[0].Eval(s)
		if math.IsNaN(v) {
			return e.Value
		}
		return v

	case OpNormDiff:
		a := e.Inputs[0].Eval(s)
		b := e.Inputs[1].Eval(s)
		return (a - b) / (a + b)

	case OpClip, OpRename, OpReproject:
		// Pointwise identities: clipping assumes the sampled pixel lies
		// inside the geometry.
		return e.Inputs[0].Eval(s)

	default:
		return math.NaN()
	}
}

func (s Sample) lookup(key string) float64 {
	if v, ok := s.Values[key]; ok {
		return v
	}
	return math.NaN()
}

func compare(a, b float64, pred func(a, b float64) bool) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if pred(a, b) {
		return 1
	}
	return 0
}
