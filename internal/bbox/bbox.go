package bbox

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch indicates two bounding boxes of different
// dimensionality were combined.
var ErrDimensionMismatch = errors.New("bounding box dimension mismatch")

// BoundingBox is an axis-aligned hyperrectangle: D closed intervals
// [Lo[d], Hi[d]]. A valid box has Lo[d] <= Hi[d] for every d. Two sentinel
// forms are used by the protocol:
//
//   - Empty: Lo[d] = +Inf, Hi[d] = -Inf for every d — the union identity.
//   - Placeholder: Lo[d] = Hi[d] = -1 for every d — a pre-sized, not-yet-received
//     wire entry.
type BoundingBox struct {
	Lo []float64
	Hi []float64
}

// New builds a BoundingBox from explicit bounds. It does not enforce
// Lo[d] <= Hi[d]; sentinel boxes are deliberately out of that invariant.
func New(lo, hi []float64) (BoundingBox, error) {
	if len(lo) != len(hi) {
		return BoundingBox{}, fmt.Errorf("%w: lo has %d dims, hi has %d", ErrDimensionMismatch, len(lo), len(hi))
	}
	return BoundingBox{Lo: append([]float64(nil), lo...), Hi: append([]float64(nil), hi...)}, nil
}

// Empty returns the dim-dimensional union identity: Lo = +Inf, Hi = -Inf.
func Empty(dim int) BoundingBox {
	bb := BoundingBox{Lo: make([]float64, dim), Hi: make([]float64, dim)}
	for d := 0; d < dim; d++ {
		bb.Lo[d] = math.Inf(1)
		bb.Hi[d] = math.Inf(-1)
	}
	return bb
}

// Placeholder returns the dim-dimensional wire pre-sizing sentinel used by
// communicateBoundingBox before the real remote box arrives: Lo[d] =
// Hi[d] = -1.
func Placeholder(dim int) BoundingBox {
	bb := BoundingBox{Lo: make([]float64, dim), Hi: make([]float64, dim)}
	for d := 0; d < dim; d++ {
		bb.Lo[d] = -1
		bb.Hi[d] = -1
	}
	return bb
}

// Zero returns the dim-dimensional degenerate box at the origin: Lo[d] =
// Hi[d] = 0. prepareBoundingBox falls back to this when no mapping is
// attached, before dilation (see Prepare in dilate.go).
func Zero(dim int) BoundingBox {
	return BoundingBox{Lo: make([]float64, dim), Hi: make([]float64, dim)}
}

// Dim returns the number of dimensions.
func (bb BoundingBox) Dim() int {
	return len(bb.Lo)
}

// IsEmpty reports whether bb is the Empty sentinel (Lo[d] = +Inf, Hi[d] =
// -Inf for every d).
func (bb BoundingBox) IsEmpty() bool {
	for d := range bb.Lo {
		if !math.IsInf(bb.Lo[d], 1) || !math.IsInf(bb.Hi[d], -1) {
			return false
		}
	}
	return true
}

// Equal reports whether bb and other have identical bounds in every
// dimension. Used for the round-trip serialization property and tests;
// NaN-free by construction so direct float comparison is exact here.
func (bb BoundingBox) Equal(other BoundingBox) bool {
	if bb.Dim() != other.Dim() {
		return false
	}
	for d := range bb.Lo {
		if bb.Lo[d] != other.Lo[d] || bb.Hi[d] != other.Hi[d] {
			return false
		}
	}
	return true
}

// Union returns the componentwise min(Lo)/max(Hi) of a and b: the smallest
// box containing both. Empty is the identity element for Union.
func Union(a, b BoundingBox) (BoundingBox, error) {
	if a.Dim() != b.Dim() {
		return BoundingBox{}, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, a.Dim(), b.Dim())
	}
	out := BoundingBox{Lo: make([]float64, a.Dim()), Hi: make([]float64, a.Dim())}
	for d := range a.Lo {
		out.Lo[d] = math.Min(a.Lo[d], b.Lo[d])
		out.Hi[d] = math.Max(a.Hi[d], b.Hi[d])
	}
	return out, nil
}

func (bb BoundingBox) String() string {
	return fmt.Sprintf("%v", [2][]float64{bb.Lo, bb.Hi})
}
