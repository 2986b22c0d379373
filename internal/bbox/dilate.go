package bbox

import "math"

// minDilationFloor is the floor applied to the merged box's largest side
// before scaling by safetyFactor, guaranteeing non-zero dilation even for a
// degenerate (point or line) merged box.
const minDilationFloor = 1e-6

// Dilate returns bb symmetrically expanded in every dimension by
// safetyFactor * maxSide, where maxSide = max(minDilationFloor, the largest
// side length of bb). safetyFactor must be >= 0; a negative value is a
// programmer error.
func Dilate(bb BoundingBox, safetyFactor float64) BoundingBox {
	if safetyFactor < 0 {
		panic("bbox: safetyFactor must be >= 0")
	}

	maxSide := minDilationFloor
	for d := range bb.Lo {
		if side := bb.Hi[d] - bb.Lo[d]; side > maxSide {
			maxSide = side
		}
	}

	delta := safetyFactor * maxSide
	out := BoundingBox{Lo: make([]float64, bb.Dim()), Hi: make([]float64, bb.Dim())}
	for d := range bb.Lo {
		out.Lo[d] = bb.Lo[d] - delta
		out.Hi[d] = bb.Hi[d] + delta
	}
	return out
}

// Prepare implements the local BB builder (C1): union zero or more attached
// mesh boxes, fall back to the origin if none were attached, then dilate.
//
// The empty-sentinel-to-origin fallback on the no-mapping path exists
// because Empty's Hi-Lo is -Inf, which cannot itself be dilated into a
// finite box; falling back to Zero first yields [-1e-6, +1e-6] per
// dimension after dilation instead.
func Prepare(dim int, safetyFactor float64, meshBoxes ...BoundingBox) (BoundingBox, error) {
	merged := Empty(dim)
	for _, mb := range meshBoxes {
		var err error
		merged, err = Union(merged, mb)
		if err != nil {
			return BoundingBox{}, err
		}
	}

	if merged.IsEmpty() {
		merged = Zero(dim)
	}

	return Dilate(merged, safetyFactor), nil
}

// maxSideOf reports the largest side length of bb; an unexported helper for
// in-package tests asserting the exact dilation amount without duplicating the Dilate
// formula.
func maxSideOf(bb BoundingBox) float64 {
	m := math.Inf(-1)
	for d := range bb.Lo {
		if side := bb.Hi[d] - bb.Lo[d]; side > m {
			m = side
		}
	}
	return m
}
