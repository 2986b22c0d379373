package bbox

// Overlapping implements the overlap predicate (C2): a and b overlap iff
// their projections overlap in every dimension, in the closed-interval
// sense (touching endpoints count as overlap).
//
// Per dimension d, A and B are declared non-overlapping iff both endpoints
// of one lie strictly below the lower endpoint of the other:
//
//	(A.Lo < B.Lo && A.Hi < B.Lo) || (B.Lo < A.Lo && B.Hi < A.Lo)
//
// This asymmetric formulation — comparing both endpoints of one side
// against only the lower endpoint of the other — is what makes a sentinel
// box (Hi < Lo) fail to overlap any valid box: the Empty sentinel's Lo
// (+Inf) lies above both endpoints of any valid box, so the clause with the
// valid box on the left always fires, and the comparison never needs the
// sentinel's own Hi to be a well-formed upper bound.
//
// Overlapping is symmetric in its arguments and panics if a and b have
// different dimensionality, since that can only happen from a caller bug
// (a mismatched mesh dimension never reaches this far in the protocol).
func Overlapping(a, b BoundingBox) bool {
	if a.Dim() != b.Dim() {
		panic("bbox: Overlapping called with mismatched dimensions")
	}

	for d := range a.Lo {
		if (a.Lo[d] < b.Lo[d] && a.Hi[d] < b.Lo[d]) || (b.Lo[d] < a.Lo[d] && b.Hi[d] < a.Lo[d]) {
			return false
		}
	}
	return true
}
