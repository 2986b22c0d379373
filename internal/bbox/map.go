package bbox

import "sort"

// Map is a BoundingBoxMap: remote rank -> BoundingBox. Keys are dense over
// [0, size) in the protocol's normal operation, but Map itself does not
// enforce density so it can also hold a sparse feedback-adjacent view in
// tests.
type Map map[int]BoundingBox

// SortedRanks returns m's keys in ascending order. Iteration order over a
// Go map is randomized, so every place the protocol requires deterministic,
// ascending-by-remote-rank iteration must go through this helper instead
// of ranging over m directly.
func (m Map) SortedRanks() []int {
	ranks := make([]int, 0, len(m))
	for r := range m {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)
	return ranks
}

// NewPlaceholderMap builds a Map with keys 0..size-1 each mapped to a
// Placeholder box of the given dimension, so the BoundingBoxMap receive
// primitive can deserialize in place without allocating new entries.
func NewPlaceholderMap(size, dim int) Map {
	m := make(Map, size)
	for r := 0; r < size; r++ {
		m[r] = Placeholder(dim)
	}
	return m
}
