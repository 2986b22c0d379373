package mesh

import (
	"errors"
	"fmt"

	"github.com/couplingrt/rbbox/internal/bbox"
	"github.com/couplingrt/rbbox/internal/partition"
)

// ErrNoVertices is returned by NewStaticMesh when constructed from zero points.
var ErrNoVertices = errors.New("mesh: no vertices")

// StaticMesh is a read-only mesh backed by a precomputed bounding box. It
// implements partition.Mesh.
type StaticMesh struct {
	dim int
	bb  bbox.BoundingBox
}

// NewStaticMesh derives a StaticMesh's bounding box from a flat list of
// vertex coordinates, dim floats each.
func NewStaticMesh(dim int, vertices [][]float64) (*StaticMesh, error) {
	if len(vertices) == 0 {
		return nil, ErrNoVertices
	}

	lo := make([]float64, dim)
	hi := make([]float64, dim)
	copy(lo, vertices[0])
	copy(hi, vertices[0])

	for _, v := range vertices[1:] {
		if len(v) != dim {
			return nil, fmt.Errorf("mesh: vertex has %d coordinates, want %d", len(v), dim)
		}
		for d := 0; d < dim; d++ {
			if v[d] < lo[d] {
				lo[d] = v[d]
			}
			if v[d] > hi[d] {
				hi[d] = v[d]
			}
		}
	}

	bb, err := bbox.New(lo, hi)
	if err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}

	return &StaticMesh{dim: dim, bb: bb}, nil
}

// NewStaticMeshFromBoundingBox wraps an already-computed bounding box
// directly, bypassing vertex aggregation. Used by tests and by any caller
// that already tracks its mesh extent incrementally.
func NewStaticMeshFromBoundingBox(bb bbox.BoundingBox) *StaticMesh {
	return &StaticMesh{dim: bb.Dim(), bb: bb}
}

// Dimensions returns the mesh's spatial dimension.
func (m *StaticMesh) Dimensions() int { return m.dim }

// BoundingBox returns the mesh's axis-aligned bounding box.
func (m *StaticMesh) BoundingBox() bbox.BoundingBox { return m.bb }

// StaticMapping implements partition.Mapping over a fixed pair of meshes,
// either of which may be nil: a mapping may be attached on only one side.
type StaticMapping struct {
	Output *StaticMesh
	Input  *StaticMesh
}

// OutputMesh returns the mapping's output-side mesh, or nil if unattached.
func (m StaticMapping) OutputMesh() partition.Mesh {
	if m.Output == nil {
		return nil
	}
	return m.Output
}

// InputMesh returns the mapping's input-side mesh, or nil if unattached.
func (m StaticMapping) InputMesh() partition.Mesh {
	if m.Input == nil {
		return nil
	}
	return m.Input
}
