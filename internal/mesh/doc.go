// Package mesh provides in-memory Mesh and Mapping implementations used by
// the couplingd daemon and by tests: StaticMesh holds a precomputed
// bounding box rather than deriving one from vertex data, since vertex-level
// mesh representation is out of scope for this subsystem.
package mesh
