// Package bbox implements the geometric data model of the coupling
// connectivity protocol: axis-aligned bounding boxes, their union and
// safety-factor dilation, and the pairwise overlap predicate.
//
// Every rank on a participant owns exactly one BoundingBox per coupled mesh.
// A BoundingBoxMap aggregates one BoundingBox per remote rank and is the
// payload exchanged between participants during connectivity discovery.
package bbox
