// Package transport implements the wire codec and TCP-backed channels for
// the partition protocol's two channel kinds: the inter-participant m2n
// channel and the intra-participant broadcast/gather channel.
//
// The wire format is plain big-endian binary, not a general-purpose
// serialization format: a BoundingBoxMap is size, then size entries of
// (rank int32, lo[D] float64, hi[D] float64); a FeedbackMap is size, then
// size entries of (rank int32, k int32, ids[k] int32) with k omitted from
// the entry only insofar as a zero k carries no ids — the length is always
// sent.
package transport
