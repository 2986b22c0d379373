// Package rbboxmetrics exposes Prometheus metrics for the received-bounding-box
// connectivity protocol: phase timings, overlap-set sizes, feedback-map size,
// and transport error counts.
package rbboxmetrics
