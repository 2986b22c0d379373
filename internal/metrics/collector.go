package rbboxmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "rbbox"
	subsystem = "partition"
)

// Label names for connectivity-protocol metrics.
const (
	labelParticipant = "participant"
	labelMesh        = "mesh"
	labelPhase       = "phase"
	labelLocalRank   = "local_rank"
	labelChannel     = "channel"
	labelDirection   = "direction"
)

// Phase label values, matching the two protocol operations.
const (
	PhaseCommunicate = "communicate"
	PhaseCompute     = "compute"
)

// Channel label values.
const (
	ChannelM2N   = "m2n"
	ChannelIntra = "intra"
)

// Direction label values.
const (
	DirectionSend    = "send"
	DirectionReceive = "receive"
)

// -------------------------------------------------------------------------
// Collector — Prometheus connectivity-protocol metrics
// -------------------------------------------------------------------------

// Collector holds all connectivity-protocol Prometheus metrics.
//
//   - PhaseDuration times communicateBoundingBox and computeBoundingBox.
//   - OverlapCount tracks the size of each local rank's overlap set.
//   - FeedbackMapSize tracks the total entry count of the feedback map
//     assembled by the master (slave entries holding the [-1] sentinel
//     included), so an empty feedback map stays observable without being
//     treated as fatal.
//   - TransportErrors counts send/receive failures per channel.
type Collector struct {
	PhaseDuration   *prometheus.HistogramVec
	OverlapCount    *prometheus.GaugeVec
	FeedbackMapSize *prometheus.GaugeVec
	TransportErrors *prometheus.CounterVec
}

// NewCollector creates a Collector with all metrics registered against reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.PhaseDuration,
		c.OverlapCount,
		c.FeedbackMapSize,
		c.TransportErrors,
	)

	return c
}

// newMetrics creates all metric vectors without registering them.
func newMetrics() *Collector {
	return &Collector{
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "phase_duration_seconds",
			Help:      "Wall time of communicateBoundingBox/computeBoundingBox.",
			Buckets:   prometheus.DefBuckets,
		}, []string{labelParticipant, labelMesh, labelPhase}),

		OverlapCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "overlap_count",
			Help:      "Number of remote ranks overlapping this local rank's bounding box.",
		}, []string{labelParticipant, labelMesh, labelLocalRank}),

		FeedbackMapSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "feedback_map_size",
			Help:      "Total entry count of the feedback map sent to the remote master.",
		}, []string{labelParticipant, labelMesh}),

		TransportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transport_errors_total",
			Help:      "Send/receive failures on the m2n or intra-participant channel.",
		}, []string{labelChannel, labelDirection}),
	}
}

// ObservePhaseDuration records the wall time of a protocol phase.
func (c *Collector) ObservePhaseDuration(participant, mesh, phase string, seconds float64) {
	if c == nil {
		return
	}
	c.PhaseDuration.WithLabelValues(participant, mesh, phase).Observe(seconds)
}

// SetOverlapCount records the current overlap-set size for a local rank.
func (c *Collector) SetOverlapCount(participant, mesh string, localRank, count int) {
	if c == nil {
		return
	}
	c.OverlapCount.WithLabelValues(participant, mesh, strconv.Itoa(localRank)).Set(float64(count))
}

// SetFeedbackMapSize records the master's assembled feedback-map entry count.
func (c *Collector) SetFeedbackMapSize(participant, mesh string, size int) {
	if c == nil {
		return
	}
	c.FeedbackMapSize.WithLabelValues(participant, mesh).Set(float64(size))
}

// IncTransportError increments the transport error counter for a channel/direction pair.
func (c *Collector) IncTransportError(channel, direction string) {
	if c == nil {
		return
	}
	c.TransportErrors.WithLabelValues(channel, direction).Inc()
}
