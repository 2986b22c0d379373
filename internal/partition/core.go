package partition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couplingrt/rbbox/internal/bbox"
	rbboxmetrics "github.com/couplingrt/rbbox/internal/metrics"
)

// ErrCommunicateFailed wraps any m2n transport failure during Phase 1.
var ErrCommunicateFailed = errors.New("communicate bounding box: transport failure")

// ErrComputeFailed wraps any intra-participant transport failure during Phase 2.
var ErrComputeFailed = errors.New("compute bounding box: transport failure")

// Config configures a ReceivedBoundingBox instance. The caller guarantees
// that Mesh, Mapping, and channel references outlive the instance.
type Config struct {
	// Dim is the mesh spatial dimension (2 or 3).
	Dim int

	// Role is this rank's role within its participant.
	Role Role

	// LocalSize is the total rank count of this participant. Required for
	// RoleMaster (must be > 1) and ignored for RoleSlave.
	LocalSize int

	// LocalRank is this rank's identifier within its participant. Must be
	// 0 for RoleMaster, > 0 for RoleSlave.
	LocalRank int

	// SafetyFactor dilates the local bounding box. Must be >= 0.
	SafetyFactor float64

	// FromMapping and ToMapping are the attached mapping collaborators;
	// either, or both, may be nil.
	FromMapping Mapping
	ToMapping   Mapping

	// M2N is the inter-participant channel. Required for RoleMaster, unused
	// for RoleSlave.
	M2N M2NChannel

	// Intra is the intra-participant channel. Required for every role
	// except RoleSolo.
	Intra IntraChannel

	// ParticipantName and MeshName label emitted metrics and log lines.
	ParticipantName string
	MeshName        string

	Logger  *slog.Logger
	Metrics *rbboxmetrics.Collector
}

// ReceivedBoundingBox computes the feedback map from local ranks to
// overlapping remote ranks for one coupled mesh. It is created after
// mappings are attached, runs CommunicateBoundingBox then
// ComputeBoundingBox exactly once each, and is read-only thereafter.
type ReceivedBoundingBox struct {
	cfg Config

	state State

	bb               bbox.BoundingBox
	remoteParComSize int
	remoteBBM        bbox.Map
	localOverlap     []int
	feedbackMap      FeedbackMap

	logger *slog.Logger
}

// New validates cfg and returns a fresh ReceivedBoundingBox in StateFresh.
// Role/rank inconsistencies and a negative safety factor are programmer
// errors and panic.
func New(cfg Config) *ReceivedBoundingBox {
	if cfg.SafetyFactor < 0 {
		panic("partition: SafetyFactor must be >= 0")
	}

	switch cfg.Role {
	case RoleMaster:
		if cfg.LocalRank != 0 {
			panic("partition: RoleMaster requires LocalRank == 0")
		}
		if cfg.LocalSize <= 1 {
			panic("partition: RoleMaster requires LocalSize > 1")
		}
		if cfg.M2N == nil {
			panic("partition: RoleMaster requires a non-nil M2N channel")
		}
		if cfg.Intra == nil {
			panic("partition: RoleMaster requires a non-nil Intra channel")
		}
	case RoleSlave:
		if cfg.LocalRank <= 0 {
			panic("partition: RoleSlave requires LocalRank > 0")
		}
		if cfg.Intra == nil {
			panic("partition: RoleSlave requires a non-nil Intra channel")
		}
	case RoleSolo:
		// Permitted to construct; both phases panic when invoked.
	default:
		panic(fmt.Sprintf("partition: unknown role %v", cfg.Role))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(
		slog.String("component", "partition"),
		slog.String("participant", cfg.ParticipantName),
		slog.String("mesh", cfg.MeshName),
		slog.String("role", cfg.Role.String()),
	)

	return &ReceivedBoundingBox{
		cfg:    cfg,
		state:  StateFresh,
		logger: logger,
	}
}

// State returns the instance's current lifecycle state.
func (r *ReceivedBoundingBox) State() State {
	return r.state
}

// BoundingBox returns this rank's local bounding box. Only meaningful once
// State() is at least StateComputed.
func (r *ReceivedBoundingBox) BoundingBox() bbox.BoundingBox {
	return r.bb
}

// LocalOverlap returns this rank's own overlap list (ascending remote
// rank), computed during ComputeBoundingBox. Not the same as FeedbackMap:
// every rank has a LocalOverlap, but only the master assembles a FeedbackMap.
func (r *ReceivedBoundingBox) LocalOverlap() []int {
	return append([]int(nil), r.localOverlap...)
}

// FeedbackMap returns the feedback map the master sent to the remote
// master. Only populated on RoleMaster after ComputeBoundingBox returns.
func (r *ReceivedBoundingBox) FeedbackMap() FeedbackMap {
	return r.feedbackMap
}
