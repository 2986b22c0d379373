package partition

import (
	"context"

	"github.com/couplingrt/rbbox/internal/bbox"
)

// Role identifies a rank's position within its participant's rank group.
type Role uint8

const (
	// RoleSolo is the single-rank participant mode. RoleSolo exists so the
	// type is complete and misconfiguration is detectable, but
	// CommunicateBoundingBox and ComputeBoundingBox both panic if called
	// with this role: a lone rank has no remote peer to exchange bounding
	// boxes with and no intra-participant group to broadcast to.
	RoleSolo Role = iota

	// RoleMaster is rank 0 of a participant with more than one rank.
	RoleMaster

	// RoleSlave is any rank greater than 0.
	RoleSlave
)

func (r Role) String() string {
	switch r {
	case RoleSolo:
		return "Solo"
	case RoleMaster:
		return "Master"
	case RoleSlave:
		return "Slave"
	default:
		return "Unknown"
	}
}

// State is the lifecycle state of a ReceivedBoundingBox instance.
// Transitions are linear: each state is entered at most once.
type State uint8

const (
	// StateFresh is the initial state before either phase has run.
	StateFresh State = iota

	// StateBBReceived follows Phase 1 on the master, or is entered
	// implicitly by a slave once it has the broadcast remote bounding
	// boxes in hand.
	StateBBReceived

	// StateComputed follows Phase 2's local overlap computation.
	StateComputed

	// StateSealed marks the instance read-only; set immediately after
	// Phase 2 finishes.
	StateSealed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "Fresh"
	case StateBBReceived:
		return "BBReceived"
	case StateComputed:
		return "Computed"
	case StateSealed:
		return "Sealed"
	default:
		return "Unknown"
	}
}

// FeedbackMap maps a local rank to its ordered list of overlapping remote
// ranks. A slave rank with no overlap is represented, in memory, by the
// [-1] sentinel; the master's own key 0 is present only when its overlap
// set is non-empty.
type FeedbackMap map[int][]int

// Mesh is the read-only mesh collaborator. Only its bounding box is used
// by this subsystem; vertex-level data is out of scope.
type Mesh interface {
	// Dimensions returns the mesh's spatial dimension (2 or 3).
	Dimensions() int
	// BoundingBox returns the mesh's axis-aligned bounding box.
	BoundingBox() bbox.BoundingBox
}

// Mapping is the read-only mapping collaborator. A mapping exposes the mesh on whichever side is relevant to its direction;
// OutputMesh is used for a "from" mapping, InputMesh for a "to" mapping.
// Either accessor may return nil, which is a valid "not attached on this
// side" state, not an error.
type Mapping interface {
	OutputMesh() Mesh
	InputMesh() Mesh
}

// M2NChannel is the inter-participant (master-to-master) channel. Every
// operation is blocking and every failure is fatal to the coupling;
// callers propagate errors as-is.
type M2NChannel interface {
	Receive(ctx context.Context) (int, error)
	Send(ctx context.Context, x int) error

	// ReceiveBoundingBoxMap decodes the peer's BoundingBoxMap into into,
	// overwriting each existing key's value in place: into is pre-sized
	// with placeholders before this call, and each placeholder fixes the
	// rank key and the dimensionality its box is decoded at.
	ReceiveBoundingBoxMap(ctx context.Context, into bbox.Map) error
	SendBoundingBoxMap(ctx context.Context, m bbox.Map) error

	SendFeedbackMap(ctx context.Context, fm FeedbackMap) error
	ReceiveFeedbackMap(ctx context.Context) (FeedbackMap, error)
}

// IntraChannel is the one-to-many intra-participant channel, local-master
// rooted. Root-side methods (Broadcast*, ReceiveOverlapFrom) are called
// only by the master; non-root methods (Receive*, SendOverlap) are called
// only by slaves.
type IntraChannel interface {
	// BroadcastInt is the root-side int broadcast.
	BroadcastInt(ctx context.Context, x int) error
	// ReceiveInt is the non-root-side int broadcast receive.
	ReceiveInt(ctx context.Context) (int, error)

	// BroadcastBoundingBoxMap is the root-side BBM broadcast.
	BroadcastBoundingBoxMap(ctx context.Context, m bbox.Map) error
	// ReceiveBoundingBoxMap is the non-root-side BBM broadcast receive,
	// decoding into into (see M2NChannel.ReceiveBoundingBoxMap).
	ReceiveBoundingBoxMap(ctx context.Context, into bbox.Map) error

	// SendOverlap is the slave-side send of its own overlap list. The
	// length is always sent; the identifier list itself is sent only
	// when non-empty.
	SendOverlap(ctx context.Context, ids []int) error
	// ReceiveOverlapFrom is the master-side receive of one slave's
	// overlap list, honoring the same wire contract.
	ReceiveOverlapFrom(ctx context.Context, slaveRank int) ([]int, error)
}
