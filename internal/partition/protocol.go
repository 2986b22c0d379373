package partition

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couplingrt/rbbox/internal/bbox"
	rbboxmetrics "github.com/couplingrt/rbbox/internal/metrics"
)

// CommunicateBoundingBox runs Phase 1: the master-only inter-participant
// exchange that learns the peer participant's rank count and its full
// BoundingBoxMap. It is idempotent on a slave (a no-op, slaves block in
// Phase 2 instead) and must run exactly once on the master, before
// ComputeBoundingBox.
func (r *ReceivedBoundingBox) CommunicateBoundingBox(ctx context.Context) error {
	if r.cfg.Role == RoleSolo {
		panic("partition: CommunicateBoundingBox called with RoleSolo, which has no remote peer to exchange with")
	}
	if r.cfg.Role == RoleSlave {
		return nil
	}

	if r.state != StateFresh {
		panic(fmt.Sprintf("partition: CommunicateBoundingBox called out of order, state=%v", r.state))
	}

	start := time.Now()
	defer func() {
		r.metrics().ObservePhaseDuration(r.cfg.ParticipantName, r.cfg.MeshName, rbboxmetrics.PhaseCommunicate, time.Since(start).Seconds())
	}()

	size, err := r.cfg.M2N.Receive(ctx)
	if err != nil {
		r.metrics().IncTransportError(rbboxmetrics.ChannelM2N, rbboxmetrics.DirectionReceive)
		return fmt.Errorf("%w: receive remote participant size: %v", ErrCommunicateFailed, err)
	}

	placeholders := bbox.NewPlaceholderMap(size, r.cfg.Dim)
	if err := r.cfg.M2N.ReceiveBoundingBoxMap(ctx, placeholders); err != nil {
		r.metrics().IncTransportError(rbboxmetrics.ChannelM2N, rbboxmetrics.DirectionReceive)
		return fmt.Errorf("%w: receive remote bounding box map: %v", ErrCommunicateFailed, err)
	}

	r.remoteParComSize = size
	r.remoteBBM = placeholders
	r.state = StateBBReceived

	r.logger.InfoContext(ctx, "received remote bounding box map",
		slog.Int("remote_par_com_size", size))

	return nil
}

// ComputeBoundingBox runs Phase 2: every rank builds its local bounding
// box (C1), learns the peer BoundingBoxMap via the intra-participant
// broadcast, computes its own overlap set (C2, applied pairwise), and the
// master gathers every slave's overlap set into the FeedbackMap before
// sending it to the remote master.
//
// On the master this must follow CommunicateBoundingBox; on a slave it is
// the only call and implicitly enters StateBBReceived once the broadcast
// remote BoundingBoxMap arrives.
func (r *ReceivedBoundingBox) ComputeBoundingBox(ctx context.Context) error {
	if r.cfg.Role == RoleSolo {
		panic("partition: ComputeBoundingBox called with RoleSolo, which has no intra-participant group to broadcast to")
	}
	if r.cfg.Role == RoleMaster && r.state != StateBBReceived {
		panic(fmt.Sprintf("partition: ComputeBoundingBox called before CommunicateBoundingBox on master, state=%v", r.state))
	}
	if r.cfg.Role == RoleSlave && r.state != StateFresh {
		panic(fmt.Sprintf("partition: ComputeBoundingBox called out of order on slave, state=%v", r.state))
	}

	start := time.Now()
	defer func() {
		r.metrics().ObservePhaseDuration(r.cfg.ParticipantName, r.cfg.MeshName, rbboxmetrics.PhaseCompute, time.Since(start).Seconds())
	}()

	// Step 1 (C1): every rank builds its local bounding box.
	bb, err := r.prepareLocalBoundingBox()
	if err != nil {
		return err
	}
	r.bb = bb

	// Steps 2-3: two-level broadcast of remote participant size and BBM.
	if err := r.exchangeRemoteBBM(ctx); err != nil {
		return err
	}

	// Step 4 (C2): overlap set, ascending remote rank for determinism.
	r.localOverlap = computeOverlap(r.bb, r.remoteBBM)
	r.state = StateComputed
	r.metrics().SetOverlapCount(r.cfg.ParticipantName, r.cfg.MeshName, r.cfg.LocalRank, len(r.localOverlap))

	switch r.cfg.Role {
	case RoleSlave:
		if err := r.cfg.Intra.SendOverlap(ctx, r.localOverlap); err != nil {
			r.metrics().IncTransportError(rbboxmetrics.ChannelIntra, rbboxmetrics.DirectionSend)
			return fmt.Errorf("%w: send overlap list: %v", ErrComputeFailed, err)
		}
	case RoleMaster:
		if err := r.gatherFeedbackMapAndSend(ctx); err != nil {
			return err
		}
	}

	r.state = StateSealed
	r.logger.InfoContext(ctx, "computed bounding box", slog.Int("overlap_count", len(r.localOverlap)))

	return nil
}

// prepareLocalBoundingBox implements C1: union the attached mappings'
// meshes, dilate by the configured safety factor.
func (r *ReceivedBoundingBox) prepareLocalBoundingBox() (bbox.BoundingBox, error) {
	var meshBoxes []bbox.BoundingBox

	if r.cfg.FromMapping != nil {
		if m := r.cfg.FromMapping.OutputMesh(); m != nil {
			meshBoxes = append(meshBoxes, m.BoundingBox())
		}
	}
	if r.cfg.ToMapping != nil {
		if m := r.cfg.ToMapping.InputMesh(); m != nil {
			meshBoxes = append(meshBoxes, m.BoundingBox())
		}
	}

	bb, err := bbox.Prepare(r.cfg.Dim, r.cfg.SafetyFactor, meshBoxes...)
	if err != nil {
		return bbox.BoundingBox{}, fmt.Errorf("prepare local bounding box: %w", err)
	}
	return bb, nil
}

// exchangeRemoteBBM implements Phase 2 steps 2-3: the master broadcasts
// the remote participant size and BoundingBoxMap it learned in Phase 1;
// each slave receives both and enters StateBBReceived.
func (r *ReceivedBoundingBox) exchangeRemoteBBM(ctx context.Context) error {
	switch r.cfg.Role {
	case RoleMaster:
		if err := r.cfg.Intra.BroadcastInt(ctx, r.remoteParComSize); err != nil {
			r.metrics().IncTransportError(rbboxmetrics.ChannelIntra, rbboxmetrics.DirectionSend)
			return fmt.Errorf("%w: broadcast remote participant size: %v", ErrComputeFailed, err)
		}
		if err := r.cfg.Intra.BroadcastBoundingBoxMap(ctx, r.remoteBBM); err != nil {
			r.metrics().IncTransportError(rbboxmetrics.ChannelIntra, rbboxmetrics.DirectionSend)
			return fmt.Errorf("%w: broadcast remote bounding box map: %v", ErrComputeFailed, err)
		}

	case RoleSlave:
		size, err := r.cfg.Intra.ReceiveInt(ctx)
		if err != nil {
			r.metrics().IncTransportError(rbboxmetrics.ChannelIntra, rbboxmetrics.DirectionReceive)
			return fmt.Errorf("%w: receive remote participant size: %v", ErrComputeFailed, err)
		}

		placeholders := bbox.NewPlaceholderMap(size, r.cfg.Dim)
		if err := r.cfg.Intra.ReceiveBoundingBoxMap(ctx, placeholders); err != nil {
			r.metrics().IncTransportError(rbboxmetrics.ChannelIntra, rbboxmetrics.DirectionReceive)
			return fmt.Errorf("%w: receive remote bounding box map: %v", ErrComputeFailed, err)
		}

		r.remoteParComSize = size
		r.remoteBBM = placeholders
		r.state = StateBBReceived
	}

	return nil
}

// gatherFeedbackMapAndSend implements Phase 2 steps 6-7, master-only:
// assemble the feedback map from every slave's overlap list (with the
// [-1] sentinel for slaves with no overlap), then send it to the remote
// master.
func (r *ReceivedBoundingBox) gatherFeedbackMapAndSend(ctx context.Context) error {
	fm := make(FeedbackMap, r.cfg.LocalSize)

	for rank := 1; rank < r.cfg.LocalSize; rank++ {
		fm[rank] = []int{-1}
	}
	if len(r.localOverlap) > 0 {
		fm[0] = r.localOverlap
	}

	for rank := 1; rank < r.cfg.LocalSize; rank++ {
		ids, err := r.cfg.Intra.ReceiveOverlapFrom(ctx, rank)
		if err != nil {
			r.metrics().IncTransportError(rbboxmetrics.ChannelIntra, rbboxmetrics.DirectionReceive)
			return fmt.Errorf("%w: receive overlap from slave rank %d: %v", ErrComputeFailed, rank, err)
		}
		if len(ids) > 0 {
			fm[rank] = ids
		}
	}

	r.feedbackMap = fm
	r.metrics().SetFeedbackMapSize(r.cfg.ParticipantName, r.cfg.MeshName, len(fm))

	if len(fm) == 0 {
		// Every slave key holds at least the [-1] sentinel, so fm is empty
		// only when there are no slave entries and the master's own overlap
		// set is empty. Logged, not returned as an error.
		r.logger.WarnContext(ctx, "feedback map is empty: no overlap discovered for this mesh")
	}

	if err := r.cfg.M2N.Send(ctx, len(fm)); err != nil {
		r.metrics().IncTransportError(rbboxmetrics.ChannelM2N, rbboxmetrics.DirectionSend)
		return fmt.Errorf("%w: send feedback map size: %v", ErrComputeFailed, err)
	}
	if len(fm) > 0 {
		if err := r.cfg.M2N.SendFeedbackMap(ctx, fm); err != nil {
			r.metrics().IncTransportError(rbboxmetrics.ChannelM2N, rbboxmetrics.DirectionSend)
			return fmt.Errorf("%w: send feedback map: %v", ErrComputeFailed, err)
		}
	}

	return nil
}

// computeOverlap implements C2 applied pairwise: the remote ranks
// (ascending order) whose bounding box overlaps bb.
func computeOverlap(bb bbox.BoundingBox, remoteBBM bbox.Map) []int {
	var overlap []int
	for _, rank := range remoteBBM.SortedRanks() {
		if bbox.Overlapping(bb, remoteBBM[rank]) {
			overlap = append(overlap, rank)
		}
	}
	return overlap
}

func (r *ReceivedBoundingBox) metrics() *rbboxmetrics.Collector {
	return r.cfg.Metrics
}
