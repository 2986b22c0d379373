package partition_test

import (
	"context"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/couplingrt/rbbox/internal/bbox"
	"github.com/couplingrt/rbbox/internal/partition"
)

// -------------------------------------------------------------------------
// Mesh/Mapping test doubles
// -------------------------------------------------------------------------

type fakeMesh struct {
	dim int
	bb  bbox.BoundingBox
}

func (m fakeMesh) Dimensions() int            { return m.dim }
func (m fakeMesh) BoundingBox() bbox.BoundingBox { return m.bb }

// fakeMapping exposes a fixed mesh on one side; the other side is nil,
// matching the "either may be absent" contract.
type fakeMapping struct {
	output partition.Mesh
	input  partition.Mesh
}

func (m fakeMapping) OutputMesh() partition.Mesh { return m.output }
func (m fakeMapping) InputMesh() partition.Mesh  { return m.input }

func mustBox(t *testing.T, lo, hi []float64) bbox.BoundingBox {
	t.Helper()
	bb, err := bbox.New(lo, hi)
	if err != nil {
		t.Fatalf("bbox.New: %v", err)
	}
	return bb
}

// -------------------------------------------------------------------------
// In-process channel doubles
// -------------------------------------------------------------------------

// fakeM2N drives the master side of a two-participant exchange from
// preset values, recording whatever the master sends back.
type fakeM2N struct {
	remoteSize int
	remoteBBM  bbox.Map

	sentSize int
	sentFM   partition.FeedbackMap
}

func (f *fakeM2N) Receive(context.Context) (int, error) { return f.remoteSize, nil }
func (f *fakeM2N) Send(_ context.Context, x int) error   { f.sentSize = x; return nil }

func (f *fakeM2N) ReceiveBoundingBoxMap(_ context.Context, into bbox.Map) error {
	for rank, bb := range f.remoteBBM {
		into[rank] = bb
	}
	return nil
}

func (f *fakeM2N) SendBoundingBoxMap(context.Context, bbox.Map) error { return nil }

func (f *fakeM2N) SendFeedbackMap(_ context.Context, fm partition.FeedbackMap) error {
	f.sentFM = fm
	return nil
}

func (f *fakeM2N) ReceiveFeedbackMap(context.Context) (partition.FeedbackMap, error) {
	return nil, nil
}

// intraHub wires a master and localSize-1 slaves together in-process.
type intraHub struct {
	size int

	toSlaveSize []chan int
	toSlaveBBM  []chan bbox.Map
	fromSlave   []chan []int
}

func newIntraHub(size int) *intraHub {
	h := &intraHub{
		size:        size,
		toSlaveSize: make([]chan int, size),
		toSlaveBBM:  make([]chan bbox.Map, size),
		fromSlave:   make([]chan []int, size),
	}
	for r := 1; r < size; r++ {
		h.toSlaveSize[r] = make(chan int, 1)
		h.toSlaveBBM[r] = make(chan bbox.Map, 1)
		h.fromSlave[r] = make(chan []int, 1)
	}
	return h
}

func (h *intraHub) master() partition.IntraChannel { return &masterIntra{h: h} }
func (h *intraHub) slave(rank int) partition.IntraChannel {
	return &slaveIntra{h: h, rank: rank}
}

type masterIntra struct{ h *intraHub }

func (m *masterIntra) BroadcastInt(_ context.Context, x int) error {
	for r := 1; r < m.h.size; r++ {
		m.h.toSlaveSize[r] <- x
	}
	return nil
}

func (m *masterIntra) BroadcastBoundingBoxMap(_ context.Context, bbm bbox.Map) error {
	for r := 1; r < m.h.size; r++ {
		m.h.toSlaveBBM[r] <- bbm
	}
	return nil
}

func (m *masterIntra) ReceiveOverlapFrom(_ context.Context, slaveRank int) ([]int, error) {
	return <-m.h.fromSlave[slaveRank], nil
}

func (m *masterIntra) ReceiveInt(context.Context) (int, error)                       { panic("master does not receive") }
func (m *masterIntra) ReceiveBoundingBoxMap(context.Context, bbox.Map) error          { panic("master does not receive") }
func (m *masterIntra) SendOverlap(context.Context, []int) error                      { panic("master does not send overlap") }

type slaveIntra struct {
	h    *intraHub
	rank int
}

func (s *slaveIntra) ReceiveInt(context.Context) (int, error) {
	return <-s.h.toSlaveSize[s.rank], nil
}

func (s *slaveIntra) ReceiveBoundingBoxMap(_ context.Context, into bbox.Map) error {
	bbm := <-s.h.toSlaveBBM[s.rank]
	for rank, bb := range bbm {
		into[rank] = bb
	}
	return nil
}

func (s *slaveIntra) SendOverlap(_ context.Context, ids []int) error {
	cp := append([]int(nil), ids...)
	s.h.fromSlave[s.rank] <- cp
	return nil
}

func (s *slaveIntra) BroadcastInt(context.Context, int) error                 { panic("slave does not broadcast") }
func (s *slaveIntra) BroadcastBoundingBoxMap(context.Context, bbox.Map) error { panic("slave does not broadcast") }
func (s *slaveIntra) ReceiveOverlapFrom(context.Context, int) ([]int, error)  { panic("slave does not gather") }

// -------------------------------------------------------------------------
// Scenario E1 — one overlap per local rank
// -------------------------------------------------------------------------

func TestScenarioE1OneOverlapEach(t *testing.T) {
	t.Parallel()

	hub := newIntraHub(2)
	m2n := &fakeM2N{
		remoteSize: 2,
		remoteBBM: bbox.Map{
			0: mustBox(t, []float64{0.5, 0}, []float64{1.5, 1}),
			1: mustBox(t, []float64{2.5, 0}, []float64{2.9, 1}),
		},
	}

	master := partition.New(partition.Config{
		Dim: 2, Role: partition.RoleMaster, LocalSize: 2, LocalRank: 0,
		FromMapping: fakeMapping{output: fakeMesh{dim: 2, bb: mustBox(t, []float64{0, 0}, []float64{1, 1})}},
		M2N:         m2n,
		Intra:       hub.master(),
	})
	slave := partition.New(partition.Config{
		Dim: 2, Role: partition.RoleSlave, LocalRank: 1,
		FromMapping: fakeMapping{output: fakeMesh{dim: 2, bb: mustBox(t, []float64{2, 0}, []float64{3, 1})}},
		Intra:       hub.slave(1),
	})

	ctx := context.Background()
	if err := master.CommunicateBoundingBox(ctx); err != nil {
		t.Fatalf("CommunicateBoundingBox: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return master.ComputeBoundingBox(gctx) })
	g.Go(func() error { return slave.ComputeBoundingBox(gctx) })
	if err := g.Wait(); err != nil {
		t.Fatalf("ComputeBoundingBox: %v", err)
	}

	want := partition.FeedbackMap{0: {0}, 1: {1}}
	if got := m2n.sentFM; !feedbackMapsEqual(got, want) {
		t.Errorf("feedback map = %v, want %v", got, want)
	}
	if m2n.sentSize != 2 {
		t.Errorf("sent feedback map size = %d, want 2", m2n.sentSize)
	}
}

// -------------------------------------------------------------------------
// Scenario E2 — no overlap anywhere
// -------------------------------------------------------------------------

func TestScenarioE2NoOverlap(t *testing.T) {
	t.Parallel()

	hub := newIntraHub(2)
	m2n := &fakeM2N{
		remoteSize: 2,
		remoteBBM: bbox.Map{
			0: mustBox(t, []float64{10, 10}, []float64{11, 11}),
			1: mustBox(t, []float64{20, 20}, []float64{21, 21}),
		},
	}

	master := partition.New(partition.Config{
		Dim: 2, Role: partition.RoleMaster, LocalSize: 2, LocalRank: 0,
		FromMapping: fakeMapping{output: fakeMesh{dim: 2, bb: mustBox(t, []float64{0, 0}, []float64{1, 1})}},
		M2N:         m2n,
		Intra:       hub.master(),
	})
	slave := partition.New(partition.Config{
		Dim: 2, Role: partition.RoleSlave, LocalRank: 1,
		FromMapping: fakeMapping{output: fakeMesh{dim: 2, bb: mustBox(t, []float64{2, 0}, []float64{3, 1})}},
		Intra:       hub.slave(1),
	})

	ctx := context.Background()
	if err := master.CommunicateBoundingBox(ctx); err != nil {
		t.Fatalf("CommunicateBoundingBox: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return master.ComputeBoundingBox(gctx) })
	g.Go(func() error { return slave.ComputeBoundingBox(gctx) })
	if err := g.Wait(); err != nil {
		t.Fatalf("ComputeBoundingBox: %v", err)
	}

	want := partition.FeedbackMap{1: {-1}}
	if got := m2n.sentFM; !feedbackMapsEqual(got, want) {
		t.Errorf("feedback map = %v, want %v", got, want)
	}
	if m2n.sentSize != 1 {
		t.Errorf("sent feedback map size = %d, want 1", m2n.sentSize)
	}
}

func feedbackMapsEqual(a, b partition.FeedbackMap) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
	}
	return true
}

// -------------------------------------------------------------------------
// Precondition violations
// -------------------------------------------------------------------------

func TestNewPanicsOnNegativeSafetyFactor(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("New did not panic on negative safety factor")
		}
	}()

	partition.New(partition.Config{Dim: 2, Role: partition.RoleSlave, LocalRank: 1, SafetyFactor: -1, Intra: &slaveIntra{}})
}

func TestNewPanicsOnMasterWrongRank(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("New did not panic on master with LocalRank != 0")
		}
	}()

	partition.New(partition.Config{Dim: 2, Role: partition.RoleMaster, LocalRank: 1, LocalSize: 2, M2N: &fakeM2N{}, Intra: &masterIntra{h: newIntraHub(2)}})
}

func TestNewPanicsOnSoloSizedMaster(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("New did not panic on master with LocalSize <= 1")
		}
	}()

	partition.New(partition.Config{Dim: 2, Role: partition.RoleMaster, LocalRank: 0, LocalSize: 1, M2N: &fakeM2N{}, Intra: &masterIntra{h: newIntraHub(1)}})
}

func TestComputeBoundingBoxPanicsBeforeCommunicateOnMaster(t *testing.T) {
	t.Parallel()

	hub := newIntraHub(2)
	master := partition.New(partition.Config{
		Dim: 2, Role: partition.RoleMaster, LocalSize: 2, LocalRank: 0,
		M2N: &fakeM2N{}, Intra: hub.master(),
	})

	defer func() {
		if recover() == nil {
			t.Error("ComputeBoundingBox did not panic when called before CommunicateBoundingBox")
		}
	}()

	_ = master.ComputeBoundingBox(context.Background())
}

func TestCommunicateBoundingBoxNoOpOnSlave(t *testing.T) {
	t.Parallel()

	slave := partition.New(partition.Config{
		Dim: 2, Role: partition.RoleSlave, LocalRank: 1, Intra: &slaveIntra{h: newIntraHub(2), rank: 1},
	})

	if err := slave.CommunicateBoundingBox(context.Background()); err != nil {
		t.Fatalf("CommunicateBoundingBox on slave: %v", err)
	}
	if got := slave.State(); got != partition.StateFresh {
		t.Errorf("slave state after no-op CommunicateBoundingBox = %v, want Fresh", got)
	}
}

func TestRoleSoloPanics(t *testing.T) {
	t.Parallel()

	solo := partition.New(partition.Config{Dim: 2, Role: partition.RoleSolo})

	defer func() {
		if recover() == nil {
			t.Error("CommunicateBoundingBox did not panic for RoleSolo")
		}
	}()

	_ = solo.CommunicateBoundingBox(context.Background())
}
