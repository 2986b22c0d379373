package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/couplingrt/rbbox/internal/bbox"
	"github.com/couplingrt/rbbox/internal/partition"
)

// M2N implements partition.M2NChannel over a single TCP connection to the
// remote master. It is safe for the sequential master-only use the
// protocol core makes of it; it does not support concurrent callers.
type M2N struct {
	conn net.Conn

	mu     sync.Mutex
	closed bool
}

// NewM2N wraps an established connection to the remote master.
func NewM2N(conn net.Conn) *M2N {
	return &M2N{conn: conn}
}

func (m *M2N) Receive(_ context.Context) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	x, err := ReadInt(m.conn)
	if err != nil {
		return 0, fmt.Errorf("m2n receive: %w", err)
	}
	return x, nil
}

func (m *M2N) Send(_ context.Context, x int) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := WriteInt(m.conn, x); err != nil {
		return fmt.Errorf("m2n send: %w", err)
	}
	return nil
}

func (m *M2N) ReceiveBoundingBoxMap(_ context.Context, into bbox.Map) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := ReadBoundingBoxMap(m.conn, into); err != nil {
		return fmt.Errorf("m2n receive bounding box map: %w", err)
	}
	return nil
}

func (m *M2N) SendBoundingBoxMap(_ context.Context, bbm bbox.Map) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := WriteBoundingBoxMap(m.conn, bbm); err != nil {
		return fmt.Errorf("m2n send bounding box map: %w", err)
	}
	return nil
}

func (m *M2N) SendFeedbackMap(_ context.Context, fm partition.FeedbackMap) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := WriteFeedbackMap(m.conn, fm); err != nil {
		return fmt.Errorf("m2n send feedback map: %w", err)
	}
	return nil
}

func (m *M2N) ReceiveFeedbackMap(_ context.Context) (partition.FeedbackMap, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	fm, err := ReadFeedbackMap(m.conn)
	if err != nil {
		return nil, fmt.Errorf("m2n receive feedback map: %w", err)
	}
	return fm, nil
}

// Close closes the underlying connection. Safe to call more than once.
func (m *M2N) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("close m2n connection: %w", err)
	}
	return nil
}

func (m *M2N) checkOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// IntraRoot implements the root (local master) side of partition.IntraChannel
// over a set of TCP connections, one per local slave, indexed by ascending
// slave rank (conns[0] is rank 1, conns[1] is rank 2, and so on).
type IntraRoot struct {
	conns []net.Conn
}

// NewIntraRoot wraps connections to every local slave in ascending rank order.
func NewIntraRoot(conns []net.Conn) *IntraRoot {
	return &IntraRoot{conns: conns}
}

func (r *IntraRoot) BroadcastInt(_ context.Context, x int) error {
	for _, conn := range r.conns {
		if err := WriteInt(conn, x); err != nil {
			return fmt.Errorf("intra broadcast int: %w", err)
		}
	}
	return nil
}

func (r *IntraRoot) BroadcastBoundingBoxMap(_ context.Context, m bbox.Map) error {
	for _, conn := range r.conns {
		if err := WriteBoundingBoxMap(conn, m); err != nil {
			return fmt.Errorf("intra broadcast bounding box map: %w", err)
		}
	}
	return nil
}

func (r *IntraRoot) ReceiveOverlapFrom(_ context.Context, slaveRank int) ([]int, error) {
	idx := slaveRank - 1
	if idx < 0 || idx >= len(r.conns) {
		return nil, fmt.Errorf("intra receive overlap: slave rank %d out of range", slaveRank)
	}
	ids, err := ReadOverlap(r.conns[idx])
	if err != nil {
		return nil, fmt.Errorf("intra receive overlap from rank %d: %w", slaveRank, err)
	}
	return ids, nil
}

func (r *IntraRoot) ReceiveInt(context.Context) (int, error) {
	panic("transport: IntraRoot.ReceiveInt called, root never receives a broadcast")
}

func (r *IntraRoot) ReceiveBoundingBoxMap(context.Context, bbox.Map) error {
	panic("transport: IntraRoot.ReceiveBoundingBoxMap called, root never receives a broadcast")
}

func (r *IntraRoot) SendOverlap(context.Context, []int) error {
	panic("transport: IntraRoot.SendOverlap called, root gathers rather than sends")
}

// Close closes every slave connection, returning the first error encountered.
func (r *IntraRoot) Close() error {
	var firstErr error
	for _, conn := range r.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close intra root connection: %w", err)
		}
	}
	return firstErr
}

// IntraLeaf implements the non-root (local slave) side of
// partition.IntraChannel over a single TCP connection to the local master.
type IntraLeaf struct {
	conn net.Conn
}

// NewIntraLeaf wraps an established connection to the local master.
func NewIntraLeaf(conn net.Conn) *IntraLeaf {
	return &IntraLeaf{conn: conn}
}

func (l *IntraLeaf) ReceiveInt(context.Context) (int, error) {
	x, err := ReadInt(l.conn)
	if err != nil {
		return 0, fmt.Errorf("intra receive int: %w", err)
	}
	return x, nil
}

func (l *IntraLeaf) ReceiveBoundingBoxMap(_ context.Context, into bbox.Map) error {
	if err := ReadBoundingBoxMap(l.conn, into); err != nil {
		return fmt.Errorf("intra receive bounding box map: %w", err)
	}
	return nil
}

func (l *IntraLeaf) SendOverlap(_ context.Context, ids []int) error {
	if err := WriteOverlap(l.conn, ids); err != nil {
		return fmt.Errorf("intra send overlap: %w", err)
	}
	return nil
}

func (l *IntraLeaf) BroadcastInt(context.Context, int) error {
	panic("transport: IntraLeaf.BroadcastInt called, only root broadcasts")
}

func (l *IntraLeaf) BroadcastBoundingBoxMap(context.Context, bbox.Map) error {
	panic("transport: IntraLeaf.BroadcastBoundingBoxMap called, only root broadcasts")
}

func (l *IntraLeaf) ReceiveOverlapFrom(context.Context, int) ([]int, error) {
	panic("transport: IntraLeaf.ReceiveOverlapFrom called, only root gathers")
}

// Close closes the underlying connection.
func (l *IntraLeaf) Close() error {
	if err := l.conn.Close(); err != nil {
		return fmt.Errorf("close intra leaf connection: %w", err)
	}
	return nil
}
