package transport_test

import (
	"bytes"
	"testing"

	"github.com/couplingrt/rbbox/internal/bbox"
	"github.com/couplingrt/rbbox/internal/partition"
	"github.com/couplingrt/rbbox/internal/transport"
)

func TestIntRoundTrip(t *testing.T) {
	t.Parallel()

	for _, x := range []int{0, 1, -1, 42, 1 << 20} {
		var buf bytes.Buffer
		if err := transport.WriteInt(&buf, x); err != nil {
			t.Fatalf("WriteInt(%d): %v", x, err)
		}
		got, err := transport.ReadInt(&buf)
		if err != nil {
			t.Fatalf("ReadInt after WriteInt(%d): %v", x, err)
		}
		if got != x {
			t.Errorf("round trip %d, got %d", x, got)
		}
	}
}

func TestBoundingBoxMapRoundTrip(t *testing.T) {
	t.Parallel()

	lo0, hi0 := []float64{0, 0}, []float64{1, 1}
	lo1, hi1 := []float64{2, -1}, []float64{3, 4}

	bb0, err := bbox.New(lo0, hi0)
	if err != nil {
		t.Fatalf("bbox.New: %v", err)
	}
	bb1, err := bbox.New(lo1, hi1)
	if err != nil {
		t.Fatalf("bbox.New: %v", err)
	}

	m := bbox.Map{0: bb0, 1: bb1}

	var buf bytes.Buffer
	if err := transport.WriteBoundingBoxMap(&buf, m); err != nil {
		t.Fatalf("WriteBoundingBoxMap: %v", err)
	}

	into := bbox.NewPlaceholderMap(2, 2)
	if err := transport.ReadBoundingBoxMap(&buf, into); err != nil {
		t.Fatalf("ReadBoundingBoxMap: %v", err)
	}

	if !into[0].Equal(bb0) || !into[1].Equal(bb1) {
		t.Errorf("round trip mismatch: got %v, want {0:%v 1:%v}", into, bb0, bb1)
	}
}

func TestBoundingBoxMapRoundTripEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := transport.WriteBoundingBoxMap(&buf, bbox.Map{}); err != nil {
		t.Fatalf("WriteBoundingBoxMap: %v", err)
	}

	into := bbox.NewPlaceholderMap(0, 2)
	if err := transport.ReadBoundingBoxMap(&buf, into); err != nil {
		t.Fatalf("ReadBoundingBoxMap: %v", err)
	}
	if len(into) != 0 {
		t.Errorf("expected empty map, got %v", into)
	}
}

func TestOverlapRoundTrip(t *testing.T) {
	t.Parallel()

	cases := [][]int{nil, {}, {3}, {1, 2, 3}}
	for _, ids := range cases {
		var buf bytes.Buffer
		if err := transport.WriteOverlap(&buf, ids); err != nil {
			t.Fatalf("WriteOverlap(%v): %v", ids, err)
		}
		got, err := transport.ReadOverlap(&buf)
		if err != nil {
			t.Fatalf("ReadOverlap after WriteOverlap(%v): %v", ids, err)
		}
		if len(got) != len(ids) {
			t.Fatalf("round trip %v, got %v", ids, got)
		}
		for i := range ids {
			if got[i] != ids[i] {
				t.Errorf("round trip %v, got %v", ids, got)
			}
		}
	}
}

func TestOverlapEmptyOmitsPayload(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := transport.WriteOverlap(&buf, nil); err != nil {
		t.Fatalf("WriteOverlap(nil): %v", err)
	}

	// Only the 4-byte length prefix should have been written: no payload
	// for an empty list.
	if buf.Len() != 4 {
		t.Errorf("wire length = %d, want 4 (length prefix only)", buf.Len())
	}
}

func TestFeedbackMapRoundTrip(t *testing.T) {
	t.Parallel()

	fm := partition.FeedbackMap{0: {1, 2}, 1: {-1}, 2: {0}}

	var buf bytes.Buffer
	if err := transport.WriteFeedbackMap(&buf, fm); err != nil {
		t.Fatalf("WriteFeedbackMap: %v", err)
	}

	got, err := transport.ReadFeedbackMap(&buf)
	if err != nil {
		t.Fatalf("ReadFeedbackMap: %v", err)
	}

	if len(got) != len(fm) {
		t.Fatalf("round trip size mismatch: got %d entries, want %d", len(got), len(fm))
	}
	for rank, ids := range fm {
		gotIDs, ok := got[rank]
		if !ok || len(gotIDs) != len(ids) {
			t.Fatalf("rank %d: got %v, want %v", rank, gotIDs, ids)
		}
		for i := range ids {
			if gotIDs[i] != ids[i] {
				t.Errorf("rank %d: got %v, want %v", rank, gotIDs, ids)
			}
		}
	}
}

// TestFeedbackMapEncodingIsDeterministic checks that encoding the same
// logical map through two different insertion orders produces
// byte-identical wire output.
func TestFeedbackMapEncodingIsDeterministic(t *testing.T) {
	t.Parallel()

	a := partition.FeedbackMap{}
	a[3] = []int{1}
	a[1] = []int{-1}
	a[2] = []int{0, 1}

	b := partition.FeedbackMap{}
	b[2] = []int{0, 1}
	b[3] = []int{1}
	b[1] = []int{-1}

	var bufA, bufB bytes.Buffer
	if err := transport.WriteFeedbackMap(&bufA, a); err != nil {
		t.Fatalf("WriteFeedbackMap(a): %v", err)
	}
	if err := transport.WriteFeedbackMap(&bufB, b); err != nil {
		t.Fatalf("WriteFeedbackMap(b): %v", err)
	}

	if !bytes.Equal(bufA.Bytes(), bufB.Bytes()) {
		t.Errorf("wire bytes differ across insertion orders: %x vs %x", bufA.Bytes(), bufB.Bytes())
	}
}
