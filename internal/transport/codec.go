package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"sort"

	"github.com/couplingrt/rbbox/internal/bbox"
	"github.com/couplingrt/rbbox/internal/partition"
)

// WriteInt writes x as a big-endian int32. x must fit in an int32;
// callers only ever pass rank counts, lengths, and ranks, all bounded
// well under that range.
func WriteInt(w io.Writer, x int) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(int32(x)))
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write int: %w", err)
	}
	return nil
}

// ReadInt reads a big-endian int32 written by WriteInt.
func ReadInt(r io.Reader) (int, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read int: %w", err)
	}
	return int(int32(binary.BigEndian.Uint32(buf[:]))), nil
}

func writeFloat64(w io.Writer, x float64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(x))
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write float64: %w", err)
	}
	return nil
}

func readFloat64(r io.Reader) (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read float64: %w", err)
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf[:])), nil
}

// WriteBoundingBoxMap writes m as size, followed by size entries of
// (rank int32, lo[D] float64, hi[D] float64), in ascending rank order.
// Ascending order is not required by the wire format itself but makes
// captured traffic byte-identical across runs, matching the determinism
// the protocol core already guarantees in memory.
func WriteBoundingBoxMap(w io.Writer, m bbox.Map) error {
	if err := WriteInt(w, len(m)); err != nil {
		return err
	}
	for _, rank := range m.SortedRanks() {
		bb := m[rank]
		if err := WriteInt(w, rank); err != nil {
			return err
		}
		for _, v := range bb.Lo {
			if err := writeFloat64(w, v); err != nil {
				return err
			}
		}
		for _, v := range bb.Hi {
			if err := writeFloat64(w, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadBoundingBoxMap reads a BoundingBoxMap written by WriteBoundingBoxMap
// into into. into must already contain one placeholder entry per rank that
// will be decoded (bbox.NewPlaceholderMap), which fixes the dimensionality
// ReadBoundingBoxMap reads each box at.
func ReadBoundingBoxMap(r io.Reader, into bbox.Map) error {
	size, err := ReadInt(r)
	if err != nil {
		return err
	}

	for i := 0; i < size; i++ {
		rank, err := ReadInt(r)
		if err != nil {
			return err
		}

		placeholder, ok := into[rank]
		if !ok {
			return fmt.Errorf("read bounding box map: rank %d has no placeholder entry", rank)
		}
		dim := placeholder.Dim()

		lo := make([]float64, dim)
		for d := 0; d < dim; d++ {
			if lo[d], err = readFloat64(r); err != nil {
				return err
			}
		}
		hi := make([]float64, dim)
		for d := 0; d < dim; d++ {
			if hi[d], err = readFloat64(r); err != nil {
				return err
			}
		}

		bb, err := bbox.New(lo, hi)
		if err != nil {
			return fmt.Errorf("read bounding box map: rank %d: %w", rank, err)
		}
		into[rank] = bb
	}

	return nil
}

// WriteFeedbackMap writes fm as size, followed by size entries of
// (rank int32, k int32, ids[k] int32) in ascending rank order. Every key
// present in fm is written with its own k; the "send ids only if
// non-empty" quirk applies one level down, to each slave's individual
// overlap send over the intra channel (WriteOverlap), not to the
// assembled FeedbackMap itself.
func WriteFeedbackMap(w io.Writer, fm partition.FeedbackMap) error {
	if err := WriteInt(w, len(fm)); err != nil {
		return err
	}
	for _, rank := range feedbackRanks(fm) {
		ids := fm[rank]
		if err := WriteInt(w, rank); err != nil {
			return err
		}
		if err := WriteInt(w, len(ids)); err != nil {
			return err
		}
		for _, id := range ids {
			if err := WriteInt(w, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadFeedbackMap reads a FeedbackMap written by WriteFeedbackMap.
func ReadFeedbackMap(r io.Reader) (partition.FeedbackMap, error) {
	size, err := ReadInt(r)
	if err != nil {
		return nil, err
	}

	fm := make(partition.FeedbackMap, size)
	for i := 0; i < size; i++ {
		rank, err := ReadInt(r)
		if err != nil {
			return nil, err
		}
		k, err := ReadInt(r)
		if err != nil {
			return nil, err
		}
		ids, err := readOverlap(r, k)
		if err != nil {
			return nil, err
		}
		fm[rank] = ids
	}
	return fm, nil
}

func feedbackRanks(fm partition.FeedbackMap) []int {
	ranks := make([]int, 0, len(fm))
	for rank := range fm {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)
	return ranks
}

func readOverlap(r io.Reader, k int) ([]int, error) {
	ids := make([]int, k)
	for i := 0; i < k; i++ {
		v, err := ReadInt(r)
		if err != nil {
			return nil, err
		}
		ids[i] = v
	}
	return ids, nil
}

// WriteOverlap writes a slave's overlap list honoring the "ids only if
// non-empty" wire quirk: an empty overlap list still writes its 4-byte
// length prefix; no ids follow.
func WriteOverlap(w io.Writer, ids []int) error {
	if err := WriteInt(w, len(ids)); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if err := WriteInt(w, id); err != nil {
			return err
		}
	}
	return nil
}

// ReadOverlap reads an overlap list written by WriteOverlap.
func ReadOverlap(r io.Reader) ([]int, error) {
	k, err := ReadInt(r)
	if err != nil {
		return nil, err
	}
	if k == 0 {
		return nil, nil
	}
	return readOverlap(r, k)
}
