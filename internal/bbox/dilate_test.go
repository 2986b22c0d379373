package bbox

import "testing"

// TestPrepareZeroSafetyFactor checks that for safetyFactor = 0, the
// resulting box equals the union of attached boxes: the dilation amount is
// safetyFactor * maxSide, which is zero here.
func TestPrepareZeroSafetyFactor(t *testing.T) {
	t.Parallel()

	a, _ := New([]float64{0, 0}, []float64{1, 1})
	b, _ := New([]float64{2, 0}, []float64{3, 1})

	got, err := Prepare(2, 0, a, b)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	want, _ := New([]float64{0, 0}, []float64{3, 1})
	if !got.Equal(want) {
		t.Errorf("Prepare(safetyFactor=0) = %v, want %v", got, want)
	}
}

// TestPrepareDegenerateNoMapping covers scenario E4: no mappings attached,
// safetyFactor = 1.0 -> [-1e-6, 1e-6] per dimension.
func TestPrepareDegenerateNoMapping(t *testing.T) {
	t.Parallel()

	got, err := Prepare(2, 1.0)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	for d := 0; d < 2; d++ {
		if got.Lo[d] != -1e-6 || got.Hi[d] != 1e-6 {
			t.Errorf("Prepare(no mapping)[%d] = [%v, %v], want [-1e-6, 1e-6]", d, got.Lo[d], got.Hi[d])
		}
	}
}

// TestPrepareSafetyFactorDilation covers scenario E3: dilation widening a
// box enough to create an overlap that did not exist pre-dilation.
func TestPrepareSafetyFactorDilation(t *testing.T) {
	t.Parallel()

	local, _ := New([]float64{0}, []float64{2})
	remote, _ := New([]float64{2.5}, []float64{3})

	if Overlapping(local, remote) {
		t.Fatal("precondition: local and remote must not overlap before dilation")
	}

	dilated, err := Prepare(1, 0.5, local)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	wantLo, wantHi := -1.0, 3.0
	if dilated.Lo[0] != wantLo || dilated.Hi[0] != wantHi {
		t.Errorf("Prepare(safetyFactor=0.5) = [%v, %v], want [%v, %v]", dilated.Lo[0], dilated.Hi[0], wantLo, wantHi)
	}

	if !Overlapping(dilated, remote) {
		t.Error("dilated box does not overlap remote, want overlap")
	}
}

func TestDilatePanicsOnNegativeSafetyFactor(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("Dilate did not panic on negative safetyFactor")
		}
	}()

	bb, _ := New([]float64{0}, []float64{1})
	Dilate(bb, -0.1)
}

func TestMaxSideOf(t *testing.T) {
	t.Parallel()

	bb, _ := New([]float64{0, 0}, []float64{1, 5})
	if got := maxSideOf(bb); got != 5 {
		t.Errorf("maxSideOf = %v, want 5", got)
	}
}
