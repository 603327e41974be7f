package schedule

import (
	"math"
	"testing"

	"github.com/openwater-labs/aquanet/internal/domain"
)

func TestBuildAbrupt(t *testing.T) {
	leak := domain.Leak{
		PartID:   "J3",
		Kind:     domain.LeakAbrupt,
		Diameter: 0.05,
		Start:    10,
		End:      50,
	}

	curve := Build(leak, 100)
	if len(curve) != 100 {
		t.Fatalf("expected 100 samples, got %d", len(curve))
	}
	for t0 := 0; t0 < 100; t0++ {
		want := 0.0
		if t0 >= 10 && t0 <= 50 {
			want = 0.05
		}
		if curve[t0] != want {
			t.Errorf("iteration %d: expected %v, got %v", t0, want, curve[t0])
		}
	}
}

func TestBuildAbruptWindowEdges(t *testing.T) {
	t.Run("FullHorizon", func(t *testing.T) {
		leak := domain.Leak{Kind: domain.LeakAbrupt, Diameter: 0.1, Start: 0, End: 20}
		curve := Build(leak, 20) // end == iterations clamps to the last row
		for t0, v := range curve {
			if v != 0.1 {
				t.Errorf("iteration %d: expected 0.1, got %v", t0, v)
			}
		}
	})

	t.Run("SingleIteration", func(t *testing.T) {
		leak := domain.Leak{Kind: domain.LeakAbrupt, Diameter: 0.1, Start: 5, End: 5}
		curve := Build(leak, 10)
		for t0, v := range curve {
			want := 0.0
			if t0 == 5 {
				want = 0.1
			}
			if v != want {
				t.Errorf("iteration %d: expected %v, got %v", t0, want, v)
			}
		}
	})
}

func TestBuildIncipient(t *testing.T) {
	leak := domain.Leak{
		PartID:   "P7",
		Kind:     domain.LeakIncipient,
		Diameter: 0.08,
		Start:    20,
		Peak:     60,
		End:      90,
	}

	curve := Build(leak, 100)

	if curve[20] != 0 {
		t.Errorf("diameter at start should be 0, got %v", curve[20])
	}
	if curve[60] != 0.08 {
		t.Errorf("diameter at peak should be 0.08, got %v", curve[60])
	}
	for t0 := 21; t0 <= 60; t0++ {
		if curve[t0] < curve[t0-1] {
			t.Errorf("ramp not monotonic at iteration %d: %v < %v", t0, curve[t0], curve[t0-1])
		}
	}
	for t0 := 60; t0 <= 90; t0++ {
		if curve[t0] != 0.08 {
			t.Errorf("iteration %d: expected plateau 0.08, got %v", t0, curve[t0])
		}
	}
	if curve[19] != 0 || curve[91] != 0 {
		t.Error("diameter outside [start,end] must be 0")
	}
}

func TestBuildIncipientDegenerate(t *testing.T) {
	// start == peak emulates an abrupt leak via the incipient path.
	incipient := domain.Leak{Kind: domain.LeakIncipient, Diameter: 0.05, Start: 10, Peak: 10, End: 50}
	abrupt := domain.Leak{Kind: domain.LeakAbrupt, Diameter: 0.05, Start: 10, End: 50}

	a := Build(incipient, 100)
	b := Build(abrupt, 100)
	for t0 := range a {
		if a[t0] != b[t0] {
			t.Fatalf("iteration %d: degenerate incipient %v != abrupt %v", t0, a[t0], b[t0])
		}
	}
}

func TestBuildConfigAdditiveOverlap(t *testing.T) {
	lc := &domain.LeakConfig{
		Name: "double",
		Leaks: []domain.Leak{
			{PartID: "J1", Kind: domain.LeakIncipient, Diameter: 0.04, Start: 0, Peak: 0, End: 40},
			{PartID: "J1", Kind: domain.LeakIncipient, Diameter: 0.02, Start: 20, Peak: 20, End: 60},
			{PartID: "J2", Kind: domain.LeakAbrupt, Diameter: 0.1, Start: 5, End: 15},
		},
	}

	schedules := BuildConfig(lc, 80)
	if len(schedules) != 2 {
		t.Fatalf("expected schedules for 2 parts, got %d", len(schedules))
	}

	j1 := schedules["J1"]
	if j1[10] != 0.04 {
		t.Errorf("before overlap: expected 0.04, got %v", j1[10])
	}
	if math.Abs(j1[30]-0.06) > 1e-12 {
		t.Errorf("overlap should sum to 0.06, got %v", j1[30])
	}
	if j1[50] != 0.02 {
		t.Errorf("after first leak ends: expected 0.02, got %v", j1[50])
	}
}

func TestResampleIdentity(t *testing.T) {
	curve := []float64{0, 1, 2, 3}
	out := Resample(curve, 1800, 1800)
	if len(out) != len(curve) {
		t.Fatalf("expected same length, got %d", len(out))
	}
	for i := range curve {
		if out[i] != curve[i] {
			t.Errorf("sample %d: expected %v, got %v", i, curve[i], out[i])
		}
	}
	// Must be a copy, not an alias.
	out[0] = 99
	if curve[0] == 99 {
		t.Error("resample must not alias its input")
	}
}

func TestResampleFinerGrid(t *testing.T) {
	// 3600s iterations onto an 1800s pattern interval: every original
	// sample must survive as a fixed point, midpoints interpolate.
	curve := []float64{0, 0.04, 0.08, 0.08}
	out := Resample(curve, 3600, 1800)

	for i, v := range curve {
		if got := out[2*i]; math.Abs(got-v) > 1e-12 {
			t.Errorf("fixed point %d: expected %v, got %v", i, v, got)
		}
	}
	if math.Abs(out[1]-0.02) > 1e-12 {
		t.Errorf("midpoint: expected 0.02, got %v", out[1])
	}
	if math.Abs(out[3]-0.06) > 1e-12 {
		t.Errorf("midpoint: expected 0.06, got %v", out[3])
	}
}

func TestResampleCoarserGrid(t *testing.T) {
	// 900s iterations onto a 1800s pattern interval: every second sample.
	curve := []float64{0, 1, 2, 3, 4}
	out := Resample(curve, 900, 1800)
	want := []float64{0, 2, 4}
	if len(out) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(out))
	}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("sample %d: expected %v, got %v", i, want[i], out[i])
		}
	}
}

func TestResampleClampsTail(t *testing.T) {
	curve := []float64{0, 0, 5}
	out := Resample(curve, 1000, 900)
	if out[len(out)-1] != 5 {
		t.Errorf("tail should clamp to the final diameter, got %v", out[len(out)-1])
	}
	if out[0] != 0 {
		t.Errorf("head should stay 0, got %v", out[0])
	}
}
