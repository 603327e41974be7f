package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/openwater-labs/aquanet/internal/dataset"
	"github.com/openwater-labs/aquanet/internal/domain"
)

func testCollection() *domain.ScenarioCollection {
	return &domain.ScenarioCollection{
		Scenarios: []domain.Scenario{
			{
				Name:       "ltown",
				Network:    "topology.xml",
				Iterations: 20,
				TimeStep:   1800,
				LeakConfigs: []domain.LeakConfig{
					{Name: "baseline"},
					{Name: "single-leak", Leaks: []domain.Leak{
						{PartID: "J-2", Kind: domain.LeakAbrupt, Diameter: 0.04, Start: 5, End: 15},
					}},
				},
				SensorConfigs: []domain.SensorConfig{
					{Name: "full", Pressure: []string{"J-1", "J-2"}, Flow: []string{"P-1"}, Demand: []string{"J-1"}},
				},
				SensorfaultConfigs: []domain.SensorfaultConfig{
					{Name: "clean"},
					{Name: "stuck", Faults: []domain.Sensorfault{
						{PartID: "J-1", SensorType: domain.SensorPressure, Start: 2, End: 8, Fault: domain.StuckZeroFault{}},
					}},
				},
			},
		},
	}
}

func testRaw(rows int) *domain.RawSeries {
	fill := func(parts []string, base float64) *domain.Table {
		t := domain.NewTable(parts, rows)
		for i := range t.Values {
			t.Time[i] = float64(i * 1800)
			for j := range t.Values[i] {
				t.Values[i][j] = base + float64(i)
			}
		}
		return t
	}
	return &domain.RawSeries{
		Demand:   fill([]string{"J-1", "J-2"}, 10),
		Flow:     fill([]string{"P-1"}, 50),
		Pressure: fill([]string{"J-1", "J-2"}, 100),
	}
}

func TestRawSeriesRoundtrip(t *testing.T) {
	s := New(t.TempDir(), nil)
	raw := testRaw(20)

	t.Run("ReadMissing", func(t *testing.T) {
		_, err := s.ReadRawSeries("ltown", "baseline")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if s.HasRawSeries("ltown", "baseline") {
			t.Error("HasRawSeries reported an unwritten pair")
		}
	})

	t.Run("WriteAndRead", func(t *testing.T) {
		if err := s.WriteRawSeries("ltown", "baseline", raw); err != nil {
			t.Fatalf("failed to write raw series: %v", err)
		}
		if !s.HasRawSeries("ltown", "baseline") {
			t.Error("HasRawSeries missed a written pair")
		}

		got, err := s.ReadRawSeries("ltown", "baseline")
		if err != nil {
			t.Fatalf("failed to read raw series: %v", err)
		}
		if got.Pressure.Rows() != 20 {
			t.Fatalf("rows = %d, want 20", got.Pressure.Rows())
		}
		if got.Pressure.Parts[1] != "J-2" {
			t.Errorf("parts = %v", got.Pressure.Parts)
		}
		col, _ := got.Demand.Col("J-1")
		if got.Demand.Values[3][col] != 13 {
			t.Errorf("demand[3][J-1] = %g, want 13", got.Demand.Values[3][col])
		}
		if got.Flow.Time[2] != 3600 {
			t.Errorf("time[2] = %g, want 3600", got.Flow.Time[2])
		}
	})

	t.Run("PartialWriteNotReported", func(t *testing.T) {
		if err := s.WriteRawSeries("ltown", "partial", raw); err != nil {
			t.Fatalf("failed to write raw series: %v", err)
		}
		path := filepath.Join(s.Root(), "ltown", "measurements", "partial", "flow.csv")
		if err := os.Remove(path); err != nil {
			t.Fatalf("failed to remove file: %v", err)
		}
		if s.HasRawSeries("ltown", "partial") {
			t.Error("HasRawSeries reported a pair with a missing table")
		}
	})

	t.Run("Remove", func(t *testing.T) {
		if err := s.RemoveMeasurements("ltown", "baseline"); err != nil {
			t.Fatalf("failed to remove measurements: %v", err)
		}
		if s.HasRawSeries("ltown", "baseline") {
			t.Error("measurements survived removal")
		}
		if err := s.RemoveMeasurements("ltown", "never-written"); err != nil {
			t.Errorf("removing an absent subtree should not error, got %v", err)
		}
	})
}

func TestConfigDocuments(t *testing.T) {
	s := New(t.TempDir(), nil)
	col := testCollection()
	scenario := &col.Scenarios[0]

	t.Run("LeakConfig", func(t *testing.T) {
		lc := scenario.LeakConfig("single-leak")
		if err := s.WriteLeakConfig("ltown", lc); err != nil {
			t.Fatalf("failed to write leak config: %v", err)
		}
		got, err := s.ReadLeakConfig("ltown", "single-leak")
		if err != nil {
			t.Fatalf("failed to read leak config: %v", err)
		}
		if len(got.Leaks) != 1 || got.Leaks[0].PartID != "J-2" || got.Leaks[0].Diameter != 0.04 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("SensorConfig", func(t *testing.T) {
		sc := scenario.SensorConfig("full")
		if err := s.WriteSensorConfig("ltown", sc); err != nil {
			t.Fatalf("failed to write sensor config: %v", err)
		}
		got, err := s.ReadSensorConfig("ltown", "full")
		if err != nil {
			t.Fatalf("failed to read sensor config: %v", err)
		}
		if len(got.Pressure) != 2 || got.Pressure[0] != "J-1" {
			t.Errorf("pressure sensors = %v", got.Pressure)
		}
	})

	t.Run("SensorfaultConfig", func(t *testing.T) {
		fc := scenario.SensorfaultConfig("stuck")
		if err := s.WriteSensorfaultConfig("ltown", fc); err != nil {
			t.Fatalf("failed to write sensorfault config: %v", err)
		}
		got, err := s.ReadSensorfaultConfig("ltown", "stuck")
		if err != nil {
			t.Fatalf("failed to read sensorfault config: %v", err)
		}
		if len(got.Faults) != 1 {
			t.Fatalf("faults = %+v", got.Faults)
		}
		if _, ok := got.Faults[0].Fault.(domain.StuckZeroFault); !ok {
			t.Errorf("fault type = %T, want StuckZeroFault", got.Faults[0].Fault)
		}
	})

	t.Run("ReadMissing", func(t *testing.T) {
		if _, err := s.ReadLeakConfig("ltown", "no-such"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Topology", func(t *testing.T) {
		n := &domain.Network{
			PatternStep: 3600,
			Nodes: []domain.Node{
				{ID: "J-1", Type: "junction", X: 0, Y: 0},
				{ID: "J-2", Type: "junction", X: 1, Y: 0},
			},
			Links: []domain.Link{{ID: "P-1", Type: "pipe", N1: "J-1", N2: "J-2"}},
		}
		if err := s.WriteTopology("ltown", n); err != nil {
			t.Fatalf("failed to write topology: %v", err)
		}
		got, err := s.ReadTopology("ltown")
		if err != nil {
			t.Fatalf("failed to read topology: %v", err)
		}
		if got.PatternStep != 3600 || len(got.Nodes) != 2 || len(got.Links) != 1 {
			t.Errorf("got %+v", got)
		}
	})
}

func TestLoader(t *testing.T) {
	ctx := context.Background()
	col := testCollection()
	s := New(t.TempDir(), nil)
	loader := NewLoader(col, s, dataset.NewLRUCache(4, 0))

	t.Run("ListScenarios", func(t *testing.T) {
		if got := loader.ListScenarios(); len(got) != 1 || got[0] != "ltown" {
			t.Errorf("scenarios = %v", got)
		}
	})

	t.Run("ListConfigs", func(t *testing.T) {
		names := loader.ListConfigs("ltown")
		if len(names.Leaks) != 2 || len(names.Sensors) != 1 || len(names.Sensorfaults) != 2 {
			t.Errorf("got %+v", names)
		}
	})

	t.Run("ListConfigsUnknownScenario", func(t *testing.T) {
		names := loader.ListConfigs("no-such")
		if names.Leaks == nil || len(names.Leaks) != 0 {
			t.Errorf("expected empty lists, got %+v", names)
		}
	})

	t.Run("GetLeakDataAbsent", func(t *testing.T) {
		lc, err := loader.GetLeakData("ltown", "single-leak")
		if err != nil || lc != nil {
			t.Errorf("expected (nil, nil), got (%v, %v)", lc, err)
		}
	})

	t.Run("GetLeakDataPresent", func(t *testing.T) {
		if err := s.WriteLeakConfig("ltown", col.Scenarios[0].LeakConfig("single-leak")); err != nil {
			t.Fatalf("failed to write leak config: %v", err)
		}
		lc, err := loader.GetLeakData("ltown", "single-leak")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lc == nil || len(lc.Leaks) != 1 {
			t.Fatalf("got %+v", lc)
		}
	})

	t.Run("GetUngenerated", func(t *testing.T) {
		_, err := loader.Get(ctx, "ltown", "baseline", "full", "clean")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetUnknownNames", func(t *testing.T) {
		for _, tc := range []struct{ scenario, leak, sensors, faults string }{
			{"no-such", "baseline", "full", "clean"},
			{"ltown", "no-such", "full", "clean"},
			{"ltown", "baseline", "no-such", "clean"},
			{"ltown", "baseline", "full", "no-such"},
		} {
			if _, err := loader.Get(ctx, tc.scenario, tc.leak, tc.sensors, tc.faults); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("Get(%v): expected ErrNotFound, got %v", tc, err)
			}
		}
	})

	t.Run("GetComposes", func(t *testing.T) {
		if err := s.WriteRawSeries("ltown", "baseline", testRaw(20)); err != nil {
			t.Fatalf("failed to write raw series: %v", err)
		}

		ds, err := loader.Get(ctx, "ltown", "baseline", "full", "stuck")
		if err != nil {
			t.Fatalf("failed to get dataset: %v", err)
		}
		if got := ds.Pressure.Parts; len(got) != 2 || got[0] != "J-1" {
			t.Errorf("pressure columns = %v", got)
		}
		j1, _ := ds.Pressure.Col("J-1")
		if ds.Pressure.Values[5][j1] != 0 {
			t.Errorf("faulted row = %g, want 0", ds.Pressure.Values[5][j1])
		}
		if ds.Pressure.Values[10][j1] != 110 {
			t.Errorf("unfaulted row = %g, want 110", ds.Pressure.Values[10][j1])
		}
	})

	t.Run("CacheServesAfterRemoval", func(t *testing.T) {
		// The raw series was cached by the previous read; dropping the
		// files must not break subsequent reads.
		if err := s.RemoveMeasurements("ltown", "baseline"); err != nil {
			t.Fatalf("failed to remove measurements: %v", err)
		}
		if _, err := loader.Get(ctx, "ltown", "baseline", "full", "clean"); err != nil {
			t.Errorf("cached read failed: %v", err)
		}
	})
}
