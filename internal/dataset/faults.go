package dataset

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/openwater-labs/aquanet/internal/domain"
)

// Apply returns a copy of the dataset with every sensorfault in the config
// applied. Faults targeting parts the sensor config did not instrument are
// no-ops; the leak, sensor and sensorfault axes are independent. Faults on
// the same part and type compose in declaration order.
//
// Normal-noise faults draw from a generator seeded by the config content,
// so repeated reads of the same triple produce identical datasets.
func Apply(d *domain.Dataset, sc *domain.SensorfaultConfig) *domain.Dataset {
	if len(sc.Faults) == 0 {
		return d
	}

	out := &domain.Dataset{
		Demand:   d.Demand.Clone(),
		Flow:     d.Flow.Clone(),
		Pressure: d.Pressure.Clone(),
	}
	rng := rand.New(rand.NewSource(configSeed(sc)))

	for _, f := range sc.Faults {
		applyOne(out.Table(f.SensorType), f, rng)
	}
	return out
}

func applyOne(t *domain.Table, f domain.Sensorfault, rng *rand.Rand) {
	col, ok := t.Col(f.PartID)
	if !ok {
		// Not instrumented by the selected sensor config.
		return
	}

	// Inclusive window, clamped to the table horizon.
	start, end := f.Start, f.End
	if last := t.Rows() - 1; end > last {
		end = last
	}

	for row := start; row <= end; row++ {
		v := t.Values[row][col]
		switch fault := f.Fault.(type) {
		case domain.ConstantFault:
			v = fault.Value
		case domain.DriftFault:
			v += fault.Rate * float64(row-start)
		case domain.NormalFault:
			v += rng.NormFloat64() * fault.Sigma
		case domain.PercentageFault:
			v *= fault.Factor
		case domain.ShiftFault:
			v += fault.Offset
		case domain.StuckZeroFault:
			v = 0
		}
		t.Values[row][col] = v
	}
}

// configSeed derives a deterministic RNG seed from the fault entries.
func configSeed(sc *domain.SensorfaultConfig) int64 {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", sc.Name)
	for _, f := range sc.Faults {
		param, _ := domain.FaultParam(f.Fault)
		fmt.Fprintf(h, "%s|%s|%d|%d|%s|%g\n",
			f.PartID, f.SensorType, f.Start, f.End, domain.FaultName(f.Fault), param)
	}
	return int64(binary.BigEndian.Uint64(h.Sum(nil)[:8]))
}
