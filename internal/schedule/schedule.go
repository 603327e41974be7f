// Package schedule converts leak configurations into per-iteration orifice
// diameter schedules and resamples them onto the solver's native time base.
package schedule

import (
	"github.com/openwater-labs/aquanet/internal/domain"
)

// Build produces the per-iteration diameter curve of a single leak over a
// scenario of the given length. The value is zero outside [Start, End].
// Abrupt leaks hold the configured diameter across the whole window;
// incipient leaks ramp linearly from zero at Start to the configured
// diameter at Peak, then hold through End. Start == Peak degenerates to a
// step.
func Build(l domain.Leak, iterations int) []float64 {
	curve := make([]float64, iterations)
	end := min(l.End, iterations-1)

	switch l.Kind {
	case domain.LeakAbrupt:
		for t := l.Start; t <= end; t++ {
			curve[t] = l.Diameter
		}
	case domain.LeakIncipient:
		peak := min(l.Peak, iterations-1)
		if l.Peak == l.Start {
			for t := l.Start; t <= end; t++ {
				curve[t] = l.Diameter
			}
			break
		}
		for t := l.Start; t <= peak; t++ {
			curve[t] = l.Diameter * float64(t-l.Start) / float64(l.Peak-l.Start)
		}
		for t := peak + 1; t <= end; t++ {
			curve[t] = l.Diameter
		}
	}
	return curve
}

// BuildConfig merges all leaks of a config into per-part schedules.
// Overlapping leaks on the same part combine additively; the solver treats
// each contribution as an independent orifice.
func BuildConfig(lc *domain.LeakConfig, iterations int) map[string][]float64 {
	schedules := make(map[string][]float64)
	for _, l := range lc.Leaks {
		curve := Build(l, iterations)
		if existing, ok := schedules[l.PartID]; ok {
			for t := range existing {
				existing[t] += curve[t]
			}
			continue
		}
		schedules[l.PartID] = curve
	}
	return schedules
}

// Resample converts a schedule authored in scenario iteration units
// (timeStep seconds per sample) onto the solver's native pattern interval
// by linear interpolation of the diameter curve. Sample i of the input sits
// at time i*timeStep; sample j of the output at j*patternStep. Instants
// present in the input (start, peak, end) are preserved exactly whenever
// the native grid passes through them. Outside the input range the curve is
// clamped to its boundary values.
func Resample(curve []float64, timeStep, patternStep int) []float64 {
	if patternStep == 0 || patternStep == timeStep || len(curve) == 0 {
		out := make([]float64, len(curve))
		copy(out, curve)
		return out
	}

	span := (len(curve) - 1) * timeStep
	n := span/patternStep + 1
	if span%patternStep != 0 {
		n++ // cover the tail of the scenario horizon
	}
	out := make([]float64, n)
	for j := 0; j < n; j++ {
		x := float64(j*patternStep) / float64(timeStep)
		i := int(x)
		switch {
		case i >= len(curve)-1:
			out[j] = curve[len(curve)-1]
		case x <= 0:
			out[j] = curve[0]
		default:
			frac := x - float64(i)
			out[j] = curve[i]*(1-frac) + curve[i+1]*frac
		}
	}
	return out
}

// ResampleConfig resamples every part schedule of a config.
func ResampleConfig(schedules map[string][]float64, timeStep, patternStep int) map[string][]float64 {
	out := make(map[string][]float64, len(schedules))
	for part, curve := range schedules {
		out[part] = Resample(curve, timeStep, patternStep)
	}
	return out
}
