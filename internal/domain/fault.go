package domain

// SensorType identifies which measurement table a sensor or sensorfault
// targets.
type SensorType string

const (
	SensorPressure SensorType = "pressure"
	SensorFlow     SensorType = "flow"
	SensorDemand   SensorType = "demand"
)

// ParseSensorType converts the XML attribute value to a SensorType.
func ParseSensorType(s string) (SensorType, error) {
	switch SensorType(s) {
	case SensorPressure, SensorFlow, SensorDemand:
		return SensorType(s), nil
	default:
		return "", ConfigErrorf("unknown sensor type %q", s)
	}
}

// Fault is the closed set of sensorfault transformations. Each variant
// carries only the parameters it needs; the applier dispatches with a single
// exhaustive type switch.
type Fault interface {
	faultName() string
}

// ConstantFault replaces the reading with a fixed value.
type ConstantFault struct {
	Value float64
}

// DriftFault adds Rate*(t-start) to the reading, growing from zero at the
// window start.
type DriftFault struct {
	Rate float64
}

// NormalFault adds zero-mean gaussian noise with the given standard
// deviation, drawn independently per row.
type NormalFault struct {
	Sigma float64
}

// PercentageFault scales the reading by Factor.
type PercentageFault struct {
	Factor float64
}

// ShiftFault adds a constant offset to the reading.
type ShiftFault struct {
	Offset float64
}

// StuckZeroFault forces the reading to zero. It carries no parameter.
type StuckZeroFault struct{}

func (ConstantFault) faultName() string   { return "constant" }
func (DriftFault) faultName() string      { return "drift" }
func (NormalFault) faultName() string     { return "normal" }
func (PercentageFault) faultName() string { return "percentage" }
func (ShiftFault) faultName() string      { return "shift" }
func (StuckZeroFault) faultName() string  { return "stuckzero" }

// FaultName returns the wire name of a fault variant ("constant", "drift",
// "normal", "percentage", "shift" or "stuckzero").
func FaultName(f Fault) string {
	if f == nil {
		return ""
	}
	return f.faultName()
}

// NewFault builds a fault variant from its wire name and parameter. The
// parameter is required for every type except stuckzero.
func NewFault(name string, param *float64) (Fault, error) {
	if name != "stuckzero" && param == nil {
		return nil, ConfigErrorf("fault type %q requires a faultParam", name)
	}
	switch name {
	case "constant":
		return ConstantFault{Value: *param}, nil
	case "drift":
		return DriftFault{Rate: *param}, nil
	case "normal":
		return NormalFault{Sigma: *param}, nil
	case "percentage":
		return PercentageFault{Factor: *param}, nil
	case "shift":
		return ShiftFault{Offset: *param}, nil
	case "stuckzero":
		return StuckZeroFault{}, nil
	default:
		return nil, ConfigErrorf("unknown fault type %q", name)
	}
}

// FaultParam returns the parameter carried by a fault variant, or false for
// stuckzero. Used when persisting configs back to XML.
func FaultParam(f Fault) (float64, bool) {
	switch v := f.(type) {
	case ConstantFault:
		return v.Value, true
	case DriftFault:
		return v.Rate, true
	case NormalFault:
		return v.Sigma, true
	case PercentageFault:
		return v.Factor, true
	case ShiftFault:
		return v.Offset, true
	default:
		return 0, false
	}
}

// Sensorfault corrupts one instrumented series over an inclusive iteration
// window [Start, End].
type Sensorfault struct {
	PartID     string
	SensorType SensorType
	Start      int
	End        int
	Fault      Fault
}
