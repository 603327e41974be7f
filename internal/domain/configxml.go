package domain

import (
	"encoding/xml"
	"io"
	"strconv"
)

// Per-config wire helpers. The persistence layer writes each config as its
// own XML document inside the scenario directory; the loader reads those
// documents back without the enclosing collection.

// MarshalLeakConfig encodes a leak config as a standalone XML document.
func MarshalLeakConfig(lc *LeakConfig) ([]byte, error) {
	x := leakConfigXML{Name: lc.Name}
	for _, l := range lc.Leaks {
		lx := leakXML{
			Type:     string(l.Kind),
			Diameter: formatFloat(l.Diameter),
			Start:    strconv.Itoa(l.Start),
			End:      strconv.Itoa(l.End),
		}
		if l.IsPipe {
			lx.PipeID = l.PartID
		} else {
			lx.NodeID = l.PartID
		}
		if l.Kind == LeakIncipient {
			lx.Peak = strconv.Itoa(l.Peak)
		}
		x.Leaks = append(x.Leaks, lx)
	}
	return marshalDoc(x)
}

// ParseLeakConfig decodes a standalone leak config document. Window upper
// bounds are not checked here; the enclosing scenario is not known.
func ParseLeakConfig(r io.Reader) (*LeakConfig, error) {
	var x leakConfigXML
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, ConfigErrorf("parsing leak config: %v", err)
	}
	return x.toModel(-1)
}

// MarshalSensorConfig encodes a sensor config as a standalone XML document.
func MarshalSensorConfig(sc *SensorConfig) ([]byte, error) {
	x := sensorConfigXML{
		Name:     sc.Name,
		Pressure: &sensorListXML{Sensors: toSensors(sc.Pressure)},
		Flow:     &sensorListXML{Sensors: toSensors(sc.Flow)},
		Demand:   &sensorListXML{Sensors: toSensors(sc.Demand)},
	}
	return marshalDoc(x)
}

// ParseSensorConfig decodes a standalone sensor config document.
func ParseSensorConfig(r io.Reader) (*SensorConfig, error) {
	var x sensorConfigXML
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, ConfigErrorf("parsing sensor config: %v", err)
	}
	return x.toModel()
}

// MarshalSensorfaultConfig encodes a sensorfault config as a standalone XML
// document.
func MarshalSensorfaultConfig(sc *SensorfaultConfig) ([]byte, error) {
	x := sensorfaultConfigXML{Name: sc.Name}
	for _, f := range sc.Faults {
		fx := sensorfaultXML{
			PartID:     f.PartID,
			SensorType: string(f.SensorType),
			Start:      strconv.Itoa(f.Start),
			End:        strconv.Itoa(f.End),
			FaultType:  FaultName(f.Fault),
		}
		if p, ok := FaultParam(f.Fault); ok {
			fx.FaultParam = formatFloat(p)
		}
		x.Faults = append(x.Faults, fx)
	}
	return marshalDoc(x)
}

// ParseSensorfaultConfig decodes a standalone sensorfault config document.
func ParseSensorfaultConfig(r io.Reader) (*SensorfaultConfig, error) {
	var x sensorfaultConfigXML
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, ConfigErrorf("parsing sensorfault config: %v", err)
	}
	return x.toModel(-1)
}

func toSensors(ids []string) []sensorXML {
	out := make([]sensorXML, len(ids))
	for i, id := range ids {
		out[i] = sensorXML{ID: id}
	}
	return out
}

func marshalDoc(v any) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
