package domain

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LeakKind distinguishes instantaneous-onset from ramping-onset leaks.
type LeakKind string

const (
	LeakAbrupt    LeakKind = "abrupt"
	LeakIncipient LeakKind = "incipient"
)

// Leak is one leak perturbation applied during simulation. Start, Peak and
// End are scenario iteration indices; Peak is meaningful for incipient
// leaks only. Diameter is the orifice diameter in meters.
type Leak struct {
	PartID   string
	IsPipe   bool
	Kind     LeakKind
	Diameter float64
	Start    int
	Peak     int
	End      int
}

// LeakConfig is a named set of leaks. An empty set is the baseline
// (no-leak) configuration.
type LeakConfig struct {
	Name  string
	Leaks []Leak
}

// SensorConfig names the instrumented parts per measurement type. All
// three lists are required in the source document; any may be empty.
type SensorConfig struct {
	Name     string
	Pressure []string
	Flow     []string
	Demand   []string
}

// Parts returns the sensor list for a measurement type.
func (sc *SensorConfig) Parts(st SensorType) []string {
	switch st {
	case SensorDemand:
		return sc.Demand
	case SensorFlow:
		return sc.Flow
	default:
		return sc.Pressure
	}
}

// SensorfaultConfig is a named set of sensorfaults. An empty set yields
// ground-truth readings.
type SensorfaultConfig struct {
	Name   string
	Faults []Sensorfault
}

// Scenario is one simulated network and time horizon together with its
// leak, sensor and sensorfault config sets.
type Scenario struct {
	Name       string
	Network    string // topology reference (path, relative to the config file)
	Iterations int    // total simulated steps
	TimeStep   int    // seconds per step

	LeakConfigs        []LeakConfig
	SensorConfigs      []SensorConfig
	SensorfaultConfigs []SensorfaultConfig
}

// LeakConfig returns the named leak config, or nil if unknown.
func (s *Scenario) LeakConfig(name string) *LeakConfig {
	for i := range s.LeakConfigs {
		if s.LeakConfigs[i].Name == name {
			return &s.LeakConfigs[i]
		}
	}
	return nil
}

// SensorConfig returns the named sensor config, or nil if unknown.
func (s *Scenario) SensorConfig(name string) *SensorConfig {
	for i := range s.SensorConfigs {
		if s.SensorConfigs[i].Name == name {
			return &s.SensorConfigs[i]
		}
	}
	return nil
}

// SensorfaultConfig returns the named sensorfault config, or nil if unknown.
func (s *Scenario) SensorfaultConfig(name string) *SensorfaultConfig {
	for i := range s.SensorfaultConfigs {
		if s.SensorfaultConfigs[i].Name == name {
			return &s.SensorfaultConfigs[i]
		}
	}
	return nil
}

// ScenarioCollection is the parsed scenario configuration document.
type ScenarioCollection struct {
	Scenarios []Scenario
}

// Scenario returns the named scenario, or nil if unknown.
func (c *ScenarioCollection) Scenario(name string) *Scenario {
	for i := range c.Scenarios {
		if c.Scenarios[i].Name == name {
			return &c.Scenarios[i]
		}
	}
	return nil
}

// Wire format. The configuration source is a single XML document with a
// ScenarioCollection root; attribute values are decoded from strings so
// that malformed numbers produce precise ConfigError messages instead of
// decoder noise.

type collectionXML struct {
	XMLName   xml.Name      `xml:"ScenarioCollection"`
	Scenarios []scenarioXML `xml:"Scenario"`
}

type scenarioXML struct {
	Name       string `xml:"name,attr"`
	Network    string `xml:"network,attr"`
	Iterations string `xml:"iterations,attr"`
	TimeStep   string `xml:"timeStep,attr"`

	// Pointers so that a missing collection is distinguishable from an
	// empty one; all three are required per scenario.
	LeakConfigs *struct {
		Configs []leakConfigXML `xml:"LeakConfig"`
	} `xml:"LeakConfigs"`
	SensorConfigs *struct {
		Configs []sensorConfigXML `xml:"SensorConfig"`
	} `xml:"SensorConfigs"`
	SensorfaultConfigs *struct {
		Configs []sensorfaultConfigXML `xml:"SensorfaultConfig"`
	} `xml:"SensorfaultConfigs"`
}

type leakConfigXML struct {
	XMLName xml.Name  `xml:"LeakConfig"`
	Name    string    `xml:"name,attr"`
	Leaks   []leakXML `xml:"Leak"`
}

type leakXML struct {
	XMLName  xml.Name `xml:"Leak"`
	NodeID   string   `xml:"nodeId,attr,omitempty"`
	PipeID   string   `xml:"pipeId,attr,omitempty"`
	Type     string   `xml:"type,attr"`
	Diameter string   `xml:"diameter,attr"`
	Start    string   `xml:"start,attr"`
	Peak     string   `xml:"peak,attr,omitempty"`
	End      string   `xml:"end,attr"`
}

type sensorConfigXML struct {
	XMLName  xml.Name       `xml:"SensorConfig"`
	Name     string         `xml:"name,attr"`
	Pressure *sensorListXML `xml:"PressureSensors"`
	Flow     *sensorListXML `xml:"FlowSensors"`
	Demand   *sensorListXML `xml:"DemandSensors"`
}

type sensorListXML struct {
	Sensors []sensorXML `xml:"Sensor"`
}

type sensorXML struct {
	ID string `xml:"id,attr"`
}

type sensorfaultConfigXML struct {
	XMLName xml.Name         `xml:"SensorfaultConfig"`
	Name    string           `xml:"name,attr"`
	Faults  []sensorfaultXML `xml:"Sensorfault"`
}

type sensorfaultXML struct {
	XMLName    xml.Name `xml:"Sensorfault"`
	PartID     string   `xml:"partId,attr"`
	SensorType string   `xml:"sensorType,attr"`
	Start      string   `xml:"start,attr"`
	End        string   `xml:"end,attr"`
	FaultType  string   `xml:"faultType,attr"`
	FaultParam string   `xml:"faultParam,attr,omitempty"`
}

// LoadCollection parses and validates a scenario configuration file.
func LoadCollection(path string) (*ScenarioCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NotFoundf("config file %q", path)
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()
	return ParseCollection(f)
}

// ParseCollection parses and validates a scenario configuration document.
func ParseCollection(r io.Reader) (*ScenarioCollection, error) {
	var doc collectionXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, ConfigErrorf("parsing config document: %v", err)
	}

	col := &ScenarioCollection{}
	seenScenarios := map[string]bool{}
	for i := range doc.Scenarios {
		s, err := doc.Scenarios[i].toModel()
		if err != nil {
			return nil, err
		}
		if seenScenarios[s.Name] {
			return nil, ConfigErrorf("duplicate scenario name %q", s.Name)
		}
		seenScenarios[s.Name] = true
		col.Scenarios = append(col.Scenarios, *s)
	}
	if len(col.Scenarios) == 0 {
		return nil, ConfigErrorf("config document declares no scenarios")
	}
	return col, nil
}

func (x *scenarioXML) toModel() (*Scenario, error) {
	if err := checkName("scenario", x.Name); err != nil {
		return nil, err
	}
	if x.Network == "" {
		return nil, ConfigErrorf("scenario %q: missing network attribute", x.Name)
	}
	iterations, err := parseInt("iterations", x.Iterations, x.Name)
	if err != nil {
		return nil, err
	}
	timeStep, err := parseInt("timeStep", x.TimeStep, x.Name)
	if err != nil {
		return nil, err
	}
	if iterations <= 0 || timeStep <= 0 {
		return nil, ConfigErrorf("scenario %q: iterations and timeStep must be positive", x.Name)
	}
	if x.LeakConfigs == nil || x.SensorConfigs == nil || x.SensorfaultConfigs == nil {
		return nil, ConfigErrorf("scenario %q: LeakConfigs, SensorConfigs and SensorfaultConfigs collections are all required", x.Name)
	}

	s := &Scenario{
		Name:       x.Name,
		Network:    x.Network,
		Iterations: iterations,
		TimeStep:   timeStep,
	}

	// Config names share one namespace per scenario.
	seen := map[string]bool{}
	claim := func(name string) error {
		if err := checkName("config", name); err != nil {
			return fmt.Errorf("scenario %q: %w", x.Name, err)
		}
		if seen[name] {
			return ConfigErrorf("scenario %q: duplicate config name %q", x.Name, name)
		}
		seen[name] = true
		return nil
	}

	for _, lcx := range x.LeakConfigs.Configs {
		if err := claim(lcx.Name); err != nil {
			return nil, err
		}
		lc, err := lcx.toModel(iterations)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", x.Name, err)
		}
		s.LeakConfigs = append(s.LeakConfigs, *lc)
	}
	for _, scx := range x.SensorConfigs.Configs {
		if err := claim(scx.Name); err != nil {
			return nil, err
		}
		sc, err := scx.toModel()
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", x.Name, err)
		}
		s.SensorConfigs = append(s.SensorConfigs, *sc)
	}
	for _, sfx := range x.SensorfaultConfigs.Configs {
		if err := claim(sfx.Name); err != nil {
			return nil, err
		}
		sf, err := sfx.toModel(iterations)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", x.Name, err)
		}
		s.SensorfaultConfigs = append(s.SensorfaultConfigs, *sf)
	}
	return s, nil
}

func (x *leakConfigXML) toModel(iterations int) (*LeakConfig, error) {
	lc := &LeakConfig{Name: x.Name}
	abruptParts := map[string]bool{}
	for i := range x.Leaks {
		l, err := x.Leaks[i].toModel(iterations)
		if err != nil {
			return nil, fmt.Errorf("leak config %q: %w", x.Name, err)
		}
		if l.Kind == LeakAbrupt {
			// The solver models abrupt leaks as a single orifice per part.
			if abruptParts[l.PartID] {
				return nil, ConfigErrorf("leak config %q: multiple abrupt leaks on part %q", x.Name, l.PartID)
			}
			abruptParts[l.PartID] = true
		}
		lc.Leaks = append(lc.Leaks, *l)
	}
	return lc, nil
}

func (x *leakXML) toModel(iterations int) (*Leak, error) {
	l := &Leak{}
	switch {
	case x.NodeID != "" && x.PipeID != "":
		return nil, ConfigErrorf("leak declares both nodeId and pipeId")
	case x.NodeID != "":
		l.PartID = x.NodeID
	case x.PipeID != "":
		l.PartID, l.IsPipe = x.PipeID, true
	default:
		return nil, ConfigErrorf("leak requires a nodeId or pipeId")
	}

	switch LeakKind(x.Type) {
	case LeakAbrupt, LeakIncipient:
		l.Kind = LeakKind(x.Type)
	default:
		return nil, ConfigErrorf("leak on part %q: unknown leak type %q", l.PartID, x.Type)
	}

	d, err := strconv.ParseFloat(x.Diameter, 64)
	if err != nil || d <= 0 {
		return nil, ConfigErrorf("leak on part %q: diameter must be a positive number, got %q", l.PartID, x.Diameter)
	}
	l.Diameter = d

	if l.Start, err = parseInt("start", x.Start, l.PartID); err != nil {
		return nil, err
	}
	if l.End, err = parseInt("end", x.End, l.PartID); err != nil {
		return nil, err
	}
	if l.Start < 0 || l.Start > l.End || (iterations >= 0 && l.End > iterations) {
		return nil, ConfigErrorf("leak on part %q: require 0 <= start <= end <= iterations", l.PartID)
	}

	if l.Kind == LeakIncipient {
		if x.Peak == "" {
			return nil, ConfigErrorf("incipient leak on part %q: missing peak attribute", l.PartID)
		}
		if l.Peak, err = parseInt("peak", x.Peak, l.PartID); err != nil {
			return nil, err
		}
		if l.Peak < l.Start || l.Peak > l.End {
			return nil, ConfigErrorf("incipient leak on part %q: require start <= peak <= end", l.PartID)
		}
	} else if x.Peak != "" {
		return nil, ConfigErrorf("abrupt leak on part %q: peak is not allowed", l.PartID)
	}
	return l, nil
}

func (x *sensorConfigXML) toModel() (*SensorConfig, error) {
	if x.Pressure == nil || x.Flow == nil || x.Demand == nil {
		return nil, ConfigErrorf("sensor config %q: PressureSensors, FlowSensors and DemandSensors are all required", x.Name)
	}
	return &SensorConfig{
		Name:     x.Name,
		Pressure: x.Pressure.ids(),
		Flow:     x.Flow.ids(),
		Demand:   x.Demand.ids(),
	}, nil
}

func (x *sensorListXML) ids() []string {
	ids := make([]string, 0, len(x.Sensors))
	for _, s := range x.Sensors {
		ids = append(ids, s.ID)
	}
	return ids
}

func (x *sensorfaultConfigXML) toModel(iterations int) (*SensorfaultConfig, error) {
	sc := &SensorfaultConfig{Name: x.Name}
	for i := range x.Faults {
		f, err := x.Faults[i].toModel(iterations)
		if err != nil {
			return nil, fmt.Errorf("sensorfault config %q: %w", x.Name, err)
		}
		sc.Faults = append(sc.Faults, *f)
	}
	return sc, nil
}

func (x *sensorfaultXML) toModel(iterations int) (*Sensorfault, error) {
	if x.PartID == "" {
		return nil, ConfigErrorf("sensorfault requires a partId")
	}
	st, err := ParseSensorType(x.SensorType)
	if err != nil {
		return nil, err
	}
	sf := &Sensorfault{PartID: x.PartID, SensorType: st}

	if sf.Start, err = parseInt("start", x.Start, x.PartID); err != nil {
		return nil, err
	}
	if sf.End, err = parseInt("end", x.End, x.PartID); err != nil {
		return nil, err
	}
	if sf.Start < 0 || sf.Start > sf.End || (iterations >= 0 && sf.End > iterations) {
		return nil, ConfigErrorf("sensorfault on part %q: require 0 <= start <= end <= iterations", x.PartID)
	}

	var param *float64
	if x.FaultParam != "" {
		p, err := strconv.ParseFloat(x.FaultParam, 64)
		if err != nil {
			return nil, ConfigErrorf("sensorfault on part %q: faultParam must be a number, got %q", x.PartID, x.FaultParam)
		}
		param = &p
	}
	if sf.Fault, err = NewFault(x.FaultType, param); err != nil {
		return nil, err
	}
	return sf, nil
}

// checkName enforces the shared name constraint: non-empty, no spaces or
// periods (reserved as path and selection separators).
func checkName(kind, name string) error {
	if name == "" {
		return ConfigErrorf("%s name must not be empty", kind)
	}
	if strings.ContainsAny(name, " .") {
		return ConfigErrorf("%s name %q must not contain spaces or periods", kind, name)
	}
	return nil
}

func parseInt(attr, value, subject string) (int, error) {
	if value == "" {
		return 0, ConfigErrorf("%q: missing %s attribute", subject, attr)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, ConfigErrorf("%q: %s must be an integer, got %q", subject, attr, value)
	}
	return n, nil
}
