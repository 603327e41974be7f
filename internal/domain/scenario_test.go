package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

const validDoc = `<?xml version="1.0" encoding="UTF-8"?>
<ScenarioCollection>
  <Scenario name="ltown" network="topology.xml" iterations="1000" timeStep="1800">
    <LeakConfigs>
      <LeakConfig name="baseline"/>
      <LeakConfig name="mixed">
        <Leak nodeId="J-12" type="abrupt" diameter="0.04" start="100" end="500"/>
        <Leak pipeId="P-3" type="incipient" diameter="0.02" start="0" peak="200" end="800"/>
      </LeakConfig>
    </LeakConfigs>
    <SensorConfigs>
      <SensorConfig name="full">
        <PressureSensors>
          <Sensor id="J-12"/>
          <Sensor id="J-13"/>
        </PressureSensors>
        <FlowSensors>
          <Sensor id="P-3"/>
        </FlowSensors>
        <DemandSensors/>
      </SensorConfig>
    </SensorConfigs>
    <SensorfaultConfigs>
      <SensorfaultConfig name="noisy">
        <Sensorfault partId="J-12" sensorType="pressure" start="0" end="1000" faultType="normal" faultParam="0.5"/>
        <Sensorfault partId="P-3" sensorType="flow" start="50" end="60" faultType="stuckzero"/>
      </SensorfaultConfig>
    </SensorfaultConfigs>
  </Scenario>
</ScenarioCollection>
`

func TestParseCollection(t *testing.T) {
	col, err := ParseCollection(strings.NewReader(validDoc))
	if err != nil {
		t.Fatalf("failed to parse collection: %v", err)
	}

	s := col.Scenario("ltown")
	if s == nil {
		t.Fatal("scenario ltown missing")
	}
	if s.Iterations != 1000 || s.TimeStep != 1800 {
		t.Errorf("horizon = %d/%d", s.Iterations, s.TimeStep)
	}

	lc := s.LeakConfig("mixed")
	if lc == nil || len(lc.Leaks) != 2 {
		t.Fatalf("leak config mixed = %+v", lc)
	}
	if lc.Leaks[0].IsPipe || lc.Leaks[0].Kind != LeakAbrupt {
		t.Errorf("first leak = %+v", lc.Leaks[0])
	}
	if !lc.Leaks[1].IsPipe || lc.Leaks[1].Peak != 200 {
		t.Errorf("second leak = %+v", lc.Leaks[1])
	}
	if baseline := s.LeakConfig("baseline"); baseline == nil || len(baseline.Leaks) != 0 {
		t.Errorf("baseline = %+v", baseline)
	}

	sc := s.SensorConfig("full")
	if sc == nil || len(sc.Pressure) != 2 || len(sc.Flow) != 1 || len(sc.Demand) != 0 {
		t.Fatalf("sensor config = %+v", sc)
	}

	fc := s.SensorfaultConfig("noisy")
	if fc == nil || len(fc.Faults) != 2 {
		t.Fatalf("sensorfault config = %+v", fc)
	}
	if _, ok := fc.Faults[0].Fault.(NormalFault); !ok {
		t.Errorf("first fault = %T", fc.Faults[0].Fault)
	}
	if _, ok := fc.Faults[1].Fault.(StuckZeroFault); !ok {
		t.Errorf("second fault = %T", fc.Faults[1].Fault)
	}

	if s.LeakConfig("no-such") != nil {
		t.Error("unknown leak config lookup should return nil")
	}
}

func TestParseCollectionRejects(t *testing.T) {
	// Each case patches the valid document into an invalid one.
	cases := []struct {
		name string
		old  string
		new  string
	}{
		{"MissingNetwork", `network="topology.xml" `, ""},
		{"ZeroIterations", `iterations="1000"`, `iterations="0"`},
		{"BadTimeStep", `timeStep="1800"`, `timeStep="soon"`},
		{"NameWithSpace", `<LeakConfig name="baseline"/>`, `<LeakConfig name="base line"/>`},
		{"NameWithPeriod", `<LeakConfig name="baseline"/>`, `<LeakConfig name="base.line"/>`},
		{"DuplicateConfigName", `<SensorConfig name="full">`, `<SensorConfig name="baseline">`},
		{"LeakWithBothParts", `nodeId="J-12" type="abrupt"`, `nodeId="J-12" pipeId="P-9" type="abrupt"`},
		{"LeakWithoutPart", `nodeId="J-12" `, ""},
		{"UnknownLeakType", `type="abrupt"`, `type="gradual"`},
		{"NegativeDiameter", `diameter="0.04"`, `diameter="-0.04"`},
		{"StartAfterEnd", `start="100" end="500"`, `start="600" end="500"`},
		{"EndPastHorizon", `end="500"`, `end="1001"`},
		{"IncipientWithoutPeak", `start="0" peak="200" end="800"`, `start="0" end="800"`},
		{"PeakOutsideWindow", `peak="200"`, `peak="900"`},
		{"AbruptWithPeak", `type="abrupt" diameter="0.04" start="100"`, `type="abrupt" diameter="0.04" peak="150" start="100"`},
		{"MissingSensorList", "<DemandSensors/>", ""},
		{"UnknownSensorType", `sensorType="pressure"`, `sensorType="temperature"`},
		{"FaultWindowReversed", `start="50" end="60"`, `start="70" end="60"`},
		{"UnknownFaultType", `faultType="normal"`, `faultType="spike"`},
		{"NormalWithoutParam", ` faultParam="0.5"`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := strings.Replace(validDoc, tc.old, tc.new, 1)
			if doc == validDoc {
				t.Fatalf("patch %q did not apply", tc.old)
			}
			_, err := ParseCollection(strings.NewReader(doc))
			if !errors.Is(err, ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}

	t.Run("DuplicateAbruptLeakOnPart", func(t *testing.T) {
		doc := strings.Replace(validDoc,
			`<Leak nodeId="J-12" type="abrupt" diameter="0.04" start="100" end="500"/>`,
			`<Leak nodeId="J-12" type="abrupt" diameter="0.04" start="100" end="500"/>
        <Leak nodeId="J-12" type="abrupt" diameter="0.02" start="600" end="700"/>`, 1)
		if _, err := ParseCollection(strings.NewReader(doc)); !errors.Is(err, ErrConfig) {
			t.Errorf("expected ErrConfig, got %v", err)
		}
	})

	t.Run("DuplicateScenarioName", func(t *testing.T) {
		doc := strings.Replace(validDoc, "</ScenarioCollection>", "", 1)
		second := strings.TrimPrefix(validDoc, `<?xml version="1.0" encoding="UTF-8"?>`)
		second = strings.Replace(second, "<ScenarioCollection>", "", 1)
		doc += second
		if _, err := ParseCollection(strings.NewReader(doc)); !errors.Is(err, ErrConfig) {
			t.Errorf("expected ErrConfig, got %v", err)
		}
	})

	t.Run("EmptyCollection", func(t *testing.T) {
		doc := `<?xml version="1.0"?><ScenarioCollection></ScenarioCollection>`
		if _, err := ParseCollection(strings.NewReader(doc)); !errors.Is(err, ErrConfig) {
			t.Errorf("expected ErrConfig, got %v", err)
		}
	})
}

func TestConfigDocumentRoundtrip(t *testing.T) {
	col, err := ParseCollection(strings.NewReader(validDoc))
	if err != nil {
		t.Fatalf("failed to parse collection: %v", err)
	}
	s := col.Scenario("ltown")

	t.Run("LeakConfig", func(t *testing.T) {
		data, err := MarshalLeakConfig(s.LeakConfig("mixed"))
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		got, err := ParseLeakConfig(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if len(got.Leaks) != 2 || got.Leaks[1].Peak != 200 || !got.Leaks[1].IsPipe {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("SensorConfig", func(t *testing.T) {
		data, err := MarshalSensorConfig(s.SensorConfig("full"))
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		got, err := ParseSensorConfig(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if len(got.Pressure) != 2 || got.Pressure[1] != "J-13" || len(got.Demand) != 0 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("SensorfaultConfig", func(t *testing.T) {
		data, err := MarshalSensorfaultConfig(s.SensorfaultConfig("noisy"))
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		got, err := ParseSensorfaultConfig(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if len(got.Faults) != 2 {
			t.Fatalf("got %+v", got)
		}
		if nf, ok := got.Faults[0].Fault.(NormalFault); !ok || nf.Sigma != 0.5 {
			t.Errorf("first fault = %#v", got.Faults[0].Fault)
		}
	})
}

func TestTableProject(t *testing.T) {
	table := NewTable([]string{"a", "b", "c"}, 3)
	for i := 0; i < 3; i++ {
		table.Time[i] = float64(i)
		for j := range table.Values[i] {
			table.Values[i][j] = float64(10*i + j)
		}
	}

	t.Run("ReordersColumns", func(t *testing.T) {
		got, err := table.Project([]string{"c", "a"})
		if err != nil {
			t.Fatalf("failed to project: %v", err)
		}
		if got.Values[1][0] != 12 || got.Values[1][1] != 10 {
			t.Errorf("row 1 = %v", got.Values[1])
		}
	})

	t.Run("UnknownColumn", func(t *testing.T) {
		if _, err := table.Project([]string{"z"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("CloneIsDeep", func(t *testing.T) {
		c := table.Clone()
		c.Values[0][0] = -1
		if table.Values[0][0] == -1 {
			t.Error("clone shares backing storage")
		}
	})
}

// Cached raw series are handed to every request that hits the same pair,
// so column lookups must be safe for concurrent readers.
func TestTableConcurrentReads(t *testing.T) {
	table := NewTable([]string{"a", "b", "c", "d"}, 4)

	// A JSON round trip yields a table with no prebuilt column index,
	// like series decoded out of the remote cache tier.
	data, err := json.Marshal(table)
	if err != nil {
		t.Fatalf("failed to marshal table: %v", err)
	}
	var decoded Table
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal table: %v", err)
	}

	for _, tbl := range []*Table{table, &decoded} {
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					if c, ok := tbl.Col("c"); !ok || c != 2 {
						t.Errorf("Col(c) = %d, %v", c, ok)
						return
					}
					if _, ok := tbl.Col("z"); ok {
						t.Error("Col(z) found a phantom column")
						return
					}
					if _, err := tbl.Project([]string{"d", "a"}); err != nil {
						t.Errorf("failed to project: %v", err)
						return
					}
				}
			}()
		}
		wg.Wait()
	}
}

func TestNewFault(t *testing.T) {
	param := 1.5

	t.Run("RequiresParam", func(t *testing.T) {
		for _, name := range []string{"constant", "drift", "normal", "percentage", "shift"} {
			if _, err := NewFault(name, nil); !errors.Is(err, ErrConfig) {
				t.Errorf("%s without param: expected ErrConfig, got %v", name, err)
			}
		}
	})

	t.Run("StuckzeroTakesNone", func(t *testing.T) {
		f, err := NewFault("stuckzero", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := f.(StuckZeroFault); !ok {
			t.Errorf("got %T", f)
		}
		if _, ok := FaultParam(f); ok {
			t.Error("stuckzero should carry no parameter")
		}
	})

	t.Run("RoundtripsName", func(t *testing.T) {
		for _, name := range []string{"constant", "drift", "normal", "percentage", "shift", "stuckzero"} {
			f, err := NewFault(name, &param)
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			if FaultName(f) != name {
				t.Errorf("FaultName(%s) = %s", name, FaultName(f))
			}
		}
	})
}
