package domain

// Table is a time-indexed measurement table: one column per network part,
// one row per simulation iteration. Time holds the row timestamps in
// seconds (iteration index * timeStep).
type Table struct {
	Parts  []string    `json:"parts"`
	Time   []float64   `json:"time"`
	Values [][]float64 `json:"values"` // Values[row][col]

	index map[string]int
}

// NewTable creates an empty table with the given columns and row count.
func NewTable(parts []string, rows int) *Table {
	t := &Table{
		Parts:  append([]string(nil), parts...),
		Time:   make([]float64, rows),
		Values: make([][]float64, rows),
		index:  make(map[string]int, len(parts)),
	}
	for i, p := range t.Parts {
		t.index[p] = i
	}
	for i := range t.Values {
		t.Values[i] = make([]float64, len(parts))
	}
	return t
}

// Rows returns the number of rows in the table.
func (t *Table) Rows() int {
	return len(t.Values)
}

// Col returns the column index for a part, or false if the part is not a
// column of this table. Col never writes: cached raw series are read by
// concurrent requests. Tables decoded straight from JSON carry no index
// and fall back to a scan.
func (t *Table) Col(part string) (int, bool) {
	if t.index != nil {
		i, ok := t.index[part]
		return i, ok
	}
	for i, p := range t.Parts {
		if p == part {
			return i, true
		}
	}
	return 0, false
}

// Clone returns a deep copy. The read path mutates copies only; stored raw
// series stay immutable.
func (t *Table) Clone() *Table {
	c := NewTable(t.Parts, t.Rows())
	copy(c.Time, t.Time)
	for i := range t.Values {
		copy(c.Values[i], t.Values[i])
	}
	return c
}

// Project returns a new table restricted to the named parts, in the given
// order. Returns ErrNotFound if any part is not a column of the table.
func (t *Table) Project(parts []string) (*Table, error) {
	cols := make([]int, len(parts))
	for i, p := range parts {
		c, ok := t.Col(p)
		if !ok {
			return nil, NotFoundf("part %q is not present in the raw series", p)
		}
		cols[i] = c
	}
	out := NewTable(parts, t.Rows())
	copy(out.Time, t.Time)
	for r := range t.Values {
		for i, c := range cols {
			out.Values[r][i] = t.Values[r][c]
		}
	}
	return out, nil
}

// RawSeries is the full-network, unfaulted output of one solver run for a
// (scenario, leak config) pair. Immutable once written.
type RawSeries struct {
	Demand   *Table `json:"demand"`
	Flow     *Table `json:"flow"`
	Pressure *Table `json:"pressure"`
}

// Table returns the table for a sensor type.
func (rs *RawSeries) Table(st SensorType) *Table {
	switch st {
	case SensorDemand:
		return rs.Demand
	case SensorFlow:
		return rs.Flow
	default:
		return rs.Pressure
	}
}

// Dataset is a sensor-selected, possibly fault-injected view of a raw
// series. Computed per request, never persisted.
type Dataset struct {
	Demand   *Table `json:"demand"`
	Flow     *Table `json:"flow"`
	Pressure *Table `json:"pressure"`
}

// Table returns the table for a sensor type.
func (d *Dataset) Table(st SensorType) *Table {
	switch st {
	case SensorDemand:
		return d.Demand
	case SensorFlow:
		return d.Flow
	default:
		return d.Pressure
	}
}
