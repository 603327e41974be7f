package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/openwater-labs/aquanet/internal/domain"
)

// ExportDataset writes a composed dataset as demand/flow/pressure CSV
// files into dir, in the same format raw series use.
func ExportDataset(dir string, ds *domain.Dataset) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	tables := map[string]*domain.Table{
		demandFile:   ds.Demand,
		flowFile:     ds.Flow,
		pressureFile: ds.Pressure,
	}
	for name, table := range tables {
		data, err := encodeTable(table)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

// Measurement tables persist as plain CSV: a "time" column in seconds
// followed by one column per reported part, one row per iteration.

func encodeTable(t *domain.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"time"}, t.Parts...)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	record := make([]string, len(header))
	for row := 0; row < t.Rows(); row++ {
		record[0] = formatValue(t.Time[row])
		for col, v := range t.Values[row] {
			record[col+1] = formatValue(v)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func decodeTable(data []byte) (*domain.Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading measurement table: %w", err)
	}
	if len(records) == 0 || len(records[0]) == 0 || records[0][0] != "time" {
		return nil, fmt.Errorf("measurement table is missing its time column")
	}

	t := domain.NewTable(records[0][1:], len(records)-1)
	for row, record := range records[1:] {
		if len(record) != len(records[0]) {
			return nil, fmt.Errorf("measurement table row %d has %d fields, want %d", row, len(record), len(records[0]))
		}
		if t.Time[row], err = strconv.ParseFloat(record[0], 64); err != nil {
			return nil, fmt.Errorf("measurement table row %d: bad timestamp %q", row, record[0])
		}
		for col, field := range record[1:] {
			if t.Values[row][col], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("measurement table row %d: bad value %q", row, field)
			}
		}
	}
	return t, nil
}

func formatValue(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
