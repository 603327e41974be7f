// Package dataset implements the read-path composition stages: sensor
// selection over raw series and sensorfault injection over selected
// series, plus the cache that keeps decoded raw series hot.
package dataset

import (
	"github.com/openwater-labs/aquanet/internal/domain"
)

// Select restricts a raw series to the parts instrumented by the sensor
// config, per measurement type. Returns ErrNotFound when a configured
// part is not a column of the raw series.
func Select(rs *domain.RawSeries, sc *domain.SensorConfig) (*domain.Dataset, error) {
	demand, err := rs.Demand.Project(sc.Demand)
	if err != nil {
		return nil, err
	}
	flow, err := rs.Flow.Project(sc.Flow)
	if err != nil {
		return nil, err
	}
	pressure, err := rs.Pressure.Project(sc.Pressure)
	if err != nil {
		return nil, err
	}
	return &domain.Dataset{Demand: demand, Flow: flow, Pressure: pressure}, nil
}
