package store

import (
	"context"
	"errors"

	"github.com/openwater-labs/aquanet/internal/dataset"
	"github.com/openwater-labs/aquanet/internal/domain"
)

// Loader is the read path: it composes persisted raw series with sensor
// selection and sensorfault injection per request. Stateless across calls
// and safe for concurrent use; the series cache keeps decoded raw series
// hot between requests.
type Loader struct {
	collection *domain.ScenarioCollection
	store      *Store
	cache      domain.SeriesCache
}

// NewLoader creates a loader over a parsed collection.
func NewLoader(collection *domain.ScenarioCollection, store *Store, cache domain.SeriesCache) *Loader {
	return &Loader{collection: collection, store: store, cache: cache}
}

// Collection returns the parsed collection the loader serves.
func (l *Loader) Collection() *domain.ScenarioCollection {
	return l.collection
}

// ListScenarios returns all scenario names in declaration order.
func (l *Loader) ListScenarios() []string {
	names := make([]string, 0, len(l.collection.Scenarios))
	for i := range l.collection.Scenarios {
		names = append(names, l.collection.Scenarios[i].Name)
	}
	return names
}

// ConfigNames lists a scenario's config names per axis.
type ConfigNames struct {
	Leaks        []string `json:"leaks"`
	Sensors      []string `json:"sensors"`
	Sensorfaults []string `json:"sensorfaults"`
}

// ListConfigs returns the config names of a scenario. Listing is total: an
// unknown scenario yields empty lists, not an error.
func (l *Loader) ListConfigs(scenario string) ConfigNames {
	names := ConfigNames{
		Leaks:        []string{},
		Sensors:      []string{},
		Sensorfaults: []string{},
	}
	s := l.collection.Scenario(scenario)
	if s == nil {
		return names
	}
	for i := range s.LeakConfigs {
		names.Leaks = append(names.Leaks, s.LeakConfigs[i].Name)
	}
	for i := range s.SensorConfigs {
		names.Sensors = append(names.Sensors, s.SensorConfigs[i].Name)
	}
	for i := range s.SensorfaultConfigs {
		names.Sensorfaults = append(names.Sensorfaults, s.SensorfaultConfigs[i].Name)
	}
	return names
}

// GetLeakData reads the persisted leak config document for a pair.
// Returns (nil, nil) when the scenario or document is absent; exploratory
// reads do not need guarding.
func (l *Loader) GetLeakData(scenario, name string) (*domain.LeakConfig, error) {
	lc, err := l.store.ReadLeakConfig(scenario, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return lc, err
}

// GetSensorfaultData reads the persisted sensorfault config document for a
// pair. Returns (nil, nil) when the scenario or document is absent.
func (l *Loader) GetSensorfaultData(scenario, name string) (*domain.SensorfaultConfig, error) {
	sc, err := l.store.ReadSensorfaultConfig(scenario, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return sc, err
}

// Raw returns the raw series for a pair, read through the cache. Returns
// ErrNotFound when the pair has not been generated yet.
func (l *Loader) Raw(ctx context.Context, scenario, leakConfig string) (*domain.RawSeries, error) {
	if l.cache != nil {
		rs, err := l.cache.Get(ctx, scenario, leakConfig)
		if err != nil {
			return nil, err
		}
		if rs != nil {
			return rs, nil
		}
	}

	rs, err := l.store.ReadRawSeries(scenario, leakConfig)
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		if err := l.cache.Set(ctx, scenario, leakConfig, rs); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

// Get composes one dataset: raw series for the leak config, restricted to
// the sensor config's parts, with the sensorfault config's corruptions
// applied. Returns ErrNotFound for unknown names or a pair that has not
// been generated.
func (l *Loader) Get(ctx context.Context, scenario, leak, sensors, faults string) (*domain.Dataset, error) {
	s := l.collection.Scenario(scenario)
	if s == nil {
		return nil, domain.NotFoundf("scenario %q", scenario)
	}
	lc := s.LeakConfig(leak)
	if lc == nil {
		return nil, domain.NotFoundf("leak config %q in scenario %q", leak, scenario)
	}
	sc := s.SensorConfig(sensors)
	if sc == nil {
		return nil, domain.NotFoundf("sensor config %q in scenario %q", sensors, scenario)
	}
	fc := s.SensorfaultConfig(faults)
	if fc == nil {
		return nil, domain.NotFoundf("sensorfault config %q in scenario %q", faults, scenario)
	}

	rs, err := l.Raw(ctx, scenario, lc.Name)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Select(rs, sc)
	if err != nil {
		return nil, err
	}
	return dataset.Apply(ds, fc), nil
}
