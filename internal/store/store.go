// Package store implements the on-disk collection layout and the read-path
// scenario loader. Each scenario owns one directory holding its topology,
// its config documents and one measurements subtree per leak config.
package store

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openwater-labs/aquanet/internal/domain"
)

const (
	topologyFile    = "topology.xml"
	leaksDir        = "leaks"
	sensorsDir      = "sensors"
	sensorfaultsDir = "sensorfaults"
	measurementsDir = "measurements"

	demandFile   = "demand.csv"
	flowFile     = "flow.csv"
	pressureFile = "pressure.csv"
)

// Store reads and writes the collection directory tree.
type Store struct {
	root string
	log  *slog.Logger
}

// New creates a store rooted at the collection directory.
func New(root string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{root: root, log: log}
}

// Root returns the collection root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) scenarioDir(scenario string) string {
	return filepath.Join(s.root, scenario)
}

func (s *Store) measurementsPath(scenario, leakConfig string) string {
	return filepath.Join(s.scenarioDir(scenario), measurementsDir, leakConfig)
}

// WriteTopology writes the scenario's resolved network topology into its
// directory, so a generated scenario is self-contained.
func (s *Store) WriteTopology(scenario string, n *domain.Network) error {
	data, err := domain.MarshalNetwork(n)
	if err != nil {
		return fmt.Errorf("encoding topology: %w", err)
	}
	return s.writeFile(filepath.Join(s.scenarioDir(scenario), topologyFile), data)
}

// ReadTopology reads the persisted topology for a scenario.
func (s *Store) ReadTopology(scenario string) (*domain.Network, error) {
	path := filepath.Join(s.scenarioDir(scenario), topologyFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NotFoundf("topology for scenario %q", scenario)
		}
		return nil, err
	}
	defer f.Close()
	return domain.ParseNetwork(f)
}

// WriteLeakConfig persists a leak config document under leaks/.
func (s *Store) WriteLeakConfig(scenario string, lc *domain.LeakConfig) error {
	data, err := domain.MarshalLeakConfig(lc)
	if err != nil {
		return err
	}
	return s.writeConfig(scenario, leaksDir, lc.Name, data)
}

// ReadLeakConfig reads a persisted leak config, or ErrNotFound.
func (s *Store) ReadLeakConfig(scenario, name string) (*domain.LeakConfig, error) {
	f, err := s.openConfig(scenario, leaksDir, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return domain.ParseLeakConfig(f)
}

// WriteSensorConfig persists a sensor config document under sensors/.
func (s *Store) WriteSensorConfig(scenario string, sc *domain.SensorConfig) error {
	data, err := domain.MarshalSensorConfig(sc)
	if err != nil {
		return err
	}
	return s.writeConfig(scenario, sensorsDir, sc.Name, data)
}

// ReadSensorConfig reads a persisted sensor config, or ErrNotFound.
func (s *Store) ReadSensorConfig(scenario, name string) (*domain.SensorConfig, error) {
	f, err := s.openConfig(scenario, sensorsDir, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return domain.ParseSensorConfig(f)
}

// WriteSensorfaultConfig persists a sensorfault config document under
// sensorfaults/.
func (s *Store) WriteSensorfaultConfig(scenario string, sc *domain.SensorfaultConfig) error {
	data, err := domain.MarshalSensorfaultConfig(sc)
	if err != nil {
		return err
	}
	return s.writeConfig(scenario, sensorfaultsDir, sc.Name, data)
}

// ReadSensorfaultConfig reads a persisted sensorfault config, or ErrNotFound.
func (s *Store) ReadSensorfaultConfig(scenario, name string) (*domain.SensorfaultConfig, error) {
	f, err := s.openConfig(scenario, sensorfaultsDir, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return domain.ParseSensorfaultConfig(f)
}

// WriteRawSeries persists the three measurement tables for a pair. The
// subtree is written whole; partially written pairs are detected by
// HasRawSeries and regenerated.
func (s *Store) WriteRawSeries(scenario, leakConfig string, rs *domain.RawSeries) error {
	dir := s.measurementsPath(scenario, leakConfig)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating measurements directory: %w", err)
	}

	tables := map[string]*domain.Table{
		demandFile:   rs.Demand,
		flowFile:     rs.Flow,
		pressureFile: rs.Pressure,
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

// ReadRawSeries reads the persisted measurement tables for a pair, or
// ErrNotFound when the pair has not been generated.
func (s *Store) ReadRawSeries(scenario, leakConfig string) (*domain.RawSeries, error) {
	dir := s.measurementsPath(scenario, leakConfig)

	read := func(name string) (*domain.Table, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, domain.NotFoundf("raw series for %s.%s", scenario, leakConfig)
			}
			return nil, err
		}
		return decodeTable(data)
	}

	demand, err := read(demandFile)
	if err != nil {
		return nil, err
	}
	flow, err := read(flowFile)
	if err != nil {
		return nil, err
	}
	pressure, err := read(pressureFile)
	if err != nil {
		return nil, err
	}
	return &domain.RawSeries{Demand: demand, Flow: flow, Pressure: pressure}, nil
}

// HasRawSeries reports whether all three measurement files exist for a pair.
func (s *Store) HasRawSeries(scenario, leakConfig string) bool {
	dir := s.measurementsPath(scenario, leakConfig)
	for _, name := range []string{demandFile, flowFile, pressureFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// RemoveMeasurements deletes a pair's measurements subtree ahead of a
// forced rebuild. Removing an absent subtree is not an error.
func (s *Store) RemoveMeasurements(scenario, leakConfig string) error {
	return os.RemoveAll(s.measurementsPath(scenario, leakConfig))
}

func (s *Store) configPath(scenario, kind, name string) string {
	return filepath.Join(s.scenarioDir(scenario), kind, name+".xml")
}

func (s *Store) openConfig(scenario, kind, name string) (*os.File, error) {
	f, err := os.Open(s.configPath(scenario, kind, name))
	if os.IsNotExist(err) {
		return nil, domain.NotFoundf("%s config %q in scenario %q", kind, name, scenario)
	}
	return f, err
}

// writeConfig writes a config document, warning when it replaces a file
// with different content: measurements generated from the old content may
// be stale until the next generation run.
func (s *Store) writeConfig(scenario, kind, name string, data []byte) error {
	path := s.configPath(scenario, kind, name)
	if existing, err := os.ReadFile(path); err == nil && !bytes.Equal(existing, data) {
		s.log.Warn("config document changed since last generation",
			"scenario", scenario,
			"config", name,
			"path", path,
		)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config document: %w", err)
	}
	return nil
}

func (s *Store) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
