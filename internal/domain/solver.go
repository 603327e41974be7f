package domain

import (
	"context"
	"time"
)

// SolveRequest describes one solver invocation for a
// (scenario, leak config) pair. Schedules maps each leaking part to its
// per-step orifice diameter on the solver's native time base (the network
// pattern interval, or the scenario time step when they coincide).
type SolveRequest struct {
	Network    *Network
	Iterations int
	TimeStep   int // seconds per reported step
	Schedules  map[string][]float64
}

// SolveResult is the raw per-part output of a solver run: one row per
// iteration, one column per part the solver reports. Always a superset of
// any configured sensors; selection happens later on the read path.
type SolveResult struct {
	Demand   *Table
	Flow     *Table
	Pressure *Table
}

// Solver is the external hydraulic solver. Implementations must be safe
// for concurrent use; the orchestrator invokes independent pairs in
// parallel. A failed invocation returns an error wrapping ErrSimulation
// when the failure is hydraulic (non-convergence, invalid part) rather
// than transient.
type Solver interface {
	Simulate(ctx context.Context, req *SolveRequest) (*SolveResult, error)
}

// CacheRecord maps a (scenario, leak config) pair to the fingerprint of
// the inputs that produced its raw series. Consumed only by the change
// detector.
type CacheRecord struct {
	Scenario    string
	LeakConfig  string
	Fingerprint string
	GeneratedAt time.Time
	RunID       string
}

// CacheStore persists cache records. Implementations live in
// internal/repository; the orchestrator receives one by injection, there
// is no process-wide store.
type CacheStore interface {
	// Get returns the record for a pair, or ErrNotFound.
	Get(ctx context.Context, scenario, leakConfig string) (*CacheRecord, error)
	// Put inserts or replaces the record for a pair.
	Put(ctx context.Context, rec *CacheRecord) error
	// Delete removes the record for a pair; deleting a missing record is
	// not an error.
	Delete(ctx context.Context, scenario, leakConfig string) error
	Close() error
}

// SeriesCache caches decoded raw series on the read path. A miss returns
// (nil, nil).
type SeriesCache interface {
	Get(ctx context.Context, scenario, leakConfig string) (*RawSeries, error)
	Set(ctx context.Context, scenario, leakConfig string, rs *RawSeries) error
	// Invalidate drops a pair after regeneration.
	Invalidate(ctx context.Context, scenario, leakConfig string) error
	Close() error
}
