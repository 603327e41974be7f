// Package sim implements the write path: it decides which
// (scenario, leak config) pairs need simulation, runs the solver over a
// bounded worker pool and persists raw series plus cache records.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openwater-labs/aquanet/internal/domain"
	"github.com/openwater-labs/aquanet/internal/repository"
	"github.com/openwater-labs/aquanet/internal/schedule"
	"github.com/openwater-labs/aquanet/internal/store"
)

// Options controls one generation run.
type Options struct {
	// Parallel runs independent pairs concurrently. Workers bounds the
	// pool; zero means one worker per CPU.
	Parallel bool
	Workers  int

	// Force regenerates matching pairs regardless of cache state.
	Force bool

	// Selection is an optional CEL expression over `scenario` and `leak`
	// restricting which pairs this run touches.
	Selection string
}

// PairResult reports the outcome for one (scenario, leak config) pair.
type PairResult struct {
	Scenario   string        `json:"scenario"`
	LeakConfig string        `json:"leakConfig"`
	Rebuilt    bool          `json:"rebuilt"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// Summary aggregates a generation run.
type Summary struct {
	RunID   string       `json:"runId"`
	Pairs   []PairResult `json:"pairs"`
	Rebuilt int          `json:"rebuilt"`
	Skipped int          `json:"skipped"`
	Failed  int          `json:"failed"`
}

// Orchestrator drives generation runs. All collaborators are injected;
// there is no process-wide state.
type Orchestrator struct {
	solver    domain.Solver
	store     *store.Store
	records   domain.CacheStore
	cache     domain.SeriesCache
	configDir string
	log       *slog.Logger
	tracer    trace.Tracer
}

// New creates an orchestrator. configDir is the directory of the scenario
// configuration file; topology references resolve relative to it. cache
// may be nil when no read path shares the process.
func New(solver domain.Solver, st *store.Store, records domain.CacheStore, cache domain.SeriesCache, configDir string, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		solver:    solver,
		store:     st,
		records:   records,
		cache:     cache,
		configDir: configDir,
		log:       log,
		tracer:    otel.Tracer("aquanet/sim"),
	}
}

type workItem struct {
	scenario *domain.Scenario
	network  *domain.Network
	leak     *domain.LeakConfig
}

// Generate simulates every pair of the collection that the change detector
// or Force marks for rebuild, honoring the selection expression. Pair
// failures are isolated: they are reported in the summary and leave the
// pair eligible for retry on the next run.
func (o *Orchestrator) Generate(ctx context.Context, col *domain.ScenarioCollection, opts Options) (*Summary, error) {
	sel, err := CompileSelection(opts.Selection)
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: uuid.NewString()}
	detector := repository.NewDetector(o.records, o.store.HasRawSeries)

	var work []workItem
	for si := range col.Scenarios {
		s := &col.Scenarios[si]

		var selected []*domain.LeakConfig
		for li := range s.LeakConfigs {
			lc := &s.LeakConfigs[li]
			ok, err := sel.Matches(s.Name, lc.Name)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			need, err := detector.NeedsRebuild(ctx, s, lc, opts.Force)
			if err != nil {
				return nil, fmt.Errorf("checking cache for %s.%s: %w", s.Name, lc.Name, err)
			}
			if !need {
				summary.Skipped++
				summary.Pairs = append(summary.Pairs, PairResult{Scenario: s.Name, LeakConfig: lc.Name})
				continue
			}
			selected = append(selected, lc)
		}
		if len(selected) == 0 {
			continue
		}

		// Generation touches the scenario: persist its topology and
		// config documents so the on-disk tree is self-contained.
		network, err := o.prepareScenario(s, selected)
		if err != nil {
			for _, lc := range selected {
				summary.Pairs = append(summary.Pairs, PairResult{Scenario: s.Name, LeakConfig: lc.Name, Err: err})
				summary.Failed++
			}
			o.log.Error("failed to prepare scenario", "scenario", s.Name, "error", err)
			continue
		}
		for _, lc := range selected {
			work = append(work, workItem{scenario: s, network: network, leak: lc})
		}
	}

	workers := 1
	if opts.Parallel {
		workers = opts.Workers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
	}

	o.log.Info("generation run starting",
		"run_id", summary.RunID,
		"pairs", len(work),
		"skipped", summary.Skipped,
		"workers", workers,
	)

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		items = make(chan workItem)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				res := o.runPair(ctx, item, opts.Force, summary.RunID)

				mu.Lock()
				summary.Pairs = append(summary.Pairs, res)
				if res.Err != nil {
					summary.Failed++
				} else {
					summary.Rebuilt++
				}
				mu.Unlock()
			}
		}()
	}
	for _, item := range work {
		items <- item
	}
	close(items)
	wg.Wait()

	o.log.Info("generation run finished",
		"run_id", summary.RunID,
		"rebuilt", summary.Rebuilt,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// prepareScenario loads the scenario's topology and writes the scenario
// directory's topology and config documents. A leak config document is
// written only for the pairs this run simulates, so leaks/<name>.xml
// never describes a newer definition than its measurements.
func (o *Orchestrator) prepareScenario(s *domain.Scenario, selected []*domain.LeakConfig) (*domain.Network, error) {
	path := s.Network
	if !filepath.IsAbs(path) {
		path = filepath.Join(o.configDir, path)
	}
	network, err := domain.LoadNetwork(path)
	if err != nil {
		return nil, err
	}

	if err := o.store.WriteTopology(s.Name, network); err != nil {
		return nil, err
	}
	for _, lc := range selected {
		if err := o.store.WriteLeakConfig(s.Name, lc); err != nil {
			return nil, err
		}
	}
	for i := range s.SensorConfigs {
		if err := o.store.WriteSensorConfig(s.Name, &s.SensorConfigs[i]); err != nil {
			return nil, err
		}
	}
	for i := range s.SensorfaultConfigs {
		if err := o.store.WriteSensorfaultConfig(s.Name, &s.SensorfaultConfigs[i]); err != nil {
			return nil, err
		}
	}
	return network, nil
}

// runPair simulates one pair and persists its output. The cache record is
// written only after the raw series is fully on disk, so an interrupted
// pair stays eligible for retry.
func (o *Orchestrator) runPair(ctx context.Context, item workItem, force bool, runID string) PairResult {
	s, lc := item.scenario, item.leak
	res := PairResult{Scenario: s.Name, LeakConfig: lc.Name}
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "sim.pair", trace.WithAttributes(
		attribute.String("scenario", s.Name),
		attribute.String("leak_config", lc.Name),
	))
	defer span.End()

	fail := func(err error) PairResult {
		span.RecordError(err)
		res.Err = err
		res.Duration = time.Since(start)
		o.log.Error("pair failed",
			"scenario", s.Name,
			"leak_config", lc.Name,
			"error", err,
		)
		return res
	}

	if force {
		// Drop the old output and record first so a crash mid-rebuild
		// cannot leave a valid record over stale data.
		if err := o.store.RemoveMeasurements(s.Name, lc.Name); err != nil {
			return fail(fmt.Errorf("removing stale measurements: %w", err))
		}
		if err := o.records.Delete(ctx, s.Name, lc.Name); err != nil {
			return fail(fmt.Errorf("removing stale cache record: %w", err))
		}
	}

	patternStep := item.network.PatternStep
	if patternStep <= 0 {
		patternStep = s.TimeStep
	}
	schedules := schedule.ResampleConfig(schedule.BuildConfig(lc, s.Iterations), s.TimeStep, patternStep)

	result, err := o.solve(ctx, &domain.SolveRequest{
		Network:    item.network,
		Iterations: s.Iterations,
		TimeStep:   s.TimeStep,
		Schedules:  schedules,
	})
	if err != nil {
		return fail(fmt.Errorf("simulating %s.%s: %w", s.Name, lc.Name, err))
	}

	raw := &domain.RawSeries{Demand: result.Demand, Flow: result.Flow, Pressure: result.Pressure}
	if err := o.store.WriteRawSeries(s.Name, lc.Name, raw); err != nil {
		return fail(fmt.Errorf("persisting raw series: %w", err))
	}

	rec := &domain.CacheRecord{
		Scenario:    s.Name,
		LeakConfig:  lc.Name,
		Fingerprint: repository.Fingerprint(s, lc),
		GeneratedAt: time.Now().UTC(),
		RunID:       runID,
	}
	if err := o.records.Put(ctx, rec); err != nil {
		return fail(fmt.Errorf("updating cache record: %w", err))
	}
	if o.cache != nil {
		if err := o.cache.Invalidate(ctx, s.Name, lc.Name); err != nil {
			return fail(fmt.Errorf("invalidating series cache: %w", err))
		}
	}

	res.Rebuilt = true
	res.Duration = time.Since(start)
	o.log.Info("pair rebuilt",
		"scenario", s.Name,
		"leak_config", lc.Name,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}

// solve invokes the solver, retrying transient failures with exponential
// backoff. Hydraulic failures and cancellation are permanent.
func (o *Orchestrator) solve(ctx context.Context, req *domain.SolveRequest) (*domain.SolveResult, error) {
	var result *domain.SolveResult

	operation := func() error {
		r, err := o.solver.Simulate(ctx, req)
		if err != nil {
			if errors.Is(err, domain.ErrSimulation) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}
