package repository

import (
	"context"
	"errors"

	"github.com/openwater-labs/aquanet/internal/domain"
)

// Detector decides, per (scenario, leak config) pair, whether raw
// simulation output is already present and valid.
type Detector struct {
	store domain.CacheStore

	// HasOutput reports whether the persisted raw series for a pair is
	// present on disk. A record without output is stale.
	HasOutput func(scenario, leakConfig string) bool
}

// NewDetector creates a change detector over the given record store.
func NewDetector(store domain.CacheStore, hasOutput func(scenario, leakConfig string) bool) *Detector {
	return &Detector{store: store, HasOutput: hasOutput}
}

// NeedsRebuild reports whether a pair must be (re)simulated: forced, never
// recorded, recorded under a different fingerprint, or recorded but with
// its output missing from disk.
func (d *Detector) NeedsRebuild(ctx context.Context, s *domain.Scenario, lc *domain.LeakConfig, force bool) (bool, error) {
	if force {
		return true, nil
	}

	rec, err := d.store.Get(ctx, s.Name, lc.Name)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if rec.Fingerprint != Fingerprint(s, lc) {
		return true, nil
	}
	if d.HasOutput != nil && !d.HasOutput(s.Name, lc.Name) {
		return true, nil
	}
	return false, nil
}
