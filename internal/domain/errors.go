package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals that a scenario, config or raw series does not
	// exist. Point lookups return it; listing operations never do.
	ErrNotFound = errors.New("not found")

	// ErrConfig signals a malformed scenario configuration. Raised at load
	// time, never silently repaired.
	ErrConfig = errors.New("invalid configuration")

	// ErrSimulation signals a failed solver invocation for one
	// (scenario, leak config) pair.
	ErrSimulation = errors.New("simulation failed")
)

// ConfigErrorf wraps ErrConfig with a formatted message.
func ConfigErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// SimulationErrorf wraps ErrSimulation with a formatted message. Solvers
// return it for hydraulic failures that retrying cannot fix.
func SimulationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSimulation, fmt.Sprintf(format, args...))
}
