package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultEpsilon is the relative tolerance used when comparing coverage
// ratios against 1.
const DefaultEpsilon = 1e-9

// Backend names accepted by OpsForBackend.
const (
	BackendPlanar = "planar"
	BackendGEOS   = "geos"
)

var (
	// ErrGEOSUnavailable is returned when the GEOS backend is requested from a
	// binary built without the geos tag.
	ErrGEOSUnavailable = errors.New("binary built without geos support")
	// ErrUnknownBackend is returned for an unrecognised backend name.
	ErrUnknownBackend = errors.New("unknown geometry backend")
	// ErrInvalidConfig wraps engine configuration validation failures.
	ErrInvalidConfig = errors.New("invalid engine config")
)

// Config tunes the coverage engine.
type Config struct {
	// Epsilon is the relative tolerance for "fully covered".
	Epsilon float64
	// EarlyExit stops the incremental union once the site is covered.
	// Turning it off yields the strict full-union result.
	EarlyExit bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{Epsilon: DefaultEpsilon, EarlyExit: true}
}

// Validate rejects non-positive or non-finite tolerances.
func (c Config) Validate() error {
	if c.Epsilon <= 0 || math.IsNaN(c.Epsilon) || math.IsInf(c.Epsilon, 0) {
		return fmt.Errorf("%w: epsilon must be positive, got %v", ErrInvalidConfig, c.Epsilon)
	}
	if c.Epsilon >= 1 {
		return fmt.Errorf("%w: epsilon must be below 1, got %v", ErrInvalidConfig, c.Epsilon)
	}
	return nil
}

// OpsForBackend returns the GeometryOps implementation with the given name.
// An empty name selects the planar backend.
func OpsForBackend(name string) (GeometryOps, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendPlanar:
		return PlanarOps{}, nil
	case BackendGEOS:
		return geosBackend()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}
