package analysis

import (
	"github.com/GriffinCanCode/stripscan/internal/colorspace"
	"github.com/GriffinCanCode/stripscan/internal/dominant"
	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
)

// DefaultReference is the pink of a well-moistened strip.
var DefaultReference = colorspace.RGB{R: 200, G: 100, B: 140}

// DefaultMaxSampleCount bounds how many pixels feed the estimator.
const DefaultMaxSampleCount = 400

// Config controls a single classification.
type Config struct {
	Reference         colorspace.RGB `json:"reference" msgpack:"reference"`
	MaxSampleCount    int            `json:"maxSampleCount" msgpack:"maxSampleCount"`
	ClusterCount      int            `json:"clusterCount" msgpack:"clusterCount"`
	ClusterIterations int            `json:"clusterIterations" msgpack:"clusterIterations"`
	// Seed makes centroid initialization reproducible. Zero means unseeded.
	Seed uint64 `json:"seed,omitempty" msgpack:"seed,omitempty"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		Reference:         DefaultReference,
		MaxSampleCount:    DefaultMaxSampleCount,
		ClusterCount:      dominant.DefaultClusterCount,
		ClusterIterations: dominant.DefaultIterations,
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	switch {
	case c.MaxSampleCount < 1:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "max sample count must be positive, got %d", c.MaxSampleCount).
			WithMetadata("field", "MaxSampleCount")
	case c.ClusterCount < 1:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "cluster count must be positive, got %d", c.ClusterCount).
			WithMetadata("field", "ClusterCount")
	case c.ClusterIterations < 1:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "cluster iterations must be positive, got %d", c.ClusterIterations).
			WithMetadata("field", "ClusterIterations")
	}
	return nil
}

// estimator builds the dominant color estimator for one call. A seeded
// config gets its own source so concurrent calls never share state.
func (c Config) estimator() *dominant.Estimator {
	var rng dominant.Rand
	if c.Seed != 0 {
		rng = dominant.Seeded(c.Seed)
	}
	return dominant.New(c.ClusterCount, c.ClusterIterations, rng)
}
