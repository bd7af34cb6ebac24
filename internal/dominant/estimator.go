// Package dominant picks one representative color from a set of samples using
// k-means clustering in RGB space, with a plain average as the fallback.
package dominant

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/muesli/clusters"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/stripscan/internal/colorspace"
	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
)

// Clustering defaults.
const (
	DefaultClusterCount = 3
	DefaultIterations   = 8
)

var (
	ErrNoClusters   = errors.New("cluster count must be positive")
	ErrNoIterations = errors.New("iteration budget must be positive")
)

// Rand is the random source used for centroid initialization.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Estimator reduces samples to a dominant color.
type Estimator struct {
	K          int
	Iterations int
	Rand       Rand // nil uses the process-wide source
}

// New creates an estimator with k clusters and an iteration budget.
func New(k, iterations int, rng Rand) *Estimator {
	return &Estimator{K: k, Iterations: iterations, Rand: rng}
}

// Seeded returns a deterministic source for the given seed.
func Seeded(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Estimate returns the dominant color of samples.
// Clustering failures fall back to the rounded per-channel mean.
func (e *Estimator) Estimate(samples []colorspace.RGB) (colorspace.RGB, error) {
	if len(samples) == 0 {
		return colorspace.RGB{}, apperrors.New(apperrors.CodeInvalidInput, "no color samples")
	}
	if c, err := e.KMeans(samples); err == nil {
		return c, nil
	}
	return Average(samples), nil
}

// KMeans runs the clustering pass and returns the centroid of the largest cluster.
func (e *Estimator) KMeans(samples []colorspace.RGB) (colorspace.RGB, error) {
	switch {
	case len(samples) == 0:
		return colorspace.RGB{}, apperrors.New(apperrors.CodeInvalidInput, "no color samples")
	case e.K < 1:
		return colorspace.RGB{}, ErrNoClusters
	case e.Iterations < 1:
		return colorspace.RGB{}, ErrNoIterations
	}

	rng := e.Rand
	if rng == nil {
		rng = globalRand{}
	}

	points := make(clusters.Observations, len(samples))
	for i, s := range samples {
		points[i] = clusters.Coordinates{float64(s.R), float64(s.G), float64(s.B)}
	}

	cc := make(clusters.Clusters, e.K)
	for i := range cc {
		seed := points[rng.IntN(len(points))].Coordinates()
		cc[i].Center = append(clusters.Coordinates(nil), seed...)
	}

	for it := 0; it < e.Iterations; it++ {
		assign(cc, points)

		moved := false
		for i := range cc {
			if len(cc[i].Observations) == 0 {
				continue
			}
			mean, err := cc[i].Observations.Center()
			if err != nil {
				return colorspace.RGB{}, err
			}
			next := roundCoords(mean)
			if !sameCoords(next, cc[i].Center) {
				cc[i].Center = next
				moved = true
			}
		}
		if !moved {
			break
		}
	}

	assign(cc, points)
	best := 0
	for i := 1; i < len(cc); i++ {
		if len(cc[i].Observations) > len(cc[best].Observations) {
			best = i
		}
	}
	return toRGB(cc[best].Center)
}

// assign clears every cluster and appends each point to its nearest centroid.
// Nearest keeps the lowest index on equal distance.
func assign(cc clusters.Clusters, points clusters.Observations) {
	for i := range cc {
		cc[i].Observations = cc[i].Observations[:0]
	}
	for _, p := range points {
		n := cc.Nearest(p)
		cc[n].Observations = append(cc[n].Observations, p)
	}
}

// Average returns the rounded per-channel arithmetic mean of samples.
func Average(samples []colorspace.RGB) colorspace.RGB {
	if len(samples) == 0 {
		return colorspace.RGB{}
	}
	r := make([]float64, len(samples))
	g := make([]float64, len(samples))
	b := make([]float64, len(samples))
	for i, s := range samples {
		r[i], g[i], b[i] = float64(s.R), float64(s.G), float64(s.B)
	}
	return colorspace.RGB{
		R: channel(stat.Mean(r, nil)),
		G: channel(stat.Mean(g, nil)),
		B: channel(stat.Mean(b, nil)),
	}
}

func roundCoords(c clusters.Coordinates) clusters.Coordinates {
	out := make(clusters.Coordinates, len(c))
	for i, v := range c {
		out[i] = math.Round(v)
	}
	return out
}

func sameCoords(a, b clusters.Coordinates) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toRGB(c clusters.Coordinates) (colorspace.RGB, error) {
	if len(c) != 3 {
		return colorspace.RGB{}, errors.New("centroid is not three-dimensional")
	}
	for _, v := range c {
		if math.IsNaN(v) || v < 0 || v > 255 {
			return colorspace.RGB{}, errors.New("centroid out of RGB range")
		}
	}
	return colorspace.RGB{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2])}, nil
}

func channel(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
