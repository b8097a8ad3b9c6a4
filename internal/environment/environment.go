// Package environment holds the handles every simulated component shares: the
// clock, the seeded random source, the geometry collaborator and the walker
// built on top of it. One Environment is built per simulation and passed
// explicitly; nothing in the simulation reaches for globals.
package environment

import (
	"math/rand"

	"github.com/san-kum/kinesim/internal/clock"
	"github.com/san-kum/kinesim/internal/logging"
	"github.com/san-kum/kinesim/internal/spatial"
)

type Environment struct {
	Clock    *clock.Clock
	Rand     *rand.Rand
	Geometry spatial.Geometry
	Walker   *spatial.Walker
	Log      logging.Logger

	seed int64
}

type Option func(*Environment)

func WithLogger(l logging.Logger) Option {
	return func(e *Environment) { e.Log = logging.OrNoop(l) }
}

// WithWalkerLimits overrides the retry cap and jitter mean of the walker.
func WithWalkerLimits(maxIterations int, jitterMean float64) Option {
	return func(e *Environment) {
		e.Walker.MaxIterations = maxIterations
		e.Walker.JitterMean = jitterMean
	}
}

func New(c *clock.Clock, geom spatial.Geometry, seed int64, opts ...Option) *Environment {
	r := rand.New(rand.NewSource(seed))
	e := &Environment{
		Clock:    c,
		Rand:     r,
		Geometry: geom,
		Walker:   spatial.NewWalker(geom, r, spatial.DefaultMaxIterationsPerStep, spatial.DefaultJitterMean),
		Log:      logging.Noop(),
		seed:     seed,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Environment) Seed() int64 { return e.seed }

// Reseed restarts the random stream. The walker keeps sharing it.
func (e *Environment) Reseed(seed int64) {
	e.seed = seed
	e.Rand.Seed(seed)
}
