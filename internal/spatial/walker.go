package spatial

import (
	"math"
	"math/rand"

	"github.com/san-kum/kinesim/internal/stochastic"
)

const (
	DefaultMaxIterationsPerStep = 50
	DefaultJitterMean           = 0.01

	// jitterCapFactor bounds a jitter displacement to a multiple of its mean.
	jitterCapFactor = 5.0

	jitterShrinkTries = 8
)

// Walker performs leash-constrained random walks against a Geometry.
type Walker struct {
	Geometry      Geometry
	Rand          *rand.Rand
	MaxIterations int
	JitterMean    float64
}

func NewWalker(geom Geometry, r *rand.Rand, maxIterations int, jitterMean float64) *Walker {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterationsPerStep
	}
	if jitterMean <= 0 {
		jitterMean = DefaultJitterMean
	}
	return &Walker{Geometry: geom, Rand: r, MaxIterations: maxIterations, JitterMean: jitterMean}
}

func (w *Walker) randomDirection() Vec3 {
	x, y, z := stochastic.UnitVector(w.Rand)
	return Vec3{x, y, z}
}

func (w *Walker) collisionFree(a *Agent, candidate Vec3) bool {
	if w.Geometry == nil {
		return true
	}
	return w.Geometry.IsPositionValid(a.ID, candidate)
}

// AttemptMove tries one exponential-length step in a random direction.
// A rejected attempt leaves the agent untouched.
func (w *Walker) AttemptMove(a *Agent) bool {
	length := stochastic.Exponential(w.Rand, a.MeanStepSize)
	candidate := a.Position.Add(w.randomDirection().Scale(length))

	if !w.collisionFree(a, candidate) {
		return false
	}
	if a.LeashOK(candidate) {
		a.Position = candidate
		return true
	}

	// Invalid only because of the leash: one try straight toward or away
	// from the anchor that was violated.
	anchor := a.violatedAnchor(candidate)
	toAnchor := anchor.Position.Sub(a.Position).Normalize()
	if candidate.Distance(anchor.Position) < a.Leash.Min {
		toAnchor = toAnchor.Scale(-1)
	}
	fallback := a.Position.Add(toAnchor.Scale(length))
	if a.LeashOK(fallback) && w.collisionFree(a, fallback) {
		a.Position = fallback
		return true
	}
	return false
}

// Move retries AttemptMove up to MaxIterations and falls back to a jitter so
// the agent always moves a little. It reports whether a full step was taken.
func (w *Walker) Move(a *Agent) bool {
	for i := 0; i < w.MaxIterations; i++ {
		if w.AttemptMove(a) {
			return true
		}
	}
	w.Jitter(a, w.JitterMean)
	return false
}

// MoveIfValid applies a fixed displacement if it passes both checks.
func (w *Walker) MoveIfValid(a *Agent, step Vec3) bool {
	candidate := a.Position.Add(step)
	if !a.LeashOK(candidate) || !w.collisionFree(a, candidate) {
		return false
	}
	a.Position = candidate
	return true
}

// Jitter applies a small displacement of bounded length. The opposite
// direction is used when the first one breaks the leash, and the step is
// halved while neither fits. Collisions are not checked. The zero vector is
// returned when no step keeps the leash.
func (w *Walker) Jitter(a *Agent, mean float64) Vec3 {
	if mean <= 0 {
		mean = w.JitterMean
	}
	length := math.Min(stochastic.Exponential(w.Rand, mean), jitterCapFactor*mean)
	step := w.randomDirection().Scale(length)

	for i := 0; i < jitterShrinkTries; i++ {
		if a.LeashOK(a.Position.Add(step)) {
			a.Position = a.Position.Add(step)
			return step
		}
		if a.LeashOK(a.Position.Sub(step)) {
			a.Position = a.Position.Sub(step)
			return step.Scale(-1)
		}
		step = step.Scale(0.5)
	}
	return Vec3{}
}

// JitterCap is the largest displacement Jitter can apply for mean.
func JitterCap(mean float64) float64 { return jitterCapFactor * mean }

// Rotate applies an unconstrained random rotation.
func (w *Walker) Rotate(a *Agent) {
	angle := stochastic.Exponential(w.Rand, a.MeanRotation) * math.Pi / 180
	if angle == 0 {
		return
	}
	a.Orientation = AxisAngle(w.randomDirection(), angle).Mul(a.Orientation).Normalize()
}
