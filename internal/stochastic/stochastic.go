// Package stochastic holds the random draws shared by the spatial and kinetic
// layers. Every function takes the caller's *rand.Rand so a simulation seeded
// once stays reproducible.
package stochastic

import (
	"math"
	"math/rand"
)

// MinUniform is the smallest uniform value fed into a logarithm. rand.Float64
// can return exactly 0, which would make an exponential draw infinite.
const MinUniform = 1e-12

// Uniform returns a draw in [MinUniform, 1).
func Uniform(r *rand.Rand) float64 {
	u := r.Float64()
	if u < MinUniform {
		u = MinUniform
	}
	return u
}

// Exponential draws from an exponential distribution with the given mean.
func Exponential(r *rand.Rand, mean float64) float64 {
	if mean <= 0 {
		return 0
	}
	return -mean * math.Log(Uniform(r))
}

// UnitVector returns a direction uniformly distributed on the unit sphere.
func UnitVector(r *rand.Rand) (x, y, z float64) {
	z = 2*r.Float64() - 1
	phi := 2 * math.Pi * r.Float64()
	rho := math.Sqrt(1 - z*z)
	return rho * math.Cos(phi), rho * math.Sin(phi), z
}

// Bernoulli reports whether a uniform draw falls at or below p.
func Bernoulli(r *rand.Rand, p float64) bool {
	return r.Float64() <= p
}
