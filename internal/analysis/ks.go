package analysis

import (
	"math"
	"sort"
)

// KSDistance is the two-sample Kolmogorov-Smirnov statistic: the largest
// gap between the empirical CDFs of a and b.
func KSDistance(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 1
	}
	x := sortedCopy(a)
	y := sortedCopy(b)

	var i, j int
	d := 0.0
	for i < len(x) && j < len(y) {
		v := math.Min(x[i], y[j])
		for i < len(x) && x[i] <= v {
			i++
		}
		for j < len(y) && y[j] <= v {
			j++
		}
		gap := math.Abs(float64(i)/float64(len(x)) - float64(j)/float64(len(y)))
		d = math.Max(d, gap)
	}
	return d
}

// KSExponential is the one-sample statistic against an exponential
// distribution with the given rate.
func KSExponential(samples []float64, rate float64) float64 {
	if len(samples) == 0 || rate <= 0 {
		return 1
	}
	x := sortedCopy(samples)
	n := float64(len(x))
	d := 0.0
	for i, v := range x {
		cdf := 1 - math.Exp(-rate*v)
		d = math.Max(d, math.Max(float64(i+1)/n-cdf, cdf-float64(i)/n))
	}
	return d
}

// KSCritical is the asymptotic rejection threshold at significance alpha.
// m == 0 gives the one-sample threshold for n samples.
func KSCritical(n, m int, alpha float64) float64 {
	if n <= 0 || alpha <= 0 || alpha >= 1 {
		return 0
	}
	c := math.Sqrt(-math.Log(alpha/2) / 2)
	if m <= 0 {
		return c / math.Sqrt(float64(n))
	}
	return c * math.Sqrt(float64(n+m)/float64(n*m))
}

func sortedCopy(v []float64) []float64 {
	out := append([]float64(nil), v...)
	sort.Float64s(out)
	return out
}
