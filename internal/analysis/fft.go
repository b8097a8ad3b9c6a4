package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT zero pads the input to the next power of two and transforms it.
func FFT(data []float64) []complex128 {
	padded := make([]float64, nextPow2(len(data)))
	copy(padded, data)
	return fft.FFTReal(padded)
}

func PowerSpectrum(data []float64) []float64 {
	spectrum := FFT(data)
	ps := make([]float64, len(spectrum)/2)

	for i := range ps {
		ps[i] = cmplx.Abs(spectrum[i])
	}

	return ps
}

// Velocities differentiates a sampled hips path along the track, in nm per
// sample interval, ready for PowerSpectrum.
func Velocities(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	v := make([]float64, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		v[i-1] = xs[i] - xs[i-1]
	}
	return v
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
