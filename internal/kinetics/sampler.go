package kinetics

import (
	"math"
	"math/rand"
)

const (
	lowBand  = 0.8
	highBand = 1.2
)

// Sampler decides, step by step, whether one transition fires. It keeps the
// running statistics of that transition and steers the observed rate back
// into a band around the theoretical rate.
type Sampler struct {
	Label           string
	TheoreticalRate float64
	Attempts        int64
	Successes       int64
	ObservedRate    float64
}

func NewSampler(label string, rate float64) *Sampler {
	return &Sampler{Label: label, TheoreticalRate: rate}
}

func (s *Sampler) TooLow() bool  { return s.ObservedRate < lowBand*s.TheoreticalRate }
func (s *Sampler) TooHigh() bool { return s.ObservedRate > highBand*s.TheoreticalRate }

// ShouldFire counts one attempt and reports whether the transition happens.
// nanosecondsSinceStart must already include the current step.
func (s *Sampler) ShouldFire(r *rand.Rand, nanosecondsSinceStart float64) bool {
	s.Attempts++
	fire := false
	switch {
	case s.TooLow():
		fire = true
	case s.TooHigh():
		fire = false
	default:
		p := s.TheoreticalRate * nanosecondsSinceStart * 1e-9 / float64(s.Attempts)
		fire = r.Float64() <= p
	}
	if fire {
		s.Successes++
	}
	return fire
}

// Record counts a transition applied without sampling.
func (s *Sampler) Record() {
	s.Attempts++
	s.Successes++
}

// UpdateObservedRate recomputes the observed rate over the elapsed
// simulated time.
func (s *Sampler) UpdateObservedRate(secondsSinceStart float64) {
	if secondsSinceStart <= 0 {
		return
	}
	s.ObservedRate = math.Round(float64(s.Successes) / secondsSinceStart)
}

// SetRate changes the theoretical rate and clears the statistics gathered
// under the old one.
func (s *Sampler) SetRate(rate float64) {
	s.TheoreticalRate = rate
	s.Reset()
}

func (s *Sampler) Reset() {
	s.Attempts = 0
	s.Successes = 0
	s.ObservedRate = 0
}

// Stats is a snapshot of one sampler.
type Stats struct {
	Label           string  `json:"label"`
	TheoreticalRate float64 `json:"theoretical_rate"`
	ObservedRate    float64 `json:"observed_rate"`
	Attempts        int64   `json:"attempts"`
	Successes       int64   `json:"successes"`
}

func (s *Sampler) Snapshot() Stats {
	return Stats{
		Label:           s.Label,
		TheoreticalRate: s.TheoreticalRate,
		ObservedRate:    s.ObservedRate,
		Attempts:        s.Attempts,
		Successes:       s.Successes,
	}
}
