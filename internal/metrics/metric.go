package metrics

import "github.com/san-kum/kinesim/internal/motor"

// Sample is what a metric sees after every simulation step.
type Sample struct {
	TimeNanoseconds float64
	HipsX           float64 // nm along the track
	Bound           int
	States          [2]motor.State
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Standard returns the metrics recorded for every run.
func Standard(stepSize float64) []Metric {
	return []Metric{
		NewBoundFraction(),
		NewDoubleBound(),
		NewSpeed(),
		NewStepCount(stepSize),
	}
}
