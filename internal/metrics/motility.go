package metrics

import "math"

// Speed is the net hips velocity along the track in µm/s between the first
// and the last sample.
type Speed struct {
	name         string
	startX, endX float64
	startT, endT float64
	samples      int
}

func NewSpeed() *Speed {
	return &Speed{name: "speed_um_per_s"}
}

func (s *Speed) Name() string { return s.name }

func (s *Speed) Observe(x Sample) {
	if s.samples == 0 {
		s.startX, s.startT = x.HipsX, x.TimeNanoseconds
	}
	s.endX, s.endT = x.HipsX, x.TimeNanoseconds
	s.samples++
}

func (s *Speed) Value() float64 {
	dt := s.endT - s.startT
	if s.samples < 2 || dt <= 0 {
		return 0
	}
	// nm/ns is m/s; µm/s is 1e6 of that.
	return 1e6 * (s.endX - s.startX) / dt
}

func (s *Speed) Reset() {
	*s = Speed{name: s.name}
}

// StepCount counts how many whole steps of stepSize the hips have advanced
// beyond the furthest point reached so far.
type StepCount struct {
	name     string
	stepSize float64
	originX  float64
	furthest int
	samples  int
}

func NewStepCount(stepSize float64) *StepCount {
	if stepSize <= 0 {
		stepSize = 8
	}
	return &StepCount{name: "steps", stepSize: stepSize}
}

func (c *StepCount) Name() string { return c.name }

func (c *StepCount) Observe(s Sample) {
	if c.samples == 0 {
		c.originX = s.HipsX
	}
	c.samples++
	n := int(math.Floor((s.HipsX - c.originX) / c.stepSize))
	if n > c.furthest {
		c.furthest = n
	}
}

func (c *StepCount) Value() float64 { return float64(c.furthest) }

func (c *StepCount) Reset() {
	c.furthest = 0
	c.samples = 0
	c.originX = 0
}
