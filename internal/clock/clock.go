package clock

import (
	"context"
	"math"
	"time"

	"github.com/san-kum/kinesim/internal/logging"
)

const (
	DefaultTimeMultiplier     = 300.0
	DefaultTargetFrameRate    = 30.0
	DefaultNanosecondsPerStep = 1e5

	// FrameRateWindow is the number of frame samples averaged before the
	// step budget is re-evaluated.
	FrameRateWindow = 50
	maxStepNudge    = 5
)

// Clock owns simulated time and the per-frame step budget. Only the Clock
// writes StepsPerFrame and NanosecondsPerStep; everything else reads them.
type Clock struct {
	timeMultiplier  float64
	targetFrameRate float64

	averageFrameRate float64
	frameRateSamples int
	lastWallDelta    float64

	stepsPerFrame         int
	nanosecondsPerStep    float64
	nanosecondsSinceStart float64
	steps                 int64

	fixed bool
	log   logging.Logger
}

type Option func(*Clock)

func WithLogger(l logging.Logger) Option {
	return func(c *Clock) { c.log = logging.OrNoop(l) }
}

// WithFixedStep pins nanoseconds per step and disables adaptation.
func WithFixedStep(ns float64) Option {
	return func(c *Clock) {
		c.nanosecondsPerStep = ns
		c.fixed = true
	}
}

func New(timeMultiplier, targetFrameRate float64, opts ...Option) *Clock {
	if timeMultiplier <= 0 {
		timeMultiplier = DefaultTimeMultiplier
	}
	if targetFrameRate <= 0 {
		targetFrameRate = DefaultTargetFrameRate
	}
	c := &Clock{
		timeMultiplier:     timeMultiplier,
		targetFrameRate:    targetFrameRate,
		stepsPerFrame:      1,
		nanosecondsPerStep: DefaultNanosecondsPerStep,
		lastWallDelta:      1 / targetFrameRate,
		log:                logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Advance records one rendered frame of wall time and re-tunes the step
// budget once a full window of samples is available.
func (c *Clock) Advance(wallDelta time.Duration) {
	dt := wallDelta.Seconds()
	if dt <= 0 {
		return
	}
	c.lastWallDelta = dt

	c.averageFrameRate = (c.averageFrameRate*float64(c.frameRateSamples) + 1/dt) / float64(c.frameRateSamples+1)
	c.frameRateSamples++

	if c.fixed || c.frameRateSamples < FrameRateWindow {
		return
	}

	nudge := int(math.Round(-(c.targetFrameRate - c.averageFrameRate) / (0.1 * c.targetFrameRate)))
	if nudge > maxStepNudge {
		nudge = maxStepNudge
	} else if nudge < -maxStepNudge {
		nudge = -maxStepNudge
	}
	if nudge == 0 {
		return
	}

	before := c.stepsPerFrame
	c.stepsPerFrame = max(1, c.stepsPerFrame+nudge)
	c.updateTimePerStep()
	c.averageFrameRate = 1 / dt
	c.frameRateSamples = 1

	c.log.Debug(context.Background(), "steps per frame adjusted",
		logging.Int("from", before),
		logging.Int("to", c.stepsPerFrame),
		logging.Float("ns_per_step", c.nanosecondsPerStep),
	)
}

// SetTimeMultiplier changes simulated seconds per wall second.
func (c *Clock) SetTimeMultiplier(v float64) {
	if v <= 0 {
		return
	}
	c.timeMultiplier = v
	c.updateTimePerStep()
}

// Fix pins nanoseconds per step; adaptive tuning stops.
func (c *Clock) Fix(ns float64) {
	if ns <= 0 {
		return
	}
	c.fixed = true
	c.nanosecondsPerStep = ns
}

func (c *Clock) updateTimePerStep() {
	if c.fixed {
		return
	}
	c.nanosecondsPerStep = 1e9 * c.lastWallDelta / (c.timeMultiplier * float64(c.stepsPerFrame))
}

// AdvanceStep moves simulated time forward by one step.
func (c *Clock) AdvanceStep() {
	c.nanosecondsSinceStart += c.nanosecondsPerStep
	c.steps++
}

// Reset zeroes simulated time and the frame-rate window. The step budget is
// kept so a reset does not cause a visible stutter.
func (c *Clock) Reset() {
	c.nanosecondsSinceStart = 0
	c.steps = 0
	c.averageFrameRate = 0
	c.frameRateSamples = 0
}

func (c *Clock) TimeMultiplier() float64        { return c.timeMultiplier }
func (c *Clock) TargetFrameRate() float64       { return c.targetFrameRate }
func (c *Clock) AverageFrameRate() float64      { return c.averageFrameRate }
func (c *Clock) StepsPerFrame() int             { return c.stepsPerFrame }
func (c *Clock) NanosecondsPerStep() float64    { return c.nanosecondsPerStep }
func (c *Clock) NanosecondsSinceStart() float64 { return c.nanosecondsSinceStart }
func (c *Clock) SecondsSinceStart() float64     { return c.nanosecondsSinceStart * 1e-9 }
func (c *Clock) Steps() int64                   { return c.steps }
func (c *Clock) Fixed() bool                    { return c.fixed }

// StepSeconds is the simulated time covered by one step, the factor every
// per-second rate is multiplied by to get a per-step probability.
func (c *Clock) StepSeconds() float64 { return c.nanosecondsPerStep * 1e-9 }
