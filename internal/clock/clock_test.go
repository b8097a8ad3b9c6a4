package clock

import (
	"math"
	"testing"
	"time"
)

func frames(c *Clock, n int, fps float64) {
	d := time.Duration(float64(time.Second) / fps)
	for i := 0; i < n; i++ {
		c.Advance(d)
	}
}

func TestSetTimeMultiplierRecomputesStep(t *testing.T) {
	c := New(300, 30)
	c.Advance(time.Second / 30)

	c.SetTimeMultiplier(100)

	want := 1e9 * (time.Second / 30).Seconds() / (100 * 1)
	if math.Abs(c.NanosecondsPerStep()-want) > 1e-6 {
		t.Errorf("NanosecondsPerStep() = %f, want %f", c.NanosecondsPerStep(), want)
	}
	if c.TimeMultiplier() != 100 {
		t.Errorf("TimeMultiplier() = %f, want 100", c.TimeMultiplier())
	}
}

func TestAdvanceAtTargetKeepsBudget(t *testing.T) {
	c := New(300, 30)
	frames(c, 2*FrameRateWindow, 30)

	if c.StepsPerFrame() != 1 {
		t.Errorf("StepsPerFrame() = %d, want 1", c.StepsPerFrame())
	}
}

func TestAdvanceNeedsFullWindow(t *testing.T) {
	c := New(300, 30)
	frames(c, FrameRateWindow-1, 120)

	if c.StepsPerFrame() != 1 {
		t.Errorf("budget changed before window filled: %d", c.StepsPerFrame())
	}

	frames(c, 1, 120)
	if c.StepsPerFrame() == 1 {
		t.Error("budget did not change after full window")
	}
}

func TestAdvanceNudges(t *testing.T) {
	tests := []struct {
		name      string
		startFast bool
		fps       float64
		want      int
	}{
		{"fast frames clamp at +5", false, 120, 6},
		{"slightly fast", false, 36, 3},
		{"slow frames floor at 1", false, 10, 1},
		{"slow after fast clamps at -5", true, 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(300, 30)
			if tt.startFast {
				frames(c, FrameRateWindow, 120)
				frames(c, FrameRateWindow, 120)
				if c.StepsPerFrame() != 11 {
					t.Fatalf("setup: StepsPerFrame() = %d, want 11", c.StepsPerFrame())
				}
				tt.want = 6
			}
			frames(c, FrameRateWindow, tt.fps)
			if c.StepsPerFrame() != tt.want {
				t.Errorf("StepsPerFrame() = %d, want %d", c.StepsPerFrame(), tt.want)
			}
		})
	}
}

func TestAdvanceRecomputesStepOnChange(t *testing.T) {
	c := New(300, 30)
	frames(c, FrameRateWindow, 120)

	fps := 120.0
	dt := (time.Duration(float64(time.Second) / fps)).Seconds()
	want := 1e9 * dt / (300 * float64(c.StepsPerFrame()))
	if math.Abs(c.NanosecondsPerStep()-want) > 1e-6 {
		t.Errorf("NanosecondsPerStep() = %f, want %f", c.NanosecondsPerStep(), want)
	}
	if c.AverageFrameRate() <= 0 {
		t.Error("average frame rate not restarted from the last sample")
	}
}

func TestFixedClockIgnoresFrames(t *testing.T) {
	c := New(300, 30, WithFixedStep(1e6))
	frames(c, 3*FrameRateWindow, 240)
	c.SetTimeMultiplier(10)

	if c.StepsPerFrame() != 1 {
		t.Errorf("StepsPerFrame() = %d, want 1", c.StepsPerFrame())
	}
	if c.NanosecondsPerStep() != 1e6 {
		t.Errorf("NanosecondsPerStep() = %f, want 1e6", c.NanosecondsPerStep())
	}
}

func TestAdvanceStepAndReset(t *testing.T) {
	c := New(300, 30)
	c.Fix(2e5)
	for i := 0; i < 10; i++ {
		c.AdvanceStep()
	}

	if c.NanosecondsSinceStart() != 2e6 {
		t.Errorf("NanosecondsSinceStart() = %f, want 2e6", c.NanosecondsSinceStart())
	}
	if math.Abs(c.SecondsSinceStart()-2e-3) > 1e-12 {
		t.Errorf("SecondsSinceStart() = %g, want 2e-3", c.SecondsSinceStart())
	}
	if c.Steps() != 10 {
		t.Errorf("Steps() = %d, want 10", c.Steps())
	}

	c.Reset()
	if c.NanosecondsSinceStart() != 0 || c.Steps() != 0 {
		t.Error("Reset did not zero simulated time")
	}
}
