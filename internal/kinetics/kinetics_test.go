package kinetics

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/san-kum/kinesim/internal/clock"
)

// runIsolated drives one sampler every step on a fixed clock.
func runIsolated(s *Sampler, seed int64, nsPerStep float64, steps int) {
	c := clock.New(clock.DefaultTimeMultiplier, clock.DefaultTargetFrameRate, clock.WithFixedStep(nsPerStep))
	r := rand.New(rand.NewSource(seed))
	for i := 0; i < steps; i++ {
		c.AdvanceStep()
		s.ShouldFire(r, c.NanosecondsSinceStart())
		s.UpdateObservedRate(c.SecondsSinceStart())
	}
}

func TestSingleTransitionFiresAtRate(t *testing.T) {
	const runs = 10
	total := int64(0)
	for seed := int64(1); seed <= runs; seed++ {
		s := NewSampler("C", 10)
		runIsolated(s, seed, 1e6, 10000)
		if s.Successes < 70 || s.Successes > 130 {
			t.Errorf("seed %d: %d transitions in 10s, want about 100", seed, s.Successes)
		}
		if s.Attempts != 10000 {
			t.Errorf("seed %d: attempts = %d, want 10000", seed, s.Attempts)
		}
		total += s.Successes
	}
	mean := float64(total) / runs
	if mean < 80 || mean > 120 {
		t.Errorf("mean transitions = %f, want 100 +/- 20%%", mean)
	}
}

func TestObservedRateConverges(t *testing.T) {
	for _, rate := range []float64{5, 50, 500, 5000} {
		s := NewSampler("X", rate)
		nsPerStep := 0.01 / rate * 1e9
		runIsolated(s, int64(rate), nsPerStep, 100000)

		lo, hi := lowBand*rate-1, highBand*rate+1
		if s.ObservedRate < lo || s.ObservedRate > hi {
			t.Errorf("rate %g: observed %g outside [%g, %g]", rate, s.ObservedRate, lo, hi)
		}
	}
}

func TestShouldFireBands(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	s := NewSampler("A", 100)
	if !s.ShouldFire(r, 0) {
		t.Error("first attempt with zero observed rate should fire")
	}

	s.ObservedRate = 500
	for i := 0; i < 100; i++ {
		if s.ShouldFire(r, 1e12) {
			t.Fatal("fired while observed rate is above the band")
		}
	}
	if s.Attempts != 101 || s.Successes != 1 {
		t.Errorf("attempts=%d successes=%d, want 101 and 1", s.Attempts, s.Successes)
	}
}

func TestUpdateObservedRate(t *testing.T) {
	s := NewSampler("A", 10)
	s.Successes = 7
	s.UpdateObservedRate(0)
	if s.ObservedRate != 0 {
		t.Errorf("zero elapsed time changed observed rate to %g", s.ObservedRate)
	}
	s.UpdateObservedRate(2)
	if s.ObservedRate != 4 {
		t.Errorf("ObservedRate = %g, want round(3.5) = 4", s.ObservedRate)
	}
}

func TestSetRateResetsStats(t *testing.T) {
	s := NewSampler("A", 10)
	s.Record()
	s.UpdateObservedRate(1)
	s.SetRate(20)

	got := s.Snapshot()
	if got.Attempts != 0 || got.Successes != 0 || got.ObservedRate != 0 || got.TheoreticalRate != 20 {
		t.Errorf("Snapshot() after SetRate = %+v", got)
	}
}

func TestRateTableValidate(t *testing.T) {
	required := []string{"A", "B", "C"}
	tests := []struct {
		name    string
		table   RateTable
		wantErr error
	}{
		{"complete", RateTable{"A": 1, "B": 2, "C": 3}, nil},
		{"missing label", RateTable{"A": 1, "C": 3}, ErrMissingRate},
		{"zero rate", RateTable{"A": 1, "B": 0, "C": 3}, ErrInvalidRate},
		{"negative rate", RateTable{"A": 1, "B": 2, "C": -3}, ErrInvalidRate},
		{"infinite rate", RateTable{"A": math.Inf(1), "B": 2, "C": 3}, ErrInvalidRate},
		{"nan rate", RateTable{"A": 1, "B": math.NaN(), "C": 3}, ErrInvalidRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate(required)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRateTableNamesMissingLabel(t *testing.T) {
	err := RateTable{"A": 1}.Validate([]string{"A", "J"})
	if err == nil || err.Error() != `kinetics: missing rate "J"` {
		t.Errorf("Validate() error = %v", err)
	}
}
