package analysis

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/motor"
	"github.com/san-kum/kinesim/internal/sim"
	"github.com/san-kum/kinesim/internal/stochastic"
)

func syntheticEvents() []sim.Event {
	return []sim.Event{
		{TimeNanoseconds: 2e6, Agent: 0, From: motor.FreeADP, To: motor.BoundADP},
		{TimeNanoseconds: 3e6, Agent: 1, From: motor.FreeADP, To: motor.BoundADP},
		{TimeNanoseconds: 5e6, Agent: 0, From: motor.BoundADP, To: motor.BoundNoNucleotide},
		{TimeNanoseconds: 6e6, Agent: 0, From: motor.BoundNoNucleotide, To: motor.BoundATP},
		{TimeNanoseconds: 9e6, Agent: 1, From: motor.BoundADP, To: motor.FreeADP},
	}
}

func TestDwellTimes(t *testing.T) {
	tests := []struct {
		state motor.State
		want  []float64
	}{
		{motor.FreeADP, []float64{2e-3, 3e-3}},
		{motor.BoundADP, []float64{3e-3, 6e-3}},
		{motor.BoundNoNucleotide, []float64{1e-3}},
		{motor.BoundATP, nil},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			got := DwellTimes(syntheticEvents(), tt.state)
			if len(got) != len(tt.want) {
				t.Fatalf("DwellTimes = %v, want %v", got, tt.want)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("dwell %d = %g, want %g", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestOccupancy(t *testing.T) {
	occ := Occupancy(syntheticEvents(), 1e7)
	want := map[motor.State]float64{
		motor.FreeADP:           2e-3 + 3e-3 + 1e-3,
		motor.BoundADP:          3e-3 + 6e-3,
		motor.BoundNoNucleotide: 1e-3,
		motor.BoundATP:          4e-3,
	}
	total := 0.0
	for s, w := range want {
		if math.Abs(occ[s]-w) > 1e-12 {
			t.Errorf("occupancy of %s = %g, want %g", s, occ[s], w)
		}
		total += occ[s]
	}
	if math.Abs(total-2e-2) > 1e-12 {
		t.Errorf("two heads over 10ms should add up to 20ms, got %g", total)
	}
}

func TestEmpiricalRates(t *testing.T) {
	rates := EmpiricalRates(syntheticEvents(), 1e7)
	// one ReleaseADP out of 9ms in BoundADP
	if got, want := rates["J"], 1/9e-3; math.Abs(got-want) > 1e-9 {
		t.Errorf("J = %g, want %g", got, want)
	}
	if _, ok := rates["C"]; ok {
		t.Error("unseen label reported")
	}
}

func TestKSDistance(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	tests := []struct {
		name string
		b    []float64
		want float64
	}{
		{"identical", []float64{4, 3, 2, 1}, 0},
		{"disjoint", []float64{10, 11}, 1},
		{"half shifted", []float64{3, 4, 5, 6}, 0.5},
		{"empty", nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KSDistance(a, tt.b); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("KSDistance = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestKSExponentialAcceptsExponentialSamples(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	samples := make([]float64, 2000)
	for i := range samples {
		samples[i] = stochastic.Exponential(r, 1.0/250)
	}

	crit := KSCritical(len(samples), 0, 0.001)
	if d := KSExponential(samples, 250); d > crit {
		t.Errorf("D = %.4f above critical %.4f for the true rate", d, crit)
	}
	if d := KSExponential(samples, 125); d < crit {
		t.Errorf("D = %.4f below critical %.4f for half the rate", d, crit)
	}
}

func TestKSCritical(t *testing.T) {
	one := KSCritical(100, 0, 0.05)
	if math.Abs(one-0.1358) > 1e-3 {
		t.Errorf("one-sample critical = %g, want about 0.1358", one)
	}
	two := KSCritical(100, 100, 0.05)
	if math.Abs(two-one*math.Sqrt2) > 1e-12 {
		t.Errorf("two-sample critical = %g", two)
	}
	if KSCritical(0, 0, 0.05) != 0 {
		t.Error("no samples should give zero")
	}
}

func runMode(t *testing.T, mode string, nsPerStep, durationNs float64) (*config.Config, *sim.Result) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Mode = mode
	cfg.NanosecondsPerStep = nsPerStep
	cfg.DurationNs = durationNs

	s, err := sim.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return cfg, res
}

func TestCachedDwellIsExponential(t *testing.T) {
	cfg, res := runMode(t, config.ModeCached, 1e4, 2e10)

	// BoundATP leaves by ReleaseATP or Hydrolyze, neither gated by the partner.
	exit := cfg.Rates["B"] + cfg.Rates["C"]
	dwell := DwellTimes(res.Events, motor.BoundATP)
	if len(dwell) < 300 {
		t.Fatalf("only %d BoundATP visits", len(dwell))
	}
	crit := KSCritical(len(dwell), 0, 0.001)
	if d := KSExponential(dwell, exit); d > crit {
		t.Errorf("BoundATP dwell D = %.4f, critical %.4f (n=%d)", d, crit, len(dwell))
	}

	rates := EmpiricalRates(res.Events, res.SimulatedNanoseconds)
	for _, label := range []string{"A", "C"} {
		want := cfg.Rates[label]
		if got := rates[label]; math.Abs(got-want)/want > 0.15 {
			t.Errorf("rate %s = %.1f, want %.0f within 15%%", label, got, want)
		}
	}
}

func TestLiveAndCachedShareTheCycle(t *testing.T) {
	cfg, cached := runMode(t, config.ModeCached, 1e4, 2e10)
	_, live := runMode(t, config.ModeLive, 1e5, 2e9)

	cachedRates := EmpiricalRates(cached.Events, cached.SimulatedNanoseconds)
	liveRates := EmpiricalRates(live.Events, live.SimulatedNanoseconds)

	// Binding, ADP release, ATP binding, hydrolysis and phosphate release
	// close the cycle; any run that stepped went through all of them.
	for _, label := range []string{"H", "J", "A", "C", "D"} {
		if _, ok := liveRates[label]; !ok {
			t.Errorf("live run never fired %s", label)
		}
	}
	for label := range liveRates {
		if _, ok := cachedRates[label]; !ok {
			t.Errorf("live fired %s, cached never did", label)
		}
	}

	// Ungated labels with enough events to estimate.
	for _, label := range []string{"A", "C", "D", "H"} {
		want := cfg.Rates[label]
		if got := cachedRates[label]; math.Abs(got-want)/want > 0.2 {
			t.Errorf("cached rate %s = %.1f, want %.0f within 20%%", label, got, want)
		}
		t.Logf("%s: configured %.0f, cached %.1f, live %.1f", label, want, cachedRates[label], liveRates[label])
	}
}

func TestPowerSpectrumFindsPeriod(t *testing.T) {
	data := make([]float64, 64)
	for i := range data {
		data[i] = math.Sin(2 * math.Pi * float64(i) / 8)
	}
	ps := PowerSpectrum(data)
	if len(ps) != 32 {
		t.Fatalf("len = %d", len(ps))
	}
	peak := 0
	for i := range ps {
		if ps[i] > ps[peak] {
			peak = i
		}
	}
	if peak != 8 {
		t.Errorf("peak at bin %d, want 8", peak)
	}
}

func TestFFTPadsToPowerOfTwo(t *testing.T) {
	if got := len(FFT(make([]float64, 5))); got != 8 {
		t.Errorf("len(FFT(5 samples)) = %d, want 8", got)
	}
}

func TestVelocities(t *testing.T) {
	v := Velocities([]float64{0, 1, 3, 3})
	want := []float64{1, 2, 0}
	for i := range want {
		if v[i] != want[i] {
			t.Errorf("Velocities = %v, want %v", v, want)
			break
		}
	}
	if Velocities([]float64{1}) != nil {
		t.Error("single sample should give nil")
	}
}

func TestUngatedExitRate(t *testing.T) {
	rates := config.DefaultRates()
	tests := []struct {
		state motor.State
		want  float64
		ok    bool
	}{
		{motor.BoundNoNucleotide, 500, true},
		{motor.BoundATP, 250, true},
		{motor.BoundADPPi, 0, false},
		{motor.BoundADP, 0, false},
		{motor.FreeADPPi, 0, false},
		{motor.FreeADP, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			got, ok := UngatedExitRate(tt.state, rates)
			if ok != tt.ok || got != tt.want {
				t.Errorf("UngatedExitRate = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}
