package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/experiment"
	"github.com/san-kum/kinesim/internal/metrics"
	"github.com/san-kum/kinesim/internal/sim"
)

func build(params map[string]float64) (*experiment.Experiment, error) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeCached
	cfg.DurationNs = 5e6
	cfg.Track.Sites = 16
	for k, v := range params {
		cfg.Rates[k] = v
	}
	exp := experiment.New(cfg)
	if err := exp.Setup(sim.WithMetrics(metrics.NewBoundFraction())); err != nil {
		return nil, err
	}
	return exp, nil
}

func TestSearchVisitsEveryPoint(t *testing.T) {
	tests := []struct {
		name     string
		maximize bool
	}{
		{"minimize", false},
		{"maximize", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGridSearch([]string{"A", "J"}, [][]float64{{100, 500}, {50, 200, 400}})
			if err != nil {
				t.Fatal(err)
			}
			if tt.maximize {
				g.Maximize()
			}
			params, best, err := g.Search(context.Background(), build, "bound_fraction")
			if err != nil {
				t.Fatal(err)
			}
			trials := g.Trials()
			if len(trials) != 6 {
				t.Fatalf("expected 6 trials, got %d", len(trials))
			}
			want := trials[0].Score
			for _, tr := range trials {
				if tr.Err != nil {
					t.Fatalf("trial %v failed: %v", tr.Params, tr.Err)
				}
				if tt.maximize {
					want = math.Max(want, tr.Score)
				} else {
					want = math.Min(want, tr.Score)
				}
			}
			if best != want {
				t.Errorf("best = %v, want %v", best, want)
			}
			if len(params) != 2 {
				t.Errorf("best params = %v", params)
			}
		})
	}
}

func TestSearchAllFailing(t *testing.T) {
	g, err := NewGridSearch([]string{"A"}, [][]float64{{-1, math.NaN()}})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = g.Search(context.Background(), build, "bound_fraction")
	if !errors.Is(err, ErrNoTrials) {
		t.Fatalf("expected ErrNoTrials, got %v", err)
	}
	for _, tr := range g.Trials() {
		if !errors.Is(tr.Err, sim.ErrInvalidConfig) {
			t.Errorf("trial %v: expected invalid config, got %v", tr.Params, tr.Err)
		}
	}
}

func TestSearchStopsOnCancel(t *testing.T) {
	g, _ := NewGridSearch([]string{"A"}, [][]float64{{100, 200}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := g.Search(ctx, build, "bound_fraction"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewGridSearchValidates(t *testing.T) {
	if _, err := NewGridSearch([]string{"A", "B"}, [][]float64{{1}}); err == nil {
		t.Error("expected error for mismatched ranges")
	}
	if _, err := NewGridSearch([]string{"A"}, [][]float64{{}}); err == nil {
		t.Error("expected error for empty range")
	}
}

func TestLinspace(t *testing.T) {
	got := Linspace(0, 1, 5)
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("Linspace = %v, want %v", got, want)
		}
	}
	if len(Linspace(3, 9, 1)) != 1 {
		t.Error("n=1 should give one value")
	}
}
