package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/sim"
)

func TestRegistrySetups(t *testing.T) {
	r := NewRegistry()
	names := r.ListSetups()
	if len(names) != len(config.Presets) {
		t.Fatalf("expected %d setups, got %d", len(config.Presets), len(names))
	}
	if _, err := r.GetSetup("default"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetSetup("nope"); err == nil {
		t.Error("expected error for unknown setup")
	}
}

func TestBuildAppliesRates(t *testing.T) {
	r := NewRegistry()
	exp, err := r.Build("default", map[string]float64{"A": 42})
	if err != nil {
		t.Fatal(err)
	}
	if got := exp.Config().Rates["A"]; got != 42 {
		t.Errorf("rate A = %v, want 42", got)
	}
	if _, err := r.Build("default", map[string]float64{"Z": 1}); err == nil {
		t.Error("expected error for unknown label")
	}
}

func TestRunNeedsSetup(t *testing.T) {
	exp := New(config.DefaultConfig())
	if _, err := exp.Run(context.Background()); !errors.Is(err, ErrNotSetup) {
		t.Errorf("expected ErrNotSetup, got %v", err)
	}
}

func TestRunWithDefaultMetrics(t *testing.T) {
	r := NewRegistry()
	r.Register("short", func() *config.Config {
		c := config.DefaultConfig()
		c.Mode = config.ModeCached
		c.DurationNs = 1e7
		c.Track.Sites = 16
		return c
	})
	exp, err := r.Build("short", nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := exp.Config()
	if err := exp.Setup(sim.WithMetrics(r.DefaultMetrics(cfg)...)); err != nil {
		t.Fatal(err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range r.ListMetrics() {
		if _, ok := res.Metrics[name]; !ok {
			t.Errorf("metric %s missing from result", name)
		}
	}
	if exp.Simulation() == nil {
		t.Error("simulation should be available after setup")
	}
}

func TestGetMetric(t *testing.T) {
	r := NewRegistry()
	cfg := config.DefaultConfig()
	m, err := r.GetMetric("steps", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name() != "steps" {
		t.Errorf("got metric %s", m.Name())
	}
	if _, err := r.GetMetric("energy", cfg); err == nil {
		t.Error("expected error for unknown metric")
	}
}
