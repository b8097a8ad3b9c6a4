package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/metrics"
	"github.com/san-kum/kinesim/internal/motor"
)

type Registry struct {
	setups  map[string]func() *config.Config
	metrics map[string]func(cfg *config.Config) metrics.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		setups:  make(map[string]func() *config.Config),
		metrics: make(map[string]func(*config.Config) metrics.Metric),
	}

	for _, name := range config.ListPresets() {
		r.setups[name] = func() *config.Config { return config.GetPreset(name) }
	}

	r.metrics["bound_fraction"] = func(*config.Config) metrics.Metric { return metrics.NewBoundFraction() }
	r.metrics["double_bound_fraction"] = func(*config.Config) metrics.Metric { return metrics.NewDoubleBound() }
	r.metrics["speed_um_per_s"] = func(*config.Config) metrics.Metric { return metrics.NewSpeed() }
	r.metrics["steps"] = func(cfg *config.Config) metrics.Metric { return metrics.NewStepCount(stepSize(cfg)) }

	return r
}

// stepSize is one kinesin step: two track sites.
func stepSize(cfg *config.Config) float64 {
	return 2 * cfg.Track.Spacing
}

// Register adds or replaces a named setup.
func (r *Registry) Register(name string, build func() *config.Config) {
	r.setups[name] = build
}

func (r *Registry) GetSetup(name string) (*config.Config, error) {
	fn, ok := r.setups[name]
	if !ok {
		return nil, fmt.Errorf("unknown setup: %s", name)
	}
	return fn(), nil
}

// Build returns the named setup with the given rate overrides applied.
func (r *Registry) Build(name string, rates map[string]float64) (*Experiment, error) {
	cfg, err := r.GetSetup(name)
	if err != nil {
		return nil, err
	}
	for label, v := range rates {
		if !knownLabel(label) {
			return nil, fmt.Errorf("unknown rate label: %s", label)
		}
		cfg.Rates[label] = v
	}
	return New(cfg), nil
}

func knownLabel(label string) bool {
	for _, l := range motor.RateLabels {
		if l == label {
			return true
		}
	}
	return false
}

func (r *Registry) GetMetric(name string, cfg *config.Config) (metrics.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(cfg), nil
}

func (r *Registry) ListSetups() []string {
	names := make([]string, 0, len(r.setups))
	for name := range r.setups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListMetrics() []string {
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics(cfg *config.Config) []metrics.Metric {
	return metrics.Standard(stepSize(cfg))
}
