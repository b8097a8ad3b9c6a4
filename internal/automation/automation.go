package automation

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/experiment"
	"github.com/san-kum/kinesim/internal/logging"
	"github.com/san-kum/kinesim/internal/sim"
	"github.com/san-kum/kinesim/internal/storage"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run: a setup from the registry plus overrides. Zero
// values keep the setup's own settings.
type ScenarioStep struct {
	Setup          string             `yaml:"setup"`
	Mode           string             `yaml:"mode"`
	Seed           int64              `yaml:"seed"`
	DurationNs     float64            `yaml:"duration_ns"`
	TimeMultiplier float64            `yaml:"time_multiplier"`
	Rates          map[string]float64 `yaml:"rates"`
	SaveAs         string             `yaml:"save_as"`
	Expect         map[string]Bounds  `yaml:"expect"`
}

// Bounds is an inclusive range for a metric. A nil end is open.
type Bounds struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

func (b Bounds) check(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if b.Min != nil && v < *b.Min {
		return false
	}
	if b.Max != nil && v > *b.Max {
		return false
	}
	return true
}

// StepResult is the outcome of one scenario step. Failures lists the
// expectations the run did not meet.
type StepResult struct {
	Setup    string
	RunID    string
	Result   *sim.Result
	Failures []string
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("automation: parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("automation: scenario %q has no steps", scenario.Name)
	}

	return &scenario, nil
}

// Runner executes scenarios, sweeps and Monte Carlo batches against a
// registry. Store may be nil when nothing is saved.
type Runner struct {
	Registry *experiment.Registry
	Store    *storage.Store
	Log      logging.Logger
}

func NewRunner(registry *experiment.Registry, store *storage.Store, log logging.Logger) *Runner {
	return &Runner{Registry: registry, Store: store, Log: logging.OrNoop(log)}
}

func (r *Runner) stepConfig(step ScenarioStep) (*config.Config, error) {
	setup := step.Setup
	if setup == "" {
		setup = "default"
	}
	cfg, err := r.Registry.GetSetup(setup)
	if err != nil {
		return nil, err
	}
	if step.Mode != "" {
		cfg.Mode = step.Mode
	}
	if step.Seed != 0 {
		cfg.Seed = step.Seed
	}
	if step.DurationNs > 0 {
		cfg.DurationNs = step.DurationNs
	}
	if step.TimeMultiplier > 0 {
		cfg.TimeMultiplier = step.TimeMultiplier
	}
	for label, v := range step.Rates {
		cfg.Rates[label] = v
	}
	return cfg, nil
}

// RunScenario executes every step in order. It stops at the first step that
// cannot run; unmet expectations are reported, not returned as errors.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := r.stepConfig(step)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		r.Log.Info(ctx, "scenario step",
			logging.String("scenario", scenario.Name),
			logging.Int("step", i+1),
			logging.Int("of", len(scenario.Steps)),
			logging.String("setup", step.Setup),
			logging.String("mode", cfg.Mode),
		)

		exp := experiment.New(cfg)
		if err := exp.Setup(
			sim.WithLogger(r.Log),
			sim.WithMetrics(r.Registry.DefaultMetrics(cfg)...),
			sim.WithPathEvery(100),
		); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Setup: step.Setup, Result: result, Failures: checkExpectations(result, step.Expect)}
		for _, f := range sr.Failures {
			r.Log.Warn(ctx, "expectation not met", logging.Int("step", i+1), logging.String("detail", f))
		}

		if step.SaveAs != "" && r.Store != nil {
			id, err := r.Store.Save(step.SaveAs, cfg, result)
			if err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
			sr.RunID = id
		}

		results = append(results, sr)
	}

	return results, nil
}

// checkExpectations reads "walking_speed" and "events" from the result and
// everything else from its metrics.
func checkExpectations(result *sim.Result, expect map[string]Bounds) []string {
	names := make([]string, 0, len(expect))
	for name := range expect {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []string
	for _, name := range names {
		var v float64
		switch name {
		case "walking_speed":
			v = result.WalkingSpeed
		case "events":
			v = float64(len(result.Events))
		default:
			mv, ok := result.Metrics[name]
			if !ok {
				failures = append(failures, fmt.Sprintf("%s: not reported", name))
				continue
			}
			v = mv
		}
		if !expect[name].check(v) {
			failures = append(failures, fmt.Sprintf("%s = %g out of range", name, v))
		}
	}
	return failures
}

// ParameterSweep runs one setup across a range of a single rate constant.
type ParameterSweep struct {
	Setup      string
	Label      string
	Min, Max   float64
	NumSteps   int
	DurationNs float64
	Metric     string
}

type SweepResult struct {
	Rate         float64
	Metric       float64
	WalkingSpeed float64
	Events       int
}

func (r *Runner) RunSweep(ctx context.Context, sweep *ParameterSweep) ([]SweepResult, error) {
	if sweep.NumSteps < 2 {
		return nil, fmt.Errorf("automation: sweep needs at least 2 steps, got %d", sweep.NumSteps)
	}
	results := make([]SweepResult, 0, sweep.NumSteps)
	rateStep := (sweep.Max - sweep.Min) / float64(sweep.NumSteps-1)

	for i := 0; i < sweep.NumSteps; i++ {
		rate := sweep.Min + float64(i)*rateStep
		cfg, err := r.stepConfig(ScenarioStep{
			Setup:      sweep.Setup,
			DurationNs: sweep.DurationNs,
			Rates:      map[string]float64{sweep.Label: rate},
		})
		if err != nil {
			return nil, err
		}

		exp := experiment.New(cfg)
		if err := exp.Setup(sim.WithMetrics(r.Registry.DefaultMetrics(cfg)...)); err != nil {
			return nil, err
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return nil, err
		}

		results = append(results, SweepResult{
			Rate:         rate,
			Metric:       result.Metrics[sweep.Metric],
			WalkingSpeed: result.WalkingSpeed,
			Events:       len(result.Events),
		})

		r.Log.Info(ctx, "sweep point",
			logging.Int("point", i+1),
			logging.Int("of", sweep.NumSteps),
			logging.String("label", sweep.Label),
			logging.Float("rate", rate),
		)
	}

	return results, nil
}

// MonteCarloConfig runs one setup under consecutive seeds in parallel.
type MonteCarloConfig struct {
	Setup      string
	NumTrials  int
	SeedStart  int64
	DurationNs float64
}

type MonteCarloResult struct {
	Seed         int64
	WalkingSpeed float64
	Displacement float64
	Events       int
}

func (r *Runner) RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig) ([]MonteCarloResult, error) {
	cfg, err := r.stepConfig(ScenarioStep{Setup: mc.Setup, DurationNs: mc.DurationNs})
	if err != nil {
		return nil, err
	}

	runs, err := sim.NewEnsemble(cfg, mc.NumTrials, mc.SeedStart).Run(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, len(runs))
	for i, res := range runs {
		results[i] = MonteCarloResult{
			Seed:         res.Seed,
			WalkingSpeed: res.WalkingSpeed,
			Displacement: res.Displacement,
			Events:       len(res.Events),
		}
	}
	r.Log.Info(ctx, "monte carlo complete", logging.Int("trials", len(results)))
	return results, nil
}

// MonteCarloStats returns the mean and sample standard deviation of the
// walking speed across trials.
func MonteCarloStats(results []MonteCarloResult) (mean, std float64) {
	if len(results) == 0 {
		return 0, 0
	}
	for _, r := range results {
		mean += r.WalkingSpeed
	}
	mean /= float64(len(results))
	if len(results) < 2 {
		return mean, 0
	}
	for _, r := range results {
		d := r.WalkingSpeed - mean
		std += d * d
	}
	return mean, math.Sqrt(std / float64(len(results)-1))
}
