package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/kinesim/internal/experiment"
)

var ErrNoTrials = errors.New("optim: no trial completed")

// Trial is one point of the grid and the score it reached.
type Trial struct {
	Params map[string]float64
	Score  float64
	Err    error
}

// GridSearch tries every combination of the given rate values. By default
// the lowest score wins; Maximize flips that.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	maximize   bool
	trials     []Trial
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameters but %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("optim: empty range for %s", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

func (g *GridSearch) Maximize() *GridSearch {
	g.maximize = true
	return g
}

// Trials returns every point evaluated by the last Search, failures included.
func (g *GridSearch) Trials() []Trial {
	return g.trials
}

func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (map[string]float64, float64, error) {
	g.trials = g.trials[:0]

	best := math.Inf(1)
	if g.maximize {
		best = math.Inf(-1)
	}
	var bestParams map[string]float64

	if err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, metricName, &best, &bestParams); err != nil {
		return bestParams, best, err
	}
	if bestParams == nil {
		return nil, best, ErrNoTrials
	}
	return bestParams, best, nil
}

func (g *GridSearch) better(val, best float64) bool {
	if g.maximize {
		return val > best
	}
	return val < best
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		val, err := g.evaluate(ctx, current, buildExperiment, metricName)
		g.trials = append(g.trials, Trial{Params: current, Score: val, Err: err})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
		if *bestParams == nil || g.better(val, *best) {
			*best = val
			*bestParams = make(map[string]float64)
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, buildExperiment, metricName, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) evaluate(
	ctx context.Context,
	params map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (float64, error) {
	exp, err := buildExperiment(params)
	if err != nil {
		return 0, err
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		return 0, fmt.Errorf("optim: run reported no %s", metricName)
	}
	return val, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}
