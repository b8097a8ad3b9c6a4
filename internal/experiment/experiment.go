package experiment

import (
	"context"
	"errors"

	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/sim"
)

var ErrNotSetup = errors.New("experiment: not setup")

// Experiment is one configured run. Setup builds the simulation so callers
// can attach observers before Run.
type Experiment struct {
	cfg        *config.Config
	simulation *sim.Simulation
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{cfg: cfg.Clone()}
}

func (e *Experiment) Setup(opts ...sim.Option) error {
	s, err := sim.New(e.cfg, opts...)
	if err != nil {
		return err
	}
	e.simulation = s
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulation == nil {
		return nil, ErrNotSetup
	}
	return e.simulation.Run(ctx)
}

func (e *Experiment) Config() *config.Config { return e.cfg.Clone() }

// Simulation returns the underlying simulation, nil before Setup.
func (e *Experiment) Simulation() *sim.Simulation {
	return e.simulation
}
