package sim

import (
	"context"
	"sync"

	"github.com/san-kum/kinesim/internal/config"
)

// Ensemble runs the same configuration under consecutive seeds, one
// goroutine per run. Runs share nothing but the options.
type Ensemble struct {
	cfg       *config.Config
	numRuns   int
	seedStart int64
	opts      []Option
}

func NewEnsemble(cfg *config.Config, numRuns int, seedStart int64, opts ...Option) *Ensemble {
	return &Ensemble{cfg: cfg, numRuns: numRuns, seedStart: seedStart, opts: opts}
}

func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			cfg := e.cfg.Clone()
			cfg.Seed = e.seedStart + int64(idx)

			s, err := New(cfg, e.opts...)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx], errs[idx] = s.Run(ctx)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
