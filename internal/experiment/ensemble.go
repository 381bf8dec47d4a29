package experiment

import (
	"context"
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/san-kum/fgmsim/internal/config"
	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent scenarios concurrently, at most Parallel at a
// time. Each run owns its own controller and metrics, so Options must not
// carry metrics or observers shared between runs.
type Ensemble struct {
	Parallel int
	Logger   *log.Logger
	Options  []Option
}

// Run returns one outcome per scenario, in order. The first failing run
// cancels the rest.
func (e *Ensemble) Run(ctx context.Context, scenarios []*config.Scenario) ([]*Outcome, error) {
	parallel := e.Parallel
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}

	outcomes := make([]*Outcome, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, s := range scenarios {
		g.Go(func() error {
			opts := append([]Option(nil), e.Options...)
			if e.Logger != nil {
				opts = append(opts, WithLogger(e.Logger.With("run", i)))
			}

			out, err := New(s, opts...).Run(ctx)
			if err != nil {
				return fmt.Errorf("run %d (%s): %w", i, s.Name, err)
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// Replicas returns n copies of base that differ only in their jitter seed,
// starting at seedStart.
func Replicas(base *config.Scenario, n int, seedStart int64) []*config.Scenario {
	out := make([]*config.Scenario, n)
	for i := range out {
		c := Clone(base)
		c.Params.RandSeed = seedStart + int64(i)
		out[i] = c
	}
	return out
}
