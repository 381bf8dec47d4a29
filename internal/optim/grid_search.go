// Package optim searches scenario parameters for the run that scores best
// on one outcome metric.
package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/fgmsim/internal/config"
	"github.com/san-kum/fgmsim/internal/experiment"
)

// Stratification scores a run by its radial stratification index instead of
// a named metric.
const Stratification = "stratification"

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	maximize   bool
}

func NewGridSearch(params []string, ranges [][]float64, maximize bool) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d params for %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("optim: empty range for %s", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges, maximize: maximize}, nil
}

// Candidate is one grid point and its score.
type Candidate struct {
	Params  map[string]float64
	Score   float64
	Outcome *experiment.Outcome
}

// Search runs every grid point through the ensemble and returns the best
// candidate together with all of them in grid order. Runs whose score is
// NaN never win.
func (g *GridSearch) Search(ctx context.Context, ens *experiment.Ensemble, base *config.Scenario, r *experiment.Registry, metric string) (*Candidate, []Candidate, error) {
	setters := make([]experiment.Setter, len(g.paramNames))
	for i, name := range g.paramNames {
		set, err := r.Setter(name)
		if err != nil {
			return nil, nil, err
		}
		setters[i] = set
	}

	var points []map[string]float64
	g.expand(0, make(map[string]float64), &points)

	scenarios := make([]*config.Scenario, len(points))
	for i, p := range points {
		s := experiment.Clone(base)
		for j, name := range g.paramNames {
			setters[j](s, p[name])
		}
		scenarios[i] = s
	}

	outcomes, err := ens.Run(ctx, scenarios)
	if err != nil {
		return nil, nil, err
	}

	all := make([]Candidate, len(points))
	var best *Candidate
	for i, out := range outcomes {
		all[i] = Candidate{Params: points[i], Score: score(out, metric), Outcome: out}
		if g.better(all[i].Score, best) {
			best = &all[i]
		}
	}
	if best == nil {
		return nil, all, fmt.Errorf("optim: no run produced a finite %s", metric)
	}
	return best, all, nil
}

func (g *GridSearch) better(v float64, best *Candidate) bool {
	if math.IsNaN(v) {
		return false
	}
	if best == nil {
		return true
	}
	if g.maximize {
		return v > best.Score
	}
	return v < best.Score
}

func (g *GridSearch) expand(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		point := make(map[string]float64, len(current))
		for k, v := range current {
			point[k] = v
		}
		*out = append(*out, point)
		return
	}

	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[name] = val
		g.expand(depth+1, current, out)
	}
	delete(current, name)
}

func score(out *experiment.Outcome, metric string) float64 {
	if metric == Stratification {
		return out.Stratification
	}
	v, ok := out.Metrics[metric]
	if !ok {
		return math.NaN()
	}
	return v
}
