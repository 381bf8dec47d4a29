package experiment

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/fgmsim/internal/config"
	"gonum.org/v1/gonum/floats"
)

// Sweep varies one registered parameter over an evenly spaced range.
type Sweep struct {
	Param string
	Min   float64
	Max   float64
	Steps int
}

type SweepPoint struct {
	Value   float64
	Outcome *Outcome
}

func (s Sweep) Values() []float64 {
	if s.Steps <= 1 {
		return []float64{s.Min}
	}
	return floats.Span(make([]float64, s.Steps), s.Min, s.Max)
}

// Scenarios applies every sweep value to a copy of base.
func (s Sweep) Scenarios(base *config.Scenario, r *Registry) ([]*config.Scenario, error) {
	set, err := r.Setter(s.Param)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(s.Min) || math.IsNaN(s.Max) {
		return nil, fmt.Errorf("sweep range of %s is not a number", s.Param)
	}

	var out []*config.Scenario
	for _, v := range s.Values() {
		c := Clone(base)
		c.Name = fmt.Sprintf("%s-%s=%g", base.Name, s.Param, v)
		set(c, v)
		out = append(out, c)
	}
	return out, nil
}

// RunSweep runs every point of the sweep on the ensemble.
func RunSweep(ctx context.Context, e *Ensemble, base *config.Scenario, s Sweep, r *Registry) ([]SweepPoint, error) {
	scenarios, err := s.Scenarios(base, r)
	if err != nil {
		return nil, err
	}
	outcomes, err := e.Run(ctx, scenarios)
	if err != nil {
		return nil, err
	}

	points := make([]SweepPoint, len(outcomes))
	for i, v := range s.Values() {
		points[i] = SweepPoint{Value: v, Outcome: outcomes[i]}
	}
	return points, nil
}
