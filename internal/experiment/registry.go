package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/fgmsim/internal/config"
)

// Setter applies one value of a swept parameter to a scenario.
type Setter func(s *config.Scenario, v float64)

// Registry maps parameter names to the scenario field they control.
type Registry struct {
	params map[string]Setter
}

func NewRegistry() *Registry {
	r := &Registry{params: make(map[string]Setter)}

	r.params["omega"] = func(s *config.Scenario, v float64) { s.Params.Omega = v }
	r.params["damping"] = func(s *config.Scenario, v float64) { s.Domain.Damping = v }
	r.params["h"] = func(s *config.Scenario, v float64) { s.Params.H = v }
	r.params["dt"] = func(s *config.Scenario, v float64) { s.Params.Dt = v }
	r.params["particle_count"] = func(s *config.Scenario, v float64) { s.Params.ParticleCount = int(v) }
	r.params["tolerance"] = func(s *config.Scenario, v float64) { s.Params.Tolerance = v }
	r.params["jitter"] = func(s *config.Scenario, v float64) { s.Params.Jitter = v }
	r.params["seed"] = func(s *config.Scenario, v float64) { s.Params.RandSeed = int64(v) }
	r.params["viscosity"] = func(s *config.Scenario, v float64) {
		for i := range s.Materials {
			s.Materials[i].Viscosity = v
		}
	}

	return r
}

func (r *Registry) Setter(name string) (Setter, error) {
	fn, ok := r.params[name]
	if !ok {
		return nil, fmt.Errorf("unknown parameter: %s", name)
	}
	return fn, nil
}

func (r *Registry) ListParams() []string {
	names := make([]string, 0, len(r.params))
	for name := range r.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone copies a scenario deeply enough that setters on the copy leave the
// original untouched.
func Clone(s *config.Scenario) *config.Scenario {
	c := *s
	c.Seeds = append(c.Seeds[:0:0], s.Seeds...)
	c.Materials = append(c.Materials[:0:0], s.Materials...)
	return &c
}
