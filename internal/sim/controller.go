// Package sim drives a blending run through its lifecycle: particle
// placement, force and integration steps, convergence detection and the
// final rasterization of the material field.
package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/fgmsim/internal/blend"
	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/forces"
	"github.com/san-kum/fgmsim/internal/integrators"
	"github.com/san-kum/fgmsim/internal/metrics"
	"github.com/san-kum/fgmsim/internal/particles"
	"gonum.org/v1/gonum/spatial/r3"
)

// Controller owns one run. It is not safe for concurrent use; independent
// controllers share nothing and may run in parallel.
type Controller struct {
	state dynamo.RunState

	params   dynamo.Params
	domain   dynamo.Domain
	pool     *particles.Pool
	acc      *forces.Accumulator
	verlet   *integrators.Verlet
	maxSpeed float64

	iteration int
	energy    []float64
	metric    float64
	outcome   Convergence

	external  forces.ExternalField
	observers []Observer
}

func New(opts ...Option) *Controller {
	c := &Controller{metric: math.Inf(1)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) AddObserver(o Observer) { c.observers = append(c.observers, o) }

func (c *Controller) State() dynamo.RunState { return c.state }

func (c *Controller) Iteration() int { return c.iteration }

func (c *Controller) Params() dynamo.Params { return c.params }

func (c *Controller) Domain() dynamo.Domain { return c.domain }

// EnergyHistory returns a copy of the kinetic energy after every step.
func (c *Controller) EnergyHistory() []float64 {
	return append([]float64(nil), c.energy...)
}

// Particles returns a copy of the committed particle state, or nil before
// Initialize.
func (c *Controller) Particles() []dynamo.Particle {
	if c.pool == nil {
		return nil
	}
	return c.pool.Snapshot()
}

func (c *Controller) Materials() []dynamo.Material {
	if c.pool == nil {
		return nil
	}
	return c.pool.Materials()
}

// FullSupport is the neighbor count of an interior particle of the initial
// lattice.
func (c *Controller) FullSupport() int {
	if c.pool == nil {
		return 0
	}
	return c.pool.FullSupport()
}

// Initialize validates the run configuration, places the particles and
// evaluates the initial forces. A rejected configuration leaves the
// controller untouched.
func (c *Controller) Initialize(seeds []dynamo.Seed, domain dynamo.Domain, materials []dynamo.Material, params dynamo.Params) error {
	if c.state != dynamo.Uninitialized {
		return &dynamo.TransitionError{Op: "initialize", From: c.state}
	}
	if err := validate(seeds, domain, materials, params); err != nil {
		return err
	}

	pool, err := particles.Place(seeds, domain, materials, params)
	if err != nil {
		return err
	}

	acc := forces.New(domain.Bounds, params)
	acc.External = c.external
	ps := pool.Scratch()
	acc.Compute(ps, pool.Materials())
	pool.Commit()

	c.params = params
	c.domain = domain
	c.pool = pool
	c.acc = acc
	c.verlet = integrators.NewVerlet(domain, params.Workers)
	c.maxSpeed = speedLimit(materials, domain, params)
	c.iteration = 0
	c.energy = make([]float64, 0, params.MaxIterations)
	c.metric = math.Inf(1)
	c.outcome = Convergence{}
	c.state = dynamo.Initialized
	return nil
}

// Step advances the run by one time step. The step is computed on a scratch
// copy and committed only if every particle stays finite and below the
// speed limit; otherwise the controller fails and the committed state is
// the last good one.
func (c *Controller) Step() (dynamo.Telemetry, error) {
	if c.state != dynamo.Initialized && c.state != dynamo.Running {
		return dynamo.Telemetry{State: c.state, Iteration: c.iteration}, &dynamo.TransitionError{Op: "step", From: c.state}
	}

	materials := c.pool.Materials()
	ps := c.pool.Scratch()
	c.verlet.Step(ps, c.params.Dt, func(ps []dynamo.Particle) {
		c.acc.Compute(ps, materials)
	})

	if err := c.check(ps); err != nil {
		c.state = dynamo.Failed
		return dynamo.Telemetry{
			Iteration:     c.iteration,
			ParticleCount: c.pool.Len(),
			State:         c.state,
		}, err
	}

	c.pool.Commit()
	c.iteration++
	c.state = dynamo.Running

	ke := metrics.KineticEnergy(c.pool.Particles())
	c.energy = append(c.energy, ke)
	c.metric, _ = metrics.EnergyTrend(c.energy, c.params.Window)

	t := dynamo.Telemetry{
		Iteration:           c.iteration,
		KineticEnergy:       ke,
		ConvergenceMetric:   c.metric,
		ParticleCount:       c.pool.Len(),
		MaxDensityDeviation: metrics.DensityDeviation(c.pool.Particles(), materials, c.pool.FullSupport()),
		State:               c.state,
	}
	for _, o := range c.observers {
		o.OnStep(t)
	}
	return t, nil
}

func (c *Controller) check(ps []dynamo.Particle) error {
	limit2 := c.maxSpeed * c.maxSpeed
	for i, p := range ps {
		if q, v := p.Check(); q != "" {
			return &dynamo.DivergenceError{Iteration: c.iteration + 1, Particle: i, Quantity: q, Value: v}
		}
		if s2 := r3.Norm2(p.Velocity); s2 > limit2 {
			return &dynamo.DivergenceError{Iteration: c.iteration + 1, Particle: i, Quantity: "speed", Value: math.Sqrt(s2)}
		}
	}
	return nil
}

// CheckConvergence evaluates the kinetic energy trend. A settled trend over
// a full window, or reaching the iteration cap, moves the run to Converged;
// the returned Convergence tells the two apart.
func (c *Controller) CheckConvergence() (Convergence, error) {
	if c.state != dynamo.Running {
		return Convergence{}, &dynamo.TransitionError{Op: "check convergence", From: c.state}
	}

	metric, full := metrics.EnergyTrend(c.energy, c.params.Window)
	switch {
	case full && metric <= c.params.Tolerance:
		c.state = dynamo.Converged
		c.outcome = Convergence{Converged: true, Metric: metric, Reason: ReasonSettled}
		return c.outcome, nil
	case c.iteration >= c.params.MaxIterations:
		c.state = dynamo.Converged
		c.outcome = Convergence{Metric: metric, Reason: ReasonIterationCap}
		return c.outcome, nil
	case !full:
		return Convergence{Metric: metric, Reason: ReasonInsufficient}, nil
	}
	return Convergence{Metric: metric, Reason: ReasonStillChanging}, nil
}

// Finalize rasterizes the committed particles into a material field with
// res cells per axis.
func (c *Controller) Finalize(res [3]int) (*Result, error) {
	if c.state != dynamo.Converged {
		return nil, &dynamo.TransitionError{Op: "finalize", From: c.state}
	}

	field, err := blend.Rasterize(c.pool.Particles(), c.pool.Materials(), c.domain, c.params.H, res)
	if err != nil {
		return nil, fmt.Errorf("rasterize field: %w", err)
	}

	c.state = dynamo.Finalized
	return &Result{
		Field:         field,
		Converged:     c.outcome.Converged,
		Iterations:    c.iteration,
		EnergyHistory: c.EnergyHistory(),
		Reason:        c.outcome.Reason,
	}, nil
}

// Reset discards the run and returns the controller to Uninitialized.
// Options and observers are kept.
func (c *Controller) Reset() {
	c.state = dynamo.Uninitialized
	c.params = dynamo.Params{}
	c.domain = dynamo.Domain{}
	c.pool = nil
	c.acc = nil
	c.verlet = nil
	c.iteration = 0
	c.energy = nil
	c.metric = math.Inf(1)
	c.outcome = Convergence{}
}
