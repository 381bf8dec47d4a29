// Package forces computes SPH density, pressure and the per-particle force
// balance over a neighbor grid rebuilt from the current positions.
package forces

import (
	"math"

	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/kernels"
	"github.com/san-kum/fgmsim/internal/neighbors"
	"gonum.org/v1/gonum/spatial/r3"
)

// MinDensity keeps 1/rho² finite for isolated particles.
const MinDensity = 1e-9

// minChunk is the smallest per-worker slice worth a goroutine.
const minChunk = 64

// ExternalField returns an extra force on a particle.
type ExternalField func(p dynamo.Particle) r3.Vec

type Accumulator struct {
	h       float64
	omega   float64
	axis    r3.Vec
	center  r3.Vec
	workers int

	External ExternalField

	grid      *neighbors.Grid
	positions []r3.Vec
	lists     [][]int
}

func New(bounds r3.Box, params dynamo.Params) *Accumulator {
	axis := params.Axis
	if r3.Norm2(axis) == 0 {
		axis = r3.Vec{Z: 1}
	}
	return &Accumulator{
		h:       params.H,
		omega:   params.Omega,
		axis:    r3.Unit(axis),
		center:  params.Center,
		workers: params.Workers,
		grid:    neighbors.NewGrid(bounds, params.H),
	}
}

// Compute rebuilds the neighbor grid from ps and fills in Density, Pressure,
// Neighbors and Acceleration of every particle. Every density is final
// before the first force is evaluated.
func (a *Accumulator) Compute(ps []dynamo.Particle, materials []dynamo.Material) {
	n := len(ps)
	a.positions = a.positions[:0]
	for _, p := range ps {
		a.positions = append(a.positions, p.Position)
	}
	a.grid.Build(a.positions)

	if len(a.lists) != n {
		a.lists = make([][]int, n)
	}

	dynamo.ParallelFor(n, minChunk, a.workers, func(start, end int) {
		for i := start; i < end; i++ {
			a.lists[i] = a.grid.Query(i, a.h, a.lists[i][:0])
			ps[i].Neighbors = len(a.lists[i])
			ps[i].Density = a.density(ps, i)
			ps[i].Pressure = Pressure(ps[i].Density, materials[ps[i].Material])
		}
	})

	dynamo.ParallelFor(n, minChunk, a.workers, func(start, end int) {
		for i := start; i < end; i++ {
			f := a.force(ps, materials, i)
			ps[i].Acceleration = r3.Scale(1/ps[i].Mass, f)
		}
	})
}

func (a *Accumulator) density(ps []dynamo.Particle, i int) float64 {
	rho := ps[i].Mass * kernels.Poly6(0, a.h)
	for _, j := range a.lists[i] {
		r := r3.Norm(r3.Sub(ps[i].Position, ps[j].Position))
		rho += ps[j].Mass * kernels.Poly6(r, a.h)
	}
	return math.Max(rho, MinDensity)
}

func (a *Accumulator) force(ps []dynamo.Particle, materials []dynamo.Material, i int) r3.Vec {
	pi := ps[i]
	mu := materials[pi.Material].Viscosity

	var pressure, viscous r3.Vec
	for _, j := range a.lists[i] {
		pj := ps[j]
		pressure = r3.Add(pressure, PressurePair(pi, pj, a.h))
		if mu != 0 {
			r := r3.Norm(r3.Sub(pi.Position, pj.Position))
			w := pj.Mass / pj.Density * kernels.ViscosityLaplacian(r, a.h)
			viscous = r3.Add(viscous, r3.Scale(w, r3.Sub(pj.Velocity, pi.Velocity)))
		}
	}
	viscous = r3.Scale(pi.Mass*mu/pi.Density, viscous)

	f := r3.Add(pressure, viscous)
	f = r3.Add(f, Centrifugal(pi, a.omega, a.axis, a.center))
	if a.External != nil {
		f = r3.Add(f, a.External(pi))
	}
	return f
}

// Pressure is the Tait equation of state floored at zero, so particles below
// rest density exert no tensile pull.
func Pressure(density float64, m dynamo.Material) float64 {
	p := m.Stiffness * (math.Pow(density/m.RestDensity, m.Gamma) - 1)
	if p < 0 {
		return 0
	}
	return p
}

// PressurePair is the pressure force exerted on i by j. The coefficient is
// symmetric in i and j while the spiky gradient is odd in the separation,
// so PressurePair(i, j) == -PressurePair(j, i).
func PressurePair(pi, pj dynamo.Particle, h float64) r3.Vec {
	if pi.Pressure == 0 && pj.Pressure == 0 {
		return r3.Vec{}
	}
	coeff := pi.Mass * pj.Mass * (pi.Pressure/(pi.Density*pi.Density) + pj.Pressure/(pj.Density*pj.Density))
	grad := kernels.SpikyGrad(r3.Sub(pi.Position, pj.Position), h)
	return r3.Scale(-coeff, grad)
}

// Centrifugal is m ω² r_perp, r_perp being the outward offset of the
// particle from the rotation axis through center. axis must be a unit vector.
func Centrifugal(p dynamo.Particle, omega float64, axis, center r3.Vec) r3.Vec {
	if omega == 0 {
		return r3.Vec{}
	}
	return r3.Scale(p.Mass*omega*omega, RadialOffset(p.Position, axis, center))
}

// RadialOffset is the component of pos - center perpendicular to axis.
func RadialOffset(pos, axis, center r3.Vec) r3.Vec {
	rel := r3.Sub(pos, center)
	return r3.Sub(rel, r3.Scale(r3.Dot(rel, axis), axis))
}
