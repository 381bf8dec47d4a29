// Package integrators advances the particle state in time.
package integrators

import (
	"math"

	"github.com/san-kum/fgmsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

const minChunk = 256

// ForceFunc recomputes the accelerations of ps from their positions and
// velocities.
type ForceFunc func(ps []dynamo.Particle)

// Verlet is a velocity Verlet integrator with damped reflecting walls.
type Verlet struct {
	domain  dynamo.Domain
	workers int
}

func NewVerlet(domain dynamo.Domain, workers int) *Verlet {
	return &Verlet{domain: domain, workers: workers}
}

// Step advances ps by dt. ps must carry the accelerations of its current
// positions; on return it carries those of the new ones.
func (v *Verlet) Step(ps []dynamo.Particle, dt float64, forces ForceFunc) {
	half := 0.5 * dt
	dynamo.ParallelFor(len(ps), minChunk, v.workers, func(start, end int) {
		for i := start; i < end; i++ {
			p := &ps[i]
			p.Velocity = r3.Add(p.Velocity, r3.Scale(half, p.Acceleration))
			p.Position = r3.Add(p.Position, r3.Scale(dt, p.Velocity))
			Reflect(p, v.domain)
		}
	})

	forces(ps)

	dynamo.ParallelFor(len(ps), minChunk, v.workers, func(start, end int) {
		for i := start; i < end; i++ {
			p := &ps[i]
			p.Velocity = r3.Add(p.Velocity, r3.Scale(half, p.Acceleration))
		}
	})
}

// Reflect mirrors a particle that left the domain back across the violated
// wall and reverses its normal velocity, scaled by the wall damping.
func Reflect(p *dynamo.Particle, d dynamo.Domain) {
	p.Position.X, p.Velocity.X = reflectAxis(p.Position.X, p.Velocity.X, d.Bounds.Min.X, d.Bounds.Max.X, d.Damping)
	p.Position.Y, p.Velocity.Y = reflectAxis(p.Position.Y, p.Velocity.Y, d.Bounds.Min.Y, d.Bounds.Max.Y, d.Damping)
	p.Position.Z, p.Velocity.Z = reflectAxis(p.Position.Z, p.Velocity.Z, d.Bounds.Min.Z, d.Bounds.Max.Z, d.Damping)
}

func reflectAxis(x, v, lo, hi, damping float64) (float64, float64) {
	switch {
	case x < lo:
		x = 2*lo - x
		if v < 0 {
			v = -damping * v
		}
	case x > hi:
		x = 2*hi - x
		if v > 0 {
			v = -damping * v
		}
	default:
		return x, v
	}
	// a particle that crossed more than the full width
	return math.Min(math.Max(x, lo), hi), v
}

// StableDt is the largest time step the explicit scheme tolerates: an
// acoustic CFL bound on the stiffest material, a viscous diffusion bound and
// a bound on the centrifugal acceleration at the domain edge. reach is the
// largest distance from the rotation axis. Unconstrained terms are +Inf.
func StableDt(materials []dynamo.Material, h, omega, reach float64) float64 {
	dt := math.Inf(1)
	for _, m := range materials {
		if c := m.SoundSpeed(); c > 0 {
			dt = math.Min(dt, 0.4*h/c)
		}
		if m.Viscosity > 0 {
			dt = math.Min(dt, 0.125*h*h*m.RestDensity/m.Viscosity)
		}
	}
	if omega != 0 && reach > 0 {
		dt = math.Min(dt, 0.25*math.Sqrt(h/(omega*omega*reach)))
	}
	return dt
}
