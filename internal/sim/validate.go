package sim

import (
	"math"

	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/forces"
	"github.com/san-kum/fgmsim/internal/integrators"
	"github.com/san-kum/fgmsim/internal/neighbors"
	"gonum.org/v1/gonum/spatial/r3"
)

func validate(seeds []dynamo.Seed, domain dynamo.Domain, materials []dynamo.Material, p dynamo.Params) error {
	switch {
	case p.ParticleCount <= 0:
		return dynamo.Invalid("particle_count", "must be positive, got %d", p.ParticleCount)
	case !(p.H > 0):
		return dynamo.Invalid("h", "must be positive, got %g", p.H)
	case !(p.Dt > 0):
		return dynamo.Invalid("dt", "must be positive, got %g", p.Dt)
	case !(p.Tolerance > 0):
		return dynamo.Invalid("tolerance", "must be positive, got %g", p.Tolerance)
	case p.Window < 2:
		return dynamo.Invalid("window", "needs at least 2 samples, got %d", p.Window)
	case p.MaxIterations <= 0:
		return dynamo.Invalid("max_iterations", "must be positive, got %d", p.MaxIterations)
	case p.Jitter < 0 || p.Jitter >= 1:
		return dynamo.Invalid("jitter", "must be in [0,1), got %g", p.Jitter)
	case p.MaxSpeed < 0:
		return dynamo.Invalid("max_speed", "must not be negative, got %g", p.MaxSpeed)
	case p.Workers < 0:
		return dynamo.Invalid("workers", "must not be negative, got %d", p.Workers)
	case math.IsNaN(p.Omega) || math.IsInf(p.Omega, 0):
		return dynamo.Invalid("omega", "must be finite, got %g", p.Omega)
	case p.Omega != 0 && r3.Norm2(p.Axis) == 0:
		return dynamo.Invalid("axis", "rotation needs a non-zero axis")
	}

	size := domain.Bounds.Size()
	if !(size.X > 0 && size.Y > 0 && size.Z > 0) {
		return dynamo.Invalid("domain", "box %v is degenerate", domain.Bounds)
	}
	if domain.Damping < 0 || domain.Damping >= 1 {
		return dynamo.Invalid("damping", "must be in [0,1), got %g", domain.Damping)
	}
	if 2*p.H > math.Min(size.X, math.Min(size.Y, size.Z)) {
		return dynamo.Invalid("h", "%g is too large for domain %v", p.H, size)
	}
	if n := neighbors.CellCount(domain.Bounds, p.H); n > neighbors.MaxCells {
		return dynamo.Invalid("h", "%g over domain %v needs %.3g grid cells, limit %d", p.H, size, n, neighbors.MaxCells)
	}

	if len(materials) == 0 {
		return dynamo.Invalid("materials", "at least one material is required")
	}
	for i, m := range materials {
		switch {
		case !(m.RestDensity > 0):
			return dynamo.Invalid("materials", "%d (%s): rest density must be positive", i, m.ID)
		case !(m.Stiffness > 0):
			return dynamo.Invalid("materials", "%d (%s): stiffness must be positive", i, m.ID)
		case !(m.Gamma > 0):
			return dynamo.Invalid("materials", "%d (%s): gamma must be positive", i, m.ID)
		case m.Viscosity < 0:
			return dynamo.Invalid("materials", "%d (%s): viscosity must not be negative", i, m.ID)
		}
	}

	if len(seeds) == 0 {
		return dynamo.Invalid("seeds", "at least one seed is required")
	}
	for i, s := range seeds {
		switch {
		case s.Material < 0 || s.Material >= len(materials):
			return dynamo.Invalid("seeds", "%d: material %d out of range [0,%d)", i, s.Material, len(materials))
		case !(s.Radius > 0):
			return dynamo.Invalid("seeds", "%d: radius must be positive", i)
		case !(s.Strength > 0):
			return dynamo.Invalid("seeds", "%d: strength must be positive", i)
		case s.Roughness < 0 || s.Roughness >= 1:
			return dynamo.Invalid("seeds", "%d: roughness must be in [0,1), got %g", i, s.Roughness)
		case !domain.Bounds.Contains(s.Position):
			return dynamo.Invalid("seeds", "%d: centre %v lies outside the domain", i, s.Position)
		}
	}

	if limit := integrators.StableDt(materials, p.H, p.Omega, axisReach(domain, p)); p.Dt > limit {
		return dynamo.Invalid("dt", "%g exceeds the stable limit %.4g", p.Dt, limit)
	}
	return nil
}

// axisReach is the largest distance of any domain point from the rotation
// axis, attained at a corner.
func axisReach(domain dynamo.Domain, p dynamo.Params) float64 {
	axis := p.Axis
	if r3.Norm2(axis) == 0 {
		axis = r3.Vec{Z: 1}
	}
	axis = r3.Unit(axis)
	reach := 0.0
	for _, v := range domain.Bounds.Vertices() {
		reach = math.Max(reach, r3.Norm(forces.RadialOffset(v, axis, p.Center)))
	}
	return reach
}

// speedLimit is the speed beyond which a step counts as diverged.
func speedLimit(materials []dynamo.Material, domain dynamo.Domain, p dynamo.Params) float64 {
	if p.MaxSpeed > 0 {
		return p.MaxSpeed
	}
	c := 0.0
	for _, m := range materials {
		c = math.Max(c, m.SoundSpeed())
	}
	return 20*c + 2*math.Abs(p.Omega)*axisReach(domain, p)
}
