// Package particles owns the particle and material state of one run.
package particles

import (
	"math"
	"math/rand"

	"github.com/aquilax/go-perlin"
	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/kernels"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pool is the aggregate behind a single controller: the particle slice, a
// scratch copy that steps are computed into, and the material table the
// particles index into.
type Pool struct {
	materials []dynamo.Material
	masses    []float64

	current []dynamo.Particle
	scratch []dynamo.Particle

	spacing     float64
	fullSupport int
}

// Place fills the seeds with particles on a simple cubic lattice anchored at
// the domain minimum. The spacing is chosen so that the seeds' combined
// volume holds roughly params.ParticleCount particles. A lattice site inside
// several seeds goes to the seed with the largest strength*(1-d/radius),
// where radius is the noise-perturbed radius for rough seeds.
func Place(seeds []dynamo.Seed, domain dynamo.Domain, materials []dynamo.Material, params dynamo.Params) (*Pool, error) {
	if len(seeds) == 0 {
		return nil, dynamo.Invalid("seeds", "at least one seed is required")
	}
	if params.ParticleCount <= 0 {
		return nil, dynamo.Invalid("particle_count", "must be positive, got %d", params.ParticleCount)
	}

	volume := 0.0
	for _, s := range seeds {
		volume += s.Volume()
	}
	spacing := math.Cbrt(volume / float64(params.ParticleCount))
	if !(spacing > 0) {
		return nil, dynamo.Invalid("seeds", "seeds enclose no volume")
	}
	if spacing >= params.H {
		return nil, dynamo.Invalid("particle_count",
			"%d particles give spacing %.4g, which must stay below h=%.4g", params.ParticleCount, spacing, params.H)
	}

	p := &Pool{
		materials:   append([]dynamo.Material(nil), materials...),
		masses:      make([]float64, len(materials)),
		spacing:     spacing,
		fullSupport: kernels.LatticeNeighbors(spacing, params.H),
	}
	norm := kernels.LatticeSum(spacing, params.H)
	for i, m := range materials {
		p.masses[i] = m.RestDensity / norm
	}

	rng := rand.New(rand.NewSource(params.RandSeed))
	noise := perlin.NewPerlin(2, 2, 3, params.RandSeed)
	covered := make([]bool, len(seeds))

	lo, hi := p.siteRange(seeds, domain.Bounds)
	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				site := r3.Vec{
					X: domain.Bounds.Min.X + (float64(x)+0.5)*spacing,
					Y: domain.Bounds.Min.Y + (float64(y)+0.5)*spacing,
					Z: domain.Bounds.Min.Z + (float64(z)+0.5)*spacing,
				}
				best, bestScore := -1, 0.0
				for si, s := range seeds {
					d := r3.Norm(r3.Sub(site, s.Position))
					radius := surfaceRadius(s, site, noise)
					if d > radius {
						continue
					}
					covered[si] = true
					score := s.Strength * (1 - d/radius)
					if best < 0 || score > bestScore {
						best, bestScore = si, score
					}
				}
				if best < 0 {
					continue
				}
				if params.Jitter > 0 {
					site = r3.Add(site, r3.Vec{
						X: (rng.Float64() - 0.5) * params.Jitter * spacing,
						Y: (rng.Float64() - 0.5) * params.Jitter * spacing,
						Z: (rng.Float64() - 0.5) * params.Jitter * spacing,
					})
					site = clampInto(site, domain.Bounds)
				}
				p.add(site, seeds[best].Material)
			}
		}
	}

	// seeds smaller than the lattice spacing still get one particle
	for si, s := range seeds {
		if !covered[si] {
			p.add(clampInto(s.Position, domain.Bounds), s.Material)
		}
	}

	p.scratch = make([]dynamo.Particle, len(p.current))
	return p, nil
}

// surfaceRadius is the seed radius in the direction of site. Noise is
// sampled on the seed-relative position scaled so that one seed spans a few
// noise periods.
func surfaceRadius(s dynamo.Seed, site r3.Vec, noise *perlin.Perlin) float64 {
	if s.Roughness == 0 {
		return s.Radius
	}
	q := r3.Scale(2/s.Radius, r3.Sub(site, s.Position))
	n := math.Max(-1, math.Min(1, noise.Noise3D(q.X, q.Y, q.Z)))
	return s.Radius * (1 + s.Roughness*n)
}

func (p *Pool) add(pos r3.Vec, material int) {
	p.current = append(p.current, dynamo.Particle{
		Position: pos,
		Mass:     p.masses[material],
		Material: material,
	})
}

// siteRange returns the inclusive lattice index range covering every seed,
// clipped to the sites that lie inside bounds.
func (p *Pool) siteRange(seeds []dynamo.Seed, bounds r3.Box) (lo, hi [3]int) {
	size := bounds.Size()
	extent := [3]float64{size.X, size.Y, size.Z}
	origin := [3]float64{bounds.Min.X, bounds.Min.Y, bounds.Min.Z}

	for a := 0; a < 3; a++ {
		lo[a], hi[a] = math.MaxInt, math.MinInt
		last := int(math.Floor(extent[a]/p.spacing - 0.5))
		for _, s := range seeds {
			c := [3]float64{s.Position.X, s.Position.Y, s.Position.Z}[a]
			r := s.Radius * (1 + s.Roughness)
			l := int(math.Floor((c-r-origin[a])/p.spacing - 0.5))
			h := int(math.Ceil((c+r-origin[a])/p.spacing - 0.5))
			if l < lo[a] {
				lo[a] = l
			}
			if h > hi[a] {
				hi[a] = h
			}
		}
		if lo[a] < 0 {
			lo[a] = 0
		}
		if hi[a] > last {
			hi[a] = last
		}
	}
	return lo, hi
}

func clampInto(v r3.Vec, b r3.Box) r3.Vec {
	return r3.Vec{
		X: math.Min(math.Max(v.X, b.Min.X), b.Max.X),
		Y: math.Min(math.Max(v.Y, b.Min.Y), b.Max.Y),
		Z: math.Min(math.Max(v.Z, b.Min.Z), b.Max.Z),
	}
}

func (p *Pool) Len() int { return len(p.current) }

// Particles returns the committed state. Callers must not modify it.
func (p *Pool) Particles() []dynamo.Particle { return p.current }

// Snapshot returns an independent copy of the committed state.
func (p *Pool) Snapshot() []dynamo.Particle {
	return append([]dynamo.Particle(nil), p.current...)
}

// Scratch returns the work buffer primed with a copy of the committed state.
// Nothing written to it is visible until Commit.
func (p *Pool) Scratch() []dynamo.Particle {
	copy(p.scratch, p.current)
	return p.scratch
}

// Commit makes the scratch buffer the committed state.
func (p *Pool) Commit() {
	p.current, p.scratch = p.scratch, p.current
}

func (p *Pool) Materials() []dynamo.Material { return p.materials }

func (p *Pool) Material(i int) dynamo.Material { return p.materials[i] }

// Spacing is the lattice spacing particles were placed at.
func (p *Pool) Spacing() float64 { return p.spacing }

// FullSupport is the neighbor count of a particle inside an undisturbed
// lattice; particles with fewer neighbors sit near a free surface.
func (p *Pool) FullSupport() int { return p.fullSupport }

// MaterialMass is the per-particle mass of material i.
func (p *Pool) MaterialMass(i int) float64 { return p.masses[i] }

func (p *Pool) TotalMass() float64 {
	total := 0.0
	for _, q := range p.current {
		total += q.Mass
	}
	return total
}

// Counts returns the number of particles per material.
func (p *Pool) Counts() []int {
	counts := make([]int, len(p.materials))
	for _, q := range p.current {
		counts[q.Material]++
	}
	return counts
}

// Positions appends every committed position to dst.
func (p *Pool) Positions(dst []r3.Vec) []r3.Vec {
	dst = dst[:0]
	for _, q := range p.current {
		dst = append(dst, q.Position)
	}
	return dst
}
