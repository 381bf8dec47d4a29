// Package blend turns the final particle state into a sampled material
// field: per-cell volume fractions of every material, the dominant material
// and the properties interpolated from the mix.
package blend

import (
	"math"

	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/kernels"
	"github.com/san-kum/fgmsim/internal/neighbors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Cell is one sample of the field.
type Cell struct {
	// Concentration holds the volume fraction of every material. It sums to
	// one on covered cells and is all zero on empty ones.
	Concentration []float64
	// Dominant is the material with the largest fraction, or -1 when no
	// particle reaches the cell.
	Dominant int

	Density     float64
	RestDensity float64
	Stiffness   float64
	Viscosity   float64
}

func (c Cell) Empty() bool { return c.Dominant < 0 }

// MaterialVolume summarizes how much of the domain one material occupies.
type MaterialVolume struct {
	Material       string
	Mass           float64
	ParticleVolume float64 // sum of m/rho over the material's particles
	CellVolume     float64 // volume of the cells it dominates
	Cells          int
}

type Field struct {
	Resolution [3]int
	Bounds     r3.Box
	Materials  []string
	Cells      []Cell
	Volumes    []MaterialVolume
}

// Rasterize samples the particles at the centres of a res[0]×res[1]×res[2]
// grid over the domain using the Wendland kernel of radius h.
func Rasterize(ps []dynamo.Particle, materials []dynamo.Material, domain dynamo.Domain, h float64, res [3]int) (*Field, error) {
	for a, n := range res {
		if n < 1 {
			return nil, dynamo.Invalid("resolution", "axis %d has %d cells", a, n)
		}
	}
	if !(h > 0) {
		return nil, dynamo.Invalid("h", "must be positive, got %g", h)
	}
	if len(materials) == 0 {
		return nil, dynamo.Invalid("materials", "at least one material is required")
	}
	if n := neighbors.CellCount(domain.Bounds, h); n > neighbors.MaxCells {
		return nil, dynamo.Invalid("h", "%g over domain %v needs %.3g grid cells, limit %d", h, domain.Bounds.Size(), n, neighbors.MaxCells)
	}

	f := &Field{
		Resolution: res,
		Bounds:     domain.Bounds,
		Materials:  make([]string, len(materials)),
		Cells:      make([]Cell, res[0]*res[1]*res[2]),
	}
	for i, m := range materials {
		f.Materials[i] = m.ID
	}

	positions := make([]r3.Vec, len(ps))
	for i, p := range ps {
		positions[i] = p.Position
	}
	grid := neighbors.NewGrid(domain.Bounds, h)
	grid.Build(positions)

	nm := len(materials)
	backing := make([]float64, len(f.Cells)*nm)

	dynamo.ParallelFor(len(f.Cells), 64, 0, func(start, end int) {
		var near []int
		for c := start; c < end; c++ {
			conc := backing[c*nm : (c+1)*nm : (c+1)*nm]
			centre := f.Center(f.coords(c))
			near = grid.QueryPoint(centre, h, near[:0])
			f.Cells[c] = sample(ps, materials, near, centre, h, conc)
		}
	})

	f.Volumes = summarize(f, ps, materials)
	return f, nil
}

func sample(ps []dynamo.Particle, materials []dynamo.Material, near []int, centre r3.Vec, h float64, conc []float64) Cell {
	cell := Cell{Concentration: conc, Dominant: -1}
	for _, j := range near {
		p := ps[j]
		w := kernels.Wendland(r3.Norm(r3.Sub(centre, p.Position)), h)
		cell.Density += p.Mass * w
		conc[p.Material] += p.Mass / p.Density * w
	}

	total := floats.Sum(conc)
	if total <= 0 {
		return cell
	}
	floats.Scale(1/total, conc)
	cell.Dominant = floats.MaxIdx(conc)
	for k, m := range materials {
		cell.RestDensity += conc[k] * m.RestDensity
		cell.Stiffness += conc[k] * m.Stiffness
		cell.Viscosity += conc[k] * m.Viscosity
	}
	return cell
}

func summarize(f *Field, ps []dynamo.Particle, materials []dynamo.Material) []MaterialVolume {
	vols := make([]MaterialVolume, len(materials))
	for i, m := range materials {
		vols[i].Material = m.ID
	}
	for _, p := range ps {
		vols[p.Material].Mass += p.Mass
		vols[p.Material].ParticleVolume += p.Mass / p.Density
	}

	cellVol := f.CellVolume()
	for _, c := range f.Cells {
		if !c.Empty() {
			vols[c.Dominant].Cells++
			vols[c.Dominant].CellVolume += cellVol
		}
	}
	return vols
}

func (f *Field) CellSize() r3.Vec {
	s := f.Bounds.Size()
	return r3.Vec{
		X: s.X / float64(f.Resolution[0]),
		Y: s.Y / float64(f.Resolution[1]),
		Z: s.Z / float64(f.Resolution[2]),
	}
}

func (f *Field) CellVolume() float64 {
	s := f.CellSize()
	return s.X * s.Y * s.Z
}

func (f *Field) Index(ix, iy, iz int) int {
	return (iz*f.Resolution[1]+iy)*f.Resolution[0] + ix
}

func (f *Field) coords(i int) (ix, iy, iz int) {
	ix = i % f.Resolution[0]
	iy = (i / f.Resolution[0]) % f.Resolution[1]
	iz = i / (f.Resolution[0] * f.Resolution[1])
	return ix, iy, iz
}

// Center is the position of the sample point of cell (ix, iy, iz).
func (f *Field) Center(ix, iy, iz int) r3.Vec {
	s := f.CellSize()
	return r3.Vec{
		X: f.Bounds.Min.X + (float64(ix)+0.5)*s.X,
		Y: f.Bounds.Min.Y + (float64(iy)+0.5)*s.Y,
		Z: f.Bounds.Min.Z + (float64(iz)+0.5)*s.Z,
	}
}

func (f *Field) At(ix, iy, iz int) Cell {
	return f.Cells[f.Index(ix, iy, iz)]
}

// Slice returns the plane of cells with the given index along axis (0=x,
// 1=y, 2=z), rows running along the next axis in cyclic order. It is nil
// when axis or index is out of range.
func (f *Field) Slice(axis, index int) [][]Cell {
	if axis < 0 || axis > 2 || index < 0 || index >= f.Resolution[axis] {
		return nil
	}
	u, v := (axis+1)%3, (axis+2)%3
	rows := make([][]Cell, f.Resolution[v])
	for j := range rows {
		rows[j] = make([]Cell, f.Resolution[u])
		for i := range rows[j] {
			var c [3]int
			c[axis], c[u], c[v] = index, i, j
			rows[j][i] = f.At(c[0], c[1], c[2])
		}
	}
	return rows
}

// Coverage is the fraction of cells reached by at least one particle.
func (f *Field) Coverage() float64 {
	if len(f.Cells) == 0 {
		return 0
	}
	covered := 0
	for _, c := range f.Cells {
		if !c.Empty() {
			covered++
		}
	}
	return float64(covered) / float64(len(f.Cells))
}

// Gradient is the mean concentration of material k in each layer along
// axis, the profile a graded part is judged by. It is nil for an unknown
// material or axis.
func (f *Field) Gradient(k, axis int) []float64 {
	if k < 0 || k >= len(f.Materials) || axis < 0 || axis > 2 {
		return nil
	}
	out := make([]float64, f.Resolution[axis])
	counts := make([]int, f.Resolution[axis])
	for i, c := range f.Cells {
		if c.Empty() {
			continue
		}
		ix, iy, iz := f.coords(i)
		layer := [3]int{ix, iy, iz}[axis]
		out[layer] += c.Concentration[k]
		counts[layer]++
	}
	for i, n := range counts {
		if n > 0 {
			out[i] /= float64(n)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}
