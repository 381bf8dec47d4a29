// Package neighbors implements a uniform-grid spatial index over particle
// positions. The grid is rebuilt from scratch every step and never updated
// in place.
package neighbors

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MaxCells bounds the dense cell table of a grid; 1<<24 offsets take
// 128 MiB.
const MaxCells = 1 << 24

// CellCount is the number of cells NewGrid allocates for bounds, computed
// in floating point so that oversized boxes do not overflow int.
func CellCount(bounds r3.Box, cellSize float64) float64 {
	size := bounds.Size()
	n := 1.0
	for _, extent := range [3]float64{size.X, size.Y, size.Z} {
		n *= math.Max(1, math.Ceil(extent/cellSize))
	}
	return n
}

type Grid struct {
	bounds   r3.Box
	cellSize float64
	dims     [3]int

	positions []r3.Vec
	// counting-sort layout: particles of cell c are
	// order[cellStart[c]:cellStart[c+1]], in ascending index order
	cellStart []int
	order     []int
	cellOf    []int
}

// NewGrid covers bounds with cubic cells of edge cellSize. Positions outside
// the box are clamped into the border cells. Callers check CellCount against
// MaxCells first.
func NewGrid(bounds r3.Box, cellSize float64) *Grid {
	size := bounds.Size()
	g := &Grid{bounds: bounds, cellSize: cellSize}
	for a, extent := range [3]float64{size.X, size.Y, size.Z} {
		n := int(math.Ceil(extent / cellSize))
		if n < 1 {
			n = 1
		}
		g.dims[a] = n
	}
	g.cellStart = make([]int, g.dims[0]*g.dims[1]*g.dims[2]+1)
	return g
}

func (g *Grid) CellSize() float64 { return g.cellSize }

func (g *Grid) Dims() [3]int { return g.dims }

// Build indexes positions. The slice is retained until the next Build and
// must not be modified in between.
func (g *Grid) Build(positions []r3.Vec) {
	n := len(positions)
	g.positions = positions
	if cap(g.order) < n {
		g.order = make([]int, n)
		g.cellOf = make([]int, n)
	}
	g.order = g.order[:n]
	g.cellOf = g.cellOf[:n]

	for c := range g.cellStart {
		g.cellStart[c] = 0
	}
	for i, p := range positions {
		c := g.flat(g.cell(p))
		g.cellOf[i] = c
		g.cellStart[c+1]++
	}
	for c := 1; c < len(g.cellStart); c++ {
		g.cellStart[c] += g.cellStart[c-1]
	}

	fill := make([]int, len(g.cellStart)-1)
	for i := 0; i < n; i++ {
		c := g.cellOf[i]
		g.order[g.cellStart[c]+fill[c]] = i
		fill[c]++
	}
}

// Query appends to dst every particle j != i with |p_i - p_j| < radius.
func (g *Grid) Query(i int, radius float64, dst []int) []int {
	return g.collect(g.positions[i], radius, i, dst)
}

// QueryPoint appends every particle within radius of p.
func (g *Grid) QueryPoint(p r3.Vec, radius float64, dst []int) []int {
	return g.collect(p, radius, -1, dst)
}

func (g *Grid) collect(p r3.Vec, radius float64, skip int, dst []int) []int {
	if radius <= 0 || len(g.positions) == 0 {
		return dst
	}
	r2 := radius * radius
	lo := g.cell(r3.Sub(p, r3.Vec{X: radius, Y: radius, Z: radius}))
	hi := g.cell(r3.Add(p, r3.Vec{X: radius, Y: radius, Z: radius}))

	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				c := g.flat([3]int{x, y, z})
				for _, j := range g.order[g.cellStart[c]:g.cellStart[c+1]] {
					if j == skip {
						continue
					}
					if r3.Norm2(r3.Sub(p, g.positions[j])) < r2 {
						dst = append(dst, j)
					}
				}
			}
		}
	}
	return dst
}

func (g *Grid) cell(p r3.Vec) [3]int {
	rel := r3.Sub(p, g.bounds.Min)
	var c [3]int
	for a, v := range [3]float64{rel.X, rel.Y, rel.Z} {
		k := int(math.Floor(v / g.cellSize))
		if k < 0 {
			k = 0
		}
		if k >= g.dims[a] {
			k = g.dims[a] - 1
		}
		c[a] = k
	}
	return c
}

func (g *Grid) flat(c [3]int) int {
	return (c[2]*g.dims[1]+c[1])*g.dims[0] + c[0]
}
