// Package kernels holds the fixed set of SPH smoothing kernels.
//
// Each kernel has one job: Poly6 accumulates density, SpikyGrad drives the
// pressure force, ViscosityLaplacian diffuses velocity and Wendland blends
// the final particle state into a field. All of them vanish for r >= h.
package kernels

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Wendland is the 3D Wendland C2 kernel, normalized to unit integral over R³.
func Wendland(r, h float64) float64 {
	if r < 0 || r >= h {
		return 0
	}
	q := r / h
	a := 1 - q
	return 21.0 / (2.0 * math.Pi * h * h * h) * a * a * a * a * (1 + 4*q)
}

func Poly6(r, h float64) float64 {
	if r < 0 || r >= h {
		return 0
	}
	h2 := h * h
	d := h2 - r*r
	return 315.0 / (64.0 * math.Pi * math.Pow(h, 9)) * d * d * d
}

// SpikyGrad returns the gradient of the spiky kernel with respect to the
// first particle, for separation d = pi - pj. It points from j towards i
// scaled by a negative coefficient, so -SpikyGrad pushes i away from j.
// Coincident particles have no defined direction and get the zero vector.
func SpikyGrad(d r3.Vec, h float64) r3.Vec {
	r := r3.Norm(d)
	if r <= 0 || r >= h {
		return r3.Vec{}
	}
	a := h - r
	coeff := -45.0 / (math.Pi * math.Pow(h, 6)) * a * a
	return r3.Scale(coeff/r, d)
}

func ViscosityLaplacian(r, h float64) float64 {
	if r < 0 || r >= h {
		return 0
	}
	return 45.0 / (math.Pi * math.Pow(h, 6)) * (h - r)
}

// LatticeSum is the Poly6 density sum seen by a site of an infinite simple
// cubic lattice with the given spacing, self contribution included.
// Dividing a rest density by it yields the particle mass for which such a
// lattice sits exactly at that density.
func LatticeSum(spacing, h float64) float64 {
	sum := 0.0
	forLattice(spacing, h, func(r float64) {
		sum += Poly6(r, h)
	})
	return sum
}

// LatticeNeighbors counts the lattice sites strictly inside the support
// radius, excluding the centre site. Sites within rounding distance of the
// support edge are not counted, so a real lattice never falls short of it.
func LatticeNeighbors(spacing, h float64) int {
	count := 0
	edge := h * (1 - 1e-9)
	forLattice(spacing, h, func(r float64) {
		if r > 0 && r < edge {
			count++
		}
	})
	return count
}

func forLattice(spacing, h float64, fn func(r float64)) {
	if spacing <= 0 || h <= 0 {
		return
	}
	n := int(math.Ceil(h / spacing))
	for i := -n; i <= n; i++ {
		for j := -n; j <= n; j++ {
			for k := -n; k <= n; k++ {
				r := spacing * math.Sqrt(float64(i*i+j*j+k*k))
				if r < h {
					fn(r)
				}
			}
		}
	}
}
