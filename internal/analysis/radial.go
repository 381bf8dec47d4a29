package analysis

import (
	"math"
	"sort"

	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/forces"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

type MaterialProfile struct {
	Material int
	Count    int
	Mass     float64
	Mean     float64
	Std      float64
}

func radius(p dynamo.Particle, axis, center r3.Vec) float64 {
	return r3.Norm(forces.RadialOffset(p.Position, axis, center))
}

// RadialProfile returns one entry per material index. Materials without
// particles have Count 0 and NaN statistics.
func RadialProfile(ps []dynamo.Particle, materials int, axis, center r3.Vec) []MaterialProfile {
	axis = r3.Unit(axis)
	radii := make([][]float64, materials)
	out := make([]MaterialProfile, materials)
	for _, p := range ps {
		radii[p.Material] = append(radii[p.Material], radius(p, axis, center))
		out[p.Material].Mass += p.Mass
	}

	for k := range out {
		out[k].Material = k
		out[k].Count = len(radii[k])
		switch len(radii[k]) {
		case 0:
			out[k].Mean, out[k].Std = math.NaN(), math.NaN()
		case 1:
			out[k].Mean = radii[k][0]
		default:
			out[k].Mean, out[k].Std = stat.MeanStdDev(radii[k], nil)
		}
	}
	return out
}

// StratificationIndex is the particle-count weighted correlation between the
// rest density of each material and its mean radius, in [-1, 1]. It is 0
// when fewer than two materials are present or their densities are equal.
func StratificationIndex(profiles []MaterialProfile, materials []dynamo.Material) float64 {
	var rho, mean, weight []float64
	for _, p := range profiles {
		if p.Count == 0 {
			continue
		}
		rho = append(rho, materials[p.Material].RestDensity)
		mean = append(mean, p.Mean)
		weight = append(weight, float64(p.Count))
	}
	if len(rho) < 2 {
		return 0
	}
	c := stat.Correlation(rho, mean, weight)
	if math.IsNaN(c) {
		return 0
	}
	return c
}

// ShellFractions bins particles into shells of equal width between the axis
// and reach and returns, per shell, the mass fraction of every material.
// Empty shells are all zero.
func ShellFractions(ps []dynamo.Particle, materials int, axis, center r3.Vec, shells int, reach float64) [][]float64 {
	axis = r3.Unit(axis)
	dividers := make([]float64, shells+1)
	floats.Span(dividers, 0, reach)
	// stat.Histogram excludes the last divider
	dividers[shells] = math.Nextafter(reach, math.Inf(1))

	type sample struct{ r, m float64 }
	byMaterial := make([][]sample, materials)
	for _, p := range ps {
		r := math.Min(radius(p, axis, center), reach)
		byMaterial[p.Material] = append(byMaterial[p.Material], sample{r, p.Mass})
	}

	out := make([][]float64, shells)
	for i := range out {
		out[i] = make([]float64, materials)
	}
	for k, samples := range byMaterial {
		if len(samples) == 0 {
			continue
		}
		sort.Slice(samples, func(a, b int) bool { return samples[a].r < samples[b].r })
		x := make([]float64, len(samples))
		w := make([]float64, len(samples))
		for i, s := range samples {
			x[i], w[i] = s.r, s.m
		}
		for i, m := range stat.Histogram(nil, dividers, x, w) {
			out[i][k] = m
		}
	}

	for _, shell := range out {
		if total := floats.Sum(shell); total > 0 {
			floats.Scale(1/total, shell)
		}
	}
	return out
}
