// Package metrics derives scalar run quantities from particle state and
// telemetry.
package metrics

import (
	"math"

	"github.com/san-kum/fgmsim/internal/dynamo"
	"gonum.org/v1/gonum/stat"
)

// EnergyFloor bounds the trend normalization for a system at rest.
const EnergyFloor = 1e-12

func KineticEnergy(ps []dynamo.Particle) float64 {
	total := 0.0
	for _, p := range ps {
		total += p.KineticEnergy()
	}
	return total
}

// EnergyTrend is the relative rate of change of the kinetic energy over the
// last window samples: the least squares slope per iteration divided by the
// mean energy of the window. ok is false until window samples exist.
func EnergyTrend(samples []float64, window int) (trend float64, ok bool) {
	if window < 2 || len(samples) < window {
		return math.Inf(1), false
	}
	y := samples[len(samples)-window:]
	x := make([]float64, window)
	for i := range x {
		x[i] = float64(i)
	}

	_, slope := stat.LinearRegression(x, y, nil, false)
	mean := stat.Mean(y, nil)
	return math.Abs(slope) / math.Max(mean, EnergyFloor), true
}

// DensityDeviation is the largest |rho/rho0 - 1| over particles with at
// least fullSupport neighbors. Particles near a free surface are skipped
// since their kernel sum is truncated.
func DensityDeviation(ps []dynamo.Particle, materials []dynamo.Material, fullSupport int) float64 {
	worst := 0.0
	for _, p := range ps {
		if p.Neighbors < fullSupport {
			continue
		}
		rho0 := materials[p.Material].RestDensity
		worst = math.Max(worst, math.Abs(p.Density/rho0-1))
	}
	return worst
}

// Metric accumulates one scalar over the telemetry of a run.
type Metric interface {
	Name() string
	Observe(t dynamo.Telemetry)
	Value() float64
	Reset()
}

// PeakEnergy is the largest kinetic energy seen.
type PeakEnergy struct {
	peak float64
}

func NewPeakEnergy() *PeakEnergy { return &PeakEnergy{} }

func (e *PeakEnergy) Name() string { return "peak_energy" }

func (e *PeakEnergy) Observe(t dynamo.Telemetry) {
	e.peak = math.Max(e.peak, t.KineticEnergy)
}

func (e *PeakEnergy) Value() float64 { return e.peak }

func (e *PeakEnergy) Reset() { e.peak = 0 }

// EnergyDecay is the ratio of the latest kinetic energy to the peak, 1 for
// a run that never settles and close to 0 for one that has come to rest.
type EnergyDecay struct {
	peak, last float64
}

func NewEnergyDecay() *EnergyDecay { return &EnergyDecay{} }

func (e *EnergyDecay) Name() string { return "energy_decay" }

func (e *EnergyDecay) Observe(t dynamo.Telemetry) {
	e.last = t.KineticEnergy
	e.peak = math.Max(e.peak, t.KineticEnergy)
}

func (e *EnergyDecay) Value() float64 {
	if e.peak == 0 {
		return 0
	}
	return e.last / e.peak
}

func (e *EnergyDecay) Reset() {
	e.peak = 0
	e.last = 0
}
