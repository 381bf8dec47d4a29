package dynamo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

type Material struct {
	ID          string
	RestDensity float64
	Stiffness   float64
	Gamma       float64
	Viscosity   float64
}

// SoundSpeed is the reference sound speed sqrt(B/rho0) used by the
// time step bound.
func (m Material) SoundSpeed() float64 {
	if m.RestDensity <= 0 {
		return 0
	}
	return math.Sqrt(m.Stiffness / m.RestDensity)
}

type Particle struct {
	Position     r3.Vec
	Velocity     r3.Vec
	Acceleration r3.Vec
	Mass         float64
	Density      float64
	Pressure     float64
	Material     int
	Neighbors    int
}

func (p Particle) KineticEnergy() float64 {
	return 0.5 * p.Mass * r3.Norm2(p.Velocity)
}

// Check reports the first non-finite quantity of the particle, or "" when
// every value is finite.
func (p Particle) Check() (string, float64) {
	switch {
	case !finiteVec(p.Position):
		return "position", badComponent(p.Position)
	case !finiteVec(p.Velocity):
		return "velocity", badComponent(p.Velocity)
	case !finite(p.Density):
		return "density", p.Density
	case !finite(p.Pressure):
		return "pressure", p.Pressure
	}
	return "", 0
}

type Domain struct {
	Bounds  r3.Box
	Damping float64
}

func (d Domain) Volume() float64 {
	s := d.Bounds.Size()
	return s.X * s.Y * s.Z
}

// Reach is the half diagonal of the box, an upper bound for the distance of
// any contained point from the box centre.
func (d Domain) Reach() float64 {
	return 0.5 * r3.Norm(d.Bounds.Size())
}

type Seed struct {
	Position r3.Vec
	Radius   float64
	Material int
	Strength float64
	// Roughness in [0,1) perturbs the seed surface with Perlin noise; the
	// local radius varies by up to that fraction.
	Roughness float64
}

func (s Seed) Volume() float64 {
	return 4.0 / 3.0 * math.Pi * s.Radius * s.Radius * s.Radius
}

type Params struct {
	ParticleCount int
	H             float64
	Dt            float64

	Omega  float64
	Axis   r3.Vec
	Center r3.Vec

	Tolerance     float64
	Window        int
	MaxIterations int

	Jitter   float64 // fraction of the lattice spacing
	RandSeed int64
	MaxSpeed float64 // 0 derives a limit from the material sound speeds
	Workers  int     // 0 uses runtime.NumCPU
}

func DefaultParams() Params {
	return Params{
		ParticleCount: 4000,
		H:             0.05,
		Dt:            0.001,
		Axis:          r3.Vec{Z: 1},
		Center:        r3.Vec{X: 0.5, Y: 0.5, Z: 0.5},
		Tolerance:     1e-3,
		Window:        20,
		MaxIterations: 2000,
	}
}

type RunState int

const (
	Uninitialized RunState = iota
	Initialized
	Running
	Converged
	Finalized
	Failed
)

func (s RunState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Converged:
		return "converged"
	case Finalized:
		return "finalized"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Telemetry is emitted after every committed step.
type Telemetry struct {
	Iteration           int
	KineticEnergy       float64
	ConvergenceMetric   float64
	ParticleCount       int
	MaxDensityDeviation float64
	State               RunState
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteVec(v r3.Vec) bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

func badComponent(v r3.Vec) float64 {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if !finite(c) {
			return c
		}
	}
	return 0
}
