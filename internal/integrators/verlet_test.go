package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/fgmsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

var box = dynamo.Domain{Bounds: r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}}, Damping: 0.5}

func TestVerletConstantAcceleration(t *testing.T) {
	g := r3.Vec{Z: -9.81}
	gravity := func(ps []dynamo.Particle) {
		for i := range ps {
			ps[i].Acceleration = g
		}
	}

	ps := []dynamo.Particle{{
		Position:     r3.Vec{X: 0.5, Y: 0.5, Z: 0.9},
		Velocity:     r3.Vec{X: 0.1},
		Acceleration: g,
		Mass:         1,
	}}
	integ := NewVerlet(box, 1)

	dt := 0.001
	steps := 100
	for i := 0; i < steps; i++ {
		integ.Step(ps, dt, gravity)
	}

	tt := float64(steps) * dt
	wantPos := r3.Vec{X: 0.5 + 0.1*tt, Y: 0.5, Z: 0.9 - 0.5*9.81*tt*tt}
	wantVel := r3.Vec{X: 0.1, Z: -9.81 * tt}

	if d := r3.Norm(r3.Sub(ps[0].Position, wantPos)); d > 1e-12 {
		t.Errorf("position = %v, want %v", ps[0].Position, wantPos)
	}
	if d := r3.Norm(r3.Sub(ps[0].Velocity, wantVel)); d > 1e-12 {
		t.Errorf("velocity = %v, want %v", ps[0].Velocity, wantVel)
	}
}

func TestVerletOscillatorEnergy(t *testing.T) {
	centre := r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	spring := func(ps []dynamo.Particle) {
		for i := range ps {
			ps[i].Acceleration = r3.Scale(-1, r3.Sub(ps[i].Position, centre))
		}
	}

	ps := []dynamo.Particle{{Position: r3.Vec{X: 0.6, Y: 0.5, Z: 0.5}, Mass: 1}}
	spring(ps)
	energy := func() float64 {
		return ps[0].KineticEnergy() + 0.5*r3.Norm2(r3.Sub(ps[0].Position, centre))
	}
	e0 := energy()

	integ := NewVerlet(box, 1)
	for i := 0; i < 10000; i++ {
		integ.Step(ps, 0.01, spring)
	}

	if drift := math.Abs(energy()-e0) / e0; drift > 1e-4 {
		t.Errorf("energy drift %.2e too large", drift)
	}
}

func TestReflect(t *testing.T) {
	tests := []struct {
		name   string
		pos    r3.Vec
		vel    r3.Vec
		wantX  float64
		wantVX float64
	}{
		{"inside", r3.Vec{X: 0.3}, r3.Vec{X: -1}, 0.3, -1},
		{"below min", r3.Vec{X: -0.01}, r3.Vec{X: -2}, 0.01, 1},
		{"above max", r3.Vec{X: 1.02}, r3.Vec{X: 4}, 0.98, -2},
		{"already returning", r3.Vec{X: -0.01}, r3.Vec{X: 1}, 0.01, 1},
		{"beyond full width", r3.Vec{X: 2.5}, r3.Vec{X: 1}, 0, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := dynamo.Particle{Position: tt.pos, Velocity: tt.vel}
			p.Position.Y, p.Position.Z = 0.5, 0.5
			Reflect(&p, box)

			if math.Abs(p.Position.X-tt.wantX) > 1e-12 {
				t.Errorf("x = %v, want %v", p.Position.X, tt.wantX)
			}
			if math.Abs(p.Velocity.X-tt.wantVX) > 1e-12 {
				t.Errorf("vx = %v, want %v", p.Velocity.X, tt.wantVX)
			}
			if !box.Bounds.Contains(p.Position) {
				t.Errorf("position %v left the domain", p.Position)
			}
		})
	}
}

func TestStepKeepsParticlesInside(t *testing.T) {
	push := func(ps []dynamo.Particle) {
		for i := range ps {
			ps[i].Acceleration = r3.Vec{X: 50, Y: -50, Z: 50}
		}
	}

	ps := []dynamo.Particle{
		{Position: r3.Vec{X: 0.99, Y: 0.01, Z: 0.5}, Velocity: r3.Vec{X: 3, Y: -3}},
		{Position: r3.Vec{X: 0.5, Y: 0.5, Z: 0.999}, Velocity: r3.Vec{Z: 10}},
	}
	push(ps)
	integ := NewVerlet(box, 2)
	for i := 0; i < 200; i++ {
		integ.Step(ps, 0.002, push)
		for j, p := range ps {
			if !box.Bounds.Contains(p.Position) {
				t.Fatalf("step %d: particle %d at %v left the domain", i, j, p.Position)
			}
		}
	}
}

func TestStableDt(t *testing.T) {
	steel := dynamo.Material{RestDensity: 7.8, Stiffness: 2000, Gamma: 7}
	honey := dynamo.Material{RestDensity: 1, Stiffness: 1, Gamma: 7, Viscosity: 50}

	tests := []struct {
		name      string
		materials []dynamo.Material
		omega     float64
		want      float64
	}{
		{"acoustic", []dynamo.Material{steel}, 0, 0.4 * 0.05 / math.Sqrt(2000/7.8)},
		{"viscous", []dynamo.Material{honey}, 0, 0.125 * 0.05 * 0.05 / 50},
		{"rotation", []dynamo.Material{{RestDensity: 1, Stiffness: 1e-6}}, 100, 0.25 * math.Sqrt(0.05/(1e4*0.5))},
		{"unconstrained", nil, 0, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StableDt(tt.materials, 0.05, tt.omega, 0.5)
			if math.IsInf(tt.want, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("StableDt = %v, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-12*tt.want {
				t.Errorf("StableDt = %v, want %v", got, tt.want)
			}
		})
	}
}
