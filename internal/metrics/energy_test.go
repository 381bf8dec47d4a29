package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/fgmsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestKineticEnergy(t *testing.T) {
	ps := []dynamo.Particle{
		{Mass: 2, Velocity: r3.Vec{X: 1}},
		{Mass: 1, Velocity: r3.Vec{Y: 2, Z: 2}},
	}
	if got := KineticEnergy(ps); math.Abs(got-5) > 1e-12 {
		t.Errorf("KineticEnergy = %v, want 5", got)
	}
}

func TestEnergyTrend(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		window  int
		want    float64
		wantOK  bool
	}{
		{"short", []float64{1, 2}, 5, math.Inf(1), false},
		{"flat", []float64{9, 3, 3, 3, 3}, 4, 0, true},
		{"rest", []float64{0, 0, 0, 0}, 4, 0, true},
		// slope -1 around mean 2.5
		{"decaying", []float64{4, 3, 2, 1}, 4, 0.4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EnergyTrend(tt.samples, tt.window)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if math.IsInf(tt.want, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("trend = %v, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("trend = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDensityDeviationSkipsSurface(t *testing.T) {
	mats := []dynamo.Material{{RestDensity: 2}}
	ps := []dynamo.Particle{
		{Density: 2.1, Neighbors: 30},
		{Density: 1.0, Neighbors: 5},
		{Density: 1.9, Neighbors: 26},
	}
	if got := DensityDeviation(ps, mats, 26); math.Abs(got-0.05) > 1e-12 {
		t.Errorf("DensityDeviation = %v, want 0.05", got)
	}
	if got := DensityDeviation(ps, mats, 0); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("DensityDeviation over all = %v, want 0.5", got)
	}
}

func TestTelemetryMetrics(t *testing.T) {
	series := []dynamo.Telemetry{
		{KineticEnergy: 1, MaxDensityDeviation: 0.01},
		{KineticEnergy: 4, MaxDensityDeviation: 0.10},
		{KineticEnergy: 2, MaxDensityDeviation: 0.02},
		{KineticEnergy: 1, MaxDensityDeviation: 0.03},
	}

	peak, decay, stab := NewPeakEnergy(), NewEnergyDecay(), NewStability(0.05)
	for _, tm := range series {
		for _, m := range []Metric{peak, decay, stab} {
			m.Observe(tm)
		}
	}

	if peak.Value() != 4 {
		t.Errorf("peak = %v, want 4", peak.Value())
	}
	if decay.Value() != 0.25 {
		t.Errorf("decay = %v, want 0.25", decay.Value())
	}
	if stab.Value() != 0.75 {
		t.Errorf("stability = %v, want 0.75", stab.Value())
	}

	for _, m := range []Metric{peak, decay} {
		m.Reset()
		if m.Value() != 0 {
			t.Errorf("%s not cleared by Reset", m.Name())
		}
	}
	stab.Reset()
	if stab.Value() != 1 {
		t.Errorf("stability after reset = %v, want 1", stab.Value())
	}
}
