package metrics

import "github.com/san-kum/fgmsim/internal/dynamo"

// Stability is the fraction of steps whose density deviation stayed within
// threshold.
type Stability struct {
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold}
}

func (s *Stability) Name() string { return "density_stability" }

func (s *Stability) Observe(t dynamo.Telemetry) {
	s.samples++
	if t.MaxDensityDeviation > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Defaults is the metric set recorded for every stored run.
func Defaults() []Metric {
	return []Metric{NewPeakEnergy(), NewEnergyDecay(), NewStability(0.05)}
}
