package sim

import (
	"github.com/san-kum/fgmsim/internal/blend"
	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/forces"
)

// Observer receives the telemetry of every committed step. Observers run
// synchronously on the stepping goroutine.
type Observer interface {
	OnStep(t dynamo.Telemetry)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(t dynamo.Telemetry)

func (f ObserverFunc) OnStep(t dynamo.Telemetry) { f(t) }

type Convergence struct {
	Converged bool
	Metric    float64
	Reason    string
}

const (
	ReasonSettled       = "kinetic energy settled"
	ReasonIterationCap  = "iteration cap reached"
	ReasonInsufficient  = "energy window not yet full"
	ReasonStillChanging = "kinetic energy still changing"
)

type Result struct {
	Field         *blend.Field
	Converged     bool
	Iterations    int
	EnergyHistory []float64
	Reason        string
}

type Option func(*Controller)

// WithExternalField adds a force evaluated for every particle on every step.
func WithExternalField(f forces.ExternalField) Option {
	return func(c *Controller) { c.external = f }
}

func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}
