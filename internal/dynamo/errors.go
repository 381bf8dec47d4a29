package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrConfiguration indicates invalid parameters passed to Initialize.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrNumericalDivergence indicates non-finite or runaway values during a step.
	ErrNumericalDivergence = errors.New("dynamo: numerical divergence")

	// ErrInvalidTransition indicates an operation not valid in the current state.
	ErrInvalidTransition = errors.New("dynamo: invalid state transition")

	// ErrCanceled indicates the run was interrupted by its context.
	ErrCanceled = errors.New("dynamo: simulation canceled by context")
)

// ConfigError names the offending field of a rejected configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

func Invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type TransitionError struct {
	Op   string
	From RunState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s not allowed from %s", ErrInvalidTransition, e.Op, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// DivergenceError carries the diagnostic context of a failed step.
type DivergenceError struct {
	Iteration int
	Particle  int
	Quantity  string
	Value     float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("%s: iteration %d particle %d: %s = %g",
		ErrNumericalDivergence, e.Iteration, e.Particle, e.Quantity, e.Value)
}

func (e *DivergenceError) Unwrap() error { return ErrNumericalDivergence }
