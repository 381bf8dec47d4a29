// Package dynamo provides the shared primitives of the blending engine.
//
// The package defines the data model every stage passes by reference:
//
//   - [Material]: immutable equation-of-state and viscosity parameters
//   - [Particle]: position, velocity, mass and derived density/pressure
//   - [Domain]: axis-aligned bounding box with wall damping
//   - [Seed]: initial placement of one material
//   - [Params]: run parameters (h, dt, rotation, convergence)
//
// Errors are reported through the sentinels in errors.go; callers match them
// with errors.Is and extract context with errors.As:
//
//	var div *dynamo.DivergenceError
//	if errors.As(err, &div) {
//	    fmt.Println(div.Iteration, div.Particle, div.Quantity)
//	}
//
// # Thread Safety
//
// Nothing in this package holds mutable state. [ParallelFor] is the only
// place that starts goroutines and it joins them before returning.
package dynamo
