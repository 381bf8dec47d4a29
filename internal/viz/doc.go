// Package viz renders run telemetry in the terminal.
//
// The live view is a Bubble Tea program stepping a controller between
// frames:
//
//   - a Braille scatter of the particles seen along the rotation axis
//   - the kinetic energy history plotted with asciigraph
//   - density deviation, convergence trend and iteration progress
//   - once finalized, a slice of the material field through the centre
//
// # Key Bindings
//
//	Space - Pause/Resume
//	+/-   - More/fewer steps per frame
//	T     - Cycle color themes
//	S     - Toggle the field slice
//	Q     - Quit
package viz
