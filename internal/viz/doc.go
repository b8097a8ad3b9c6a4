// Package viz is the terminal live view of a running kinesin.
//
// [Model] is a Bubble Tea model that feeds the measured wall time of every
// frame into the simulation, so the clock's adaptive step budget sees the
// real frame rate. The track, both heads and the hips are drawn on a Braille
// [Canvas] that follows the hips along the track.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Reset
//	Tab   - Cycle rate label
//	Up/K  - Raise selected rate by 10%
//	Down/J- Lower selected rate by 10%
//	+/-   - Time multiplier
//	T     - Cycle color themes
//	S     - Save the canvas as SVG
//	?     - Show help overlay
package viz
