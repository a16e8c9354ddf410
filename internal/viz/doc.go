// Package viz renders runs in the terminal.
//
// [Map] draws the track, the vehicle trail and the predicted horizon on a
// Braille [Canvas]. [Charts] turns a finished run into asciigraph plots, and
// [Live] is a Bubble Tea model that follows a running simulation.
//
// # Key Bindings
//
//	Space - Freeze/resume the display
//	P     - Toggle the predicted horizon
//	Q     - Quit
package viz
