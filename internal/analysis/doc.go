// Package analysis looks at the frequency content of closed-loop signals.
//
// A well-tuned tracker steers smoothly; weights that are too aggressive, or
// latency the controller does not compensate, show up as a sharp peak in
// the steering spectrum:
//
//	spec := analysis.NewSpectrum(steers, cycle.Seconds())
//	if f, p := spec.Dominant(); p > 0.5 {
//	    // steering oscillates at f Hz
//	}
package analysis
