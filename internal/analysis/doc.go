// Package analysis turns recorded state changes into kinetic statistics.
//
// The package includes:
//
//   - [DwellTimes]: how long the heads stayed in a state before leaving it
//   - [EmpiricalRates]: transitions per second spent in their start state
//   - [KSDistance] and [KSExponential]: Kolmogorov-Smirnov distances for
//     comparing dwell distributions with each other or with a rate
//   - [PowerSpectrum]: spectrum of a sampled signal such as hips velocity
//
// # Comparing playback modes
//
// A dwell distribution from cached playback should be exponential with the
// summed exit rate of the state:
//
//	d := analysis.DwellTimes(res.Events, motor.BoundATP)
//	if analysis.KSExponential(d, 250) > analysis.KSCritical(len(d), 0, 0.001) {
//	    // not exponential at that rate
//	}
package analysis
