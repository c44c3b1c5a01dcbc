// Package analysis characterizes recorded runs.
//
// It works on plain sample series, as read back from storage, so it can be
// applied to any stored run without rebuilding the plant:
//
//   - [Step]: settling time, peak and residual of a tracking-error series
//   - [Spectrum]: one-sided power spectrum of a uniformly sampled series
//   - [PhasePortrait]: ASCII plot of one series against another
//
// # Oscillation
//
// A well-tuned task-space loop shows no spectral peak away from zero
// frequency. A dominant frequency that persists across gains usually means
// the damping gain is too low for the sampling period:
//
//	sp, err := analysis.Spectrum(errs, dt)
//	if err == nil && sp.Dominant() > 0 {
//	    // ringing at sp.Dominant() Hz
//	}
package analysis
