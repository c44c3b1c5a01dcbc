package analysis

import (
	"errors"
	"math"
)

// StepResponse summarizes how a tracking-error series decays.
type StepResponse struct {
	Initial float64
	Final   float64
	Peak    float64
	// PeakTime is when Peak was reached.
	PeakTime float64

	// Settled reports whether the series entered the band and stayed in
	// it; SettlingTime is only meaningful when it did.
	Settled      bool
	SettlingTime float64
}

// Step analyzes an error-norm series against a settling band of
// band*Initial (or band itself when the initial error is zero). times may
// be longer than errs, as with stored samples where the last time has no
// tick.
func Step(times, errs []float64, band float64) (*StepResponse, error) {
	if len(errs) == 0 {
		return nil, errors.New("step response needs at least one sample")
	}
	if len(times) < len(errs) {
		return nil, errors.New("step response needs a time for every sample")
	}
	if band <= 0 {
		return nil, errors.New("settling band must be positive")
	}
	for _, e := range errs {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return nil, errors.New("error series is not finite")
		}
	}

	r := &StepResponse{Initial: errs[0], Final: errs[len(errs)-1]}
	for i, e := range errs {
		if e > r.Peak {
			r.Peak, r.PeakTime = e, times[i]
		}
	}

	tol := band * r.Initial
	if r.Initial == 0 {
		tol = band
	}
	last := -1
	for i := len(errs) - 1; i >= 0; i-- {
		if errs[i] > tol {
			last = i
			break
		}
	}
	switch {
	case last == len(errs)-1:
	case last < 0:
		r.Settled, r.SettlingTime = true, times[0]
	default:
		r.Settled, r.SettlingTime = true, times[last+1]
	}
	return r, nil
}
