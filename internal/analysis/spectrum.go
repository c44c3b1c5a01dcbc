package analysis

import (
	"errors"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// PowerSpectrum is a one-sided spectrum; Freqs are in Hz.
type PowerSpectrum struct {
	Freqs []float64
	Power []float64
}

// Spectrum computes the power spectrum of data sampled every dt seconds.
// The mean is removed first so a constant offset does not mask the
// oscillatory content.
func Spectrum(data []float64, dt float64) (*PowerSpectrum, error) {
	if len(data) < 4 {
		return nil, errors.New("spectrum needs at least 4 samples")
	}
	if dt <= 0 {
		return nil, errors.New("spectrum needs a positive sample period")
	}

	mean := stat.Mean(data, nil)
	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	fft := fourier.NewFFT(len(centered))
	coeff := fft.Coefficients(nil, centered)
	n := float64(len(centered))
	sp := &PowerSpectrum{
		Freqs: make([]float64, len(coeff)),
		Power: make([]float64, len(coeff)),
	}
	for i, c := range coeff {
		sp.Freqs[i] = fft.Freq(i) / dt
		a := cmplx.Abs(c)
		sp.Power[i] = a * a / n
	}
	return sp, nil
}

// Dominant returns the frequency with the most power, excluding DC. It is
// 0 when the series carried no oscillatory content at all.
func (s *PowerSpectrum) Dominant() float64 {
	best, at := 0.0, 0
	for i := 1; i < len(s.Power); i++ {
		if s.Power[i] > best {
			best, at = s.Power[i], i
		}
	}
	if at == 0 {
		return 0
	}
	return s.Freqs[at]
}
