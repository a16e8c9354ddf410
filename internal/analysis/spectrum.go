package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrum is the one-sided amplitude spectrum of a uniformly sampled,
// mean-removed signal.
type Spectrum struct {
	// Freqs[i] is the frequency in Hz of Amps[i].
	Freqs []float64
	Amps  []float64

	n int
}

func NewSpectrum(data []float64, dt float64) Spectrum {
	n := len(data)
	if n < 2 || dt <= 0 {
		return Spectrum{}
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)

	centred := make([]float64, n)
	for i, v := range data {
		centred[i] = v - mean
	}

	coeffs := fft.FFTReal(centred)
	half := n/2 + 1
	s := Spectrum{Freqs: make([]float64, half), Amps: make([]float64, half), n: n}
	for k := 0; k < half; k++ {
		s.Freqs[k] = float64(k) / (float64(n) * dt)
		amp := cmplx.Abs(coeffs[k]) / float64(n)
		if k != 0 && !(n%2 == 0 && k == n/2) {
			amp *= 2
		}
		s.Amps[k] = amp
	}
	return s
}

// Dominant returns the strongest non-DC frequency and the fraction of the
// spectral energy it holds.
func (s Spectrum) Dominant() (freq, share float64) {
	if len(s.Amps) < 2 {
		return 0, 0
	}
	total, best := 0.0, 1
	for k := 1; k < len(s.Amps); k++ {
		total += s.Amps[k] * s.Amps[k]
		if s.Amps[k] > s.Amps[best] {
			best = k
		}
	}
	if total == 0 {
		return 0, 0
	}
	return s.Freqs[best], s.Amps[best] * s.Amps[best] / total
}

// Band is the RMS amplitude of the components between lo and hi Hz.
func (s Spectrum) Band(lo, hi float64) float64 {
	sum := 0.0
	for k, f := range s.Freqs {
		if k == 0 || f < lo || f > hi {
			continue
		}
		if s.n%2 == 0 && k == s.n/2 {
			// the Nyquist term alternates sign and is not a sinusoid
			sum += s.Amps[k] * s.Amps[k]
		} else {
			sum += s.Amps[k] * s.Amps[k] / 2
		}
	}
	return math.Sqrt(sum)
}
