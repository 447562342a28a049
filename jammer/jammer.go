// Package jammer simulates a wideband jammer by adding Gaussian noise to sample blocks.
package jammer

import (
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hb9tf/plutoiq/sdr"
)

// Injector adds independent N(0, amplitude²) noise to the real and imaginary
// part of every sample while enabled. It may be reconfigured while in use.
type Injector struct {
	mu        sync.Mutex
	enabled   bool
	amplitude float64
}

func New(enabled bool, amplitude float64) *Injector {
	return &Injector{
		enabled:   enabled,
		amplitude: amplitude,
	}
}

// Set updates both parameters at once.
func (j *Injector) Set(enabled bool, amplitude float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.enabled = enabled
	j.amplitude = amplitude
}

func (j *Injector) Enabled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enabled
}

func (j *Injector) Amplitude() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.amplitude
}

// Apply widens block to complex128 and, while enabled, adds the noise. The result
// is always a new slice, so extreme amplitudes do not overflow the device sample type.
func (j *Injector) Apply(block sdr.Block) []complex128 {
	j.mu.Lock()
	enabled, amplitude := j.enabled, j.amplitude
	j.mu.Unlock()

	out := make([]complex128, len(block))
	if !enabled {
		for i, s := range block {
			out[i] = complex128(s)
		}
		return out
	}

	noise := distuv.Normal{Mu: 0, Sigma: amplitude}
	for i, s := range block {
		re := float64(real(s)) + noise.Rand()
		im := float64(imag(s)) + noise.Rand()
		out[i] = complex(re, im)
	}
	return out
}
