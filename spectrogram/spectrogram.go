// Package spectrogram turns blocks of complex baseband samples into magnitude spectra.
package spectrogram

import (
	"errors"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/hb9tf/plutoiq/sdr"
)

var (
	ErrFFTSize     = errors.New("FFT size must be at least 1")
	ErrEmptySignal = errors.New("signal is empty")
)

// hann returns a symmetric Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 1
	}
	return window.Hann(w)
}

// shift moves the zero frequency bin to the center of the spectrum.
func shift(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for i := range out {
		out[i] = x[(i-n/2+n)%n]
	}
	return out
}

// Column computes a single spectrogram column from a block: the most recent nFft samples
// (left padded with zeros if the block is shorter) are Hann windowed, transformed with a
// complex FFT and shifted so the lowest frequency comes first. The result holds nFft
// non-negative magnitudes.
func Column(block sdr.Block, nFft int) ([]float64, error) {
	if nFft < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrFFTSize, nFft)
	}

	frame := make([]complex128, nFft)
	if len(block) >= nFft {
		for i, s := range block[len(block)-nFft:] {
			frame[i] = complex128(s)
		}
	} else {
		offset := nFft - len(block)
		for i, s := range block {
			frame[offset+i] = complex128(s)
		}
	}

	w := hann(nFft)
	for i := range frame {
		frame[i] *= complex(w[i], 0)
	}

	coeff := fourier.NewCmplxFFT(nFft).Coefficients(nil, frame)
	shifted := shift(coeff)

	column := make([]float64, nFft)
	for i, c := range shifted {
		column[i] = cmplx.Abs(c)
	}
	return column, nil
}

// Full computes the spectrogram of a whole signal using a real input FFT over its in-phase
// component. Frames of nFft samples are taken every hop samples; hop <= 0 selects nFft/2.
// The result is indexed [frequency row][frame] and has nFft/2+1 rows holding
// 1+floor((len(signal)-nFft)/hop) frames, so a signal shorter than nFft yields rows without frames.
func Full(signal sdr.Block, nFft, hop int) ([][]float64, error) {
	if nFft < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrFFTSize, nFft)
	}
	if len(signal) == 0 {
		return nil, ErrEmptySignal
	}
	if hop <= 0 {
		hop = max(1, nFft/2)
	}

	frames := 0
	if len(signal) >= nFft {
		frames = 1 + (len(signal)-nFft)/hop
	}
	rows := nFft/2 + 1

	out := make([][]float64, rows)
	for r := range out {
		out[r] = make([]float64, frames)
	}

	w := hann(nFft)
	fft := fourier.NewFFT(nFft)
	seq := make([]float64, nFft)
	coeff := make([]complex128, rows)
	for f := 0; f < frames; f++ {
		start := f * hop
		for i := range seq {
			seq[i] = 0
			if start+i < len(signal) {
				seq[i] = float64(real(signal[start+i])) * w[i]
			}
		}
		coeff = fft.Coefficients(coeff, seq)
		for r, c := range coeff {
			out[r][f] = cmplx.Abs(c)
		}
	}
	return out, nil
}
