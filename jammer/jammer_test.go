package jammer

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/hb9tf/plutoiq/sdr"
)

func TestApplyDisabled(t *testing.T) {
	block := sdr.Block{1, 2i, -3}
	got := New(false, 1000).Apply(block)
	if len(got) != len(block) {
		t.Fatalf("Apply() returned %d samples, want %d", len(got), len(block))
	}
	for i := range block {
		if got[i] != complex128(block[i]) {
			t.Errorf("sample %d = %v, want %v", i, got[i], block[i])
		}
	}
}

func TestApplyExtremeAmplitude(t *testing.T) {
	// Well beyond the float32 range of device samples.
	for _, amplitude := range []float64{1e39, 1e150} {
		got := New(true, amplitude).Apply(make(sdr.Block, 64))
		nonZero := false
		for i, s := range got {
			if math.IsInf(real(s), 0) || math.IsInf(imag(s), 0) || math.IsNaN(real(s)) || math.IsNaN(imag(s)) {
				t.Fatalf("amplitude %g: sample %d = %v, want a finite value", amplitude, i, s)
			}
			if s != 0 {
				nonZero = true
			}
		}
		if !nonZero {
			t.Errorf("amplitude %g: no noise added", amplitude)
		}
	}
}

func TestApplyStatistics(t *testing.T) {
	tests := []struct {
		name      string
		amplitude float64
	}{
		{name: "unit", amplitude: 1},
		{name: "default", amplitude: 1000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			const n = 100000
			block := make(sdr.Block, n)
			j := New(true, tc.amplitude)
			got := j.Apply(block)
			if len(got) != n {
				t.Fatalf("Apply() returned %d samples, want %d", len(got), n)
			}

			re := make([]float64, n)
			im := make([]float64, n)
			for i, s := range got {
				re[i] = float64(real(s))
				im[i] = float64(imag(s))
			}
			for part, x := range map[string][]float64{"real": re, "imaginary": im} {
				mean, variance := stat.MeanVariance(x, nil)
				// Five standard errors of the mean.
				if limit := 5 * tc.amplitude / math.Sqrt(n); math.Abs(mean) > limit {
					t.Errorf("%s mean = %f, want |mean| <= %f", part, mean, limit)
				}
				want := tc.amplitude * tc.amplitude
				if math.Abs(variance-want)/want > 0.05 {
					t.Errorf("%s variance = %f, want %f ± 5%%", part, variance, want)
				}
			}
			if math.Abs(stat.Correlation(re, im, nil)) > 0.05 {
				t.Error("real and imaginary noise are correlated")
			}
		})
	}
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	block := sdr.Block{1, 1, 1}
	New(true, 10).Apply(block)
	for i, s := range block {
		if s != 1 {
			t.Errorf("input sample %d modified to %v", i, s)
		}
	}
}

func TestSet(t *testing.T) {
	j := New(false, 1)
	j.Set(true, 42)
	if !j.Enabled() || j.Amplitude() != 42 {
		t.Errorf("Set(true, 42) resulted in enabled=%t amplitude=%f", j.Enabled(), j.Amplitude())
	}

	j.Set(true, 0)
	block := sdr.Block{3 + 4i}
	if got := j.Apply(block); got[0] != complex128(block[0]) {
		t.Errorf("zero amplitude changed the sample: %v", got[0])
	}
}
