package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %s", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{name: "no backend", modify: func(s *Settings) { s.Backend = "" }},
		{name: "zero buffer", modify: func(s *Settings) { s.BufferSize = 0 }},
		{name: "zero FFT size", modify: func(s *Settings) { s.FFTSize = 0 }},
		{name: "zero columns", modify: func(s *Settings) { s.MaxColumns = 0 }},
		{name: "negative interval", modify: func(s *Settings) { s.Interval = -time.Second }},
		{name: "negative sample rate", modify: func(s *Settings) { s.SampleRate = -1 }},
		{name: "negative channel", modify: func(s *Settings) { s.Channels = []int{-1} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			tc.modify(&s)
			if err := s.Validate(); err == nil {
				t.Error("Validate() expected an error")
			}
		})
	}
}

func TestTimeStep(t *testing.T) {
	tests := []struct {
		rate       float64
		truePeriod bool
		want       float64
	}{
		{rate: 2e6, want: 1},
		{rate: 4e6, want: 0.5},
		{rate: 0, want: 1},
		{rate: 2e6, truePeriod: true, want: 5e-7},
	}
	for _, tc := range tests {
		s := Settings{SampleRate: tc.rate, TrueSamplePeriod: tc.truePeriod}
		if got := s.TimeStep(); got != tc.want {
			t.Errorf("TimeStep() with rate %f and true period %t = %g, want %g", tc.rate, tc.truePeriod, got, tc.want)
		}
	}
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.yaml")
	content := `
backend: synth
uri: synth:42
loFrequency: 915000000
interval: 250ms
jammerEnabled: true
channels: [0, 1]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadSettings(path, DefaultSettings())
	if err != nil {
		t.Fatalf("LoadSettings() unexpected error: %s", err)
	}
	if got.Backend != "synth" || got.URI != "synth:42" || got.LOFrequency != 915000000 {
		t.Errorf("LoadSettings() = %+v", got)
	}
	if got.Interval != 250*time.Millisecond {
		t.Errorf("Interval = %s, want 250ms", got.Interval)
	}
	if !got.JammerEnabled || len(got.Channels) != 2 {
		t.Errorf("LoadSettings() = %+v", got)
	}
	// Untouched keys keep their defaults.
	if got.FFTSize != DefaultFFTSize || got.BufferSize != DefaultBufferSize || got.JammerAmplitude != DefaultJammerAmplitude {
		t.Errorf("defaults were lost: %+v", got)
	}
}

func TestLoadSettingsErrors(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"), DefaultSettings()); err == nil {
		t.Error("LoadSettings() expected an error for a missing file")
	}
	path := filepath.Join(t.TempDir(), "broken.yaml")
	os.WriteFile(path, []byte("fftSize: [1"), 0o644)
	if _, err := LoadSettings(path, DefaultSettings()); err == nil {
		t.Error("LoadSettings() expected an error for broken YAML")
	}
}
