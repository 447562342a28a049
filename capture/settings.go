package capture

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hb9tf/plutoiq/sdr"
)

const (
	DefaultBackend         = "pluto"
	DefaultLOFrequency     = 2440000000
	DefaultBufferSize      = 1024
	DefaultInterval        = 100 * time.Millisecond
	DefaultJammerAmplitude = 1000
	DefaultFFTSize         = 256
	DefaultMaxColumns      = 200
	DefaultTimeOrigin      = -33

	// legacyTimeBase is divided by the sample rate to get the record time step.
	// At the default rate this yields one unit per sample.
	legacyTimeBase = 2e6
)

// Settings configure a capture session. They are fixed for the lifetime of a session,
// only the jammer parameters can be changed while it runs.
type Settings struct {
	Backend     string `yaml:"backend" json:"backend"`
	URI         string `yaml:"uri" json:"uri"`
	LOFrequency int64  `yaml:"loFrequency" json:"loFrequency"`
	BufferSize  int    `yaml:"bufferSize" json:"bufferSize"`
	Channels    []int  `yaml:"channels" json:"channels"`
	// SampleRate is requested from devices which take one and replaced by the
	// rate reported by the device once the session started.
	SampleRate float64       `yaml:"sampleRate" json:"sampleRate"`
	Interval   time.Duration `yaml:"interval" json:"interval"`

	JammerEnabled   bool    `yaml:"jammerEnabled" json:"jammerEnabled"`
	JammerAmplitude float64 `yaml:"jammerAmplitude" json:"jammerAmplitude"`

	FFTSize    int `yaml:"fftSize" json:"fftSize"`
	MaxColumns int `yaml:"maxColumns" json:"maxColumns"`

	// TimeOrigin is the time of the first record in every batch.
	TimeOrigin float64 `yaml:"timeOrigin" json:"timeOrigin"`
	// TrueSamplePeriod spaces records by 1/SampleRate instead of 2e6/SampleRate.
	TrueSamplePeriod bool `yaml:"trueSamplePeriod" json:"trueSamplePeriod"`
}

func DefaultSettings() Settings {
	return Settings{
		Backend:         DefaultBackend,
		LOFrequency:     DefaultLOFrequency,
		BufferSize:      DefaultBufferSize,
		Channels:        []int{0},
		Interval:        DefaultInterval,
		JammerAmplitude: DefaultJammerAmplitude,
		FFTSize:         DefaultFFTSize,
		MaxColumns:      DefaultMaxColumns,
		TimeOrigin:      DefaultTimeOrigin,
	}
}

func (s *Settings) Validate() error {
	var errs []error
	if s.Backend == "" {
		errs = append(errs, errors.New("backend must be set"))
	}
	if s.BufferSize < 1 {
		errs = append(errs, fmt.Errorf("buffer size must be positive, got %d", s.BufferSize))
	}
	if s.FFTSize < 1 {
		errs = append(errs, fmt.Errorf("FFT size must be positive, got %d", s.FFTSize))
	}
	if s.MaxColumns < 1 {
		errs = append(errs, fmt.Errorf("max columns must be positive, got %d", s.MaxColumns))
	}
	if s.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval must not be negative, got %s", s.Interval))
	}
	if s.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("sample rate must not be negative, got %f", s.SampleRate))
	}
	for _, c := range s.Channels {
		if c < 0 {
			errs = append(errs, fmt.Errorf("invalid channel %d", c))
		}
	}
	return errors.Join(errs...)
}

// TimeStep returns the spacing between two consecutive records.
func (s *Settings) TimeStep() float64 {
	rate := s.SampleRate
	if rate <= 0 {
		rate = sdr.DefaultSampleRate
	}
	if s.TrueSamplePeriod {
		return 1 / rate
	}
	return legacyTimeBase / rate
}

func (s *Settings) deviceOptions() *sdr.Options {
	return &sdr.Options{
		LOFrequency: s.LOFrequency,
		BufferSize:  s.BufferSize,
		Channels:    append([]int(nil), s.Channels...),
		SampleRate:  s.SampleRate,
	}
}

// LoadSettings reads a YAML settings file on top of base.
// Keys missing from the file keep their value from base.
func LoadSettings(path string, base Settings) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("unable to read settings file %q: %w", path, err)
	}
	s := base
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return base, fmt.Errorf("unable to parse settings file %q: %w", path, err)
	}
	return s, nil
}
